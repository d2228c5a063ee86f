package traffic

import (
	"context"
	"encoding/json"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	istioclientset "istio.io/client-go/pkg/clientset/versioned"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// IstioAdapter steers traffic by patching a VirtualService's HTTP route
// weights for the app's stable and canary destination subsets.
type IstioAdapter struct {
	Clientset istioclientset.Interface
}

// NewIstioAdapter builds an IstioAdapter over an existing clientset.
func NewIstioAdapter(cs istioclientset.Interface) *IstioAdapter {
	return &IstioAdapter{Clientset: cs}
}

type vsRouteDestination struct {
	Destination struct {
		Host   string `json:"host"`
		Subset string `json:"subset"`
	} `json:"destination"`
	Weight int32 `json:"weight"`
}

type vsHTTPRoute struct {
	Route []vsRouteDestination `json:"route"`
}

type virtualServicePatch struct {
	Spec struct {
		HTTP []vsHTTPRoute `json:"http"`
	} `json:"spec"`
}

func (i *IstioAdapter) buildSplitPatch(appName string, split Split) []byte {
	var patch virtualServicePatch
	route := vsHTTPRoute{}
	for subset, weight := range split.Weights {
		dest := vsRouteDestination{Weight: weight}
		dest.Destination.Host = appName
		dest.Destination.Subset = subset
		route.Route = append(route.Route, dest)
	}
	patch.Spec.HTTP = []vsHTTPRoute{route}
	data, _ := json.Marshal(patch)
	return data
}

func (i *IstioAdapter) UpdateSplit(ctx context.Context, ns string, split Split) error {
	data := i.buildSplitPatch(split.AppName, split)
	_, err := i.Clientset.NetworkingV1().VirtualServices(ns).Patch(ctx, split.AppName, types.MergePatchType, data, metav1.PatchOptions{})
	if err != nil {
		return fmtErr(pherrors.KindKubeAPI, "update virtualservice split", ns, split.AppName, err)
	}
	return nil
}

func (i *IstioAdapter) Promote(ctx context.Context, ns, appName string) error {
	split := Split{AppName: appName, Weights: map[string]int32{"stable": 100, "canary": 0}}
	return i.UpdateSplit(ctx, ns, split)
}

func (i *IstioAdapter) Rollback(ctx context.Context, ns, appName string) error {
	split := Split{AppName: appName, Weights: map[string]int32{"stable": 100, "canary": 0}}
	return i.UpdateSplit(ctx, ns, split)
}
