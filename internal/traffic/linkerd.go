package traffic

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// smiTrafficSplitGVR is the SMI TrafficSplit CRD's GroupVersionResource.
// There is no typed SMI clientset anywhere in the example corpus (see
// DESIGN.md), so the Linkerd adapter is deliberately built on the dynamic
// client rather than a generated one.
var smiTrafficSplitGVR = schema.GroupVersionResource{
	Group:    "split.smi-spec.io",
	Version:  "v1alpha2",
	Resource: "trafficsplits",
}

// LinkerdAdapter steers traffic by patching an SMI TrafficSplit's backend
// weights.
type LinkerdAdapter struct {
	Dynamic dynamic.Interface
}

// NewLinkerdAdapter builds a LinkerdAdapter over an existing dynamic client.
func NewLinkerdAdapter(dyn dynamic.Interface) *LinkerdAdapter {
	return &LinkerdAdapter{Dynamic: dyn}
}

func (l *LinkerdAdapter) UpdateSplit(ctx context.Context, ns string, split Split) error {
	backends := make([]interface{}, 0, len(split.Weights))
	for subset, weight := range split.Weights {
		backends = append(backends, map[string]interface{}{
			"service": fmt.Sprintf("%s-%s", split.AppName, subset),
			"weight":  int64(weight),
		})
	}

	obj := &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "split.smi-spec.io/v1alpha2",
			"kind":       "TrafficSplit",
			"metadata": map[string]interface{}{
				"name":      split.AppName,
				"namespace": ns,
			},
			"spec": map[string]interface{}{
				"service":  split.AppName,
				"backends": backends,
			},
		},
	}

	_, err := l.Dynamic.Resource(smiTrafficSplitGVR).Namespace(ns).Apply(ctx, split.AppName, obj, metav1.ApplyOptions{FieldManager: "ph-operator-release"})
	if err != nil {
		return fmtErr(pherrors.KindKubeAPI, "apply trafficsplit", ns, split.AppName, err)
	}
	return nil
}

func (l *LinkerdAdapter) Promote(ctx context.Context, ns, appName string) error {
	return l.UpdateSplit(ctx, ns, Split{AppName: appName, Weights: map[string]int32{"stable": 100, "canary": 0}})
}

func (l *LinkerdAdapter) Rollback(ctx context.Context, ns, appName string) error {
	return l.UpdateSplit(ctx, ns, Split{AppName: appName, Weights: map[string]int32{"stable": 100, "canary": 0}})
}
