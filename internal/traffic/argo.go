package traffic

import (
	"context"
	"encoding/json"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	rolloutsclientset "github.com/argoproj/argo-rollouts/pkg/client/clientset/versioned"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// ArgoAdapter steers an Argo Rollouts `Rollout` object's canary step weight,
// grounded on original_source's mesh/argo.rs merge-patch approach.
type ArgoAdapter struct {
	Clientset rolloutsclientset.Interface
}

// NewArgoAdapter builds an ArgoAdapter over an existing clientset.
func NewArgoAdapter(cs rolloutsclientset.Interface) *ArgoAdapter {
	return &ArgoAdapter{Clientset: cs}
}

type canaryStepPatch struct {
	Spec struct {
		Strategy struct {
			Canary struct {
				Steps []canaryStep `json:"steps"`
			} `json:"canary"`
		} `json:"strategy"`
	} `json:"spec"`
}

type canaryStep struct {
	SetWeight int32 `json:"setWeight"`
}

func (a *ArgoAdapter) UpdateSplit(ctx context.Context, ns string, split Split) error {
	weight := weightOf(split.Weights, "canary")

	var patch canaryStepPatch
	patch.Spec.Strategy.Canary.Steps = []canaryStep{{SetWeight: weight}}
	data, err := json.Marshal(patch)
	if err != nil {
		return pherrors.Wrap(pherrors.KindDeserialization, "marshal rollout canary patch", err)
	}

	_, err = a.Clientset.ArgoprojV1alpha1().Rollouts(ns).Patch(ctx, split.AppName, types.MergePatchType, data, metav1.PatchOptions{})
	if err != nil {
		return fmtErr(pherrors.KindKubeAPI, "update rollout canary weight", ns, split.AppName, err)
	}
	return nil
}

// pausedPatch resumes a paused Rollout, which Argo Rollouts treats as a
// promotion of the current step.
type pausedPatch struct {
	Spec struct {
		Paused bool `json:"paused"`
	} `json:"spec"`
}

func (a *ArgoAdapter) Promote(ctx context.Context, ns, appName string) error {
	var patch pausedPatch
	patch.Spec.Paused = false
	data, err := json.Marshal(patch)
	if err != nil {
		return pherrors.Wrap(pherrors.KindDeserialization, "marshal rollout promote patch", err)
	}
	if _, err := a.Clientset.ArgoprojV1alpha1().Rollouts(ns).Patch(ctx, appName, types.MergePatchType, data, metav1.PatchOptions{}); err != nil {
		return fmtErr(pherrors.KindKubeAPI, "promote rollout", ns, appName, err)
	}
	return nil
}

// abortPatch aborts a Rollout, reverting all traffic to the stable version.
type abortPatch struct {
	Status struct {
		Abort bool `json:"abort"`
	} `json:"status"`
}

func (a *ArgoAdapter) Rollback(ctx context.Context, ns, appName string) error {
	var patch abortPatch
	patch.Status.Abort = true
	data, err := json.Marshal(patch)
	if err != nil {
		return pherrors.Wrap(pherrors.KindDeserialization, "marshal rollout abort patch", err)
	}
	if _, err := a.Clientset.ArgoprojV1alpha1().Rollouts(ns).Patch(ctx, appName, types.MergePatchType, data, metav1.PatchOptions{}); err != nil {
		return fmtErr(pherrors.KindKubeAPI, "abort rollout", ns, appName, err)
	}
	return nil
}
