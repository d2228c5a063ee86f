// Package status implements the shared status-writing idiom every
// controller uses: server-side apply against the status subresource under a
// fixed, per-controller field manager, per spec.md §4.11. Conditions are
// additive — SetCondition (api/v1alpha1) already guarantees "latest
// transition wins, no dedup of equal messages within one update".
package status

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/client"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// FieldManager names a controller's status field manager. Kept distinct per
// controller so concurrent reconcilers touching the same object (rare, but
// possible across DR/Release boundary cases) never clobber each other's
// status fields.
type FieldManager string

const (
	ReleaseFieldManager          FieldManager = "ph-operator-release"
	AutoHealFieldManager         FieldManager = "ph-operator-autoheal"
	DisasterRecoveryFieldManager FieldManager = "ph-operator-dr"
	PreviewFieldManager          FieldManager = "ph-operator-preview"
	RbacPolicyFieldManager       FieldManager = "ph-operator-rbacpolicy"
	SyncJobFieldManager          FieldManager = "ph-operator-syncjob"
)

// Apply server-side applies obj's current in-memory state to its status
// subresource under owner, forcing ownership of any conflicting field
// (every status field here is exclusively written by one controller, so
// conflicts only arise from a stale cache and should always yield to the
// latest reconcile's view).
func Apply(ctx context.Context, c client.Client, obj client.Object, owner FieldManager) error {
	if err := c.Status().Patch(ctx, obj, client.Apply, client.FieldOwner(string(owner)), client.ForceOwnership); err != nil {
		return pherrors.Wrap(pherrors.KindKubeAPI, "server-side apply status", err)
	}
	return nil
}
