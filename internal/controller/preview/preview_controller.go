// Package preview implements the Preview controller: ephemeral PR
// environments created by shallow-cloning a repository, applying its
// manifests into a dedicated namespace, and tearing the namespace down on
// deletion or TTL expiry, per spec.md §3.3 and §4.7.
package preview

import (
	"context"
	"fmt"
	"strings"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	"github.com/phkaiser13/ph-operator/internal/status"
)

// ManifestApplier server-side applies a discovered manifest document.
// *applier.Applier satisfies this; tests substitute a recording fake.
type ManifestApplier interface {
	Apply(ctx context.Context, obj *unstructured.Unstructured, namespace string) error
}

// RepoCloner checks out a repository revision into a directory on local
// disk and returns its path. Callers are responsible for removing it.
type RepoCloner interface {
	Clone(ctx context.Context, repoURL, branch, commitSha string) (dir string, err error)
}

// Reconciler drives a Preview through Creating/Deployed/Failed and,
// on deletion, Terminating.
type Reconciler struct {
	client.Client
	Scheme *runtime.Scheme

	Cloner  RepoCloner
	Applier ManifestApplier

	// ReadyWait is how long to pause before checking pod readiness, letting
	// freshly-applied workloads get scheduled and start pulling images.
	// Production wiring sets this to 15s (the original's sleep); tests leave
	// it at the zero value.
	ReadyWait time.Duration

	// Now is the reconciler's clock, overridable in tests.
	Now func() time.Time
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// namespaceName computes the deterministic namespace for a Preview, per
// spec.md §3.3's invariant: a pure, injective function of (branch, appName,
// UID). Format: preview-<sanitised-branch>-<app>-<uid[:6]>.
func namespaceName(p *phv1alpha1.Preview) string {
	branch := strings.ReplaceAll(p.Spec.Branch, "/", "-")
	uid := string(p.UID)
	suffix := uid
	if len(uid) > 6 {
		suffix = uid[:6]
	}
	return fmt.Sprintf("preview-%s-%s-%s", branch, p.Spec.AppName, suffix)
}

// +kubebuilder:rbac:groups=ph.io,resources=previews,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=ph.io,resources=previews/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=ph.io,resources=previews/finalizers,verbs=update
// +kubebuilder:rbac:groups="",resources=namespaces,verbs=get;list;watch;create;delete
// +kubebuilder:rbac:groups="",resources=pods,verbs=get;list;watch

func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	var preview phv1alpha1.Preview
	if err := r.Get(ctx, req.NamespacedName, &preview); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	if !preview.DeletionTimestamp.IsZero() {
		return r.reconcileDelete(ctx, &preview)
	}

	if !controllerutil.ContainsFinalizer(&preview, phv1alpha1.FinalizerPreview) {
		controllerutil.AddFinalizer(&preview, phv1alpha1.FinalizerPreview)
		if err := r.Update(ctx, &preview); err != nil {
			return ctrl.Result{}, err
		}
	}

	if preview.Status.Phase == phv1alpha1.PreviewDeployed {
		if expiredAt(preview.Status.ExpiresAt, r.now()) {
			return r.reconcileDelete(ctx, &preview)
		}
		return ctrl.Result{RequeueAfter: preview.Status.ExpiresAt.Time.Sub(r.now())}, nil
	}

	return r.reconcileApply(ctx, &preview)
}

// expiredAt reports whether now is at or past the Preview's recorded
// expiry; Reconcile uses it to tear down a Deployed Preview whose TTL has
// passed before the separate GarbageCollect pass reaches it.
func expiredAt(expiresAt *metav1.Time, now time.Time) bool {
	return expiresAt != nil && !now.Before(expiresAt.Time)
}

func (r *Reconciler) setFailed(ctx context.Context, preview *phv1alpha1.Preview, ns, reason string) (ctrl.Result, error) {
	preview.Status.Phase = phv1alpha1.PreviewFailed
	preview.Status.Namespace = ns
	preview.Status.Message = reason
	if err := status.Apply(ctx, r.Client, preview, status.PreviewFieldManager); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{}, nil
}

func (r *Reconciler) updateStatus(ctx context.Context, preview *phv1alpha1.Preview) error {
	return status.Apply(ctx, r.Client, preview, status.PreviewFieldManager)
}

// SetupWithManager registers the reconciler with mgr.
func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&phv1alpha1.Preview{}).
		Named("preview").
		Complete(r)
}
