package preview

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
)

// reconcileDelete tears a Preview's namespace down, per spec.md §3.3's
// invariant: the finalizer cannot be removed until the namespace deletion
// call has been accepted by the apiserver. It also handles TTL-expiry,
// which reconcileApply's caller routes here the same way.
func (r *Reconciler) reconcileDelete(ctx context.Context, preview *phv1alpha1.Preview) (ctrl.Result, error) {
	if !controllerutil.ContainsFinalizer(preview, phv1alpha1.FinalizerPreview) {
		return ctrl.Result{}, nil
	}

	ns := preview.Status.Namespace
	if ns == "" {
		ns = namespaceName(preview)
	}

	preview.Status.Phase = phv1alpha1.PreviewTerminating
	preview.Status.Namespace = ns
	preview.Status.Message = "deleting preview environment namespace"
	if err := r.updateStatus(ctx, preview); err != nil {
		return ctrl.Result{}, err
	}

	namespace := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: ns}}
	if err := r.Delete(ctx, namespace); err != nil && !apierrors.IsNotFound(err) {
		return ctrl.Result{}, err
	}

	controllerutil.RemoveFinalizer(preview, phv1alpha1.FinalizerPreview)
	if err := r.Update(ctx, preview); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{}, nil
}
