// Package audit implements the Audit controller: a thin, log-only observer
// of immutable audit records, per spec.md §3.5/§3.6, grounded on
// audit_controller.rs. Audit has no status subresource and the reconciler
// never writes to the object or requeues — once logged, an audit record is
// never processed again.
package audit

import (
	"context"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
)

// Reconciler logs each Audit record's fields on create and otherwise does
// nothing: no status to write, no finalizer to add, no requeue to schedule.
type Reconciler struct {
	client.Client
	Scheme *runtime.Scheme
}

// +kubebuilder:rbac:groups=ph.io,resources=audits,verbs=get;list;watch

func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	var record phv1alpha1.Audit
	if err := r.Get(ctx, req.NamespacedName, &record); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	log.FromContext(ctx).Info("audit event observed",
		"component", record.Spec.Component,
		"verb", record.Spec.Verb,
		"actor", record.Spec.Actor,
		"target", record.Spec.Target,
		"timestamp", record.Spec.Timestamp.Time,
	)

	return ctrl.Result{}, nil
}

// SetupWithManager registers the reconciler with mgr.
func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&phv1alpha1.Audit{}).
		Named("audit").
		Complete(r)
}
