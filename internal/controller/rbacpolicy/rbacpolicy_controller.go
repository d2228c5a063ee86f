// Package rbacpolicy implements the RbacPolicy controller: materialises a
// RoleBinding from a declarative policy, per spec.md §3.5, grounded on
// rbac_policy_controller.rs.
package rbacpolicy

import (
	"context"
	"fmt"

	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	"github.com/phkaiser13/ph-operator/internal/status"
)

// fieldManager names the controller for server-side apply of the RoleBinding
// it owns, distinct from the field manager used for the policy's own status.
const fieldManager = "ph-operator-rbacpolicy"

// Reconciler materialises each RbacPolicy as an owned RoleBinding in
// spec.Namespace (a field distinct from the policy object's own namespace,
// letting one admin namespace fan RBAC grants out to arbitrary targets).
type Reconciler struct {
	client.Client
	Scheme *runtime.Scheme
}

func bindingName(policy *phv1alpha1.RbacPolicy) string {
	return fmt.Sprintf("ph-policy-%s", policy.Name)
}

// +kubebuilder:rbac:groups=ph.io,resources=rbacpolicies,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=ph.io,resources=rbacpolicies/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=rbac.authorization.k8s.io,resources=rolebindings,verbs=get;list;watch;create;update;patch;delete

func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	var policy phv1alpha1.RbacPolicy
	if err := r.Get(ctx, req.NamespacedName, &policy); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	if !policy.DeletionTimestamp.IsZero() {
		return r.reconcileDelete(ctx, &policy)
	}

	if !controllerutil.ContainsFinalizer(&policy, phv1alpha1.FinalizerBindingCleanup) {
		controllerutil.AddFinalizer(&policy, phv1alpha1.FinalizerBindingCleanup)
		if err := r.Update(ctx, &policy); err != nil {
			return ctrl.Result{}, err
		}
	}

	return r.reconcileApply(ctx, &policy)
}

func (r *Reconciler) reconcileApply(ctx context.Context, policy *phv1alpha1.RbacPolicy) (ctrl.Result, error) {
	name := bindingName(policy)
	desired := &rbacv1.RoleBinding{
		TypeMeta: metav1.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "RoleBinding"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: policy.Spec.Namespace,
			OwnerReferences: []metav1.OwnerReference{
				*metav1.NewControllerRef(policy, phv1alpha1.GroupVersion.WithKind("RbacPolicy")),
			},
		},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "ClusterRole",
			Name:     policy.Spec.ClusterRoleName,
		},
		Subjects: []rbacv1.Subject{{
			Kind:     string(policy.Spec.Subject.Kind),
			Name:     policy.Spec.Subject.Name,
			APIGroup: rbacv1.GroupName,
		}},
	}

	if err := r.Patch(ctx, desired, client.Apply, client.FieldOwner(fieldManager), client.ForceOwnership); err != nil {
		phv1alpha1.SetCondition(&policy.Status.Conditions, phv1alpha1.ConditionReady, metav1.ConditionFalse, "BindingApplyFailed", err.Error())
		_ = r.updateStatus(ctx, policy)
		return ctrl.Result{}, err
	}

	policy.Status.BoundRoleBindingName = name
	phv1alpha1.SetCondition(&policy.Status.Conditions, phv1alpha1.ConditionReady, metav1.ConditionTrue, "Bound", "role binding applied")
	if err := r.updateStatus(ctx, policy); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{}, nil
}

func (r *Reconciler) reconcileDelete(ctx context.Context, policy *phv1alpha1.RbacPolicy) (ctrl.Result, error) {
	if !controllerutil.ContainsFinalizer(policy, phv1alpha1.FinalizerBindingCleanup) {
		return ctrl.Result{}, nil
	}

	binding := &rbacv1.RoleBinding{
		ObjectMeta: metav1.ObjectMeta{Name: bindingName(policy), Namespace: policy.Spec.Namespace},
	}
	if err := r.Delete(ctx, binding); err != nil && !apierrors.IsNotFound(err) {
		return ctrl.Result{}, err
	}

	controllerutil.RemoveFinalizer(policy, phv1alpha1.FinalizerBindingCleanup)
	if err := r.Update(ctx, policy); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{}, nil
}

func (r *Reconciler) updateStatus(ctx context.Context, policy *phv1alpha1.RbacPolicy) error {
	return status.Apply(ctx, r.Client, policy, status.RbacPolicyFieldManager)
}

// SetupWithManager registers the reconciler with mgr.
func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&phv1alpha1.RbacPolicy{}).
		Owns(&rbacv1.RoleBinding{}).
		Named("rbacpolicy").
		Complete(r)
}
