// Package autoheal reconciles AutoHealRule resources, keeping
// internal/autoheal's in-memory cache consistent with the apiserver view,
// per spec.md §4.5 and §3.2's invariant.
package autoheal

import (
	"context"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	"github.com/phkaiser13/ph-operator/internal/autoheal"
	"github.com/phkaiser13/ph-operator/internal/duration"
	"github.com/phkaiser13/ph-operator/internal/status"
)

// Reconciler keeps autoheal.Cache in sync with every AutoHealRule CR. A
// successful cache mutation precedes acknowledgement of the finalizer
// event, per spec.md §4.5 ("a rule never escapes cleanup").
type Reconciler struct {
	client.Client
	Scheme *runtime.Scheme
	Cache  *autoheal.Cache
}

// +kubebuilder:rbac:groups=ph.io,resources=autohealrules,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=ph.io,resources=autohealrules/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=ph.io,resources=autohealrules/finalizers,verbs=update

func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := ctrl.LoggerFrom(ctx)

	var rule phv1alpha1.AutoHealRule
	if err := r.Get(ctx, req.NamespacedName, &rule); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	if !rule.DeletionTimestamp.IsZero() {
		if controllerutil.ContainsFinalizer(&rule, phv1alpha1.FinalizerCacheCleanup) {
			r.Cache.Delete(rule.Spec.TriggerName)
			controllerutil.RemoveFinalizer(&rule, phv1alpha1.FinalizerCacheCleanup)
			if err := r.Update(ctx, &rule); err != nil {
				return ctrl.Result{}, err
			}
		}
		return ctrl.Result{}, nil
	}

	if !controllerutil.ContainsFinalizer(&rule, phv1alpha1.FinalizerCacheCleanup) {
		controllerutil.AddFinalizer(&rule, phv1alpha1.FinalizerCacheCleanup)
		if err := r.Update(ctx, &rule); err != nil {
			return ctrl.Result{}, err
		}
	}

	cooldown, err := duration.Parse(rule.Spec.Cooldown)
	if err != nil {
		logger.Error(err, "invalid cooldown, rule not cached", "rule", rule.Name)
		rule.Status.State = phv1alpha1.RuleFailed
		phv1alpha1.SetCondition(&rule.Status.Conditions, phv1alpha1.ConditionReady, metav1.ConditionFalse, "InvalidCooldown", err.Error())
		_ = status.Apply(ctx, r.Client, &rule, status.AutoHealFieldManager)
		return ctrl.Result{}, nil
	}

	entry := autoheal.Entry{
		Namespace: rule.Namespace,
		Name:      rule.Name,
		Cooldown:  cooldown,
		Actions:   rule.Spec.Actions,
	}
	if rule.Status.LastExecutionTime != nil {
		entry.LastExecutionTime = rule.Status.LastExecutionTime.Time
	}
	r.Cache.Put(rule.Spec.TriggerName, entry)

	if rule.Status.State == "" {
		rule.Status.State = phv1alpha1.RuleIdle
		phv1alpha1.SetCondition(&rule.Status.Conditions, phv1alpha1.ConditionReady, metav1.ConditionTrue, "Cached", "rule registered in the autoheal cache")
		if err := status.Apply(ctx, r.Client, &rule, status.AutoHealFieldManager); err != nil {
			return ctrl.Result{}, err
		}
	}

	return ctrl.Result{RequeueAfter: 5 * time.Minute}, nil
}

// SetupWithManager registers the reconciler with mgr.
func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&phv1alpha1.AutoHealRule{}).
		Named("autohealrule").
		WithEventFilter(EventFilter()).
		Complete(r)
}
