package release

import (
	"context"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	"github.com/phkaiser13/ph-operator/internal/status"
	"github.com/phkaiser13/ph-operator/internal/traffic"
)

// reconcilePromoting shifts all traffic onto the canary/green variant and
// declares the release Succeeded, per spec.md §4.4.
func (r *Reconciler) reconcilePromoting(ctx context.Context, rel *phv1alpha1.Release) (ctrl.Result, error) {
	appName := rel.Spec.AppName

	mgr, err := r.trafficManager(ctx)
	if err != nil {
		return ctrl.Result{}, err
	}
	if mgr != traffic.NoopManager {
		if err := mgr.Promote(ctx, rel.Namespace, appName); err != nil {
			return ctrl.Result{}, err
		}
	} else {
		if err := r.retargetStableImage(ctx, rel); err != nil {
			return ctrl.Result{}, err
		}
		if err := r.scaleVariants(ctx, rel, defaultReplicas, 0); err != nil {
			return ctrl.Result{}, err
		}
	}

	rel.Status.Phase = phv1alpha1.ReleaseSucceeded
	rel.Status.StableVersion = rel.Spec.Version
	rel.Status.CanaryVersion = ""
	rel.Status.TrafficSplit = trafficSplitString(100, 0)
	phv1alpha1.SetCondition(&rel.Status.Conditions, phv1alpha1.ConditionReady, metav1.ConditionTrue, "Promoted", "canary promoted to stable")
	if err := status.Apply(ctx, r.Client, rel, status.ReleaseFieldManager); err != nil {
		return ctrl.Result{}, err
	}
	r.recordOutcome(rel, "succeeded")
	return ctrl.Result{}, nil
}

// reconcileRollingBack reverses promotion: canary scaled to zero, stable
// restored to full replicas, release declared Failed.
func (r *Reconciler) reconcileRollingBack(ctx context.Context, rel *phv1alpha1.Release) (ctrl.Result, error) {
	appName := rel.Spec.AppName

	mgr, err := r.trafficManager(ctx)
	if err != nil {
		return ctrl.Result{}, err
	}
	if mgr != traffic.NoopManager {
		if err := mgr.Rollback(ctx, rel.Namespace, appName); err != nil {
			return ctrl.Result{}, err
		}
	} else {
		if err := r.scaleVariants(ctx, rel, defaultReplicas, 0); err != nil {
			return ctrl.Result{}, err
		}
	}

	rel.Status.Phase = phv1alpha1.ReleaseFailed
	rel.Status.TrafficSplit = trafficSplitString(100, 0)
	phv1alpha1.SetCondition(&rel.Status.Conditions, phv1alpha1.ConditionDegraded, metav1.ConditionTrue, "RolledBack", "canary rolled back after exceeding maxFailures")
	if err := status.Apply(ctx, r.Client, rel, status.ReleaseFieldManager); err != nil {
		return ctrl.Result{}, err
	}
	r.recordOutcome(rel, "failed")
	return ctrl.Result{}, nil
}

func (r *Reconciler) retargetStableImage(ctx context.Context, rel *phv1alpha1.Release) error {
	return r.patchImage(ctx, rel.Namespace, variantName(rel.Spec.AppName, variantStable), image(rel.Spec.AppName, rel.Spec.Version))
}

func (r *Reconciler) recordOutcome(rel *phv1alpha1.Release, outcome string) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.RolloutsTotal.WithLabelValues(metricsStrategyLabel(rel.Spec.Strategy), outcome).Inc()
}

// metricsStrategyLabel lower-cases a Release's strategy for the
// phgit_rollouts_total{strategy,status} label, per spec.md §6.3
// ({canary|bluegreen}).
func metricsStrategyLabel(strategy phv1alpha1.StrategyKind) string {
	switch strategy {
	case phv1alpha1.StrategyCanary:
		return "canary"
	case phv1alpha1.StrategyBlueGreen:
		return "bluegreen"
	default:
		return strings.ToLower(string(strategy))
	}
}
