// Package dr implements the DisasterRecovery controller: a health-driven
// Monitoring/Degraded/FailingOver/ActiveOnDR/Failed state machine, per
// spec.md §3.4 and §4.6.
package dr

import (
	"context"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	"github.com/phkaiser13/ph-operator/internal/clusterclient"
	"github.com/phkaiser13/ph-operator/internal/duration"
	"github.com/phkaiser13/ph-operator/internal/expr"
	"github.com/phkaiser13/ph-operator/internal/metricsanalyzer"
	"github.com/phkaiser13/ph-operator/internal/notify"
	"github.com/phkaiser13/ph-operator/internal/status"
)

// appInstanceLabel selects the Secrets/ConfigMaps a failover replicates,
// per spec.md §4.6 ("labelled app.kubernetes.io/instance=<app>").
const appInstanceLabel = "app.kubernetes.io/instance"

// fieldManager names every server-side apply this controller performs
// against the DR cluster (Secrets, ConfigMaps, the Deployment).
const fieldManager = "ph-operator-dr"

// defaultSuccessCondition mirrors the original's "value > 0" fallback when
// policy.healthCheck.successCondition is empty.
const defaultSuccessCondition = "value > 0"

// ClusterResolver resolves a kubeconfig Secret reference into a client for
// the cluster it describes. *clusterclient.Factory satisfies this; tests
// substitute a resolver backed by two in-memory fake clients.
type ClusterResolver interface {
	ForSecret(ctx context.Context, secretName string) (client.Client, error)
}

var _ ClusterResolver = (*clusterclient.Factory)(nil)

// Reconciler drives the DisasterRecovery state machine.
type Reconciler struct {
	client.Client
	Scheme *runtime.Scheme

	// Clusters resolves the primary/DR cluster kubeconfig Secrets into
	// clients for FailingOver.
	Clusters ClusterResolver
	// MetricsClient resolves the Prometheus client used for the periodic
	// health check; a func so tests can stub it out.
	MetricsClient func(ctx context.Context) *metricsanalyzer.Client
	// Notifier posts the optional failover webhook.
	Notifier notify.WebhookNotifier
	// Now is the reconciler's clock, overridable in tests.
	Now func() time.Time
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Reconciler) metricsClient(ctx context.Context) *metricsanalyzer.Client {
	if r.MetricsClient != nil {
		return r.MetricsClient(ctx)
	}
	return nil
}

// +kubebuilder:rbac:groups=ph.io,resources=disasterrecoveries,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=ph.io,resources=disasterrecoveries/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=secrets;configmaps,verbs=get;list;watch
// +kubebuilder:rbac:groups=apps,resources=deployments,verbs=get;list;watch;update;patch

func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := ctrl.LoggerFrom(ctx)

	var dr phv1alpha1.DisasterRecovery
	if err := r.Get(ctx, req.NamespacedName, &dr); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	if dr.Status.State.IsTerminal() {
		return ctrl.Result{}, nil
	}

	switch dr.Status.State {
	case "", phv1alpha1.DRMonitoring:
		return r.reconcileMonitoring(ctx, &dr)
	case phv1alpha1.DRDegraded:
		return r.reconcileDegraded(ctx, &dr)
	case phv1alpha1.DRFailingOver:
		return r.reconcileFailingOver(ctx, &dr)
	default:
		logger.Info("disasterrecovery in unexpected state, taking no action", "state", dr.Status.State)
		return ctrl.Result{}, nil
	}
}

// reconcileMonitoring executes the configured health query, evaluates the
// success condition, and either resets or increments consecutiveFailures,
// transitioning to Degraded once failureThreshold is reached.
func (r *Reconciler) reconcileMonitoring(ctx context.Context, dr *phv1alpha1.DisasterRecovery) (ctrl.Result, error) {
	hc := dr.Spec.Policy.HealthCheck
	interval, err := duration.Parse(hc.Interval)
	if err != nil {
		return r.markFailed(ctx, dr, "invalid health check interval: "+err.Error())
	}

	ok := r.evaluateHealth(ctx, hc)

	now := metav1.NewTime(r.now())
	dr.Status.LastHealthCheckTime = &now
	dr.Status.State = phv1alpha1.DRMonitoring

	if ok {
		dr.Status.ConsecutiveFailures = 0
	} else {
		dr.Status.ConsecutiveFailures++
		if dr.Status.ConsecutiveFailures >= hc.FailureThreshold {
			dr.Status.State = phv1alpha1.DRDegraded
			phv1alpha1.SetCondition(&dr.Status.Conditions, phv1alpha1.ConditionDegraded, metav1.ConditionTrue,
				"HealthCheckFailureThresholdReached", "consecutive health check failures reached the configured threshold")
		}
	}

	if err := status.Apply(ctx, r.Client, dr, status.DisasterRecoveryFieldManager); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{RequeueAfter: interval}, nil
}

// evaluateHealth runs the Prometheus query and the success-condition
// expression. Any query failure, or an evaluation error, is treated as a
// failed check — never as inconclusive-but-passing — matching the
// original's "treat query/evaluation error as failure".
func (r *Reconciler) evaluateHealth(ctx context.Context, hc phv1alpha1.HealthCheckSpec) bool {
	mc := r.metricsClient(ctx)
	if mc == nil {
		return false
	}
	value, err := mc.Query(ctx, hc.PrometheusQuery)
	if err != nil {
		return false
	}

	condition := hc.SuccessCondition
	if condition == "" {
		condition = defaultSuccessCondition
	}
	ok, err := expr.Evaluate(condition, "value", value)
	if err != nil {
		return false
	}
	return ok
}

// reconcileDegraded waits for a failover trigger: automatic policy, or the
// manual ph.io/failover=true annotation.
func (r *Reconciler) reconcileDegraded(ctx context.Context, dr *phv1alpha1.DisasterRecovery) (ctrl.Result, error) {
	shouldFailover := dr.Spec.Policy.FailoverTrigger == phv1alpha1.FailoverAutomatic ||
		dr.Annotations[phv1alpha1.ManualFailoverAnnotation] == "true"

	if !shouldFailover {
		return ctrl.Result{RequeueAfter: 30 * time.Second}, nil
	}

	dr.Status.State = phv1alpha1.DRFailingOver
	if err := status.Apply(ctx, r.Client, dr, status.DisasterRecoveryFieldManager); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{RequeueAfter: time.Second}, nil
}

func (r *Reconciler) markFailed(ctx context.Context, dr *phv1alpha1.DisasterRecovery, reason string) (ctrl.Result, error) {
	dr.Status.State = phv1alpha1.DRFailed
	phv1alpha1.SetCondition(&dr.Status.Conditions, phv1alpha1.ConditionDegraded, metav1.ConditionTrue, "FailoverFailed", reason)
	if err := status.Apply(ctx, r.Client, dr, status.DisasterRecoveryFieldManager); err != nil {
		return ctrl.Result{}, err
	}
	r.sendNotification(ctx, dr, "failed: "+reason)
	return ctrl.Result{}, nil
}

func (r *Reconciler) sendNotification(ctx context.Context, dr *phv1alpha1.DisasterRecovery, outcome string) {
	url := dr.Spec.Policy.Notification
	if url == "" {
		return
	}
	payload := map[string]string{
		"resource_name": dr.Name,
		"status":        outcome,
	}
	if err := r.Notifier.Post(ctx, url, payload); err != nil {
		ctrl.LoggerFrom(ctx).Error(err, "send DR notification", "outcome", outcome)
	}
}

// SetupWithManager registers the reconciler with mgr.
func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&phv1alpha1.DisasterRecovery{}).
		Named("disasterrecovery").
		Complete(r)
}
