package release

import (
	"context"
	"strconv"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	"github.com/phkaiser13/ph-operator/internal/duration"
	"github.com/phkaiser13/ph-operator/internal/metricsanalyzer"
	"github.com/phkaiser13/ph-operator/internal/status"
	"github.com/phkaiser13/ph-operator/internal/traffic"
)

// variantStrategy is the strategy-agnostic view reconcileProgressing and
// promote/rollback operate over, letting Canary and BlueGreen share one
// state machine implementation.
type variantStrategy struct {
	trafficPercent int32
	autoPromote    bool
	analysis       *phv1alpha1.Analysis
}

func strategyOf(rel *phv1alpha1.Release) (variantStrategy, error) {
	switch rel.Spec.Strategy {
	case phv1alpha1.StrategyCanary:
		c := rel.Spec.Canary
		if c == nil {
			return variantStrategy{}, errUnsupportedStrategy
		}
		return variantStrategy{trafficPercent: int32(c.TrafficPercent), autoPromote: c.AutoPromote, analysis: c.Analysis}, nil
	case phv1alpha1.StrategyBlueGreen:
		bg := rel.Spec.BlueGreen
		if bg == nil {
			return variantStrategy{}, errUnsupportedStrategy
		}
		// Blue-green holds the new variant at zero live traffic until an
		// explicit promote swaps it to 100%, unlike canary's partial split.
		return variantStrategy{trafficPercent: 0, autoPromote: bg.AutoPromote, analysis: bg.Analysis}, nil
	default:
		return variantStrategy{}, errUnsupportedStrategy
	}
}

func (r *Reconciler) reconcileProgressing(ctx context.Context, rel *phv1alpha1.Release) (ctrl.Result, error) {
	strat, err := strategyOf(rel)
	if err != nil {
		failed, ferr := r.failRelease(ctx, rel, err.Error())
		if ferr != nil {
			return ctrl.Result{}, ferr
		}
		_ = failed
		return ctrl.Result{}, nil
	}

	canaryName := variantName(rel.Spec.AppName, variantCanary)
	var canary appsv1.Deployment
	err = r.Get(ctx, types.NamespacedName{Namespace: rel.Namespace, Name: canaryName}, &canary)
	if apierrors.IsNotFound(err) {
		return r.initialSetup(ctx, rel, strat)
	}
	if err != nil {
		return ctrl.Result{}, err
	}

	if strat.analysis == nil {
		return ctrl.Result{RequeueAfter: 5 * time.Minute}, nil
	}
	return r.runAnalysisPass(ctx, rel, strat.analysis, strat.autoPromote)
}

// initialSetup creates the root Service and both variant Deployments, sets
// the initial traffic split, and transitions to Progressing. Grounded on the
// original's initial_setup.
func (r *Reconciler) initialSetup(ctx context.Context, rel *phv1alpha1.Release, strat variantStrategy) (ctrl.Result, error) {
	appName := rel.Spec.AppName

	svc := buildService(rel)
	if err := r.applyResource(ctx, svc); err != nil {
		return ctrl.Result{}, err
	}

	stableVersion := r.currentStableVersion(ctx, rel)
	stableReplicas := int32(defaultReplicas / 2)
	canaryReplicas := int32(defaultReplicas / 2)

	stableDep := buildDeployment(rel.Namespace, appName, variantStable, stableVersion, stableReplicas)
	if err := r.applyResource(ctx, stableDep); err != nil {
		return ctrl.Result{}, err
	}
	canaryDep := buildDeployment(rel.Namespace, appName, variantCanary, rel.Spec.Version, canaryReplicas)
	if err := r.applyResource(ctx, canaryDep); err != nil {
		return ctrl.Result{}, err
	}

	if err := r.shiftInitialTraffic(ctx, rel, strat); err != nil {
		return ctrl.Result{}, err
	}

	now := metav1.NewTime(r.now())
	rel.Status.Phase = phv1alpha1.ReleaseProgressing
	rel.Status.StableVersion = stableVersion
	rel.Status.CanaryVersion = rel.Spec.Version
	rel.Status.TrafficSplit = trafficSplitString(100-strat.trafficPercent, strat.trafficPercent)
	rel.Status.ProgressingStartTime = &now
	phv1alpha1.SetCondition(&rel.Status.Conditions, phv1alpha1.ConditionReady, metav1.ConditionTrue, "InitialSetupComplete", "stable and canary variants created")
	if err := status.Apply(ctx, r.Client, rel, status.ReleaseFieldManager); err != nil {
		return ctrl.Result{}, err
	}

	return ctrl.Result{RequeueAfter: time.Second}, nil
}

func (r *Reconciler) currentStableVersion(ctx context.Context, rel *phv1alpha1.Release) string {
	var existing appsv1.Deployment
	key := types.NamespacedName{Namespace: rel.Namespace, Name: variantName(rel.Spec.AppName, variantStable)}
	if err := r.Get(ctx, key, &existing); err != nil {
		return "latest"
	}
	if len(existing.Spec.Template.Spec.Containers) == 0 {
		return "latest"
	}
	img := existing.Spec.Template.Spec.Containers[0].Image
	idx := len(img) - 1
	for idx >= 0 && img[idx] != ':' {
		idx--
	}
	if idx < 0 {
		return "latest"
	}
	return img[idx+1:]
}

func (r *Reconciler) shiftInitialTraffic(ctx context.Context, rel *phv1alpha1.Release, strat variantStrategy) error {
	mgr, err := r.trafficManager(ctx)
	if err != nil {
		return err
	}
	if mgr != traffic.NoopManager {
		split := traffic.Split{AppName: rel.Spec.AppName, Weights: map[string]int32{
			variantStable: 100 - strat.trafficPercent,
			variantCanary: strat.trafficPercent,
		}}
		return mgr.UpdateSplit(ctx, rel.Namespace, split)
	}

	canaryReplicas := defaultReplicas * int(strat.trafficPercent) / 100
	stableReplicas := defaultReplicas - canaryReplicas
	return r.scaleVariants(ctx, rel, int32(stableReplicas), int32(canaryReplicas))
}

func (r *Reconciler) scaleVariants(ctx context.Context, rel *phv1alpha1.Release, stableReplicas, canaryReplicas int32) error {
	if err := r.patchReplicas(ctx, rel.Namespace, variantName(rel.Spec.AppName, variantStable), stableReplicas); err != nil {
		return err
	}
	return r.patchReplicas(ctx, rel.Namespace, variantName(rel.Spec.AppName, variantCanary), canaryReplicas)
}

func (r *Reconciler) patchReplicas(ctx context.Context, namespace, name string, replicas int32) error {
	dep := &appsv1.Deployment{}
	if err := r.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, dep); err != nil {
		return err
	}
	patch := client.MergeFrom(dep.DeepCopy())
	dep.Spec.Replicas = &replicas
	return r.Patch(ctx, dep, patch)
}

func (r *Reconciler) patchImage(ctx context.Context, namespace, name, newImage string) error {
	dep := &appsv1.Deployment{}
	if err := r.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, dep); err != nil {
		return err
	}
	patch := client.MergeFrom(dep.DeepCopy())
	if len(dep.Spec.Template.Spec.Containers) > 0 {
		dep.Spec.Template.Spec.Containers[0].Image = newImage
	}
	return r.Patch(ctx, dep, patch)
}

func (r *Reconciler) applyResource(ctx context.Context, obj client.Object) error {
	return r.Patch(ctx, obj, client.Apply, client.FieldOwner("ph-operator-release"), client.ForceOwnership)
}

func trafficSplitString(stable, canary int32) string {
	return "stable: " + strconv.Itoa(int(stable)) + "%, canary: " + strconv.Itoa(int(canary)) + "%"
}

// runAnalysisPass runs at most one analysis pass per reconcile, gated by
// lastCheck + interval <= now, per spec.md §4.4.
func (r *Reconciler) runAnalysisPass(ctx context.Context, rel *phv1alpha1.Release, analysis *phv1alpha1.Analysis, autoPromote bool) (ctrl.Result, error) {
	interval, err := duration.Parse(analysis.Interval)
	if err != nil {
		failed, ferr := r.failRelease(ctx, rel, "invalid analysis interval: "+err.Error())
		_ = failed
		return ctrl.Result{}, ferr
	}

	now := r.now()
	run := rel.Status.AnalysisRun
	if run.LastCheck != nil {
		nextRun := run.LastCheck.Time.Add(interval)
		if now.Before(nextRun) {
			return ctrl.Result{RequeueAfter: nextRun.Sub(now)}, nil
		}
	}

	outcome, history := r.evaluateMetrics(ctx, analysis, run, now)
	run.MetricHistory = history
	lastCheck := metav1.NewTime(now)
	run.LastCheck = &lastCheck

	switch outcome {
	case metricsanalyzer.ResultTrendWorse:
		rel.Status.Phase = phv1alpha1.ReleasePaused
		phv1alpha1.SetCondition(&rel.Status.Conditions, phv1alpha1.ConditionDegraded, metav1.ConditionTrue, "TrendingWorse", "predictive analysis detected a negative trend")
	case metricsanalyzer.ResultSuccess:
		run.SuccessCount++
		run.FailureCount = 0
	case metricsanalyzer.ResultFailure:
		run.FailureCount++
		run.SuccessCount = 0
	case metricsanalyzer.ResultInconclusive:
		// neither counter changes
	}
	rel.Status.AnalysisRun = run

	if rel.Status.Phase != phv1alpha1.ReleasePaused {
		switch {
		case run.SuccessCount >= analysis.Threshold:
			r.observeLatency(rel, now)
			if autoPromote {
				rel.Status.Phase = phv1alpha1.ReleasePromoting
			} else {
				rel.Status.Phase = phv1alpha1.ReleasePaused
			}
		case run.FailureCount >= analysis.MaxFailures:
			r.observeLatency(rel, now)
			rel.Status.Phase = phv1alpha1.ReleaseRollingBack
		}
	}

	if err := status.Apply(ctx, r.Client, rel, status.ReleaseFieldManager); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{RequeueAfter: interval}, nil
}

func (r *Reconciler) observeLatency(rel *phv1alpha1.Release, now time.Time) {
	if r.Metrics == nil || rel.Status.ProgressingStartTime == nil {
		return
	}
	r.Metrics.RolloutStepLatency.Observe(now.Sub(rel.Status.ProgressingStartTime.Time).Seconds())
}

// evaluateMetrics runs every configured metric and classifies the overall
// pass, per spec.md §4.4's per-metric aggregation rules: a TrendingWorse
// metric takes priority; then any Inconclusive metric makes the pass
// Inconclusive (incrementing neither counter), even alongside a Failure;
// then any Failure fails; only all-Success passes.
func (r *Reconciler) evaluateMetrics(ctx context.Context, analysis *phv1alpha1.Analysis, run phv1alpha1.AnalysisRunStatus, now time.Time) (metricsanalyzer.Result, map[string][]phv1alpha1.MetricHistoryEntry) {
	history := run.MetricHistory
	if history == nil {
		history = map[string][]phv1alpha1.MetricHistoryEntry{}
	}

	hasFailure, hasInconclusive, hasTrendWorse := false, false, false
	for _, m := range analysis.Metrics {
		spec := metricsanalyzer.MetricSpec{
			Name: m.Name, Query: m.Query, OnSuccess: m.OnSuccess,
		}
		if m.PredictiveAnalysis != nil {
			spec.PredictiveEnabled = m.PredictiveAnalysis.Enabled
			spec.TrendThreshold = m.PredictiveAnalysis.TrendThreshold
		}

		points := decodeHistory(history[m.Name])
		result, value, newPoints, _ := r.Analyzer.Analyze(ctx, spec, points, now)
		history[m.Name] = encodeHistory(newPoints)

		switch result {
		case metricsanalyzer.ResultTrendWorse:
			hasTrendWorse = true
		case metricsanalyzer.ResultFailure:
			hasFailure = true
		case metricsanalyzer.ResultInconclusive:
			hasInconclusive = true
		}
		_ = value
	}

	switch {
	case hasTrendWorse:
		return metricsanalyzer.ResultTrendWorse, history
	case hasInconclusive:
		return metricsanalyzer.ResultInconclusive, history
	case hasFailure:
		return metricsanalyzer.ResultFailure, history
	default:
		return metricsanalyzer.ResultSuccess, history
	}
}

func decodeHistory(entries []phv1alpha1.MetricHistoryEntry) []metricsanalyzer.Point {
	points := make([]metricsanalyzer.Point, 0, len(entries))
	for _, e := range entries {
		v, err := strconv.ParseFloat(e.Value, 64)
		if err != nil {
			continue
		}
		points = append(points, metricsanalyzer.Point{Timestamp: e.Timestamp.Time, Value: v})
	}
	return points
}

func encodeHistory(points []metricsanalyzer.Point) []phv1alpha1.MetricHistoryEntry {
	entries := make([]phv1alpha1.MetricHistoryEntry, 0, len(points))
	for _, p := range points {
		entries = append(entries, phv1alpha1.MetricHistoryEntry{
			Timestamp: metav1.NewTime(p.Timestamp),
			Value:     strconv.FormatFloat(p.Value, 'g', -1, 64),
		})
	}
	return entries
}
