// Package orchestrator executes an internal/strategy.Plan: it walks the
// plan's stages in order, dispatching each stage's action concurrently
// across its target clusters, and applies the plan's HaltPolicy between
// stages. Grounded on original_source's ClusterManager::execute_action /
// execute_stage (sequential stages, concurrent per-stage cluster fan-out,
// halt on stage failure for Staged, halt on first success for Failover).
package orchestrator

import (
	"context"
	"sync"

	"github.com/phkaiser13/ph-operator/internal/applier"
	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
	"github.com/phkaiser13/ph-operator/internal/strategy"
)

// Intent is the application-level action a Plan's stages all serve, held
// constant across the whole run (the strategy only varies staging/grouping,
// per original_source's `Action::Apply` carrying manifests/app_name/namespace
// once for the whole plan).
type Intent struct {
	AppName   string
	Namespace string
	Manifests string
}

// ClusterTarget names one plan target and the policies (if any) that must
// pass before manifests are applied to it, per spec.md §4.8 ("Policy
// enforcement").
type ClusterTarget struct {
	Name     string
	Policies map[string]string
}

// Executor performs the four stage.Action kinds against one named cluster.
// Implementations hold per-cluster clients (one internal/applier.Applier and
// one internal/traffic.Manager per cluster); internal/orchestrator has no
// client construction logic of its own so it stays independently testable.
type Executor interface {
	Apply(ctx context.Context, cluster string, manifests string, vars applier.TemplateVars) error
	SwitchTraffic(ctx context.Context, cluster, appName, color string) error
	DeleteResources(ctx context.Context, cluster, appName, colorLabel string) error
	HealthCheck(ctx context.Context, cluster, appName, namespace, color string) error
}

// ClusterResult is the outcome of one stage's action on one cluster.
type ClusterResult struct {
	Cluster string
	Err     error
}

// StageResult is one stage's per-cluster outcomes.
type StageResult struct {
	Stage   string
	Results []ClusterResult
}

// Run executes plan's stages in order against targets using exec, applying
// plan.Halt between stages. It returns every stage's results up to (and
// including) the stage that triggered a halt.
func Run(ctx context.Context, plan strategy.Plan, intent Intent, targets map[string]ClusterTarget, exec Executor) ([]StageResult, error) {
	var all []StageResult

	for _, stage := range plan.Stages {
		results := runStage(ctx, stage, intent, targets, exec)
		all = append(all, StageResult{Stage: stage.Name, Results: results})

		hadFailure := false
		hadSuccess := false
		for _, r := range results {
			if r.Err != nil {
				hadFailure = true
			} else {
				hadSuccess = true
			}
		}

		switch plan.Halt {
		case strategy.HaltOnStageFailure:
			if hadFailure {
				return all, pherrors.New(pherrors.KindPolicyViolation, "stage "+stage.Name+" failed, halting plan")
			}
		case strategy.HaltOnFirstSuccess:
			if hadSuccess {
				return all, nil
			}
		}
	}

	return all, nil
}

// runStage fans out stage's action across its clusters concurrently and
// collects every result, preserving cluster order.
func runStage(ctx context.Context, stage strategy.Stage, intent Intent, targets map[string]ClusterTarget, exec Executor) []ClusterResult {
	results := make([]ClusterResult, len(stage.Clusters))
	var wg sync.WaitGroup
	for i, cluster := range stage.Clusters {
		wg.Add(1)
		go func(i int, cluster string) {
			defer wg.Done()
			results[i] = ClusterResult{Cluster: cluster, Err: runAction(ctx, stage, cluster, intent, targets[cluster], exec)}
		}(i, cluster)
	}
	wg.Wait()
	return results
}

func runAction(ctx context.Context, stage strategy.Stage, cluster string, intent Intent, target ClusterTarget, exec Executor) error {
	switch stage.Action {
	case strategy.ActionApply:
		if len(target.Policies) > 0 {
			if err := enforcePolicies(ctx, target.Policies, intent.Manifests); err != nil {
				return err
			}
		}
		vars := applier.TemplateVars{"AppName": intent.AppName, "Namespace": intent.Namespace}
		if stage.Color != "" {
			vars["Color"] = stage.Color
		}
		return exec.Apply(ctx, cluster, intent.Manifests, vars)

	case strategy.ActionSwitchTraffic:
		return exec.SwitchTraffic(ctx, cluster, intent.AppName, stage.Color)

	case strategy.ActionDeleteResources:
		return exec.DeleteResources(ctx, cluster, intent.AppName, stage.Color)

	case strategy.ActionHealthCheck:
		return exec.HealthCheck(ctx, cluster, intent.AppName, intent.Namespace, stage.Color)

	default:
		return pherrors.New(pherrors.KindBadSpec, "unknown stage action "+string(stage.Action))
	}
}
