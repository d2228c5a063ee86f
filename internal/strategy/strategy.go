// Package strategy turns a multi-cluster deployment intent into an ordered
// list of execution stages, per spec.md §4.8. It has no side effects of its
// own; the orchestrator executes the plan it returns.
package strategy

import (
	"sort"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// Kind discriminates the orchestration strategy. Every switch over Kind
// elsewhere in the codebase must remain exhaustive.
type Kind string

const (
	Direct    Kind = "Direct"
	Parallel  Kind = "Parallel"
	Staged    Kind = "Staged"
	Failover  Kind = "Failover"
	BlueGreen Kind = "BlueGreen"
)

// ActionKind is the single action a stage performs across its clusters.
type ActionKind string

const (
	ActionApply           ActionKind = "Apply"
	ActionSwitchTraffic   ActionKind = "SwitchTraffic"
	ActionDeleteResources ActionKind = "DeleteResources"
	ActionHealthCheck     ActionKind = "HealthCheck"
)

// Stage bundles a list of target clusters and a single action kind. Color
// carries the BlueGreen plan's "blue"/"green" template variable; it is
// empty for non-BlueGreen stages.
type Stage struct {
	Name     string
	Clusters []string
	Action   ActionKind
	Color    string
}

// HaltPolicy describes how the orchestrator should react to per-cluster
// failures within a stage, per spec.md §4.8 item 3.
type HaltPolicy string

const (
	// HaltOnStageFailure stops the plan if any cluster in the stage failed.
	HaltOnStageFailure HaltPolicy = "HaltOnStageFailure"
	// HaltOnFirstSuccess stops the plan as soon as one cluster in the stage
	// succeeds (Failover semantics).
	HaltOnFirstSuccess HaltPolicy = "HaltOnFirstSuccess"
	// HaltNever runs every stage regardless of per-cluster outcomes
	// (Direct/Parallel semantics: a single stage, nothing left to halt).
	HaltNever HaltPolicy = "HaltNever"
)

// Plan is the ordered list of stages plus the halting policy the
// orchestrator must apply between them.
type Plan struct {
	Strategy Kind
	Stages   []Stage
	Halt     HaltPolicy
}

// Build turns clusters and strategy into an ordered execution plan. clusters
// must be non-empty; Failover stages are ordered by cluster name (spec.md
// §4.8 item 3: "ordered by name").
func Build(kind Kind, clusters []string) (Plan, error) {
	if len(clusters) == 0 {
		return Plan{}, pherrors.New(pherrors.KindBadSpec, "strategy plan requires at least one target cluster")
	}

	switch kind {
	case Direct, Parallel:
		return Plan{
			Strategy: kind,
			Halt:     HaltNever,
			Stages: []Stage{
				{Name: "apply", Clusters: clusters, Action: ActionApply},
			},
		}, nil

	case Staged:
		return Plan{
			Strategy: kind,
			Halt:     HaltOnStageFailure,
			Stages: []Stage{
				{Name: "apply", Clusters: clusters, Action: ActionApply},
				{Name: "health-check", Clusters: clusters, Action: ActionHealthCheck},
			},
		}, nil

	case Failover:
		ordered := make([]string, len(clusters))
		copy(ordered, clusters)
		sort.Strings(ordered)
		stages := make([]Stage, len(ordered))
		for i, c := range ordered {
			stages[i] = Stage{Name: c, Clusters: []string{c}, Action: ActionApply}
		}
		return Plan{Strategy: kind, Halt: HaltOnFirstSuccess, Stages: stages}, nil

	case BlueGreen:
		return Plan{
			Strategy: kind,
			Halt:     HaltOnStageFailure,
			Stages: []Stage{
				{Name: "deploy-green", Clusters: clusters, Action: ActionApply, Color: "green"},
				{Name: "health-check-green", Clusters: clusters, Action: ActionHealthCheck, Color: "green"},
				{Name: "switch-traffic", Clusters: clusters, Action: ActionSwitchTraffic, Color: "green"},
				{Name: "decommission-blue", Clusters: clusters, Action: ActionDeleteResources, Color: "blue"},
			},
		}, nil
	}

	return Plan{}, pherrors.New(pherrors.KindBadSpec, "unknown strategy kind "+string(kind))
}
