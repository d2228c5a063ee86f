// Package traffic implements the single capability set the Release
// controller uses to steer canary/blue-green traffic splits, per spec.md
// §4.9: {UpdateSplit, Promote, Rollback}, with adapter selection driven by
// which traffic-management CRD is installed in the cluster.
package traffic

import (
	"context"
	"fmt"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// Split is a desired weight distribution across named workload variants
// (e.g. "stable" and "canary").
type Split struct {
	AppName string
	Weights map[string]int32
}

// Manager is the capability set the Release controller depends on. It is
// the only contract the controller sees; concrete selection between Argo
// Rollouts, Istio, Linkerd/SMI, or no adapter at all happens at startup via
// Detect.
type Manager interface {
	UpdateSplit(ctx context.Context, ns string, split Split) error
	Promote(ctx context.Context, ns, appName string) error
	Rollback(ctx context.Context, ns, appName string) error
}

// noopManager is selected when no known traffic-management CRD is present;
// the Release controller falls back to replica-count splitting in that
// case and never calls into this adapter for traffic steering.
type noopManager struct{}

func (noopManager) UpdateSplit(ctx context.Context, ns string, split Split) error {
	return pherrors.New(pherrors.KindBadSpec, "no traffic manager adapter available; fall back to replica-count split")
}

func (noopManager) Promote(ctx context.Context, ns, appName string) error {
	return nil
}

func (noopManager) Rollback(ctx context.Context, ns, appName string) error {
	return nil
}

// NoopManager is the fallback adapter used when no mesh/rollout CRD is
// detected. Promote and Rollback are no-ops since there is no traffic
// object to steer; the release controller must rely on replica-count
// weighting alone in this mode (spec.md §4.9 "else nil").
var NoopManager Manager = noopManager{}

// weightOf looks up a named variant's weight, defaulting to zero.
func weightOf(weights map[string]int32, name string) int32 {
	if w, ok := weights[name]; ok {
		return w
	}
	return 0
}

func fmtErr(kind pherrors.Kind, op, ns, app string, err error) error {
	return pherrors.Wrap(kind, fmt.Sprintf("%s %s/%s", op, ns, app), err)
}
