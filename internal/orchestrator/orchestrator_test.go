package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/phkaiser13/ph-operator/internal/applier"
	"github.com/phkaiser13/ph-operator/internal/strategy"
)

type fakeExecutor struct {
	mu        sync.Mutex
	applied   []string
	failApply map[string]bool
	switched  []string
	deleted   []string
	checked   []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{failApply: make(map[string]bool)}
}

func (f *fakeExecutor) Apply(ctx context.Context, cluster string, manifests string, vars applier.TemplateVars) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, cluster)
	if f.failApply[cluster] {
		return errTest
	}
	return nil
}

func (f *fakeExecutor) SwitchTraffic(ctx context.Context, cluster, appName, color string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switched = append(f.switched, cluster)
	return nil
}

func (f *fakeExecutor) DeleteResources(ctx context.Context, cluster, appName, colorLabel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, cluster)
	return nil
}

func (f *fakeExecutor) HealthCheck(ctx context.Context, cluster, appName, namespace, color string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, cluster)
	return nil
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

var errTest = &testError{msg: "apply failed"}

func TestRunDirectAppliesAllClustersConcurrently(t *testing.T) {
	plan, err := strategy.Build(strategy.Direct, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	exec := newFakeExecutor()
	intent := Intent{AppName: "web", Namespace: "prod", Manifests: "kind: Deployment"}
	results, err := Run(context.Background(), plan, intent, nil, exec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || len(results[0].Results) != 3 {
		t.Fatalf("want 1 stage with 3 results, got %+v", results)
	}
	if len(exec.applied) != 3 {
		t.Fatalf("want 3 applies, got %d", len(exec.applied))
	}
}

func TestRunStagedHaltsOnFailure(t *testing.T) {
	plan, err := strategy.Build(strategy.Staged, []string{"a", "b"})
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	exec := newFakeExecutor()
	exec.failApply["a"] = true
	intent := Intent{AppName: "web", Namespace: "prod", Manifests: "kind: Deployment"}

	results, err := Run(context.Background(), plan, intent, nil, exec)
	if err == nil {
		t.Fatal("want halt error when a stage fails")
	}
	if len(results) != 1 {
		t.Fatalf("want plan to stop after the failing apply stage, got %d stages", len(results))
	}
	if len(exec.checked) != 0 {
		t.Fatal("want health-check stage never to run after apply failure")
	}
}

func TestRunFailoverHaltsOnFirstSuccess(t *testing.T) {
	plan, err := strategy.Build(strategy.Failover, []string{"b", "a", "c"})
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	exec := newFakeExecutor()
	intent := Intent{AppName: "web", Namespace: "prod", Manifests: "kind: Deployment"}

	results, err := Run(context.Background(), plan, intent, nil, exec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("want failover to halt after the first cluster (ordered 'a' first), got %d stages", len(results))
	}
	if len(exec.applied) != 1 || exec.applied[0] != "a" {
		t.Fatalf("want only cluster 'a' applied, got %v", exec.applied)
	}
}

func TestRunBlueGreenRunsAllFourStages(t *testing.T) {
	plan, err := strategy.Build(strategy.BlueGreen, []string{"a", "b"})
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	exec := newFakeExecutor()
	intent := Intent{AppName: "web", Namespace: "prod", Manifests: "kind: Deployment"}

	results, err := Run(context.Background(), plan, intent, nil, exec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("want 4 stages, got %d", len(results))
	}
	if len(exec.switched) != 2 {
		t.Fatalf("want traffic switched for both clusters, got %d", len(exec.switched))
	}
	if len(exec.deleted) != 2 {
		t.Fatalf("want blue resources deleted for both clusters, got %d", len(exec.deleted))
	}
}

func TestRunPolicyViolationFailsApplyWithoutInvokingExecutor(t *testing.T) {
	PolicyToolPath = "/nonexistent-policy-tool-binary-for-tests"
	defer func() { PolicyToolPath = "policy-tool" }()

	plan, err := strategy.Build(strategy.Direct, []string{"a"})
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	exec := newFakeExecutor()
	intent := Intent{AppName: "web", Namespace: "prod", Manifests: "kind: Deployment"}
	targets := map[string]ClusterTarget{
		"a": {Name: "a", Policies: map[string]string{"deny-latest-tag": "rules: []"}},
	}

	_, err = Run(context.Background(), plan, intent, targets, exec)
	if err == nil {
		t.Fatal("want an error when the policy tool binary cannot be invoked")
	}
	if len(exec.applied) != 0 {
		t.Fatal("want Apply never invoked once policy enforcement fails")
	}
}
