package strategy

import "testing"

func TestBuildDirectSingleStage(t *testing.T) {
	plan, err := Build(Direct, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Stages) != 1 {
		t.Fatalf("want 1 stage, got %d", len(plan.Stages))
	}
	if plan.Halt != HaltNever {
		t.Errorf("want HaltNever, got %v", plan.Halt)
	}
}

func TestBuildStagedInsertsHealthCheck(t *testing.T) {
	plan, err := Build(Staged, []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Stages) != 2 {
		t.Fatalf("want 2 stages, got %d", len(plan.Stages))
	}
	if plan.Stages[1].Action != ActionHealthCheck {
		t.Errorf("want second stage to be a health check, got %v", plan.Stages[1].Action)
	}
	if plan.Halt != HaltOnStageFailure {
		t.Errorf("want HaltOnStageFailure, got %v", plan.Halt)
	}
}

func TestBuildFailoverOrdersByNameAndHaltsOnSuccess(t *testing.T) {
	plan, err := Build(Failover, []string{"zz", "aa", "mm"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Stages) != 3 {
		t.Fatalf("want 3 stages, got %d", len(plan.Stages))
	}
	want := []string{"aa", "mm", "zz"}
	for i, w := range want {
		if plan.Stages[i].Name != w {
			t.Errorf("stage %d: want %s, got %s", i, w, plan.Stages[i].Name)
		}
		if len(plan.Stages[i].Clusters) != 1 {
			t.Errorf("stage %d: want exactly one cluster", i)
		}
	}
	if plan.Halt != HaltOnFirstSuccess {
		t.Errorf("want HaltOnFirstSuccess, got %v", plan.Halt)
	}
}

func TestBuildBlueGreenFourStages(t *testing.T) {
	plan, err := Build(BlueGreen, []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Stages) != 4 {
		t.Fatalf("want 4 stages, got %d", len(plan.Stages))
	}
	wantNames := []string{"deploy-green", "health-check-green", "switch-traffic", "decommission-blue"}
	wantColors := []string{"green", "green", "green", "blue"}
	for i := range wantNames {
		if plan.Stages[i].Name != wantNames[i] {
			t.Errorf("stage %d: want name %s, got %s", i, wantNames[i], plan.Stages[i].Name)
		}
		if plan.Stages[i].Color != wantColors[i] {
			t.Errorf("stage %d: want color %s, got %s", i, wantColors[i], plan.Stages[i].Color)
		}
	}
}

func TestBuildRejectsEmptyClusterList(t *testing.T) {
	if _, err := Build(Direct, nil); err == nil {
		t.Fatal("want error for empty cluster list")
	}
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	if _, err := Build(Kind("bogus"), []string{"a"}); err == nil {
		t.Fatal("want error for unknown strategy kind")
	}
}
