package traffic

import (
	"context"
	"testing"
)

func TestNoopManagerUpdateSplitFails(t *testing.T) {
	if err := NoopManager.UpdateSplit(context.Background(), "apps", Split{AppName: "hello"}); err == nil {
		t.Fatal("want error: noop manager cannot steer traffic")
	}
}

func TestNoopManagerPromoteRollbackAreNoops(t *testing.T) {
	if err := NoopManager.Promote(context.Background(), "apps", "hello"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := NoopManager.Rollback(context.Background(), "apps", "hello"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWeightOfDefaultsToZero(t *testing.T) {
	weights := map[string]int32{"stable": 80}
	if got := weightOf(weights, "canary"); got != 0 {
		t.Errorf("want 0, got %d", got)
	}
	if got := weightOf(weights, "stable"); got != 80 {
		t.Errorf("want 80, got %d", got)
	}
}
