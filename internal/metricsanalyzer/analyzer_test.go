package metricsanalyzer

import (
	"testing"
	"time"
)

func TestAnalyzeTrendTwoPoints(t *testing.T) {
	history := []Point{
		{Timestamp: time.Unix(0, 0), Value: 0},
		{Timestamp: time.Unix(1, 0), Value: 1},
	}
	slope, ok := AnalyzeTrend(history)
	if !ok {
		t.Fatal("expected a slope for two points")
	}
	if slope != 1.0 {
		t.Errorf("slope = %v, want 1.0", slope)
	}
}

func TestAnalyzeTrendFewerThanTwoPoints(t *testing.T) {
	if _, ok := AnalyzeTrend(nil); ok {
		t.Error("expected ok=false for zero points")
	}
	if _, ok := AnalyzeTrend([]Point{{Timestamp: time.Unix(0, 0), Value: 1}}); ok {
		t.Error("expected ok=false for one point")
	}
}

func TestAppendHistoryCap(t *testing.T) {
	var history []Point
	now := time.Unix(0, 0)
	for i := 0; i < MaxHistoryPoints+5; i++ {
		history = AppendHistory(history, now.Add(time.Duration(i)*time.Second), float64(i))
	}
	if len(history) != MaxHistoryPoints {
		t.Fatalf("len(history) = %d, want %d", len(history), MaxHistoryPoints)
	}
	if history[0].Value != 5 {
		t.Errorf("oldest retained value = %v, want 5 (first 5 evicted)", history[0].Value)
	}
}
