// Package metricsanalyzer implements instant-vector query execution,
// per-metric condition classification, and linear-regression trend
// detection for the Release controller's analysis loop (spec.md §4.3, §4.4)
// and for prometheus-kind health probes (§4.10).
package metricsanalyzer

import "time"

// Result classifies the outcome of one metric check.
type Result string

const (
	ResultSuccess      Result = "Success"
	ResultFailure      Result = "Failure"
	ResultInconclusive Result = "Inconclusive"
	ResultTrendWorse   Result = "TrendingWorse"
)

// Point is one (timestamp, value) sample retained in a metric's history.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// MetricSpec mirrors Release.spec.strategy.canary.analysis.metrics[*].
type MetricSpec struct {
	Name              string
	Query             string
	OnSuccess         string
	PredictiveEnabled bool
	TrendThreshold    float64 // default 0.1 when PredictiveEnabled and zero
}

// DefaultTrendThreshold is used when PredictiveEnabled is set but
// TrendThreshold was left at its zero value.
const DefaultTrendThreshold = 0.1

// MaxHistoryPoints bounds metricHistory per spec.md §3.1 invariant
// ("≤20 points per metric, oldest evicted"); spec.md §9 calls this out as a
// configurable constant, so it is a var, not a const.
var MaxHistoryPoints = 20

func (m MetricSpec) effectiveTrendThreshold() float64 {
	if m.TrendThreshold == 0 {
		return DefaultTrendThreshold
	}
	return m.TrendThreshold
}

// AppendHistory appends value at now to history, evicting the oldest point
// when the cap is exceeded.
func AppendHistory(history []Point, now time.Time, value float64) []Point {
	history = append(history, Point{Timestamp: now, Value: value})
	if len(history) > MaxHistoryPoints {
		history = history[len(history)-MaxHistoryPoints:]
	}
	return history
}
