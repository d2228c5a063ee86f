package metricsanalyzer

import (
	"context"
	"time"

	"github.com/phkaiser13/ph-operator/internal/expr"
)

// Analyzer runs metric checks and trend detection for the release
// controller's analysis pass. Its aggregate-then-classify shape follows the
// teacher's saturation analyzer (internal/saturation/analyzer.go), adapted
// from per-replica saturation classification to per-metric release
// classification.
type Analyzer struct {
	Client *Client
}

// NewAnalyzer builds an Analyzer around client.
func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{Client: client}
}

// Analyze executes metric.Query, appends the sampled value to history, and
// classifies the outcome against metric.OnSuccess (free variable "result").
// When metric.PredictiveEnabled, a trend slope exceeding the threshold
// downgrades an otherwise-Success outcome to TrendingWorse.
func (a *Analyzer) Analyze(ctx context.Context, metric MetricSpec, history []Point, now time.Time) (Result, float64, []Point, error) {
	value, err := a.Client.Query(ctx, metric.Query)
	if err != nil {
		// The query itself failed or returned NaN; the value Query
		// returned alongside the error is still appended to history, and
		// the outcome is Inconclusive, never Failure. +Inf/-Inf samples
		// return no error and are evaluated below.
		return ResultInconclusive, value, AppendHistory(history, now, value), nil
	}

	history = AppendHistory(history, now, value)

	ok, evalErr := expr.Evaluate(metric.OnSuccess, "result", value)
	if evalErr != nil {
		return ResultInconclusive, value, history, nil
	}
	if !ok {
		return ResultFailure, value, history, nil
	}

	if metric.PredictiveEnabled {
		slope, hasSlope := AnalyzeTrend(history)
		if hasSlope && slope > metric.effectiveTrendThreshold() {
			return ResultTrendWorse, value, history, nil
		}
	}

	return ResultSuccess, value, history, nil
}

// AnalyzeTrend returns the least-squares slope of (timestamp, value) points
// in history, using elapsed seconds since the first point as the x-axis so
// the slope is in value-per-second. Returns ok=false when history has fewer
// than two points.
func AnalyzeTrend(history []Point) (slope float64, ok bool) {
	if len(history) < 2 {
		return 0, false
	}

	t0 := history[0].Timestamp
	var n, sumX, sumY, sumXY, sumXX float64
	for _, p := range history {
		x := p.Timestamp.Sub(t0).Seconds()
		y := p.Value
		n++
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denominator := n*sumXX - sumX*sumX
	if denominator == 0 {
		return 0, false
	}
	slope = (n*sumXY - sumX*sumY) / denominator
	return slope, true
}
