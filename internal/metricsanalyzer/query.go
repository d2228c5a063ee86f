package metricsanalyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// QueryTimeout and HealthCheckTimeout are the bounded timeouts from
// spec.md §5 ("the metrics analyzer uses 30 s per query, 5 s for health
// checks").
const (
	QueryTimeout       = 30 * time.Second
	HealthCheckTimeout = 5 * time.Second
	healthCheckQuery   = "up"
)

// instantVectorResponse is the subset of the Prometheus-style instant-vector
// query response this client consumes (spec.md §4.3).
type instantVectorResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Value  [2]any   `json:"value,omitempty"`
			Values [][2]any `json:"values,omitempty"`
		} `json:"result"`
	} `json:"data"`
}

// Client executes instant-vector queries against a Prometheus-compatible
// metrics backend, guarded by a circuit breaker so sustained backend outages
// short-circuit to Inconclusive without paying the full query timeout on
// every poll (see SPEC_FULL.md §4.3).
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient builds a Client pointed at baseURL (e.g. "http://prometheus:9090").
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "metrics-backend",
			MaxRequests: 1,
			Interval:    0,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Query executes query as an instant-vector query and extracts the first
// value of the first result, per spec.md §4.3. Query-level failures (HTTP
// non-2xx, malformed JSON, status != "success", transport errors, breaker
// open, or a "NaN" sample) are reported through a KindInconclusiveAnalysis
// error, never as a hard Failure — a broken telemetry pipeline must never
// trigger a rollback. "+Inf"/"-Inf" samples are returned as signed infinity
// with a nil error; the expr evaluator rejects non-finite operands and the
// caller surfaces that as Inconclusive too (spec.md §4.2).
func (c *Client) Query(ctx context.Context, query string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeout)
	defer cancel()

	raw, err := c.breaker.Execute(func() (any, error) {
		return c.doQuery(ctx, query)
	})
	if err != nil {
		return 0, pherrors.Wrap(pherrors.KindInconclusiveAnalysis, "instant-vector query failed", err)
	}
	return decodeFirstValue(raw.(*instantVectorResponse))
}

func (c *Client) doQuery(ctx context.Context, query string) (*instantVectorResponse, error) {
	endpoint := c.BaseURL + "/api/v1/query?query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("metrics backend returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var parsed instantVectorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed instant-vector response: %w", err)
	}
	if parsed.Status != "success" {
		return nil, fmt.Errorf("metrics backend reported status %q", parsed.Status)
	}
	return &parsed, nil
}

func decodeFirstValue(resp *instantVectorResponse) (float64, error) {
	if len(resp.Data.Result) == 0 {
		return 0, pherrors.New(pherrors.KindInconclusiveAnalysis, "empty result vector")
	}
	first := resp.Data.Result[0]
	var raw any
	if len(first.Value) == 2 {
		raw = first.Value[1]
	} else if len(first.Values) > 0 {
		raw = first.Values[len(first.Values)-1][1]
	} else {
		return 0, pherrors.New(pherrors.KindInconclusiveAnalysis, "result sample has no value")
	}
	s, ok := raw.(string)
	if !ok {
		return 0, pherrors.New(pherrors.KindInconclusiveAnalysis, "value field is not a string")
	}
	return parseSampleValue(s)
}

// parseSampleValue handles the special numeric tokens from spec.md §4.3:
// "NaN" is always Inconclusive; "+Inf"/"-Inf" propagate as signed infinity
// (rejected downstream by the expr evaluator, surfacing as Inconclusive at
// the caller per §4.2).
func parseSampleValue(s string) (float64, error) {
	switch s {
	case "NaN":
		return math.NaN(), pherrors.New(pherrors.KindInconclusiveAnalysis, "sample value is NaN")
	case "+Inf":
		return math.Inf(1), nil
	case "-Inf":
		return math.Inf(-1), nil
	}
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return 0, pherrors.Wrap(pherrors.KindInconclusiveAnalysis, "non-numeric sample value "+s, err)
	}
	return f, nil
}

// HealthCheck probes the backend with the fixed sentinel query "up" and a
// 5-second timeout, per spec.md §4.3.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()
	_, err := c.doQuery(ctx, healthCheckQuery)
	if err != nil {
		return pherrors.Wrap(pherrors.KindMetricsUnreachable, "metrics backend health check failed", err)
	}
	return nil
}
