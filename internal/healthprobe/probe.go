// Package healthprobe implements the three probe variants named in
// spec.md §4.10: httpGet, prometheus, and releasePhase. All are async;
// only httpGet applies the 5s default named in spec.md §5, prometheus uses
// the metrics client's own query timeout, and releasePhase has no timeout
// beyond its context.
package healthprobe

import (
	"context"
	"net/http"
	"time"

	"github.com/phkaiser13/ph-operator/internal/expr"
	"github.com/phkaiser13/ph-operator/internal/metricsanalyzer"
	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// DefaultTimeout is the default HTTP probe timeout per spec.md §5.
const DefaultTimeout = 5 * time.Second

// Kind discriminates which probe variant a Probe describes.
type Kind string

const (
	KindHTTPGet      Kind = "httpGet"
	KindPrometheus   Kind = "prometheus"
	KindReleasePhase Kind = "releasePhase"
)

// Probe is a tagged union over the three probe variants.
type Probe struct {
	Kind Kind

	// httpGet
	URL            string
	TimeoutSeconds int

	// prometheus
	Query          string
	ExpectedResult string

	// releasePhase
	Name          string
	Namespace     string
	ExpectedPhase string
}

// ReleasePhaseReader reads the current phase of a Release CR for
// releasePhase probes. This module contains no implementation of it; the
// caller of the evaluator supplies one.
type ReleasePhaseReader interface {
	ReleasePhase(ctx context.Context, namespace, name string) (string, error)
}

// Evaluator runs the three probe kinds.
type Evaluator struct {
	HTTPClient    *http.Client
	MetricsClient *metricsanalyzer.Client
	PhaseReader   ReleasePhaseReader
}

// NewEvaluator builds an Evaluator. metricsClient and phaseReader may be nil
// if the caller never exercises the corresponding probe kind.
func NewEvaluator(httpClient *http.Client, metricsClient *metricsanalyzer.Client, phaseReader ReleasePhaseReader) *Evaluator {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Evaluator{HTTPClient: httpClient, MetricsClient: metricsClient, PhaseReader: phaseReader}
}

// Evaluate runs p and reports success or an explanatory error.
func (e *Evaluator) Evaluate(ctx context.Context, p Probe) (bool, error) {
	switch p.Kind {
	case KindHTTPGet:
		return e.evaluateHTTPGet(ctx, p)
	case KindPrometheus:
		return e.evaluatePrometheus(ctx, p)
	case KindReleasePhase:
		return e.evaluateReleasePhase(ctx, p)
	default:
		return false, pherrors.New(pherrors.KindBadSpec, "unknown probe kind "+string(p.Kind))
	}
}

func (e *Evaluator) evaluateHTTPGet(ctx context.Context, p Probe) (bool, error) {
	timeout := DefaultTimeout
	if p.TimeoutSeconds > 0 {
		timeout = time.Duration(p.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false, pherrors.Wrap(pherrors.KindBadSpec, "invalid probe URL", err)
	}
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return false, pherrors.Wrap(pherrors.KindTimeout, "httpGet probe failed", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// evaluatePrometheus succeeds iff the query returns a non-empty vector;
// when ExpectedResult is a comparison expression (per spec.md §4.2), the
// sampled value is evaluated against it with free variable "value".
func (e *Evaluator) evaluatePrometheus(ctx context.Context, p Probe) (bool, error) {
	if e.MetricsClient == nil {
		return false, pherrors.New(pherrors.KindBadSpec, "no metrics client configured for prometheus probe")
	}
	value, err := e.MetricsClient.Query(ctx, p.Query)
	if err != nil {
		return false, nil // Inconclusive at the query layer maps to probe failure, not error.
	}
	if p.ExpectedResult == "" {
		return true, nil
	}
	ok, evalErr := expr.Evaluate(p.ExpectedResult, "value", value)
	if evalErr != nil {
		return false, nil
	}
	return ok, nil
}

func (e *Evaluator) evaluateReleasePhase(ctx context.Context, p Probe) (bool, error) {
	if e.PhaseReader == nil {
		return false, pherrors.New(pherrors.KindBadSpec, "no phase reader configured for releasePhase probe")
	}
	phase, err := e.PhaseReader.ReleasePhase(ctx, p.Namespace, p.Name)
	if err != nil {
		return false, pherrors.Wrap(pherrors.KindKubeAPI, "unable to read Release phase", err)
	}
	return phase == p.ExpectedPhase, nil
}
