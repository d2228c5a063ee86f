// Package config loads ph-operator's process configuration: metrics/webhook
// bind addresses, the OTLP endpoint, requeue delays, and the metric-history
// cap, per spec.md §10 (Ambient stack). Values are bound with
// github.com/spf13/viper against the root github.com/spf13/cobra command's
// flags in cmd/ph-operator/main.go, following gardener's own cobra+viper command
// wiring (gardenadm's command tree takes the same flag-then-bind shape;
// only its tests were present in the retrieved pack, so the wiring below
// follows plain upstream cobra+viper idiom rather than a specific file).
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the operator's process-wide configuration.
type Config struct {
	// MetricsBindAddress serves /metrics (Prometheus), per spec.md §6.3.
	MetricsBindAddress string
	// WebhookBindAddress serves POST /webhook (AutoHeal alerts), per
	// spec.md §6.2.
	WebhookBindAddress string
	// HealthProbeBindAddress serves /healthz and /readyz.
	HealthProbeBindAddress string
	// PrometheusURL is the base URL metricsanalyzer.Client queries against.
	PrometheusURL string
	// OTLPEndpoint is the OpenTelemetry collector gRPC endpoint; empty
	// disables tracing.
	OTLPEndpoint string
	// OperatorNamespace is where clusterclient.Factory looks up kubeconfig
	// Secrets for remote clusters.
	OperatorNamespace string
	// RequeueDelay is loaded from --requeue-delay but no reconciler reads
	// it: DR requeues on its health-check interval and Release on its
	// analysis interval.
	RequeueDelay time.Duration
	// MetricHistoryCap bounds metricsanalyzer's per-metric trend history,
	// overriding metricsanalyzer.MaxHistoryPoints at startup.
	MetricHistoryCap int
	// Development switches internal/logging between a zap development and
	// production encoder configuration.
	Development bool
}

// Defaults returns the configuration used when no flag or environment
// variable overrides a value.
func Defaults() Config {
	return Config{
		MetricsBindAddress:     ":9090",
		WebhookBindAddress:     ":8080",
		HealthProbeBindAddress: ":8081",
		PrometheusURL:          "http://prometheus-k8s.monitoring.svc:9090",
		OperatorNamespace:      "ph-operator",
		RequeueDelay:           30 * time.Second,
		MetricHistoryCap:       20,
	}
}

// BindFlags registers flags for every Config field on flags, defaulting
// each to d's value.
func BindFlags(flags *pflag.FlagSet, d Config) {
	flags.String("metrics-bind-address", d.MetricsBindAddress, "Address the /metrics endpoint binds to.")
	flags.String("webhook-bind-address", d.WebhookBindAddress, "Address the AutoHeal /webhook endpoint binds to.")
	flags.String("health-probe-bind-address", d.HealthProbeBindAddress, "Address the liveness/readiness probes bind to.")
	flags.String("prometheus-url", d.PrometheusURL, "Base URL of the Prometheus instance used for analysis and health checks.")
	flags.String("otlp-endpoint", d.OTLPEndpoint, "OTLP/gRPC collector endpoint; empty disables tracing.")
	flags.String("operator-namespace", d.OperatorNamespace, "Namespace ph-operator itself runs in, used to look up kubeconfig Secrets.")
	flags.Duration("requeue-delay", d.RequeueDelay, "Requeue delay setting; not read by any reconciler.")
	flags.Int("metric-history-cap", d.MetricHistoryCap, "Maximum number of trend-analysis data points retained per metric.")
	flags.Bool("development", d.Development, "Use a development (console, debug-level) logging encoder.")
}

// Load reads v (already bound to flags via viper.BindPFlags and to the
// PH_OPERATOR_* environment prefix) into a Config.
func Load(v *viper.Viper) Config {
	return Config{
		MetricsBindAddress:     v.GetString("metrics-bind-address"),
		WebhookBindAddress:     v.GetString("webhook-bind-address"),
		HealthProbeBindAddress: v.GetString("health-probe-bind-address"),
		PrometheusURL:          v.GetString("prometheus-url"),
		OTLPEndpoint:           v.GetString("otlp-endpoint"),
		OperatorNamespace:      v.GetString("operator-namespace"),
		RequeueDelay:           v.GetDuration("requeue-delay"),
		MetricHistoryCap:       v.GetInt("metric-history-cap"),
		Development:            v.GetBool("development"),
	}
}

// NewViper builds a viper instance bound to flags and to environment
// variables prefixed PH_OPERATOR_ (e.g. PH_OPERATOR_PROMETHEUS_URL).
func NewViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("PH_OPERATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}
	return v, nil
}
