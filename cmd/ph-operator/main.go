/*
Copyright 2025 The ph-operator Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command ph-operator is the process entrypoint: it builds the controller
// manager, wires every reconciler, and starts the AutoHeal webhook server
// alongside the manager's own metrics and health-probe servers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	rolloutsclientset "github.com/argoproj/argo-rollouts/pkg/client/clientset/versioned"
	"github.com/spf13/cobra"
	istioclientset "istio.io/client-go/pkg/clientset/versioned"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	"github.com/phkaiser13/ph-operator/internal/applier"
	"github.com/phkaiser13/ph-operator/internal/autoheal"
	"github.com/phkaiser13/ph-operator/internal/clusterclient"
	"github.com/phkaiser13/ph-operator/internal/config"
	auditcontroller "github.com/phkaiser13/ph-operator/internal/controller/audit"
	autohealcontroller "github.com/phkaiser13/ph-operator/internal/controller/autoheal"
	drcontroller "github.com/phkaiser13/ph-operator/internal/controller/dr"
	previewcontroller "github.com/phkaiser13/ph-operator/internal/controller/preview"
	rbacpolicycontroller "github.com/phkaiser13/ph-operator/internal/controller/rbacpolicy"
	releasecontroller "github.com/phkaiser13/ph-operator/internal/controller/release"
	syncjobcontroller "github.com/phkaiser13/ph-operator/internal/controller/syncjob"
	"github.com/phkaiser13/ph-operator/internal/logging"
	"github.com/phkaiser13/ph-operator/internal/metricsanalyzer"
	"github.com/phkaiser13/ph-operator/internal/notify"
	"github.com/phkaiser13/ph-operator/internal/observability"
	"github.com/phkaiser13/ph-operator/internal/traffic"
)

// previewGCInterval is how often the Preview garbage collector sweep runs,
// per spec.md §4.7 ("a separate operator action traverses all Preview
// resources").
const previewGCInterval = 10 * time.Minute

// previewMaxAge bounds how long an unexpired-looking Preview is allowed to
// live before the sweep removes it regardless, catching any TTL the live
// reconcile path missed (e.g. an operator outage spanning the expiry).
const previewMaxAge = 72 * time.Hour

func buildScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	for _, add := range []func(*runtime.Scheme) error{
		clientgoscheme.AddToScheme,
		phv1alpha1.AddToScheme,
		rbacv1.AddToScheme,
	} {
		if err := add(scheme); err != nil {
			return nil, err
		}
	}
	return scheme, nil
}

func run(cfg config.Config) error {
	logger, err := logging.New(cfg.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	ctrl.SetLogger(logger)

	if cfg.OTLPEndpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		tp, err := observability.NewTracerProvider(ctx, cfg.OTLPEndpoint)
		cancel()
		if err != nil {
			return fmt.Errorf("build tracer provider: %w", err)
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	scheme, err := buildScheme()
	if err != nil {
		return fmt.Errorf("build scheme: %w", err)
	}

	restCfg := ctrl.GetConfigOrDie()

	mgr, err := ctrl.NewManager(restCfg, ctrl.Options{
		Scheme: scheme,
		Metrics: metricsserver.Options{
			BindAddress: cfg.MetricsBindAddress,
		},
		HealthProbeBindAddress: cfg.HealthProbeBindAddress,
	})
	if err != nil {
		return fmt.Errorf("build manager: %w", err)
	}

	metrics := observability.Register(ctrlmetrics.Registry)
	metricsanalyzer.MaxHistoryPoints = cfg.MetricHistoryCap

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("build typed clientset: %w", err)
	}
	discClient, err := discovery.NewDiscoveryClientForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("build discovery client: %w", err)
	}
	dynClient, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("build dynamic client: %w", err)
	}
	rolloutsClient, err := rolloutsclientset.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("build argo-rollouts clientset: %w", err)
	}
	istioClient, err := istioclientset.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("build istio clientset: %w", err)
	}
	previewApplier, err := applier.New(restCfg)
	if err != nil {
		return fmt.Errorf("build preview applier: %w", err)
	}

	trafficClients := traffic.Clients{
		Rollouts: traffic.NewArgoAdapter(rolloutsClient),
		Istio:    traffic.NewIstioAdapter(istioClient),
		Linkerd:  traffic.NewLinkerdAdapter(dynClient),
	}
	trafficMgr, err := traffic.Detect(discClient, trafficClients)
	if err != nil {
		return fmt.Errorf("detect traffic manager: %w", err)
	}
	trafficDetect := func(ctx context.Context) (traffic.Manager, error) {
		return trafficMgr, nil
	}

	clusters := clusterclient.NewFactory(mgr.GetClient(), cfg.OperatorNamespace, scheme)
	metricsClient := metricsanalyzer.NewClient(cfg.PrometheusURL)
	analyzer := metricsanalyzer.NewAnalyzer(metricsClient)

	if err := (&releasecontroller.Reconciler{
		Client:        mgr.GetClient(),
		Scheme:        mgr.GetScheme(),
		Analyzer:      analyzer,
		TrafficDetect: trafficDetect,
		Metrics:       metrics,
		Now:           time.Now,
	}).SetupWithManager(mgr); err != nil {
		return fmt.Errorf("setup release controller: %w", err)
	}

	if err := (&drcontroller.Reconciler{
		Client:   mgr.GetClient(),
		Scheme:   mgr.GetScheme(),
		Clusters: clusters,
		MetricsClient: func(ctx context.Context) *metricsanalyzer.Client {
			return metricsClient
		},
		Notifier: notify.WebhookNotifier{},
		Now:      time.Now,
	}).SetupWithManager(mgr); err != nil {
		return fmt.Errorf("setup dr controller: %w", err)
	}

	previewReconciler := &previewcontroller.Reconciler{
		Client:    mgr.GetClient(),
		Scheme:    mgr.GetScheme(),
		Cloner:    &previewcontroller.GitCloner{},
		Applier:   previewApplier,
		ReadyWait: 15 * time.Second,
		Now:       time.Now,
	}
	if err := previewReconciler.SetupWithManager(mgr); err != nil {
		return fmt.Errorf("setup preview controller: %w", err)
	}

	if err := (&rbacpolicycontroller.Reconciler{
		Client: mgr.GetClient(),
		Scheme: mgr.GetScheme(),
	}).SetupWithManager(mgr); err != nil {
		return fmt.Errorf("setup rbacpolicy controller: %w", err)
	}

	if err := (&syncjobcontroller.Reconciler{
		Client:   mgr.GetClient(),
		Scheme:   mgr.GetScheme(),
		Clusters: syncjobcontroller.NewFactoryClusterApplier(clusters),
	}).SetupWithManager(mgr); err != nil {
		return fmt.Errorf("setup syncjob controller: %w", err)
	}

	if err := (&auditcontroller.Reconciler{
		Client: mgr.GetClient(),
		Scheme: mgr.GetScheme(),
	}).SetupWithManager(mgr); err != nil {
		return fmt.Errorf("setup audit controller: %w", err)
	}

	cache := autoheal.NewCache()
	if err := (&autohealcontroller.Reconciler{
		Client: mgr.GetClient(),
		Scheme: mgr.GetScheme(),
		Cache:  cache,
	}).SetupWithManager(mgr); err != nil {
		return fmt.Errorf("setup autoheal controller: %w", err)
	}

	dispatcher := &autoheal.Dispatcher{
		Client:    mgr.GetClient(),
		Clientset: clientset,
		NewExec:   autoheal.NewSPDYExecutorFactory(restCfg, clientset),
		Notifier:  notify.SlackNotifier{},
		Now:       time.Now,
	}
	webhookHandler := &autoheal.Handler{
		Cache:      cache,
		Dispatcher: dispatcher,
		Rules:      autohealcontroller.RuleClient{Client: mgr.GetClient()},
	}
	mux := http.NewServeMux()
	mux.Handle("/webhook", webhookHandler)
	webhookServer := &http.Server{
		Addr:         cfg.WebhookBindAddress,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := mgr.Add(&httpServerRunnable{srv: webhookServer}); err != nil {
		return fmt.Errorf("register webhook server: %w", err)
	}

	if err := mgr.Add(&previewGCRunnable{reconciler: previewReconciler, interval: previewGCInterval, maxAge: previewMaxAge}); err != nil {
		return fmt.Errorf("register preview garbage collector: %w", err)
	}

	return mgr.Start(ctrl.SetupSignalHandler())
}

// httpServerRunnable adapts an *http.Server to manager.Runnable, shutting
// it down when ctx is cancelled the same way the manager stops every other
// component.
type httpServerRunnable struct {
	srv *http.Server
}

func (h *httpServerRunnable) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- h.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return h.srv.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// previewGCRunnable periodically sweeps for Preview resources older than
// maxAge, per spec.md §4.7's "separate operator action".
type previewGCRunnable struct {
	reconciler *previewcontroller.Reconciler
	interval   time.Duration
	maxAge     time.Duration
}

func (p *previewGCRunnable) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.reconciler.GarbageCollect(ctx, p.maxAge); err != nil {
				ctrl.Log.Error(err, "preview garbage collection sweep failed")
			}
		}
	}
}

func main() {
	defaults := config.Defaults()

	rootCmd := &cobra.Command{
		Use:   "ph-operator",
		Short: "ph-operator runs the progressive-delivery and automated-remediation controllers",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(cmd.Flags())
			if err != nil {
				return err
			}
			return run(config.Load(v))
		},
	}
	config.BindFlags(rootCmd.Flags(), defaults)
	rootCmd.AddCommand(newDeployCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
