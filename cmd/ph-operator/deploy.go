package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/phkaiser13/ph-operator/internal/clusterclient"
	"github.com/phkaiser13/ph-operator/internal/orchestrator"
	"github.com/phkaiser13/ph-operator/internal/strategy"
)

// newDeployCmd builds the "deploy" subcommand: a one-shot invocation of the
// multi-cluster orchestrator against a deployment intent, for operators and
// CI pipelines driving a rollout directly rather than through a watched
// custom resource (spec.md §4.8 names no CRD for this component — it is
// control-flow the Multi-Cluster Orchestrator performs on demand, not a
// reconcile loop).
func newDeployCmd() *cobra.Command {
	var (
		clusterNames      []string
		strategyName      string
		appName           string
		namespace         string
		manifestPath      string
		operatorNamespace string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Run a multi-cluster deployment intent through the orchestrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifests, err := os.ReadFile(manifestPath)
			if err != nil {
				return fmt.Errorf("read manifest file: %w", err)
			}

			scheme, err := buildScheme()
			if err != nil {
				return fmt.Errorf("build scheme: %w", err)
			}

			restCfg := ctrl.GetConfigOrDie()
			localClient, err := client.New(restCfg, client.Options{Scheme: scheme})
			if err != nil {
				return fmt.Errorf("build local client: %w", err)
			}

			plan, err := strategy.Build(strategy.Kind(strategyName), clusterNames)
			if err != nil {
				return fmt.Errorf("build strategy plan: %w", err)
			}

			clusters := clusterclient.NewFactory(localClient, operatorNamespace, scheme)
			exec := orchestrator.NewProductionExecutor(clusters)

			targets := make(map[string]orchestrator.ClusterTarget, len(clusterNames))
			for _, name := range clusterNames {
				targets[name] = orchestrator.ClusterTarget{Name: name}
			}

			intent := orchestrator.Intent{AppName: appName, Namespace: namespace, Manifests: string(manifests)}
			results, runErr := orchestrator.Run(context.Background(), plan, intent, targets, exec)
			for _, stage := range results {
				for _, r := range stage.Results {
					status := "ok"
					if r.Err != nil {
						status = r.Err.Error()
					}
					fmt.Fprintf(cmd.OutOrStdout(), "stage=%s cluster=%s result=%s\n", stage.Stage, r.Cluster, status)
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringSliceVar(&clusterNames, "clusters", nil, "Comma-separated kubeconfig Secret names naming the target clusters.")
	cmd.Flags().StringVar(&strategyName, "strategy", string(strategy.Direct), "Orchestration strategy: Direct, Parallel, Staged, Failover, or BlueGreen.")
	cmd.Flags().StringVar(&appName, "app-name", "", "Application name the plan deploys.")
	cmd.Flags().StringVar(&namespace, "namespace", "", "Target namespace for applied manifests.")
	cmd.Flags().StringVar(&manifestPath, "manifest-file", "", "Path to the manifest bundle to apply.")
	cmd.Flags().StringVar(&operatorNamespace, "operator-namespace", "ph-operator", "Namespace holding the target clusters' kubeconfig Secrets.")

	return cmd
}
