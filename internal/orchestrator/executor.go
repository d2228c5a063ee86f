package orchestrator

import (
	"context"
	"sync"

	rolloutsclientset "github.com/argoproj/argo-rollouts/pkg/client/clientset/versioned"
	istioclientset "istio.io/client-go/pkg/clientset/versioned"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/phkaiser13/ph-operator/internal/applier"
	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
	"github.com/phkaiser13/ph-operator/internal/traffic"
)

// ClusterResolver resolves a cluster name — a kubeconfig Secret name, the
// same convention internal/controller/dr and internal/controller/syncjob
// use — into the REST config and typed client the production Executor
// needs. *internal/clusterclient.Factory satisfies this.
type ClusterResolver interface {
	RestConfigForSecret(ctx context.Context, secretName string) (*rest.Config, error)
	ForSecret(ctx context.Context, secretName string) (client.Client, error)
}

// clusterHandle caches the per-cluster collaborators ProductionExecutor
// builds lazily: an Applier for Apply/DeleteResources, a discovery-selected
// traffic.Manager for SwitchTraffic, and the typed client used both to list
// namespaces (for the Levenshtein suggestion) and to verify pod readiness
// for HealthCheck.
type clusterHandle struct {
	applier *applier.Applier
	traffic traffic.Manager
	client  client.Client
}

// ProductionExecutor implements Executor against real clusters, resolving
// and caching each cluster's Applier/traffic.Manager/typed client lazily
// via Clusters. It is the collaborator spec.md §4.8 describes each stage
// calling into: "the Resource applier, the Traffic manager adapter, or the
// Health probe evaluator" (HealthCheck here reuses Preview's own
// verify-pods-ready style rather than the full internal/healthprobe
// tagged union, since the orchestrator's Executor interface carries no
// probe-kind parameter — see DESIGN.md).
type ProductionExecutor struct {
	Clusters ClusterResolver

	mu      sync.Mutex
	handles map[string]*clusterHandle
}

// NewProductionExecutor builds a ProductionExecutor resolving clusters
// through clusters.
func NewProductionExecutor(clusters ClusterResolver) *ProductionExecutor {
	return &ProductionExecutor{Clusters: clusters, handles: make(map[string]*clusterHandle)}
}

func (e *ProductionExecutor) handle(ctx context.Context, cluster string) (*clusterHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h, ok := e.handles[cluster]; ok {
		return h, nil
	}

	restCfg, err := e.Clusters.RestConfigForSecret(ctx, cluster)
	if err != nil {
		return nil, err
	}
	a, err := applier.New(restCfg)
	if err != nil {
		return nil, err
	}
	typedClient, err := e.Clusters.ForSecret(ctx, cluster)
	if err != nil {
		return nil, err
	}

	disc, err := discovery.NewDiscoveryClientForConfig(restCfg)
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindDiscovery, "build discovery client for "+cluster, err)
	}
	dyn, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindKubeAPI, "build dynamic client for "+cluster, err)
	}
	rolloutsClient, err := rolloutsclientset.NewForConfig(restCfg)
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindKubeAPI, "build argo-rollouts clientset for "+cluster, err)
	}
	istioClient, err := istioclientset.NewForConfig(restCfg)
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindKubeAPI, "build istio clientset for "+cluster, err)
	}

	tm, err := traffic.Detect(disc, traffic.Clients{
		Rollouts: traffic.NewArgoAdapter(rolloutsClient),
		Istio:    traffic.NewIstioAdapter(istioClient),
		Linkerd:  traffic.NewLinkerdAdapter(dyn),
	})
	if err != nil {
		return nil, err
	}

	h := &clusterHandle{applier: a, traffic: tm, client: typedClient}
	e.handles[cluster] = h
	return h, nil
}

// Apply renders manifests with vars and server-side applies every document
// to cluster. A namespace-not-found error is enriched with a
// Levenshtein-closest-match suggestion against the cluster's actual
// namespaces, per spec.md §4.8.
func (e *ProductionExecutor) Apply(ctx context.Context, cluster string, manifests string, vars applier.TemplateVars) error {
	h, err := e.handle(ctx, cluster)
	if err != nil {
		return err
	}

	docs, err := applier.ParseDocuments(manifests, vars)
	if err != nil {
		return err
	}

	for _, doc := range docs {
		ns := doc.GetNamespace()
		if applyErr := h.applier.Apply(ctx, doc, ns); applyErr != nil {
			if errors.IsNotFound(applyErr) {
				return e.suggestNamespace(ctx, h, ns, applyErr)
			}
			return applyErr
		}
	}
	return nil
}

// DeleteResources removes every pod carrying the matching app/color labels
// on cluster, mirroring verifyPodsReady's label-driven scope (the Executor
// interface carries only appName/colorLabel, not a manifest body, for the
// decommission-blue stage). Deployments, Services and other objects are
// not deleted.
func (e *ProductionExecutor) DeleteResources(ctx context.Context, cluster, appName, colorLabel string) error {
	h, err := e.handle(ctx, cluster)
	if err != nil {
		return err
	}

	var pods corev1.PodList
	sel := client.MatchingLabels{"app": appName}
	if colorLabel != "" {
		sel["color"] = colorLabel
	}
	if err := h.client.List(ctx, &pods, sel); err != nil {
		return pherrors.Wrap(pherrors.KindKubeAPI, "list pods to decommission on "+cluster, err)
	}
	for i := range pods.Items {
		if err := h.client.Delete(ctx, &pods.Items[i]); err != nil && !errors.IsNotFound(err) {
			return pherrors.Wrap(pherrors.KindKubeAPI, "delete pod "+pods.Items[i].Name+" on "+cluster, err)
		}
	}
	return nil
}

// SwitchTraffic routes all weight to color via cluster's traffic.Manager.
func (e *ProductionExecutor) SwitchTraffic(ctx context.Context, cluster, appName, color string) error {
	h, err := e.handle(ctx, cluster)
	if err != nil {
		return err
	}

	weights := map[string]int32{"stable": 0, "canary": 100}
	if color != "" {
		weights = map[string]int32{"blue": 0, "green": 100}
	}
	return h.traffic.UpdateSplit(ctx, appName, traffic.Split{AppName: appName, Weights: weights})
}

// HealthCheck verifies every pod matching appName/color in namespace is
// Ready, grounded on internal/controller/preview's verifyPodsReady.
func (e *ProductionExecutor) HealthCheck(ctx context.Context, cluster, appName, namespace, color string) error {
	h, err := e.handle(ctx, cluster)
	if err != nil {
		return err
	}

	var pods corev1.PodList
	sel := client.MatchingLabels{"app": appName}
	if color != "" {
		sel["color"] = color
	}
	if err := h.client.List(ctx, &pods, client.InNamespace(namespace), sel); err != nil {
		return pherrors.Wrap(pherrors.KindKubeAPI, "list pods to health-check on "+cluster, err)
	}

	for _, pod := range pods.Items {
		for _, cs := range pod.Status.ContainerStatuses {
			if !cs.Ready {
				return pherrors.New(pherrors.KindInconclusiveAnalysis, "pod "+pod.Name+" on "+cluster+" is not ready")
			}
		}
	}
	return nil
}

func (e *ProductionExecutor) suggestNamespace(ctx context.Context, h *clusterHandle, wanted string, cause error) error {
	var namespaces corev1.NamespaceList
	if err := h.client.List(ctx, &namespaces); err != nil {
		return cause
	}
	names := make([]string, len(namespaces.Items))
	for i, ns := range namespaces.Items {
		names[i] = ns.Name
	}
	suggestion := applier.SuggestNamespace(wanted, names)
	if suggestion == "" {
		return cause
	}
	return pherrors.Wrap(pherrors.KindNotFound, "namespace "+wanted+" not found; did you mean "+suggestion+"?", cause)
}

var _ Executor = (*ProductionExecutor)(nil)
