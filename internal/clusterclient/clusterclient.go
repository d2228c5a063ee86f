// Package clusterclient builds controller-runtime clients for clusters
// named by a kubeconfig Secret reference, for the multi-cluster operations
// described in spec.md §4.8 (DR failover, multi-cluster orchestration,
// preview cleanup on remote clusters).
package clusterclient

import (
	"context"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// kubeconfigSecretKey is the data key holding the kubeconfig bytes, matching
// the convention used by cluster-registration Secrets across the corpus.
const kubeconfigSecretKey = "kubeconfig"

// Factory resolves a kubeconfig Secret reference in the operator's own
// cluster into a client.Client for the referenced remote cluster, caching
// constructed clients by secret name since a reconcile loop may ask for the
// same cluster many times.
type Factory struct {
	// Local is the client for the cluster the operator itself runs in; it
	// is used to read the kubeconfig Secrets.
	Local     client.Client
	Namespace string
	Scheme    *runtime.Scheme

	mu       sync.Mutex
	clients  map[string]client.Client
	restCfgs map[string]*rest.Config
}

// NewFactory constructs a Factory reading kubeconfig Secrets from namespace.
func NewFactory(local client.Client, namespace string, scheme *runtime.Scheme) *Factory {
	return &Factory{
		Local:     local,
		Namespace: namespace,
		Scheme:    scheme,
		clients:   make(map[string]client.Client),
		restCfgs:  make(map[string]*rest.Config),
	}
}

// ForSecret returns the client.Client for the cluster described by the
// kubeconfig stored in secretName, constructing and caching it on first use.
func (f *Factory) ForSecret(ctx context.Context, secretName string) (client.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[secretName]; ok {
		return c, nil
	}

	restCfg, err := f.resolveRestConfigLocked(ctx, secretName)
	if err != nil {
		return nil, err
	}

	c, err := client.New(restCfg, client.Options{Scheme: f.Scheme})
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindKubeAPI, "build remote client", err)
	}

	f.clients[secretName] = c
	return c, nil
}

// RestConfigForSecret returns the *rest.Config for the cluster described by
// the kubeconfig stored in secretName, for callers that need a dynamic
// client (internal/applier's GVK discovery) rather than a typed one.
func (f *Factory) RestConfigForSecret(ctx context.Context, secretName string) (*rest.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolveRestConfigLocked(ctx, secretName)
}

// resolveRestConfigLocked must be called with f.mu held.
func (f *Factory) resolveRestConfigLocked(ctx context.Context, secretName string) (*rest.Config, error) {
	if cfg, ok := f.restCfgs[secretName]; ok {
		return cfg, nil
	}

	var secret corev1.Secret
	key := types.NamespacedName{Namespace: f.Namespace, Name: secretName}
	if err := f.Local.Get(ctx, key, &secret); err != nil {
		if apierrors.IsNotFound(err) {
			return nil, pherrors.Wrap(pherrors.KindNotFound, fmt.Sprintf("kubeconfig secret %s not found", secretName), err)
		}
		return nil, pherrors.Wrap(pherrors.KindKubeAPI, "get kubeconfig secret", err)
	}

	raw, ok := secret.Data[kubeconfigSecretKey]
	if !ok || len(raw) == 0 {
		return nil, pherrors.New(pherrors.KindBadSpec, fmt.Sprintf("secret %s has no %q key", secretName, kubeconfigSecretKey))
	}

	restCfg, err := clientcmd.RESTConfigFromKubeConfig(raw)
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindBadSpec, "parse kubeconfig", err)
	}

	f.restCfgs[secretName] = restCfg
	return restCfg, nil
}

// Invalidate drops a cached client and REST config, forcing the next
// ForSecret/RestConfigForSecret call for the same secret to rebuild them.
// Used after a kubeconfig Secret is updated.
func (f *Factory) Invalidate(secretName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.clients, secretName)
	delete(f.restCfgs, secretName)
}
