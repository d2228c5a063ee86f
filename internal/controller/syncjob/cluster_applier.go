package syncjob

import (
	"context"
	"sync"

	"github.com/phkaiser13/ph-operator/internal/applier"
	"github.com/phkaiser13/ph-operator/internal/clusterclient"
)

// FactoryClusterApplier builds one *applier.Applier per clusterName,
// resolving the target cluster's *rest.Config through clusterclient.Factory
// and caching the constructed Applier since its REST mapper discovery is
// not cheap to repeat every reconcile.
type FactoryClusterApplier struct {
	Clusters *clusterclient.Factory

	mu       sync.Mutex
	appliers map[string]*applier.Applier
}

// NewFactoryClusterApplier wraps clusters for use as a ClusterApplier.
func NewFactoryClusterApplier(clusters *clusterclient.Factory) *FactoryClusterApplier {
	return &FactoryClusterApplier{
		Clusters: clusters,
		appliers: make(map[string]*applier.Applier),
	}
}

func (f *FactoryClusterApplier) ApplierFor(ctx context.Context, clusterName string) (ManifestApplier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if a, ok := f.appliers[clusterName]; ok {
		return a, nil
	}

	restCfg, err := f.Clusters.RestConfigForSecret(ctx, clusterName)
	if err != nil {
		return nil, err
	}
	a, err := applier.New(restCfg)
	if err != nil {
		return nil, err
	}
	f.appliers[clusterName] = a
	return a, nil
}
