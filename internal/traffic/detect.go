package traffic

import (
	"k8s.io/client-go/discovery"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// crdGroupVersions, in priority order, are checked against the cluster's
// discovery API to pick an adapter, per spec.md §4.9: "Selection is by CRD
// presence at startup: Argo-Rollouts CRD -> Argo adapter; Istio
// VirtualService CRD -> Istio adapter; SMI TrafficSplit CRD -> Linkerd
// adapter; else nil."
const (
	argoRolloutsGroupVersion = "argoproj.io/v1alpha1"
	argoRolloutsKind         = "Rollout"
	istioGroupVersion        = "networking.istio.io/v1"
	istioKind                = "VirtualService"
	smiGroupVersion          = "split.smi-spec.io/v1alpha2"
	smiKind                  = "TrafficSplit"
)

// groupVersionHasKind reports whether disc's API resource list for
// groupVersion includes a resource of the given kind.
func groupVersionHasKind(disc discovery.DiscoveryInterface, groupVersion, kind string) (bool, error) {
	list, err := disc.ServerResourcesForGroupVersion(groupVersion)
	if err != nil {
		// A group version absent from the cluster surfaces as a generic
		// discovery error (not a typed NotFound); treat any error here as
		// "not present" rather than failing startup over an optional
		// adapter.
		return false, nil
	}
	for _, r := range list.APIResources {
		if r.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

// Clients bundles the constructed clients Detect may need to hand to
// whichever adapter the discovery probe selects. Any of these may be nil if
// the corresponding corner of the mesh stack is not in use; Detect only
// returns the one it selects.
type Clients struct {
	Rollouts *ArgoAdapter
	Istio    *IstioAdapter
	Linkerd  *LinkerdAdapter
}

// Detect probes disc for each known traffic-management CRD in priority
// order (Argo Rollouts, then Istio, then SMI/Linkerd) and returns the
// corresponding Manager, or NoopManager if none are installed.
func Detect(disc discovery.DiscoveryInterface, clients Clients) (Manager, error) {
	hasArgo, err := groupVersionHasKind(disc, argoRolloutsGroupVersion, argoRolloutsKind)
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindDiscovery, "probe for argo rollouts CRD", err)
	}
	if hasArgo {
		return clients.Rollouts, nil
	}

	hasIstio, err := groupVersionHasKind(disc, istioGroupVersion, istioKind)
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindDiscovery, "probe for istio virtualservice CRD", err)
	}
	if hasIstio {
		return clients.Istio, nil
	}

	hasSMI, err := groupVersionHasKind(disc, smiGroupVersion, smiKind)
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindDiscovery, "probe for SMI trafficsplit CRD", err)
	}
	if hasSMI {
		return clients.Linkerd, nil
	}

	return NoopManager, nil
}
