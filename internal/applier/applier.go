// Package applier implements server-side apply of templated YAML manifests
// against a discovered GVK/GVR, per spec.md §4.8 ("Apply semantics").
package applier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"text/template"

	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// FieldManager is the fixed field manager every server-side apply in the
// orchestrator's apply path uses, per spec.md §4.8/§6.1.
const FieldManager = "ph-operator-orchestrator"

// TemplateVars is substituted into `{{ .Name }}`-style placeholders in a
// manifest document before it is parsed as YAML.
type TemplateVars map[string]string

// Applier discovers GVKs against one cluster's REST config and applies
// manifests to it via the dynamic client using server-side apply.
type Applier struct {
	dyn    dynamic.Interface
	mapper meta.RESTMapper
}

// New builds an Applier for the cluster described by cfg.
func New(cfg *rest.Config) (*Applier, error) {
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindKubeAPI, "build dynamic client", err)
	}
	disc, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindDiscovery, "build discovery client", err)
	}
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(disc))
	return &Applier{dyn: dyn, mapper: mapper}, nil
}

// NewWithMapper builds an Applier from an already-constructed dynamic client
// and REST mapper, for tests and for callers that already hold both (the
// orchestrator caches one Applier per cluster).
func NewWithMapper(dyn dynamic.Interface, mapper meta.RESTMapper) *Applier {
	return &Applier{dyn: dyn, mapper: mapper}
}

// renderTemplate substitutes `{{ .Key }}` placeholders in raw using vars.
func renderTemplate(raw string, vars TemplateVars) (string, error) {
	tmpl, err := template.New("manifest").Option("missingkey=zero").Parse(raw)
	if err != nil {
		return "", pherrors.Wrap(pherrors.KindBadSpec, "parse manifest template", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", pherrors.Wrap(pherrors.KindBadSpec, "execute manifest template", err)
	}
	return buf.String(), nil
}

// ParseDocuments splits raw (after template substitution) into the
// unstructured objects it describes. Empty documents are skipped.
func ParseDocuments(raw string, vars TemplateVars) ([]*unstructured.Unstructured, error) {
	rendered, err := renderTemplate(raw, vars)
	if err != nil {
		return nil, err
	}

	var docs []*unstructured.Unstructured
	decoder := utilyaml.NewYAMLOrJSONDecoder(strings.NewReader(rendered), 4096)
	for {
		obj := &unstructured.Unstructured{}
		if err := decoder.Decode(obj); err != nil {
			if err == io.EOF {
				break
			}
			return nil, pherrors.Wrap(pherrors.KindDeserialization, "decode manifest document", err)
		}
		if len(obj.Object) > 0 {
			docs = append(docs, obj)
		}
	}
	return docs, nil
}

// resourceFor resolves obj's GVK to a namespaced or cluster-scoped dynamic
// ResourceInterface.
func (a *Applier) resourceFor(obj *unstructured.Unstructured, namespace string) (dynamic.ResourceInterface, error) {
	gvk := obj.GroupVersionKind()
	m, err := a.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindDiscovery, fmt.Sprintf("resolve GVK %v", gvk), err)
	}

	if m.Scope.Name() == meta.RESTScopeNameNamespace {
		ns := obj.GetNamespace()
		if ns == "" {
			ns = namespace
		}
		return a.dyn.Resource(m.Resource).Namespace(ns), nil
	}
	return a.dyn.Resource(m.Resource), nil
}

// Apply server-side applies obj under FieldManager, in namespace if obj
// itself carries no namespace.
func (a *Applier) Apply(ctx context.Context, obj *unstructured.Unstructured, namespace string) error {
	ri, err := a.resourceFor(obj, namespace)
	if err != nil {
		return err
	}

	payload, err := obj.MarshalJSON()
	if err != nil {
		return pherrors.Wrap(pherrors.KindDeserialization, "marshal manifest", err)
	}

	force := true
	_, err = ri.Patch(ctx, obj.GetName(), "application/apply-patch+yaml", payload, metav1.PatchOptions{
		FieldManager: FieldManager,
		Force:        &force,
	})
	if err != nil {
		return pherrors.Wrap(pherrors.KindKubeAPI, fmt.Sprintf("apply %s/%s", obj.GetKind(), obj.GetName()), err)
	}
	return nil
}

// Delete removes obj. errors.IsNotFound is treated as success (idempotent
// decommission, spec.md §4.8 "decommission-blue" stage).
func (a *Applier) Delete(ctx context.Context, obj *unstructured.Unstructured, namespace string) error {
	ri, err := a.resourceFor(obj, namespace)
	if err != nil {
		return err
	}
	if err := ri.Delete(ctx, obj.GetName(), metav1.DeleteOptions{}); err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return pherrors.Wrap(pherrors.KindKubeAPI, fmt.Sprintf("delete %s/%s", obj.GetKind(), obj.GetName()), err)
	}
	return nil
}

// SuggestNamespace returns the closest actual namespace name by Levenshtein
// distance to the one a "namespace not found" error named, per spec.md
// §4.8 ("Levenshtein-based suggestion computed against the cluster's actual
// namespaces"). Returns "" if actual is empty.
func SuggestNamespace(wanted string, actual []string) string {
	best := ""
	bestDist := -1
	for _, candidate := range actual {
		d := levenshtein.DistanceForStrings([]rune(wanted), []rune(candidate), levenshtein.DefaultOptions)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = candidate
		}
	}
	return best
}

// IsNamespaceNotFound reports whether err is the "namespace not found" class
// of API error the apply path should react to with a suggestion.
func IsNamespaceNotFound(err error) bool {
	return errors.IsNotFound(err)
}
