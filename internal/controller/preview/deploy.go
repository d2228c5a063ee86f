package preview

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	"github.com/phkaiser13/ph-operator/internal/applier"
)

// reconcileApply drives a non-terminal Preview towards Deployed, per
// spec.md §4.7: create the namespace, clone the repository, apply every
// manifest found under manifestPath, then verify pod readiness.
func (r *Reconciler) reconcileApply(ctx context.Context, preview *phv1alpha1.Preview) (ctrl.Result, error) {
	ns := namespaceName(preview)

	preview.Status.Phase = phv1alpha1.PreviewCreating
	preview.Status.Namespace = ns
	preview.Status.Message = "reconciliation started"
	if err := r.updateStatus(ctx, preview); err != nil {
		return ctrl.Result{}, err
	}

	if err := r.ensureNamespace(ctx, ns); err != nil {
		return r.setFailed(ctx, preview, ns, "create namespace: "+err.Error())
	}

	dir, err := r.Cloner.Clone(ctx, preview.Spec.RepoURL, preview.Spec.Branch, preview.Spec.CommitSha)
	if err != nil {
		return r.setFailed(ctx, preview, ns, "clone repository: "+err.Error())
	}
	defer os.RemoveAll(dir)

	manifests, err := discoverManifests(filepath.Join(dir, preview.Spec.ManifestPath))
	if err != nil {
		return r.setFailed(ctx, preview, ns, "discover manifests: "+err.Error())
	}

	for _, path := range manifests {
		raw, err := os.ReadFile(path)
		if err != nil {
			return r.setFailed(ctx, preview, ns, "read manifest "+path+": "+err.Error())
		}
		docs, err := applier.ParseDocuments(string(raw), nil)
		if err != nil {
			return r.setFailed(ctx, preview, ns, "parse manifest "+path+": "+err.Error())
		}
		for _, doc := range docs {
			if err := r.Applier.Apply(ctx, doc, ns); err != nil {
				return r.setFailed(ctx, preview, ns, "apply "+doc.GetKind()+"/"+doc.GetName()+": "+err.Error())
			}
		}
	}

	if r.ReadyWait > 0 {
		time.Sleep(r.ReadyWait)
	}

	if err := r.verifyPodsReady(ctx, ns); err != nil {
		return r.setFailed(ctx, preview, ns, err.Error())
	}

	ttl := preview.Spec.TTLHours
	if ttl == 0 {
		ttl = phv1alpha1.DefaultTTLHours
	}
	expires := metav1.NewTime(r.now().Add(time.Duration(ttl) * time.Hour))

	preview.Status.Phase = phv1alpha1.PreviewDeployed
	preview.Status.Namespace = ns
	preview.Status.URL = previewURL(ns)
	preview.Status.ExpiresAt = &expires
	preview.Status.Message = "all manifests applied and pods ready"
	if err := r.updateStatus(ctx, preview); err != nil {
		return ctrl.Result{}, err
	}

	return ctrl.Result{RequeueAfter: time.Duration(ttl) * time.Hour}, nil
}

// ensureNamespace creates ns, treating AlreadyExists as success per
// spec.md §4.7 ("create namespace; idempotent").
func (r *Reconciler) ensureNamespace(ctx context.Context, ns string) error {
	namespace := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: ns}}
	if err := r.Create(ctx, namespace); err != nil && !apierrors.IsAlreadyExists(err) {
		return err
	}
	return nil
}

// discoverManifests returns every *.yaml/*.yml file directly under dir,
// sorted by name for deterministic apply order, per SPEC_FULL.md §4.7.
func discoverManifests(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

// verifyPodsReady lists every pod in ns and reports an error naming the
// first pod/container found not ready. An empty namespace is treated as
// healthy, matching the original's "no pods found, treat as healthy".
func (r *Reconciler) verifyPodsReady(ctx context.Context, ns string) error {
	var pods corev1.PodList
	if err := r.List(ctx, &pods, client.InNamespace(ns)); err != nil {
		return err
	}

	for _, pod := range pods.Items {
		for _, cs := range pod.Status.ContainerStatuses {
			if !cs.Ready {
				if cs.State.Waiting != nil && cs.State.Waiting.Reason != "" {
					return &podNotReadyError{pod: pod.Name, detail: cs.State.Waiting.Reason}
				}
				return &podNotReadyError{pod: pod.Name, detail: "container " + cs.Name + " not ready"}
			}
		}
	}
	return nil
}

type podNotReadyError struct {
	pod    string
	detail string
}

func (e *podNotReadyError) Error() string {
	return "pod " + e.pod + " is not ready: " + e.detail
}

// previewURL derives a human-facing URL for the preview from its namespace,
// a best-effort convenience value; no ingress controller is assumed.
func previewURL(ns string) string {
	return "http://" + ns + ".preview.local"
}
