// Package syncjob implements the SyncJob controller: applies manifests from
// a filesystem path to a named target cluster and records the outcome, per
// spec.md §3.5, grounded on gitsync_controller.rs.
package syncjob

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	"github.com/phkaiser13/ph-operator/internal/applier"
	"github.com/phkaiser13/ph-operator/internal/gitsync"
	"github.com/phkaiser13/ph-operator/internal/status"
)

// ClusterApplier resolves spec.clusterName into the ManifestApplier that
// targets that cluster, one per target. FactoryClusterApplier satisfies
// this, returning an *applier.Applier (the ManifestApplier) built over the
// cluster's *rest.Config through
// internal/clusterclient.Factory.RestConfigForSecret + applier.New.
type ClusterApplier interface {
	ApplierFor(ctx context.Context, clusterName string) (ManifestApplier, error)
}

// ManifestApplier server-side applies one discovered manifest document.
type ManifestApplier interface {
	Apply(ctx context.Context, obj *unstructured.Unstructured, namespace string) error
}

// Reconciler applies spec.path's manifests to spec.clusterName on every
// reconcile of a SyncJob that is not yet in a terminal phase, recording a sync cursor so a later drift check can tell
// whether the source has moved since.
type Reconciler struct {
	client.Client
	Scheme *runtime.Scheme

	Clusters ClusterApplier
	Now      func() metav1.Time
}

func (r *Reconciler) now() metav1.Time {
	if r.Now != nil {
		return r.Now()
	}
	return metav1.Now()
}

// +kubebuilder:rbac:groups=ph.io,resources=syncjobs,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=ph.io,resources=syncjobs/status,verbs=get;update;patch

func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	var job phv1alpha1.SyncJob
	if err := r.Get(ctx, req.NamespacedName, &job); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	if job.Status.Phase == phv1alpha1.SyncJobSucceeded || job.Status.Phase == phv1alpha1.SyncJobFailed {
		return ctrl.Result{}, nil
	}

	start := r.now()
	job.Status.Phase = phv1alpha1.SyncJobSyncing
	job.Status.StartTime = &start
	if err := r.updateStatus(ctx, &job); err != nil {
		return ctrl.Result{}, err
	}

	if err := r.sync(ctx, &job); err != nil {
		return r.finish(ctx, &job, phv1alpha1.SyncJobFailed, err.Error())
	}
	return r.finish(ctx, &job, phv1alpha1.SyncJobSucceeded, "synchronised manifests applied")
}

func (r *Reconciler) sync(ctx context.Context, job *phv1alpha1.SyncJob) error {
	manifestApplier, err := r.Clusters.ApplierFor(ctx, job.Spec.ClusterName)
	if err != nil {
		return err
	}

	manifests, err := discoverManifests(job.Spec.Path)
	if err != nil {
		return err
	}

	for _, path := range manifests {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		docs, err := applier.ParseDocuments(string(raw), nil)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := manifestApplier.Apply(ctx, doc, doc.GetNamespace()); err != nil {
				return err
			}
		}
	}

	head, err := gitsync.HeadOID(job.Spec.Path)
	if err != nil {
		// job.spec.path need not be a git repository; a failed HEAD lookup is
		// not a sync failure, it just means no cursor is recorded.
		return nil
	}
	cursor, _ := gitsync.LoadCursor(job.Spec.Path)
	cursor.LastSourceSyncedOID = head
	cursor.LastTargetSyncedOID = head
	return gitsync.SaveCursor(job.Spec.Path, cursor)
}

func (r *Reconciler) finish(ctx context.Context, job *phv1alpha1.SyncJob, phase phv1alpha1.SyncJobPhase, message string) (ctrl.Result, error) {
	done := r.now()
	job.Status.Phase = phase
	job.Status.CompletionTime = &done

	conditionType := phv1alpha1.ConditionReady
	condStatus := metav1.ConditionTrue
	if phase == phv1alpha1.SyncJobFailed {
		condStatus = metav1.ConditionFalse
	}
	phv1alpha1.SetCondition(&job.Status.Conditions, conditionType, condStatus, string(phase), message)

	if err := r.updateStatus(ctx, job); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{}, nil
}

func (r *Reconciler) updateStatus(ctx context.Context, job *phv1alpha1.SyncJob) error {
	return status.Apply(ctx, r.Client, job, status.SyncJobFieldManager)
}

// discoverManifests returns every *.yaml/*.yml file directly under dir,
// sorted by name for deterministic apply order.
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

// SetupWithManager registers the reconciler with mgr.
func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&phv1alpha1.SyncJob{}).
		Named("syncjob").
		Complete(r)
}
