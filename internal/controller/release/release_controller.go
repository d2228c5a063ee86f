// Package release implements the Release controller, the central
// progressive-delivery state machine described in spec.md §4.4: preflight
// signature verification and initial setup, an analysis-gated Progressing
// loop, and the Promoting/RollingBack terminal actions.
package release

import (
	"context"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	"github.com/phkaiser13/ph-operator/internal/metricsanalyzer"
	"github.com/phkaiser13/ph-operator/internal/observability"
	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
	"github.com/phkaiser13/ph-operator/internal/signature"
	"github.com/phkaiser13/ph-operator/internal/status"
	"github.com/phkaiser13/ph-operator/internal/traffic"
)

// signaturePublicKeySecretKey is the data key holding the PEM public key
// inside the Secret named by spec.security.signatureVerification.secretName.
const signaturePublicKeySecretKey = "publicKey"

// verifyImage is a var so tests can stub out the network call.
var verifyImage = signature.VerifyImage

// AnnotationSkipSigCheck lets an operator explicitly bypass mandatory
// signature verification, per spec.md §4.4 step 1.
const AnnotationSkipSigCheck = "ph.io/skip-sig-check"

const variantStable = "stable"
const variantCanary = "canary"

// Reconciler drives the Release state machine.
type Reconciler struct {
	client.Client
	Scheme *runtime.Scheme

	// Analyzer runs instant-vector queries for the analysis loop.
	Analyzer *metricsanalyzer.Analyzer
	// TrafficDetect returns the traffic.Manager for this cluster;
	// cmd/ph-operator detects the adapter once at startup from the
	// installed CRDs and returns that same adapter on every reconcile.
	TrafficDetect func(ctx context.Context) (traffic.Manager, error)
	// Metrics is the process-wide metrics bundle; Register is idempotent so
	// tests may pass a fresh one.
	Metrics *observability.Metrics
	// Now is the reconciler's clock, overridable in tests.
	Now func() time.Time
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Reconciler) trafficManager(ctx context.Context) (traffic.Manager, error) {
	if r.TrafficDetect != nil {
		return r.TrafficDetect(ctx)
	}
	return traffic.NoopManager, nil
}

// +kubebuilder:rbac:groups=ph.io,resources=releases,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=ph.io,resources=releases/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=ph.io,resources=releases/finalizers,verbs=update
// +kubebuilder:rbac:groups=apps,resources=deployments,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=services;secrets,verbs=get;list;watch;create;update;patch

func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := ctrl.LoggerFrom(ctx)

	var rel phv1alpha1.Release
	if err := r.Get(ctx, req.NamespacedName, &rel); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	if !rel.DeletionTimestamp.IsZero() {
		return r.reconcileDelete(ctx, &rel)
	}

	if !controllerutil.ContainsFinalizer(&rel, phv1alpha1.FinalizerReleaseCleanup) {
		controllerutil.AddFinalizer(&rel, phv1alpha1.FinalizerReleaseCleanup)
		if err := r.Update(ctx, &rel); err != nil {
			return ctrl.Result{}, err
		}
	}

	if rel.Status.Phase.IsTerminal() {
		return ctrl.Result{}, nil
	}

	if failed, err := r.preflight(ctx, &rel); failed {
		return ctrl.Result{}, err
	}

	switch rel.Status.Phase {
	case "", phv1alpha1.ReleaseProgressing:
		return r.reconcileProgressing(ctx, &rel)
	case phv1alpha1.ReleasePromoting:
		return r.reconcilePromoting(ctx, &rel)
	case phv1alpha1.ReleaseRollingBack:
		return r.reconcileRollingBack(ctx, &rel)
	default:
		logger.Info("release in unexpected phase, taking no action", "phase", rel.Status.Phase)
		return ctrl.Result{}, nil
	}
}

// preflight runs mandatory signature verification, per spec.md §4.4 step 1.
// Returns failed=true when the release was transitioned to Failed and the
// caller should stop reconciling this pass.
func (r *Reconciler) preflight(ctx context.Context, rel *phv1alpha1.Release) (bool, error) {
	if rel.Status.Phase != "" && rel.Status.Phase != phv1alpha1.ReleaseProgressing {
		return false, nil
	}
	if rel.Status.ProgressingStartTime != nil {
		// Signature was already verified on the reconcile that performed
		// initial setup; re-verifying every pass would re-pull the image
		// manifest on every poll for no benefit.
		return false, nil
	}
	if rel.Annotations[AnnotationSkipSigCheck] == "true" {
		return false, nil
	}

	cfg := rel.Spec.Security
	if cfg == nil || cfg.SignatureVerification == nil {
		return r.failRelease(ctx, rel, "signature verification is mandatory but not configured; annotate with ph.io/skip-sig-check: \"true\" to bypass")
	}

	if err := r.verifyImageSignature(ctx, rel, cfg.SignatureVerification.SecretName); err != nil {
		return r.failRelease(ctx, rel, "signature verification failed: "+err.Error())
	}
	return false, nil
}

func (r *Reconciler) verifyImageSignature(ctx context.Context, rel *phv1alpha1.Release, secretName string) error {
	var secret corev1.Secret
	if err := r.Get(ctx, types.NamespacedName{Namespace: rel.Namespace, Name: secretName}, &secret); err != nil {
		return pherrors.Wrap(pherrors.KindSignatureFailed, "fetch public key secret "+secretName, err)
	}
	pemBytes, ok := secret.Data[signaturePublicKeySecretKey]
	if !ok {
		return pherrors.New(pherrors.KindSignatureFailed, "secret "+secretName+" has no key "+signaturePublicKeySecretKey)
	}
	_, err := verifyImage(ctx, image(rel.Spec.AppName, rel.Spec.Version), string(pemBytes))
	return err
}

func (r *Reconciler) failRelease(ctx context.Context, rel *phv1alpha1.Release, reason string) (bool, error) {
	rel.Status.Phase = phv1alpha1.ReleaseFailed
	rel.Status.FailureReason = reason
	phv1alpha1.SetCondition(&rel.Status.Conditions, phv1alpha1.ConditionReady, metav1.ConditionFalse, "PreflightFailed", reason)
	if err := status.Apply(ctx, r.Client, rel, status.ReleaseFieldManager); err != nil {
		return true, err
	}
	if r.Metrics != nil {
		r.Metrics.RolloutsTotal.WithLabelValues(metricsStrategyLabel(rel.Spec.Strategy), "failed").Inc()
	}
	return true, nil
}

func (r *Reconciler) reconcileDelete(ctx context.Context, rel *phv1alpha1.Release) (ctrl.Result, error) {
	if !controllerutil.ContainsFinalizer(rel, phv1alpha1.FinalizerReleaseCleanup) {
		return ctrl.Result{}, nil
	}

	canary := &appsv1.Deployment{}
	key := types.NamespacedName{Namespace: rel.Namespace, Name: variantName(rel.Spec.AppName, variantCanary)}
	if err := r.Get(ctx, key, canary); err == nil {
		if err := r.Delete(ctx, canary); err != nil && !apierrors.IsNotFound(err) {
			return ctrl.Result{}, err
		}
	} else if !apierrors.IsNotFound(err) {
		return ctrl.Result{}, err
	}

	controllerutil.RemoveFinalizer(rel, phv1alpha1.FinalizerReleaseCleanup)
	if err := r.Update(ctx, rel); err != nil {
		return ctrl.Result{}, err
	}
	return ctrl.Result{}, nil
}

// SetupWithManager registers the reconciler with mgr.
func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&phv1alpha1.Release{}).
		Owns(&appsv1.Deployment{}, builder.WithPredicates(DeploymentPredicate())).
		Named("release").
		WithEventFilter(EventFilter()).
		Complete(r)
}
