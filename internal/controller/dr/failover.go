package dr

import (
	"context"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
	"github.com/phkaiser13/ph-operator/internal/status"
)

// reconcileFailingOver runs the failover sequence once, since it is only
// entered from Degraded and transitions straight to ActiveOnDR or Failed —
// grounded on the original's FailingOver arm: scale primary to zero,
// replicate Secrets/ConfigMaps, apply the Deployment to the DR cluster with
// its resourceVersion cleared, scale it up, notify.
func (r *Reconciler) reconcileFailingOver(ctx context.Context, dr *phv1alpha1.DisasterRecovery) (ctrl.Result, error) {
	primary, err := r.Clusters.ForSecret(ctx, dr.Spec.PrimaryCluster.KubeconfigSecretRef)
	if err != nil {
		return r.markFailed(ctx, dr, "resolve primary cluster client: "+err.Error())
	}
	drClient, err := r.Clusters.ForSecret(ctx, dr.Spec.DRCluster.KubeconfigSecretRef)
	if err != nil {
		return r.markFailed(ctx, dr, "resolve DR cluster client: "+err.Error())
	}

	appNS := dr.Spec.TargetApplication.Namespace
	appName := dr.Spec.TargetApplication.DeploymentName

	if err := scaleDeployment(ctx, primary, appNS, appName, 0); err != nil {
		return r.markFailed(ctx, dr, "scale down primary deployment: "+err.Error())
	}

	if err := replicateResources(ctx, primary, drClient, appNS, appName); err != nil {
		return r.markFailed(ctx, dr, "replicate secrets/configmaps: "+err.Error())
	}

	var primaryDep appsv1.Deployment
	if err := primary.Get(ctx, client.ObjectKey{Namespace: appNS, Name: appName}, &primaryDep); err != nil {
		return r.markFailed(ctx, dr, "fetch primary deployment: "+err.Error())
	}

	drDep := primaryDep.DeepCopy()
	drDep.ResourceVersion = ""
	drDep.UID = ""
	drDep.ManagedFields = nil
	if err := drClient.Patch(ctx, drDep, client.Apply, client.FieldOwner(fieldManager), client.ForceOwnership); err != nil {
		return r.markFailed(ctx, dr, "apply deployment to DR cluster: "+err.Error())
	}

	replicas := dr.Spec.DRCluster.Replicas
	if replicas == 0 {
		replicas = 3
	}
	if err := scaleDeployment(ctx, drClient, appNS, appName, replicas); err != nil {
		return r.markFailed(ctx, dr, "scale up DR deployment: "+err.Error())
	}

	dr.Status.State = phv1alpha1.DRActiveOnDR
	dr.Status.ActiveCluster = phv1alpha1.ActiveClusterDR
	phv1alpha1.SetCondition(&dr.Status.Conditions, phv1alpha1.ConditionReady, metav1.ConditionTrue, "FailoverComplete", "application is now active on the DR cluster")
	if err := status.Apply(ctx, r.Client, dr, status.DisasterRecoveryFieldManager); err != nil {
		return ctrl.Result{}, err
	}

	r.sendNotification(ctx, dr, "success")
	return ctrl.Result{}, nil
}

func scaleDeployment(ctx context.Context, c client.Client, namespace, name string, replicas int32) error {
	var dep appsv1.Deployment
	if err := c.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, &dep); err != nil {
		return err
	}
	patch := client.MergeFrom(dep.DeepCopy())
	dep.Spec.Replicas = &replicas
	return c.Patch(ctx, &dep, patch)
}

// replicateResources server-side applies every Secret and ConfigMap
// labelled app.kubernetes.io/instance=appName from primary to dr.
func replicateResources(ctx context.Context, primary, dr client.Client, namespace, appName string) error {
	selector := client.MatchingLabels{appInstanceLabel: appName}

	var secrets corev1.SecretList
	if err := primary.List(ctx, &secrets, client.InNamespace(namespace), selector); err != nil {
		return pherrors.Wrap(pherrors.KindKubeAPI, "list secrets", err)
	}
	for i := range secrets.Items {
		s := secrets.Items[i].DeepCopy()
		s.ResourceVersion = ""
		s.UID = ""
		s.ManagedFields = nil
		if err := dr.Patch(ctx, s, client.Apply, client.FieldOwner(fieldManager), client.ForceOwnership); err != nil {
			return pherrors.Wrap(pherrors.KindKubeAPI, "apply secret "+s.Name, err)
		}
	}

	var configMaps corev1.ConfigMapList
	if err := primary.List(ctx, &configMaps, client.InNamespace(namespace), selector); err != nil {
		return pherrors.Wrap(pherrors.KindKubeAPI, "list configmaps", err)
	}
	for i := range configMaps.Items {
		cm := configMaps.Items[i].DeepCopy()
		cm.ResourceVersion = ""
		cm.UID = ""
		cm.ManagedFields = nil
		if err := dr.Patch(ctx, cm, client.Apply, client.FieldOwner(fieldManager), client.ForceOwnership); err != nil {
			return pherrors.Wrap(pherrors.KindKubeAPI, "apply configmap "+cm.Name, err)
		}
	}
	return nil
}
