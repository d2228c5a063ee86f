package release

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
)

func mustQuantity(s string) resource.Quantity {
	return resource.MustParse(s)
}

// defaultReplicas is the total replica budget split between the stable and
// canary variants when no traffic-management adapter is available, per
// spec.md §4.4 step 2 ("DEFAULT_REPLICAS").
const defaultReplicas = 5

const managedByLabel = "app.kubernetes.io/managed-by"
const managedByValue = "ph-operator"

func variantName(appName, variant string) string {
	return appName + "-" + variant
}

func image(appName, version string) string {
	return appName + ":" + version
}

// buildService constructs the root Service fronting both variants, selected
// by the "app" label alone so the mesh/ingress sees one stable address.
func buildService(r *phv1alpha1.Release) *corev1.Service {
	appName := r.Spec.AppName
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      appName,
			Namespace: r.Namespace,
			Labels:    map[string]string{managedByLabel: managedByValue},
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": appName},
			Ports: []corev1.ServicePort{{
				Port:       80,
				TargetPort: intstr.FromInt(80),
				Protocol:   corev1.ProtocolTCP,
			}},
			Type: corev1.ServiceTypeClusterIP,
		},
	}
}

// buildDeployment constructs one variant's Deployment (stable or canary/
// green), grounded on the original's build_deployment — readiness/liveness
// probes and a RollingUpdate strategy carried over verbatim.
func buildDeployment(namespace, appName, variant, version string, replicas int32) *appsv1.Deployment {
	name := variantName(appName, variant)
	podLabels := map[string]string{
		"app":          appName,
		"version-id":   variant,
		managedByLabel: managedByValue,
	}
	maxUnavailable := intstr.FromString("25%")
	maxSurge := intstr.FromString("25%")

	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    podLabels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{
				"app":        appName,
				"version-id": variant,
			}},
			Strategy: appsv1.DeploymentStrategy{
				Type: appsv1.RollingUpdateDeploymentStrategyType,
				RollingUpdate: &appsv1.RollingUpdateDeployment{
					MaxUnavailable: &maxUnavailable,
					MaxSurge:       &maxSurge,
				},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: podLabels},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyAlways,
					Containers: []corev1.Container{{
						Name:  appName,
						Image: image(appName, version),
						Ports: []corev1.ContainerPort{{ContainerPort: 80, Protocol: corev1.ProtocolTCP}},
						Resources: corev1.ResourceRequirements{
							Requests: corev1.ResourceList{
								corev1.ResourceCPU:    mustQuantity("100m"),
								corev1.ResourceMemory: mustQuantity("128Mi"),
							},
							Limits: corev1.ResourceList{
								corev1.ResourceCPU:    mustQuantity("500m"),
								corev1.ResourceMemory: mustQuantity("512Mi"),
							},
						},
						ReadinessProbe: httpProbe(10, 5),
						LivenessProbe:  httpProbe(30, 10),
					}},
				},
			},
		},
	}
}

func httpProbe(initialDelay, period int32) *corev1.Probe {
	return &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			HTTPGet: &corev1.HTTPGetAction{Path: "/", Port: intstr.FromInt(80)},
		},
		InitialDelaySeconds: initialDelay,
		PeriodSeconds:       period,
		TimeoutSeconds:      3,
		FailureThreshold:    3,
	}
}
