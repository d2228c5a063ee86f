package v1alpha1

import metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

// ClusterRef names a cluster's kubeconfig Secret.
type ClusterRef struct {
	KubeconfigSecretRef string `json:"kubeconfigSecretRef"`
}

// DRClusterRef is the DR cluster's ref, carrying the DR-side replica count.
type DRClusterRef struct {
	KubeconfigSecretRef string `json:"kubeconfigSecretRef"`
	Replicas            int32  `json:"replicas"`
}

// TargetApplication names the Deployment this DR pairing protects.
type TargetApplication struct {
	DeploymentName string `json:"deploymentName"`
	Namespace      string `json:"namespace"`
}

// FailoverTrigger discriminates automatic vs. manual failover.
// +kubebuilder:validation:Enum=Automatic;Manual
type FailoverTrigger string

const (
	FailoverAutomatic FailoverTrigger = "Automatic"
	FailoverManual    FailoverTrigger = "Manual"
)

// HealthCheckSpec configures the DR health probe.
type HealthCheckSpec struct {
	PrometheusQuery  string `json:"prometheusQuery"`
	SuccessCondition string `json:"successCondition,omitempty"`
	// Interval is a duration string parsed by internal/duration.
	Interval         string `json:"interval"`
	FailureThreshold int    `json:"failureThreshold"`
}

// DRPolicy groups the health check, failover trigger, and notification config.
type DRPolicy struct {
	HealthCheck     HealthCheckSpec `json:"healthCheck"`
	FailoverTrigger FailoverTrigger `json:"failoverTrigger"`
	Notification    string          `json:"notification,omitempty"`
}

// DisasterRecoverySpec is the desired state of a DisasterRecovery pairing.
type DisasterRecoverySpec struct {
	PrimaryCluster    ClusterRef        `json:"primaryCluster"`
	DRCluster         DRClusterRef      `json:"drCluster"`
	TargetApplication TargetApplication `json:"targetApplication"`
	Policy            DRPolicy          `json:"policy"`
}

// DRState is the DR controller's state machine phase, per spec.md §3.4, §4.6.
// +kubebuilder:validation:Enum=Monitoring;Degraded;FailingOver;ActiveOnDR;Failed
type DRState string

const (
	DRMonitoring  DRState = "Monitoring"
	DRDegraded    DRState = "Degraded"
	DRFailingOver DRState = "FailingOver"
	DRActiveOnDR  DRState = "ActiveOnDR"
	DRFailed      DRState = "Failed"
)

// IsTerminal reports whether state admits no further automatic transition
// absent operator intervention (spec.md §3.4).
func (s DRState) IsTerminal() bool {
	return s == DRActiveOnDR || s == DRFailed
}

// ActiveCluster identifies which cluster is currently serving traffic.
// +kubebuilder:validation:Enum=Primary;DR
type ActiveCluster string

const (
	ActiveClusterPrimary ActiveCluster = "Primary"
	ActiveClusterDR      ActiveCluster = "DR"
)

// DisasterRecoveryStatus is the observed state of a DisasterRecovery pairing.
type DisasterRecoveryStatus struct {
	State               DRState            `json:"state,omitempty"`
	ActiveCluster       ActiveCluster      `json:"activeCluster,omitempty"`
	LastHealthCheckTime *metav1.Time       `json:"lastHealthCheckTime,omitempty"`
	ConsecutiveFailures int                `json:"consecutiveFailures,omitempty"`
	Conditions          []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// DisasterRecovery pairs a primary and DR cluster for health-driven
// failover, per spec.md §3.4.
type DisasterRecovery struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   DisasterRecoverySpec   `json:"spec,omitempty"`
	Status DisasterRecoveryStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// DisasterRecoveryList is a list of DisasterRecovery.
type DisasterRecoveryList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []DisasterRecovery `json:"items"`
}

func init() {
	SchemeBuilder.Register(&DisasterRecovery{}, &DisasterRecoveryList{})
}

// ManualFailoverAnnotation is the annotation that triggers a manual
// failover when DRPolicy.FailoverTrigger is Manual (spec.md §4.6).
const ManualFailoverAnnotation = "ph.io/failover"
