package v1alpha1

import metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

// SyncJobSpec is the desired state of a SyncJob (spec.md §3.5).
type SyncJobSpec struct {
	Path        string `json:"path"`
	ClusterName string `json:"clusterName"`
}

// SyncJobPhase is the SyncJob's observed phase.
// +kubebuilder:validation:Enum=Syncing;Succeeded;Failed
type SyncJobPhase string

const (
	SyncJobSyncing   SyncJobPhase = "Syncing"
	SyncJobSucceeded SyncJobPhase = "Succeeded"
	SyncJobFailed    SyncJobPhase = "Failed"
)

// SyncJobStatus is the observed state of a SyncJob.
type SyncJobStatus struct {
	Phase          SyncJobPhase       `json:"phase,omitempty"`
	StartTime      *metav1.Time       `json:"startTime,omitempty"`
	CompletionTime *metav1.Time       `json:"completionTime,omitempty"`
	Conditions     []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// SyncJob drives the git-sync subsystem's source→target cursor replication.
type SyncJob struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   SyncJobSpec   `json:"spec,omitempty"`
	Status SyncJobStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// SyncJobList is a list of SyncJob.
type SyncJobList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []SyncJob `json:"items"`
}

func init() {
	SchemeBuilder.Register(&SyncJob{}, &SyncJobList{})
}
