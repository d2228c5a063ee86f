package v1alpha1

import metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

// AuditSpec is the immutable content of an Audit record (spec.md §3.5).
// Audit is cluster-scoped and immutable after creation — there is no
// AuditStatus: once written, an Audit record is never reconciled again.
type AuditSpec struct {
	Timestamp metav1.Time       `json:"timestamp"`
	Verb      string            `json:"verb"`
	Component string            `json:"component"`
	Actor     string            `json:"actor,omitempty"`
	Target    string            `json:"target,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:resource:scope=Cluster

// Audit is an immutable, cluster-scoped record of a privileged operation.
type Audit struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec AuditSpec `json:"spec,omitempty"`
}

// +kubebuilder:object:root=true

// AuditList is a list of Audit.
type AuditList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Audit `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Audit{}, &AuditList{})
}
