package v1alpha1

import metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

// SubjectKind discriminates an RbacPolicy subject.
// +kubebuilder:validation:Enum=User;Group;ServiceAccount
type SubjectKind string

const (
	SubjectUser           SubjectKind = "User"
	SubjectGroup          SubjectKind = "Group"
	SubjectServiceAccount SubjectKind = "ServiceAccount"
)

// PolicySubject is the subject an RbacPolicy binds a role to.
type PolicySubject struct {
	Kind SubjectKind `json:"kind"`
	Name string      `json:"name"`
}

// RbacPolicySpec is the desired state of an RbacPolicy (spec.md §3.5).
type RbacPolicySpec struct {
	RoleName  string        `json:"roleName"`
	Subject   PolicySubject `json:"subject"`
	Namespace string        `json:"namespace"`
	// ClusterRoleName names the preinstalled ClusterRole this policy binds to.
	ClusterRoleName string `json:"clusterRoleName"`
}

// RbacPolicyStatus is the observed state of an RbacPolicy.
type RbacPolicyStatus struct {
	BoundRoleBindingName string             `json:"boundRoleBindingName,omitempty"`
	Conditions           []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// RbacPolicy binds a logical role name to a subject, materialised as a
// RoleBinding owned by the policy.
type RbacPolicy struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   RbacPolicySpec   `json:"spec,omitempty"`
	Status RbacPolicyStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// RbacPolicyList is a list of RbacPolicy.
type RbacPolicyList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []RbacPolicy `json:"items"`
}

func init() {
	SchemeBuilder.Register(&RbacPolicy{}, &RbacPolicyList{})
}

// FinalizerBindingCleanup is the RbacPolicy finalizer string from spec.md §6.1.
const FinalizerBindingCleanup = "phgitrbacpolicies.ph.io/binding-cleanup"
