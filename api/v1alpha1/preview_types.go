package v1alpha1

import metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

// PreviewSpec is the desired state of a Preview environment.
type PreviewSpec struct {
	RepoURL      string `json:"repoUrl"`
	Branch       string `json:"branch,omitempty"`
	CommitSha    string `json:"commitSha,omitempty"`
	ManifestPath string `json:"manifestPath"`
	AppName      string `json:"appName"`
	// TTLHours defaults to 24 when zero.
	TTLHours int `json:"ttlHours,omitempty"`
}

// DefaultTTLHours is used when PreviewSpec.TTLHours is left at zero.
const DefaultTTLHours = 24

// PreviewPhase is the Preview controller's lifecycle phase (spec.md §3.3, §4.7).
// +kubebuilder:validation:Enum=Creating;Deployed;Failed;Terminating
type PreviewPhase string

const (
	PreviewCreating    PreviewPhase = "Creating"
	PreviewDeployed    PreviewPhase = "Deployed"
	PreviewFailed      PreviewPhase = "Failed"
	PreviewTerminating PreviewPhase = "Terminating"
)

// PreviewStatus is the observed state of a Preview.
type PreviewStatus struct {
	Phase     PreviewPhase `json:"phase,omitempty"`
	Namespace string       `json:"namespace,omitempty"`
	URL       string       `json:"url,omitempty"`
	ExpiresAt *metav1.Time `json:"expiresAt,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// Preview is an ephemeral PR environment, per spec.md §3.3.
type Preview struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   PreviewSpec   `json:"spec,omitempty"`
	Status PreviewStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// PreviewList is a list of Preview.
type PreviewList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Preview `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Preview{}, &PreviewList{})
}

// FinalizerPreview is the Preview finalizer string from spec.md §6.1.
const FinalizerPreview = "ph.io/finalizer"
