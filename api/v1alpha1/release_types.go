/*
Copyright 2025 The ph-operator Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// StrategyKind discriminates a Release's delivery strategy.
// +kubebuilder:validation:Enum=Canary;BlueGreen
type StrategyKind string

const (
	StrategyCanary    StrategyKind = "Canary"
	StrategyBlueGreen StrategyKind = "BlueGreen"
)

// ReleasePhase is the Release state machine's phase, per spec.md §3.1 and
// §4.4. Every switch over ReleasePhase elsewhere in the codebase must
// remain exhaustive.
// +kubebuilder:validation:Enum=Progressing;Paused;Succeeded;Failed;Promoting;RollingBack
type ReleasePhase string

const (
	ReleaseProgressing ReleasePhase = "Progressing"
	ReleasePaused      ReleasePhase = "Paused"
	ReleaseSucceeded   ReleasePhase = "Succeeded"
	ReleaseFailed      ReleasePhase = "Failed"
	ReleasePromoting   ReleasePhase = "Promoting"
	ReleaseRollingBack ReleasePhase = "RollingBack"
)

// IsTerminal reports whether p admits no further automatic transition
// (spec.md §3.1: "a terminal phase (Succeeded, Failed) is irreversible
// without user edit"). Paused is also treated as terminal for the
// automatic state machine: leaving it requires a spec edit or an operator
// action, never a reconcile-internal transition.
func (p ReleasePhase) IsTerminal() bool {
	switch p {
	case ReleaseSucceeded, ReleaseFailed, ReleasePaused:
		return true
	}
	return false
}

// PredictiveAnalysis gates trend-based downgrade of an otherwise-successful
// metric check.
type PredictiveAnalysis struct {
	Enabled bool `json:"enabled,omitempty"`
	// TrendThreshold defaults to 0.1 when Enabled and zero.
	TrendThreshold float64 `json:"trendThreshold,omitempty"`
}

// AnalysisMetric is one entry of analysis.metrics.
type AnalysisMetric struct {
	Name               string              `json:"name"`
	Query              string              `json:"query"`
	OnSuccess          string              `json:"onSuccess"`
	PredictiveAnalysis *PredictiveAnalysis `json:"predictiveAnalysis,omitempty"`
}

// Analysis is the optional canary analysis block.
type Analysis struct {
	// Interval is a duration string parsed by internal/duration.
	Interval string `json:"interval"`
	// Threshold is the consecutive-success count required to promote.
	Threshold int `json:"threshold"`
	// MaxFailures is the consecutive-failure count tolerated before rollback.
	MaxFailures int              `json:"maxFailures"`
	Metrics     []AnalysisMetric `json:"metrics,omitempty"`
}

// CanaryStrategy is the Canary-specific spec sub-record.
type CanaryStrategy struct {
	TrafficPercent int       `json:"trafficPercent"`
	AutoPromote    bool      `json:"autoPromote"`
	Analysis       *Analysis `json:"analysis,omitempty"`
}

// BlueGreenStrategy is the BlueGreen-specific spec sub-record. The spec
// names only Canary's fields explicitly (§3.1); BlueGreen carries the
// analogous auto-promote and analysis knobs, read by the Release
// controller, which holds the new variant at 0% live traffic until promotion.
type BlueGreenStrategy struct {
	AutoPromote bool      `json:"autoPromote"`
	Analysis    *Analysis `json:"analysis,omitempty"`
}

// SignatureVerification names the Secret containing a PEM public key used
// to verify the release image's signature (spec.md §4.4 step 1).
type SignatureVerification struct {
	SecretName string `json:"secretName"`
}

// Security is the optional spec.security block.
type Security struct {
	SignatureVerification *SignatureVerification `json:"signatureVerification,omitempty"`
}

// ReleaseSpec is the desired state of a Release.
type ReleaseSpec struct {
	AppName  string       `json:"appName"`
	Version  string       `json:"version"`
	Strategy StrategyKind `json:"strategy"`

	Canary    *CanaryStrategy    `json:"canary,omitempty"`
	BlueGreen *BlueGreenStrategy `json:"blueGreen,omitempty"`

	Security *Security `json:"security,omitempty"`
}

// MetricHistoryEntry is one retained (timestamp, value) sample for a metric.
type MetricHistoryEntry struct {
	Timestamp metav1.Time `json:"timestamp"`
	Value     string      `json:"value"`
}

// AnalysisRunStatus tracks the in-progress analysis pass.
type AnalysisRunStatus struct {
	SuccessCount  int                             `json:"successCount"`
	FailureCount  int                             `json:"failureCount"`
	LastCheck     *metav1.Time                    `json:"lastCheck,omitempty"`
	MetricHistory map[string][]MetricHistoryEntry `json:"metricHistory,omitempty"`
}

// ReleaseStatus is the observed state of a Release.
type ReleaseStatus struct {
	Phase                ReleasePhase       `json:"phase,omitempty"`
	StableVersion        string             `json:"stableVersion,omitempty"`
	CanaryVersion        string             `json:"canaryVersion,omitempty"`
	TrafficSplit         string             `json:"trafficSplit,omitempty"`
	ProgressingStartTime *metav1.Time       `json:"progressingStartTime,omitempty"`
	AnalysisRun          AnalysisRunStatus  `json:"analysisRun,omitempty"`
	Conditions           []metav1.Condition `json:"conditions,omitempty"`
	FailureReason        string             `json:"failureReason,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="App",type=string,JSONPath=`.spec.appName`

// Release declares a progressive-delivery rollout for one application
// version, per spec.md §3.1.
type Release struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ReleaseSpec   `json:"spec,omitempty"`
	Status ReleaseStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// ReleaseList is a list of Release.
type ReleaseList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Release `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Release{}, &ReleaseList{})
}

// FinalizerReleaseCleanup guards traffic/analysis teardown on deletion,
// per spec.md §4.4 step 7 ("a Release never disappears mid-rollout").
const FinalizerReleaseCleanup = "ph.io/release-finalizer"
