package v1alpha1

import metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

// ActionKind discriminates an AutoHeal action, per spec.md §4.5.
// +kubebuilder:validation:Enum=redeploy;scaleUp;runbook;notify;snapshot
type ActionKind string

const (
	ActionRedeploy ActionKind = "redeploy"
	ActionScaleUp  ActionKind = "scaleUp"
	ActionRunbook  ActionKind = "runbook"
	ActionNotify   ActionKind = "notify"
	ActionSnapshot ActionKind = "snapshot"
)

// RedeployAction patches the target Deployment's pod template annotations
// to force a rolling restart.
type RedeployAction struct {
	Target string `json:"target"`
}

// ScaleUpAction patches the target Deployment's spec.replicas.
type ScaleUpAction struct {
	Target   string `json:"target"`
	Replicas int32  `json:"replicas"`
}

// RunbookAction creates a Job running scriptName from the
// autoheal-runbooks ConfigMap.
type RunbookAction struct {
	ScriptName string `json:"scriptName"`
}

// NotifyAction sends a message via Slack webhook and/or the issue tracker.
type NotifyAction struct {
	SlackSecretRef string `json:"slackSecretRef,omitempty"`
	IssueTracker   string `json:"issueTracker,omitempty"`
	Message        string `json:"message,omitempty"`
}

// SnapshotAction collects a diagnostic artefact (logs, trace, DB dump).
type SnapshotAction struct {
	PodLabelSelector string `json:"podLabelSelector,omitempty"`
}

// Action is a tagged union of the five action kinds.
type Action struct {
	Kind ActionKind `json:"kind"`

	Redeploy *RedeployAction `json:"redeploy,omitempty"`
	ScaleUp  *ScaleUpAction  `json:"scaleUp,omitempty"`
	Runbook  *RunbookAction  `json:"runbook,omitempty"`
	Notify   *NotifyAction   `json:"notify,omitempty"`
	Snapshot *SnapshotAction `json:"snapshot,omitempty"`
}

// AutoHealRuleSpec is the desired state of an AutoHealRule.
type AutoHealRuleSpec struct {
	// TriggerName correlates inbound alerts to this rule; unique per namespace.
	TriggerName string `json:"triggerName"`
	// Cooldown is a duration string parsed by internal/duration.
	Cooldown string   `json:"cooldown"`
	Actions  []Action `json:"actions"`
}

// RuleState is the AutoHealRule's reconciled state.
// +kubebuilder:validation:Enum=Idle;Triggered;Executing;Cooldown;Failed
type RuleState string

const (
	RuleIdle      RuleState = "Idle"
	RuleTriggered RuleState = "Triggered"
	RuleExecuting RuleState = "Executing"
	RuleCooldown  RuleState = "Cooldown"
	RuleFailed    RuleState = "Failed"
)

// AutoHealRuleStatus is the observed state of an AutoHealRule.
type AutoHealRuleStatus struct {
	State             RuleState          `json:"state,omitempty"`
	LastExecutionTime *metav1.Time       `json:"lastExecutionTime,omitempty"`
	ExecutionsCount   int64              `json:"executionsCount,omitempty"`
	Conditions        []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status

// AutoHealRule binds a trigger name to a cooldown and an ordered action
// list, per spec.md §3.2.
type AutoHealRule struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   AutoHealRuleSpec   `json:"spec,omitempty"`
	Status AutoHealRuleStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true

// AutoHealRuleList is a list of AutoHealRule.
type AutoHealRuleList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []AutoHealRule `json:"items"`
}

func init() {
	SchemeBuilder.Register(&AutoHealRule{}, &AutoHealRuleList{})
}

// FinalizerCacheCleanup is the AutoHealRule finalizer string from spec.md §6.1.
const FinalizerCacheCleanup = "phautohealrules.ph.kaiser.io/cache-cleanup"
