package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// deepCopyConditions copies a metav1.Condition slice field-for-field; the
// type carries no pointer fields of its own beyond the ones metav1.Condition
// already deep-copies via its own DeepCopy method.
func deepCopyConditions(in []metav1.Condition) []metav1.Condition {
	if in == nil {
		return nil
	}
	out := make([]metav1.Condition, len(in))
	for i := range in {
		in[i].DeepCopyInto(&out[i])
	}
	return out
}

// Hand-written deep-copy implementations. This repository does not run
// controller-gen, so these stand in for the usual zz_generated.deepcopy.go;
// kept in one file per the conventional generated-code naming so the real
// generator output would land here unmodified if wired up later.

func (in *PredictiveAnalysis) DeepCopy() *PredictiveAnalysis {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}

func (in *AnalysisMetric) DeepCopy() AnalysisMetric {
	out := *in
	if in.PredictiveAnalysis != nil {
		out.PredictiveAnalysis = in.PredictiveAnalysis.DeepCopy()
	}
	return out
}

func (in *Analysis) DeepCopy() *Analysis {
	if in == nil {
		return nil
	}
	out := *in
	if in.Metrics != nil {
		out.Metrics = make([]AnalysisMetric, len(in.Metrics))
		for i := range in.Metrics {
			out.Metrics[i] = in.Metrics[i].DeepCopy()
		}
	}
	return &out
}

func (in *CanaryStrategy) DeepCopy() *CanaryStrategy {
	if in == nil {
		return nil
	}
	out := *in
	out.Analysis = in.Analysis.DeepCopy()
	return &out
}

func (in *BlueGreenStrategy) DeepCopy() *BlueGreenStrategy {
	if in == nil {
		return nil
	}
	out := *in
	out.Analysis = in.Analysis.DeepCopy()
	return &out
}

func (in *Security) DeepCopy() *Security {
	if in == nil {
		return nil
	}
	out := *in
	if in.SignatureVerification != nil {
		sv := *in.SignatureVerification
		out.SignatureVerification = &sv
	}
	return &out
}

func (in *ReleaseSpec) DeepCopy() ReleaseSpec {
	out := *in
	out.Canary = in.Canary.DeepCopy()
	out.BlueGreen = in.BlueGreen.DeepCopy()
	out.Security = in.Security.DeepCopy()
	return out
}

func (in *AnalysisRunStatus) DeepCopy() AnalysisRunStatus {
	out := *in
	if in.MetricHistory != nil {
		out.MetricHistory = make(map[string][]MetricHistoryEntry, len(in.MetricHistory))
		for k, v := range in.MetricHistory {
			cp := make([]MetricHistoryEntry, len(v))
			copy(cp, v)
			out.MetricHistory[k] = cp
		}
	}
	return out
}

func (in *ReleaseStatus) DeepCopy() ReleaseStatus {
	out := *in
	out.AnalysisRun = in.AnalysisRun.DeepCopy()
	if in.ProgressingStartTime != nil {
		t := *in.ProgressingStartTime
		out.ProgressingStartTime = &t
	}
	out.Conditions = deepCopyConditions(in.Conditions)
	return out
}

func (in *Release) DeepCopy() *Release {
	if in == nil {
		return nil
	}
	out := *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec.DeepCopy()
	out.Status = in.Status.DeepCopy()
	return &out
}

func (in *Release) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

func (in *ReleaseList) DeepCopy() *ReleaseList {
	if in == nil {
		return nil
	}
	out := *in
	out.ListMeta = *in.ListMeta.DeepCopy()
	if in.Items != nil {
		out.Items = make([]Release, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopy()
		}
	}
	return &out
}

func (in *ReleaseList) DeepCopyObject() runtime.Object {
	return in.DeepCopy()
}

// --- AutoHealRule ---

func (in *Action) DeepCopy() Action {
	out := *in
	if in.Redeploy != nil {
		r := *in.Redeploy
		out.Redeploy = &r
	}
	if in.ScaleUp != nil {
		s := *in.ScaleUp
		out.ScaleUp = &s
	}
	if in.Runbook != nil {
		r := *in.Runbook
		out.Runbook = &r
	}
	if in.Notify != nil {
		n := *in.Notify
		out.Notify = &n
	}
	if in.Snapshot != nil {
		s := *in.Snapshot
		out.Snapshot = &s
	}
	return out
}

func (in *AutoHealRuleSpec) DeepCopy() AutoHealRuleSpec {
	out := *in
	if in.Actions != nil {
		out.Actions = make([]Action, len(in.Actions))
		for i := range in.Actions {
			out.Actions[i] = in.Actions[i].DeepCopy()
		}
	}
	return out
}

func (in *AutoHealRuleStatus) DeepCopy() AutoHealRuleStatus {
	out := *in
	if in.LastExecutionTime != nil {
		t := *in.LastExecutionTime
		out.LastExecutionTime = &t
	}
	out.Conditions = deepCopyConditions(in.Conditions)
	return out
}

func (in *AutoHealRule) DeepCopy() *AutoHealRule {
	if in == nil {
		return nil
	}
	out := *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec.DeepCopy()
	out.Status = in.Status.DeepCopy()
	return &out
}

func (in *AutoHealRule) DeepCopyObject() runtime.Object { return in.DeepCopy() }

func (in *AutoHealRuleList) DeepCopy() *AutoHealRuleList {
	if in == nil {
		return nil
	}
	out := *in
	out.ListMeta = *in.ListMeta.DeepCopy()
	if in.Items != nil {
		out.Items = make([]AutoHealRule, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopy()
		}
	}
	return &out
}

func (in *AutoHealRuleList) DeepCopyObject() runtime.Object { return in.DeepCopy() }

// --- Preview ---

func (in *PreviewSpec) DeepCopy() PreviewSpec { return *in }

func (in *PreviewStatus) DeepCopy() PreviewStatus {
	out := *in
	if in.ExpiresAt != nil {
		t := *in.ExpiresAt
		out.ExpiresAt = &t
	}
	return out
}

func (in *Preview) DeepCopy() *Preview {
	if in == nil {
		return nil
	}
	out := *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec.DeepCopy()
	out.Status = in.Status.DeepCopy()
	return &out
}

func (in *Preview) DeepCopyObject() runtime.Object { return in.DeepCopy() }

func (in *PreviewList) DeepCopy() *PreviewList {
	if in == nil {
		return nil
	}
	out := *in
	out.ListMeta = *in.ListMeta.DeepCopy()
	if in.Items != nil {
		out.Items = make([]Preview, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopy()
		}
	}
	return &out
}

func (in *PreviewList) DeepCopyObject() runtime.Object { return in.DeepCopy() }

// --- DisasterRecovery ---

func (in *DisasterRecoverySpec) DeepCopy() DisasterRecoverySpec { return *in }

func (in *DisasterRecoveryStatus) DeepCopy() DisasterRecoveryStatus {
	out := *in
	if in.LastHealthCheckTime != nil {
		t := *in.LastHealthCheckTime
		out.LastHealthCheckTime = &t
	}
	out.Conditions = deepCopyConditions(in.Conditions)
	return out
}

func (in *DisasterRecovery) DeepCopy() *DisasterRecovery {
	if in == nil {
		return nil
	}
	out := *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec.DeepCopy()
	out.Status = in.Status.DeepCopy()
	return &out
}

func (in *DisasterRecovery) DeepCopyObject() runtime.Object { return in.DeepCopy() }

func (in *DisasterRecoveryList) DeepCopy() *DisasterRecoveryList {
	if in == nil {
		return nil
	}
	out := *in
	out.ListMeta = *in.ListMeta.DeepCopy()
	if in.Items != nil {
		out.Items = make([]DisasterRecovery, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopy()
		}
	}
	return &out
}

func (in *DisasterRecoveryList) DeepCopyObject() runtime.Object { return in.DeepCopy() }

// --- SyncJob ---

func (in *SyncJobSpec) DeepCopy() SyncJobSpec { return *in }

func (in *SyncJobStatus) DeepCopy() SyncJobStatus {
	out := *in
	if in.StartTime != nil {
		t := *in.StartTime
		out.StartTime = &t
	}
	if in.CompletionTime != nil {
		t := *in.CompletionTime
		out.CompletionTime = &t
	}
	out.Conditions = deepCopyConditions(in.Conditions)
	return out
}

func (in *SyncJob) DeepCopy() *SyncJob {
	if in == nil {
		return nil
	}
	out := *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec.DeepCopy()
	out.Status = in.Status.DeepCopy()
	return &out
}

func (in *SyncJob) DeepCopyObject() runtime.Object { return in.DeepCopy() }

func (in *SyncJobList) DeepCopy() *SyncJobList {
	if in == nil {
		return nil
	}
	out := *in
	out.ListMeta = *in.ListMeta.DeepCopy()
	if in.Items != nil {
		out.Items = make([]SyncJob, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopy()
		}
	}
	return &out
}

func (in *SyncJobList) DeepCopyObject() runtime.Object { return in.DeepCopy() }

// --- RbacPolicy ---

func (in *RbacPolicySpec) DeepCopy() RbacPolicySpec { return *in }

func (in *RbacPolicyStatus) DeepCopy() RbacPolicyStatus {
	out := *in
	out.Conditions = deepCopyConditions(in.Conditions)
	return out
}

func (in *RbacPolicy) DeepCopy() *RbacPolicy {
	if in == nil {
		return nil
	}
	out := *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec.DeepCopy()
	out.Status = in.Status.DeepCopy()
	return &out
}

func (in *RbacPolicy) DeepCopyObject() runtime.Object { return in.DeepCopy() }

func (in *RbacPolicyList) DeepCopy() *RbacPolicyList {
	if in == nil {
		return nil
	}
	out := *in
	out.ListMeta = *in.ListMeta.DeepCopy()
	if in.Items != nil {
		out.Items = make([]RbacPolicy, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopy()
		}
	}
	return &out
}

func (in *RbacPolicyList) DeepCopyObject() runtime.Object { return in.DeepCopy() }

// --- Audit ---

func (in *AuditSpec) DeepCopy() AuditSpec {
	out := *in
	if in.Detail != nil {
		out.Detail = make(map[string]string, len(in.Detail))
		for k, v := range in.Detail {
			out.Detail[k] = v
		}
	}
	return out
}

func (in *Audit) DeepCopy() *Audit {
	if in == nil {
		return nil
	}
	out := *in
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec.DeepCopy()
	return &out
}

func (in *Audit) DeepCopyObject() runtime.Object { return in.DeepCopy() }

func (in *AuditList) DeepCopy() *AuditList {
	if in == nil {
		return nil
	}
	out := *in
	out.ListMeta = *in.ListMeta.DeepCopy()
	if in.Items != nil {
		out.Items = make([]Audit, len(in.Items))
		for i := range in.Items {
			out.Items[i] = *in.Items[i].DeepCopy()
		}
	}
	return &out
}

func (in *AuditList) DeepCopyObject() runtime.Object { return in.DeepCopy() }
