package v1alpha1

import metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

// Common condition types shared across kinds.
const (
	ConditionReady     = "Ready"
	ConditionTriggered = "Triggered"
	ConditionDegraded  = "Degraded"
)

// SetCondition appends or replaces (by Type) a condition in conditions,
// following spec.md §4.11: conditions are additive and monotonically
// include the latest transition message — no attempt is made to deduplicate
// on equal messages within a single update, only the Type is deduped across
// updates so the list does not grow without bound.
func SetCondition(conditions *[]metav1.Condition, conditionType string, status metav1.ConditionStatus, reason, message string) {
	now := metav1.Now()
	for i := range *conditions {
		if (*conditions)[i].Type == conditionType {
			(*conditions)[i].Status = status
			(*conditions)[i].Reason = reason
			(*conditions)[i].Message = message
			(*conditions)[i].LastTransitionTime = now
			(*conditions)[i].ObservedGeneration++
			return
		}
	}
	*conditions = append(*conditions, metav1.Condition{
		Type:               conditionType,
		Status:             status,
		Reason:             reason,
		Message:            message,
		LastTransitionTime: now,
	})
}
