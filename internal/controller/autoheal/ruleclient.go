package autoheal

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	"github.com/phkaiser13/ph-operator/internal/status"
)

// RuleClient implements internal/autoheal.RuleClient against a live
// client.Client, patching the AutoHealRule's status after the webhook
// handler begins processing a matched alert, per spec.md §4.5 step 3.
type RuleClient struct {
	Client client.Client
}

func (rc RuleClient) PatchExecuted(ctx context.Context, namespace, name string) (client.Object, error) {
	var rule phv1alpha1.AutoHealRule
	if err := rc.Client.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, &rule); err != nil {
		return nil, err
	}

	now := metav1.Now()
	rule.Status.State = phv1alpha1.RuleExecuting
	rule.Status.LastExecutionTime = &now
	rule.Status.ExecutionsCount++
	phv1alpha1.SetCondition(&rule.Status.Conditions, phv1alpha1.ConditionTriggered, metav1.ConditionTrue, "AlertMatched", "alert matched this rule's trigger")

	if err := status.Apply(ctx, rc.Client, &rule, status.AutoHealFieldManager); err != nil {
		return nil, err
	}
	return &rule, nil
}
