package audit

import (
	"context"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := phv1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("add phv1alpha1 to scheme: %v", err)
	}
	return scheme
}

func TestReconcileLogsAndNeverRequeues(t *testing.T) {
	record := &phv1alpha1.Audit{
		ObjectMeta: metav1.ObjectMeta{Name: "evt-1"},
		Spec: phv1alpha1.AuditSpec{
			Timestamp: metav1.Now(),
			Verb:      "promote",
			Component: "release-controller",
			Actor:     "alice",
			Target:    "releases/checkout",
		},
	}

	scheme := newScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(record).Build()
	r := &Reconciler{Client: c, Scheme: scheme}

	result, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: client.ObjectKey{Name: "evt-1"}})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if result.Requeue || result.RequeueAfter != 0 {
		t.Errorf("result = %+v, want no requeue", result)
	}
}

func TestReconcileIgnoresMissingRecord(t *testing.T) {
	scheme := newScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).Build()
	r := &Reconciler{Client: c, Scheme: scheme}

	if _, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: client.ObjectKey{Name: "gone"}}); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
}
