package autoheal

import (
	"context"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	"github.com/phkaiser13/ph-operator/internal/autoheal"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := phv1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("add scheme: %v", err)
	}
	return scheme
}

func TestReconcileAddsFinalizerAndPopulatesCache(t *testing.T) {
	scheme := newScheme(t)
	rule := &phv1alpha1.AutoHealRule{
		ObjectMeta: metav1.ObjectMeta{Name: "high-cpu-rule", Namespace: "default"},
		Spec: phv1alpha1.AutoHealRuleSpec{
			TriggerName: "HighCpu",
			Cooldown:    "5m",
		},
	}
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(rule).WithStatusSubresource(&phv1alpha1.AutoHealRule{}).Build()
	cache := autoheal.NewCache()
	r := &Reconciler{Client: c, Scheme: scheme, Cache: cache}

	req := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: "high-cpu-rule"}}
	if _, err := r.Reconcile(context.Background(), req); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	entry, ok := cache.Get("HighCpu")
	if !ok {
		t.Fatal("want rule cached after reconcile")
	}
	if entry.Name != "high-cpu-rule" {
		t.Fatalf("want cached name high-cpu-rule, got %q", entry.Name)
	}

	var got phv1alpha1.AutoHealRule
	if err := c.Get(context.Background(), req.NamespacedName, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	found := false
	for _, f := range got.Finalizers {
		if f == phv1alpha1.FinalizerCacheCleanup {
			found = true
		}
	}
	if !found {
		t.Fatal("want cache-cleanup finalizer added")
	}
}

func TestReconcileDeletionEvictsCacheAndRemovesFinalizer(t *testing.T) {
	scheme := newScheme(t)
	now := metav1.Now()
	rule := &phv1alpha1.AutoHealRule{
		ObjectMeta: metav1.ObjectMeta{
			Name:              "high-cpu-rule",
			Namespace:         "default",
			Finalizers:        []string{phv1alpha1.FinalizerCacheCleanup},
			DeletionTimestamp: &now,
		},
		Spec: phv1alpha1.AutoHealRuleSpec{TriggerName: "HighCpu", Cooldown: "5m"},
	}
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(rule).WithStatusSubresource(&phv1alpha1.AutoHealRule{}).Build()
	cache := autoheal.NewCache()
	cache.Put("HighCpu", autoheal.Entry{Name: "high-cpu-rule"})
	r := &Reconciler{Client: c, Scheme: scheme, Cache: cache}

	req := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: "high-cpu-rule"}}
	if _, err := r.Reconcile(context.Background(), req); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if _, ok := cache.Get("HighCpu"); ok {
		t.Fatal("want cache entry evicted on deletion")
	}
}

func TestReconcileInvalidCooldownIsNeverCached(t *testing.T) {
	scheme := newScheme(t)
	rule := &phv1alpha1.AutoHealRule{
		ObjectMeta: metav1.ObjectMeta{Name: "bad-rule", Namespace: "default"},
		Spec:       phv1alpha1.AutoHealRuleSpec{TriggerName: "Bad", Cooldown: "not-a-duration"},
	}
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(rule).WithStatusSubresource(&phv1alpha1.AutoHealRule{}).Build()
	cache := autoheal.NewCache()
	r := &Reconciler{Client: c, Scheme: scheme, Cache: cache}

	req := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: "bad-rule"}}
	if _, err := r.Reconcile(context.Background(), req); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if _, ok := cache.Get("Bad"); ok {
		t.Fatal("want rule with an invalid cooldown never cached")
	}
}
