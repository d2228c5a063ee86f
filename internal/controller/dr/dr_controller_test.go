package dr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
	"github.com/phkaiser13/ph-operator/internal/metricsanalyzer"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := phv1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("add to scheme: %v", err)
	}
	if err := appsv1.AddToScheme(scheme); err != nil {
		t.Fatalf("add appsv1: %v", err)
	}
	if err := corev1.AddToScheme(scheme); err != nil {
		t.Fatalf("add corev1: %v", err)
	}
	return scheme
}

func newDR() *phv1alpha1.DisasterRecovery {
	return &phv1alpha1.DisasterRecovery{
		ObjectMeta: metav1.ObjectMeta{Name: "hello-dr", Namespace: "operators"},
		Spec: phv1alpha1.DisasterRecoverySpec{
			PrimaryCluster: phv1alpha1.ClusterRef{KubeconfigSecretRef: "primary-kubeconfig"},
			DRCluster:      phv1alpha1.DRClusterRef{KubeconfigSecretRef: "dr-kubeconfig", Replicas: 3},
			TargetApplication: phv1alpha1.TargetApplication{
				DeploymentName: "hello",
				Namespace:      "apps",
			},
			Policy: phv1alpha1.DRPolicy{
				HealthCheck: phv1alpha1.HealthCheckSpec{
					PrometheusQuery:  "up{job=\"hello\"}",
					SuccessCondition: "value > 0",
					Interval:         "30s",
					FailureThreshold: 3,
				},
				FailoverTrigger: phv1alpha1.FailoverManual,
			},
		},
	}
}

func promValueServer(t *testing.T, value string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[{"value":[1000,"` + value + `"]}]}}`))
	}))
}

func newReconciler(t *testing.T, objs ...client.Object) (*Reconciler, client.Client) {
	t.Helper()
	scheme := newScheme(t)
	c := fake.NewClientBuilder().
		WithScheme(scheme).
		WithStatusSubresource(&phv1alpha1.DisasterRecovery{}).
		WithObjects(objs...).
		Build()
	r := &Reconciler{
		Client: c,
		Scheme: scheme,
		Now:    func() time.Time { return time.Unix(1000, 0) },
	}
	return r, c
}

func TestReconcileMonitoringResetsFailuresOnSuccess(t *testing.T) {
	srv := promValueServer(t, "1")
	defer srv.Close()

	dr := newDR()
	dr.Status.State = phv1alpha1.DRMonitoring
	dr.Status.ConsecutiveFailures = 2

	r, c := newReconciler(t, dr)
	r.MetricsClient = func(ctx context.Context) *metricsanalyzer.Client { return metricsanalyzer.NewClient(srv.URL) }

	req := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "operators", Name: "hello-dr"}}
	if _, err := r.Reconcile(context.Background(), req); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var got phv1alpha1.DisasterRecovery
	if err := c.Get(context.Background(), req.NamespacedName, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status.ConsecutiveFailures != 0 {
		t.Errorf("want consecutiveFailures reset to 0, got %d", got.Status.ConsecutiveFailures)
	}
	if got.Status.State != phv1alpha1.DRMonitoring {
		t.Errorf("want state Monitoring, got %v", got.Status.State)
	}
}

func TestReconcileMonitoringTransitionsToDegradedAtThreshold(t *testing.T) {
	srv := promValueServer(t, "0")
	defer srv.Close()

	dr := newDR()
	dr.Status.State = phv1alpha1.DRMonitoring
	dr.Status.ConsecutiveFailures = 2

	r, c := newReconciler(t, dr)
	r.MetricsClient = func(ctx context.Context) *metricsanalyzer.Client { return metricsanalyzer.NewClient(srv.URL) }

	req := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "operators", Name: "hello-dr"}}
	if _, err := r.Reconcile(context.Background(), req); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var got phv1alpha1.DisasterRecovery
	if err := c.Get(context.Background(), req.NamespacedName, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status.ConsecutiveFailures != 3 {
		t.Errorf("want consecutiveFailures = 3, got %d", got.Status.ConsecutiveFailures)
	}
	if got.Status.State != phv1alpha1.DRDegraded {
		t.Errorf("want state Degraded, got %v", got.Status.State)
	}
}

func TestReconcileDegradedWaitsWithoutTrigger(t *testing.T) {
	dr := newDR()
	dr.Status.State = phv1alpha1.DRDegraded

	r, _ := newReconciler(t, dr)
	req := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "operators", Name: "hello-dr"}}

	res, err := r.Reconcile(context.Background(), req)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.RequeueAfter != 30*time.Second {
		t.Errorf("want 30s requeue while awaiting trigger, got %v", res.RequeueAfter)
	}
}

func TestReconcileDegradedFailsOverOnManualAnnotation(t *testing.T) {
	dr := newDR()
	dr.Status.State = phv1alpha1.DRDegraded
	dr.Annotations = map[string]string{phv1alpha1.ManualFailoverAnnotation: "true"}

	r, c := newReconciler(t, dr)
	req := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "operators", Name: "hello-dr"}}

	if _, err := r.Reconcile(context.Background(), req); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var got phv1alpha1.DisasterRecovery
	if err := c.Get(context.Background(), req.NamespacedName, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status.State != phv1alpha1.DRFailingOver {
		t.Errorf("want state FailingOver, got %v", got.Status.State)
	}
}

func TestReconcileDegradedFailsOverAutomatically(t *testing.T) {
	dr := newDR()
	dr.Status.State = phv1alpha1.DRDegraded
	dr.Spec.Policy.FailoverTrigger = phv1alpha1.FailoverAutomatic

	r, c := newReconciler(t, dr)
	req := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "operators", Name: "hello-dr"}}

	if _, err := r.Reconcile(context.Background(), req); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var got phv1alpha1.DisasterRecovery
	if err := c.Get(context.Background(), req.NamespacedName, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status.State != phv1alpha1.DRFailingOver {
		t.Errorf("want state FailingOver, got %v", got.Status.State)
	}
}

// fakeResolver hands back a fixed client.Client per secret name, simulating
// clusterclient.Factory without a real kubeconfig.
type fakeResolver struct {
	byName map[string]client.Client
}

func (f fakeResolver) ForSecret(ctx context.Context, secretName string) (client.Client, error) {
	return f.byName[secretName], nil
}

func TestReconcileFailingOverReplicatesAndActivatesDR(t *testing.T) {
	scheme := newScheme(t)

	primaryDep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "hello", Namespace: "apps"},
		Spec: appsv1.DeploymentSpec{
			Replicas: int32Ptr(5),
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{"app": "hello"}},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{"app": "hello"}},
				Spec:       corev1.PodSpec{Containers: []corev1.Container{{Name: "hello", Image: "hello:v1"}}},
			},
		},
	}
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "hello-creds", Namespace: "apps", Labels: map[string]string{appInstanceLabel: "hello"}},
		Data:       map[string][]byte{"password": []byte("hunter2")},
	}
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "hello-config", Namespace: "apps", Labels: map[string]string{appInstanceLabel: "hello"}},
		Data:       map[string]string{"key": "value"},
	}

	primaryClient := fake.NewClientBuilder().WithScheme(scheme).WithObjects(primaryDep, secret, cm).Build()
	drClient := fake.NewClientBuilder().WithScheme(scheme).Build()

	dr := newDR()
	dr.Status.State = phv1alpha1.DRFailingOver

	r, c := newReconciler(t, dr)
	r.Clusters = fakeResolver{byName: map[string]client.Client{
		"primary-kubeconfig": primaryClient,
		"dr-kubeconfig":      drClient,
	}}

	req := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "operators", Name: "hello-dr"}}
	if _, err := r.Reconcile(context.Background(), req); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	var got phv1alpha1.DisasterRecovery
	if err := c.Get(context.Background(), req.NamespacedName, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status.State != phv1alpha1.DRActiveOnDR {
		t.Fatalf("want state ActiveOnDR, got %v", got.Status.State)
	}
	if got.Status.ActiveCluster != phv1alpha1.ActiveClusterDR {
		t.Errorf("want activeCluster DR, got %v", got.Status.ActiveCluster)
	}

	var scaledDownPrimary appsv1.Deployment
	if err := primaryClient.Get(context.Background(), types.NamespacedName{Namespace: "apps", Name: "hello"}, &scaledDownPrimary); err != nil {
		t.Fatalf("get primary deployment: %v", err)
	}
	if *scaledDownPrimary.Spec.Replicas != 0 {
		t.Errorf("want primary scaled to 0, got %d", *scaledDownPrimary.Spec.Replicas)
	}

	var drDep appsv1.Deployment
	if err := drClient.Get(context.Background(), types.NamespacedName{Namespace: "apps", Name: "hello"}, &drDep); err != nil {
		t.Fatalf("want deployment applied to DR cluster: %v", err)
	}
	if *drDep.Spec.Replicas != 3 {
		t.Errorf("want DR deployment scaled to 3, got %d", *drDep.Spec.Replicas)
	}

	var drSecret corev1.Secret
	if err := drClient.Get(context.Background(), types.NamespacedName{Namespace: "apps", Name: "hello-creds"}, &drSecret); err != nil {
		t.Fatalf("want secret replicated to DR cluster: %v", err)
	}
	var drCM corev1.ConfigMap
	if err := drClient.Get(context.Background(), types.NamespacedName{Namespace: "apps", Name: "hello-config"}, &drCM); err != nil {
		t.Fatalf("want configmap replicated to DR cluster: %v", err)
	}
}

func TestReconcileTerminalStateIsNoop(t *testing.T) {
	dr := newDR()
	dr.Status.State = phv1alpha1.DRActiveOnDR

	r, _ := newReconciler(t, dr)
	req := ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "operators", Name: "hello-dr"}}

	res, err := r.Reconcile(context.Background(), req)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.RequeueAfter != 0 {
		t.Errorf("want no requeue for a terminal state, got %v", res.RequeueAfter)
	}
}

func int32Ptr(v int32) *int32 { return &v }
