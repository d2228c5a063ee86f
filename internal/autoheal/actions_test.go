package autoheal

import (
	"context"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	phv1alpha1 "github.com/phkaiser13/ph-operator/api/v1alpha1"
)

func TestEnvNameCollapsesNonAlphanumeric(t *testing.T) {
	got := envName("ALERT_", "pod-name.kind")
	want := "ALERT_POD_NAME_KIND"
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
}

type fakeSlackSender struct {
	sent []string
}

func (f *fakeSlackSender) Send(ctx context.Context, webhookURL, message string) error {
	f.sent = append(f.sent, message)
	return nil
}

func newTestScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := appsv1.AddToScheme(scheme); err != nil {
		t.Fatalf("add appsv1 to scheme: %v", err)
	}
	if err := corev1.AddToScheme(scheme); err != nil {
		t.Fatalf("add corev1 to scheme: %v", err)
	}
	if err := phv1alpha1.AddToScheme(scheme); err != nil {
		t.Fatalf("add v1alpha1 to scheme: %v", err)
	}
	return scheme
}

func TestRedeployPatchesDeploymentAnnotations(t *testing.T) {
	scheme := newTestScheme(t)
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"},
		Spec: appsv1.DeploymentSpec{
			Template: corev1.PodTemplateSpec{},
		},
	}
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(dep).Build()
	d := &Dispatcher{Client: c}

	if err := d.redeploy(context.Background(), "default", &phv1alpha1.RedeployAction{Target: "web"}); err != nil {
		t.Fatalf("redeploy: %v", err)
	}

	var got appsv1.Deployment
	if err := c.Get(context.Background(), client.ObjectKey{Namespace: "default", Name: "web"}, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := got.Spec.Template.Annotations["ph.io/restartedAt"]; !ok {
		t.Fatal("want restartedAt annotation to be set")
	}
}

func TestScaleUpPatchesReplicas(t *testing.T) {
	scheme := newTestScheme(t)
	dep := &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "default"}}
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(dep).Build()
	d := &Dispatcher{Client: c}

	if err := d.scaleUp(context.Background(), "default", &phv1alpha1.ScaleUpAction{Target: "web", Replicas: 5}); err != nil {
		t.Fatalf("scaleUp: %v", err)
	}

	var got appsv1.Deployment
	if err := c.Get(context.Background(), client.ObjectKey{Namespace: "default", Name: "web"}, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Spec.Replicas == nil || *got.Spec.Replicas != 5 {
		t.Fatalf("want replicas=5, got %+v", got.Spec.Replicas)
	}
}

func TestNotifySendsSlackMessageFromSecret(t *testing.T) {
	scheme := newTestScheme(t)
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "slack-webhook", Namespace: "default"},
		Data:       map[string][]byte{"webhookUrl": []byte("https://hooks.slack.test/abc")},
	}
	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(secret).Build()
	sender := &fakeSlackSender{}
	d := &Dispatcher{Client: c, Notifier: sender}

	err := d.notify(context.Background(), "default", &phv1alpha1.NotifyAction{
		SlackSecretRef: "slack-webhook",
		Message:        "cpu is high",
	}, Alert{})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "cpu is high" {
		t.Fatalf("want one slack send with the configured message, got %v", sender.sent)
	}
}

func TestDispatchIsolatesPerActionFailures(t *testing.T) {
	scheme := newTestScheme(t)
	c := fake.NewClientBuilder().WithScheme(scheme).Build()
	d := &Dispatcher{Client: c}
	owner := &phv1alpha1.AutoHealRule{ObjectMeta: metav1.ObjectMeta{Name: "rule", Namespace: "default"}}

	actions := []phv1alpha1.Action{
		{Kind: phv1alpha1.ActionRedeploy, Redeploy: &phv1alpha1.RedeployAction{Target: "missing"}},
		{Kind: phv1alpha1.ActionScaleUp, ScaleUp: &phv1alpha1.ScaleUpAction{Target: "also-missing", Replicas: 2}},
	}
	results := d.Dispatch(context.Background(), "default", owner, actions, Alert{})
	if len(results) != 2 {
		t.Fatalf("want 2 results even though the first action fails, got %d", len(results))
	}
	if results[0].Err == nil {
		t.Fatal("want the redeploy against a missing deployment to fail")
	}
}
