package preview

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
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
	if err := corev1.AddToScheme(scheme); err != nil {
		t.Fatalf("add corev1 to scheme: %v", err)
	}
	return scheme
}

func newPreview() *phv1alpha1.Preview {
	return &phv1alpha1.Preview{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "pr-42",
			Namespace: "ph-previews",
			UID:       types.UID("abcdef0123456"),
		},
		Spec: phv1alpha1.PreviewSpec{
			RepoURL:      "https://example.com/org/repo.git",
			Branch:       "feat/x",
			ManifestPath: "deploy",
			AppName:      "web",
			TTLHours:     1,
		},
	}
}

func newReconciler(t *testing.T, objs ...client.Object) (*Reconciler, client.Client) {
	t.Helper()
	scheme := newScheme(t)
	c := fake.NewClientBuilder().
		WithScheme(scheme).
		WithStatusSubresource(&phv1alpha1.Preview{}).
		WithObjects(objs...).
		Build()

	fixedNow := time.Unix(1000, 0).UTC()
	return &Reconciler{
		Client: c,
		Scheme: scheme,
		Now:    func() time.Time { return fixedNow },
	}, c
}

type fakeCloner struct {
	dir string
	err error
}

func (f fakeCloner) Clone(ctx context.Context, repoURL, branch, commitSha string) (string, error) {
	return f.dir, f.err
}

type fakeApplier struct {
	applied []string
	err     error
}

func (f *fakeApplier) Apply(ctx context.Context, obj *unstructured.Unstructured, namespace string) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, namespace+"/"+obj.GetKind()+"/"+obj.GetName())
	return nil
}

func writeManifestDir(t *testing.T, manifestPath string) string {
	t.Helper()
	root, err := os.MkdirTemp("", "preview-test-")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(root) })

	dir := filepath.Join(root, manifestPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir manifest dir: %v", err)
	}
	cm := "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: hello\n"
	if err := os.WriteFile(filepath.Join(dir, "configmap.yaml"), []byte(cm), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("not yaml"), 0o644); err != nil {
		t.Fatalf("write non-manifest: %v", err)
	}
	return root
}

func TestNamespaceNameIsDeterministic(t *testing.T) {
	p := newPreview()
	got := namespaceName(p)
	want := "preview-feat-x-web-abcdef"
	if got != want {
		t.Errorf("namespaceName() = %q, want %q", got, want)
	}
}

func TestReconcileApplyDeploysSuccessfully(t *testing.T) {
	preview := newPreview()
	r, c := newReconciler(t, preview)

	root := writeManifestDir(t, "deploy")
	apl := &fakeApplier{}
	r.Cloner = fakeCloner{dir: root}
	r.Applier = apl

	result, err := r.reconcileApply(context.Background(), preview)
	if err != nil {
		t.Fatalf("reconcileApply() error = %v", err)
	}
	if result.RequeueAfter != time.Hour {
		t.Errorf("RequeueAfter = %v, want 1h", result.RequeueAfter)
	}

	if preview.Status.Phase != phv1alpha1.PreviewDeployed {
		t.Errorf("Phase = %s, want Deployed", preview.Status.Phase)
	}
	wantNS := "preview-feat-x-web-abcdef"
	if preview.Status.Namespace != wantNS {
		t.Errorf("Namespace = %s, want %s", preview.Status.Namespace, wantNS)
	}
	if preview.Status.ExpiresAt == nil {
		t.Fatal("ExpiresAt not set")
	}
	if len(apl.applied) != 1 || apl.applied[0] != wantNS+"/ConfigMap/hello" {
		t.Errorf("applied = %v, want exactly one ConfigMap/hello apply", apl.applied)
	}

	var ns corev1.Namespace
	if err := c.Get(context.Background(), client.ObjectKey{Name: wantNS}, &ns); err != nil {
		t.Errorf("namespace %s was not created: %v", wantNS, err)
	}
}

func TestReconcileApplyFailsOnCloneError(t *testing.T) {
	preview := newPreview()
	r, _ := newReconciler(t, preview)
	r.Cloner = fakeCloner{err: errString("network unreachable")}
	r.Applier = &fakeApplier{}

	if _, err := r.reconcileApply(context.Background(), preview); err != nil {
		t.Fatalf("reconcileApply() error = %v", err)
	}
	if preview.Status.Phase != phv1alpha1.PreviewFailed {
		t.Errorf("Phase = %s, want Failed", preview.Status.Phase)
	}
}

func TestReconcileApplyFailsOnManifestApplyError(t *testing.T) {
	preview := newPreview()
	r, _ := newReconciler(t, preview)
	root := writeManifestDir(t, "deploy")
	r.Cloner = fakeCloner{dir: root}
	r.Applier = &fakeApplier{err: errString("apply rejected")}

	if _, err := r.reconcileApply(context.Background(), preview); err != nil {
		t.Fatalf("reconcileApply() error = %v", err)
	}
	if preview.Status.Phase != phv1alpha1.PreviewFailed {
		t.Errorf("Phase = %s, want Failed", preview.Status.Phase)
	}
}

func TestReconcileApplyFailsWhenPodNotReady(t *testing.T) {
	preview := newPreview()
	wantNS := "preview-feat-x-web-abcdef"
	notReadyPod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "web-0", Namespace: wantNS},
		Status: corev1.PodStatus{
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "web", Ready: false},
			},
		},
	}
	r, _ := newReconciler(t, preview, notReadyPod)
	root := writeManifestDir(t, "deploy")
	r.Cloner = fakeCloner{dir: root}
	r.Applier = &fakeApplier{}

	if _, err := r.reconcileApply(context.Background(), preview); err != nil {
		t.Fatalf("reconcileApply() error = %v", err)
	}
	if preview.Status.Phase != phv1alpha1.PreviewFailed {
		t.Errorf("Phase = %s, want Failed", preview.Status.Phase)
	}
}

func TestReconcileDeleteRemovesNamespaceAndFinalizer(t *testing.T) {
	preview := newPreview()
	preview.Finalizers = []string{phv1alpha1.FinalizerPreview}
	preview.Status.Namespace = "preview-feat-x-web-abcdef"
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: preview.Status.Namespace}}
	r, c := newReconciler(t, preview, ns)

	if _, err := r.reconcileDelete(context.Background(), preview); err != nil {
		t.Fatalf("reconcileDelete() error = %v", err)
	}

	var gotNS corev1.Namespace
	err := c.Get(context.Background(), client.ObjectKey{Name: "preview-feat-x-web-abcdef"}, &gotNS)
	if err == nil {
		t.Error("namespace still exists after cleanup")
	}
	for _, f := range preview.Finalizers {
		if f == phv1alpha1.FinalizerPreview {
			t.Error("finalizer was not removed")
		}
	}
}

func TestReconcileDeleteIsIdempotentWhenNamespaceAlreadyGone(t *testing.T) {
	preview := newPreview()
	preview.Finalizers = []string{phv1alpha1.FinalizerPreview}
	preview.Status.Namespace = "preview-feat-x-web-abcdef"
	r, _ := newReconciler(t, preview)

	if _, err := r.reconcileDelete(context.Background(), preview); err != nil {
		t.Fatalf("reconcileDelete() error = %v", err)
	}
	if len(preview.Finalizers) != 0 {
		t.Errorf("finalizers = %v, want empty", preview.Finalizers)
	}
}

func TestGarbageCollectDeletesOnlyExpiredPreviews(t *testing.T) {
	scheme := newScheme(t)
	fixedNow := time.Unix(100000, 0).UTC()

	old := &phv1alpha1.Preview{
		ObjectMeta: metav1.ObjectMeta{
			Name: "old", Namespace: "ph-previews",
			CreationTimestamp: metav1.NewTime(fixedNow.Add(-48 * time.Hour)),
		},
	}
	recent := &phv1alpha1.Preview{
		ObjectMeta: metav1.ObjectMeta{
			Name: "recent", Namespace: "ph-previews",
			CreationTimestamp: metav1.NewTime(fixedNow.Add(-1 * time.Hour)),
		},
	}

	c := fake.NewClientBuilder().WithScheme(scheme).WithObjects(old, recent).Build()
	r := &Reconciler{Client: c, Scheme: scheme, Now: func() time.Time { return fixedNow }}

	deleted, err := r.GarbageCollect(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("GarbageCollect() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	var remaining phv1alpha1.PreviewList
	if err := c.List(context.Background(), &remaining); err != nil {
		t.Fatalf("list previews: %v", err)
	}
	if len(remaining.Items) != 1 || remaining.Items[0].Name != "recent" {
		t.Errorf("remaining previews = %v, want only 'recent'", remaining.Items)
	}
}

func TestReconcileDeployedRequeuesUntilExpiry(t *testing.T) {
	preview := newPreview()
	preview.Finalizers = []string{phv1alpha1.FinalizerPreview}
	fixedNow := time.Unix(1000, 0).UTC()
	expires := metav1.NewTime(fixedNow.Add(2 * time.Hour))
	preview.Status.Phase = phv1alpha1.PreviewDeployed
	preview.Status.Namespace = "preview-feat-x-web-abcdef"
	preview.Status.ExpiresAt = &expires

	r, _ := newReconciler(t, preview)
	r.Now = func() time.Time { return fixedNow }

	result, err := r.Reconcile(context.Background(), reconcileRequest(preview))
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if result.RequeueAfter != 2*time.Hour {
		t.Errorf("RequeueAfter = %v, want 2h", result.RequeueAfter)
	}
	if preview.Status.Phase != phv1alpha1.PreviewDeployed {
		t.Errorf("Phase = %s, want unchanged Deployed", preview.Status.Phase)
	}
}

func TestReconcileDeployedPastExpiryTearsDownNamespace(t *testing.T) {
	preview := newPreview()
	preview.Finalizers = []string{phv1alpha1.FinalizerPreview}
	fixedNow := time.Unix(1000, 0).UTC()
	expires := metav1.NewTime(fixedNow.Add(-time.Minute))
	preview.Status.Phase = phv1alpha1.PreviewDeployed
	preview.Status.Namespace = "preview-feat-x-web-abcdef"
	preview.Status.ExpiresAt = &expires
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: preview.Status.Namespace}}

	r, c := newReconciler(t, preview, ns)
	r.Now = func() time.Time { return fixedNow }

	if _, err := r.Reconcile(context.Background(), reconcileRequest(preview)); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	var got phv1alpha1.Preview
	if err := c.Get(context.Background(), client.ObjectKeyFromObject(preview), &got); err != nil {
		t.Fatalf("get preview: %v", err)
	}
	if got.Status.Phase != phv1alpha1.PreviewTerminating {
		t.Errorf("Phase = %s, want Terminating", got.Status.Phase)
	}

	var gotNS corev1.Namespace
	if err := c.Get(context.Background(), client.ObjectKey{Name: preview.Status.Namespace}, &gotNS); err == nil {
		t.Error("namespace still exists after TTL expiry teardown")
	}
}

func reconcileRequest(p *phv1alpha1.Preview) ctrl.Request {
	return ctrl.Request{NamespacedName: client.ObjectKey{Namespace: p.Namespace, Name: p.Name}}
}

type errString string

func (e errString) Error() string { return string(e) }
