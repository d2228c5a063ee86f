package autoheal

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
)

// NewSPDYExecutorFactory builds the production ExecutorFactory Dispatcher
// uses for the snapshot action's database dump: a SPDY exec stream against the pod's
// "exec" subresource, equivalent to `kubectl exec`.
func NewSPDYExecutorFactory(cfg *rest.Config, clientset kubernetes.Interface) ExecutorFactory {
	return func(namespace, pod, container string, command []string) (SPDYExecutor, error) {
		req := clientset.CoreV1().RESTClient().Post().
			Resource("pods").
			Name(pod).
			Namespace(namespace).
			SubResource("exec").
			VersionedParams(&corev1.PodExecOptions{
				Container: container,
				Command:   command,
				Stdout:    true,
				Stderr:    true,
			}, scheme.ParameterCodec)

		return remotecommand.NewSPDYExecutor(cfg, "POST", req.URL())
	}
}
