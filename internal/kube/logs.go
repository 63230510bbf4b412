package kube

import (
	"context"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
)

// DefaultTailLines is how much scheduler log a failed DAG run dumps.
const DefaultTailLines int64 = 100

// TailLogs returns the last lines of a container's log, like
// "kubectl logs <pod> -n <namespace> -c <container> --tail <lines>".
func TailLogs(ctx context.Context, cs kubernetes.Interface, namespace, pod, container string, lines int64) (string, error) {
	req := cs.CoreV1().Pods(namespace).GetLogs(pod, &corev1.PodLogOptions{
		Container: container,
		TailLines: &lines,
	})

	stream, err := req.Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open logs of %s/%s (container %s): %w", namespace, pod, container, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("failed to read logs of %s/%s: %w", namespace, pod, err)
	}
	return string(data), nil
}

// LogSource adapts a clientset to the log-tailing hook the conformance
// runner uses when a DAG run fails.
type LogSource struct {
	Clientset kubernetes.Interface
	Namespace string
	Pod       string
	Container string
	Lines     int64
}

// Tail returns the configured container's recent log lines.
func (s *LogSource) Tail(ctx context.Context) (string, error) {
	lines := s.Lines
	if lines <= 0 {
		lines = DefaultTailLines
	}
	return TailLogs(ctx, s.Clientset, s.Namespace, s.Pod, s.Container, lines)
}
