package kube

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"

	"github.com/astronomer/ap-airflow/internal/host"
)

// PodHost runs commands in one container of a pod, the way
// "kubectl exec <pod> -c <container> -- sh -c <command>" does.
type PodHost struct {
	client    *Client
	namespace string
	pod       string
	container string
}

// NewPodHost returns a host.Host for the given container.
func NewPodHost(c *Client, namespace, pod, container string) *PodHost {
	return &PodHost{client: c, namespace: namespace, pod: pod, container: container}
}

// Name satisfies host.Host.
func (p *PodHost) Name() string {
	return fmt.Sprintf("kube://%s/%s/%s", p.namespace, p.pod, p.container)
}

// Run satisfies host.Host. The command's exit status is recovered from the
// exec stream's status error; any other stream error is a transport error.
func (p *PodHost) Run(ctx context.Context, command string) (*host.Result, error) {
	req := p.client.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(p.pod).
		Namespace(p.namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: p.container,
			Command:   []string{"sh", "-c", command},
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(p.client.config, "POST", req.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to create exec stream to %s: %w", p.Name(), err)
	}

	var stdout, stderr bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	})

	result := &host.Result{
		Command: command,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}
	if err != nil {
		var exitErr utilexec.ExitError
		if errors.As(err, &exitErr) && exitErr.Exited() {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		return nil, fmt.Errorf("exec in %s failed: %w", p.Name(), err)
	}
	return result, nil
}
