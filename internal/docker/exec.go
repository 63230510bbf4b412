package docker

import (
	"bytes"
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/astronomer/ap-airflow/internal/host"
)

// execAPI is the slice of the Docker API ContainerHost needs.
type execAPI interface {
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
}

// ContainerHost runs commands in a local container, for running the suite
// against a docker-compose deployment instead of a Kubernetes one.
type ContainerHost struct {
	api       execAPI
	container string
}

// NewContainerHost returns a host.Host for the named or ID'd container.
func NewContainerHost(c *Client, containerName string) *ContainerHost {
	return &ContainerHost{api: c.Inner(), container: containerName}
}

// Name satisfies host.Host.
func (h *ContainerHost) Name() string {
	return "docker://" + h.container
}

// Run satisfies host.Host. The exec's multiplexed stream is split back into
// stdout and stderr with stdcopy, then the exit code is read from the
// exec's inspect record.
func (h *ContainerHost) Run(ctx context.Context, command string) (*host.Result, error) {
	created, err := h.api.ContainerExecCreate(ctx, h.container, container.ExecOptions{
		Cmd:          []string{"sh", "-c", command},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec in %s: %w", h.Name(), err)
	}

	attached, err := h.api.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec in %s: %w", h.Name(), err)
	}
	defer attached.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attached.Reader); err != nil {
		return nil, fmt.Errorf("failed to read exec output from %s: %w", h.Name(), err)
	}

	inspect, err := h.api.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect exec in %s: %w", h.Name(), err)
	}

	return &host.Result{
		Command:  command,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
	}, nil
}
