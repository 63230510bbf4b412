// Package docker provides a wrapper around the Docker Engine SDK client
// for inspecting the Astronomer Certified images under test.
//
// The package abstracts Docker API interactions behind small interfaces
// (ImageInspector, execAPI) so label lookups and container exec can be
// exercised against fakes, and adds automatic Docker socket detection.
package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/astronomer/ap-airflow/internal/model"
)

// defaultPingTimeout bounds the daemon health probe. Docker Desktop on
// macOS can take a few seconds to answer the first request.
const defaultPingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client.
//
//	c, err := docker.NewClient()
//	if err != nil { /* handle */ }
//	defer c.Close()
//	labels, err := docker.Labels(ctx, c.Inner(), "quay.io/astronomer/ap-airflow:2.2.4")
type Client struct {
	inner *client.Client
}

// NewClient creates a Docker client. DOCKER_HOST is honoured when set;
// otherwise the platform's usual socket locations are probed.
//
// Returns a model.CLIError with ExitDockerNotRunning if no socket is found
// or the client cannot be created.
func NewClient() (*Client, error) {
	host := os.Getenv("DOCKER_HOST")
	if host == "" {
		detected, err := detectDockerHost()
		if err != nil {
			return nil, model.WrapCLIError(model.ExitDockerNotRunning, "Docker socket not found", err)
		}
		host = detected
	}

	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}
	return &Client{inner: c}, nil
}

// detectDockerHost returns the Docker host URI for the first socket that
// exists on this platform.
func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return firstUnixSocket("/var/run/docker.sock")

	case "darwin":
		candidates := []string{"/var/run/docker.sock"}
		if home, err := os.UserHomeDir(); err == nil {
			// Newer Docker Desktop releases stop creating the /var/run symlink.
			candidates = append(candidates, filepath.Join(home, ".docker", "run", "docker.sock"))
		}
		return firstUnixSocket(candidates...)

	case "windows":
		// os.Stat does not work on named pipes, so probe with a dial.
		const pipePath = `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, time.Second)
		if err != nil {
			return "", fmt.Errorf("Docker named pipe not found at %s: %w", pipePath, err)
		}
		_ = conn.Close()
		return "npipe://" + pipePath, nil

	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func firstUnixSocket(paths ...string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v (is Docker running?)", paths)
}

// Ping verifies that the Docker daemon is reachable and responsive.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			"Docker daemon is not responding (is Docker running?)",
			err,
		)
	}
	return nil
}

// Close releases the underlying HTTP transport. Safe to call more than once.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Inner returns the underlying Docker SDK client. It satisfies
// ImageInspector and the exec API used by ContainerHost.
func (c *Client) Inner() *client.Client {
	return c.inner
}
