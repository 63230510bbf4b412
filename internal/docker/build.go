package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// BuildResult is the outcome of a docker build.
type BuildResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Build runs "docker build -t <tag> <contextDir>" with the docker CLI.
//
// A build that runs and fails is reported through BuildResult.ExitCode
// with a nil error; err is reserved for failing to start docker at all.
func Build(ctx context.Context, contextDir, tag string) (*BuildResult, error) {
	cmd := exec.CommandContext(ctx, "docker", "build", "-t", tag, contextDir)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &BuildResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("failed to run docker build in %s: %w", contextDir, err)
	}
	return result, nil
}
