// Package host runs shell commands inside the containers under test.
//
// A Host is anything that can execute "sh -c <command>" somewhere and hand
// back stdout, stderr and the exit status: a Kubernetes pod container
// (internal/kube) or a local Docker container (internal/docker). The
// helpers in this package (CheckOutput, Exists, FileContent, PipPackages)
// are written once against that interface.
package host

import (
	"context"
	"fmt"
	"strings"

	"github.com/alessio/shellescape"
)

// Result holds the output and exit status of one command.
type Result struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
}

// Succeeded reports whether the command exited with status 0.
func (r *Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Host executes shell commands in one container.
//
// Run returns an error only when the command could not be executed at all
// (API unreachable, container gone). A command that ran and exited
// non-zero is reported through Result.ExitCode with a nil error.
type Host interface {
	// Name identifies the host in logs and error messages
	// (e.g., "kube://airflow/scheduler-0/scheduler").
	Name() string

	// Run executes command with "sh -c".
	Run(ctx context.Context, command string) (*Result, error)
}

// CommandError is returned by CheckOutput when a command exits non-zero.
type CommandError struct {
	Host   string
	Result *Result
}

// Error satisfies the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q on %s exited with status %d", e.Result.Command, e.Host, e.Result.ExitCode)
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Command formats a shell command, quoting each argument so it reaches the
// program as a single word. The format string itself is not quoted.
//
//	Command("airflow connections delete %s", "my conn") → "airflow connections delete 'my conn'"
func Command(format string, args ...string) string {
	quoted := make([]interface{}, len(args))
	for i, a := range args {
		quoted[i] = shellescape.Quote(a)
	}
	return fmt.Sprintf(format, quoted...)
}

// CheckOutput runs command and returns its stdout with trailing newlines
// removed. A non-zero exit status is a *CommandError.
func CheckOutput(ctx context.Context, h Host, command string) (string, error) {
	res, err := h.Run(ctx, command)
	if err != nil {
		return "", fmt.Errorf("failed to run %q on %s: %w", command, h.Name(), err)
	}
	if !res.Succeeded() {
		return "", &CommandError{Host: h.Name(), Result: res}
	}
	return strings.TrimRight(res.Stdout, "\r\n"), nil
}

// Exists reports whether binary resolves on the host's PATH.
func Exists(ctx context.Context, h Host, binary string) (bool, error) {
	return succeeds(ctx, h, Command("command -v %s", binary))
}

// FileExists reports whether path exists on the host.
func FileExists(ctx context.Context, h Host, path string) (bool, error) {
	return succeeds(ctx, h, Command("test -e %s", path))
}

// FileContent returns the content of path on the host.
func FileContent(ctx context.Context, h Host, path string) (string, error) {
	res, err := h.Run(ctx, Command("cat -- %s", path))
	if err != nil {
		return "", fmt.Errorf("failed to read %s on %s: %w", path, h.Name(), err)
	}
	if !res.Succeeded() {
		return "", &CommandError{Host: h.Name(), Result: res}
	}
	return res.Stdout, nil
}

func succeeds(ctx context.Context, h Host, command string) (bool, error) {
	res, err := h.Run(ctx, command)
	if err != nil {
		return false, fmt.Errorf("failed to run %q on %s: %w", command, h.Name(), err)
	}
	return res.Succeeded(), nil
}
