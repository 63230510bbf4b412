// Package hosttest provides an in-memory host.Host for tests.
package hosttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/astronomer/ap-airflow/internal/host"
)

// Fake answers commands from a table of canned results. Commands that are
// not in the table exit 127 with "command not found" on stderr, the way a
// shell would.
type Fake struct {
	// HostName is returned by Name. Defaults to "fake".
	HostName string

	// Responses maps an exact command string to its result.
	Responses map[string]host.Result

	// Handler, when set, is consulted before Responses. Returning ok=false
	// falls through to the table.
	Handler func(command string) (host.Result, bool)

	// Err, when set, is returned by every Run call.
	Err error

	mu    sync.Mutex
	calls []string
}

// New returns a Fake with an empty response table.
func New(name string) *Fake {
	return &Fake{HostName: name, Responses: make(map[string]host.Result)}
}

// On registers stdout for command with exit status 0.
func (f *Fake) On(command, stdout string) *Fake {
	f.Responses[command] = host.Result{Stdout: stdout}
	return f
}

// OnExit registers a result with an explicit exit status and stderr.
func (f *Fake) OnExit(command string, exitCode int, stdout, stderr string) *Fake {
	f.Responses[command] = host.Result{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}
	return f
}

// Name satisfies host.Host.
func (f *Fake) Name() string {
	if f.HostName == "" {
		return "fake"
	}
	return f.HostName
}

// Run satisfies host.Host.
func (f *Fake) Run(_ context.Context, command string) (*host.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if f.Handler != nil {
		if res, ok := f.Handler(command); ok {
			res.Command = command
			return &res, nil
		}
	}
	if res, ok := f.Responses[command]; ok {
		res.Command = command
		return &res, nil
	}
	return &host.Result{
		Command:  command,
		Stderr:   fmt.Sprintf("sh: %s: command not found", command),
		ExitCode: 127,
	}, nil
}

// Calls returns every command Run received, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}
