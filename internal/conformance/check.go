// Package conformance holds the image conformance checks and the runner
// that executes them.
//
// A Check asserts one property of an Astronomer Certified image: a label,
// an installed package version, a config template value, or a piece of
// Airflow CLI behaviour inside the running deployment. Checks reach the
// deployment only through an Env, so every check can be exercised against
// fake hosts and a fake Docker API.
package conformance

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/astronomer/ap-airflow/internal/config"
	"github.com/astronomer/ap-airflow/internal/docker"
	"github.com/astronomer/ap-airflow/internal/host"
	"github.com/astronomer/ap-airflow/internal/model"
)

// Builder builds a Docker context directory.
type Builder interface {
	Build(ctx context.Context, contextDir, tag string) (*docker.BuildResult, error)
}

// BuildFunc adapts a function to Builder.
type BuildFunc func(ctx context.Context, contextDir, tag string) (*docker.BuildResult, error)

// Build satisfies Builder.
func (f BuildFunc) Build(ctx context.Context, contextDir, tag string) (*docker.BuildResult, error) {
	return f(ctx, contextDir, tag)
}

// LogTailer returns recent scheduler log output for failure diagnostics.
// *kube.LogSource satisfies it.
type LogTailer interface {
	Tail(ctx context.Context) (string, error)
}

// Env is what checks run against. Fields for targets a selection does not
// need may be nil.
type Env struct {
	Config *config.Config

	Webserver host.Host
	Scheduler host.Host

	// Images answers label lookups for the images under test.
	Images docker.ImageInspector

	// Builder runs docker builds for the onbuild checks. Defaults to the
	// docker CLI.
	Builder Builder

	// SchedulerLogs is consulted when a DAG run fails or times out.
	SchedulerLogs LogTailer

	// TempDir is where build contexts are created. Defaults to os.TempDir.
	TempDir string

	Log logrus.FieldLogger
}

func (e *Env) logger() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

func (e *Env) builder() Builder {
	if e.Builder == nil {
		return BuildFunc(docker.Build)
	}
	return e.Builder
}

func (e *Env) tempDir() string {
	if e.TempDir == "" {
		return os.TempDir()
	}
	return e.TempDir
}

// hasTarget reports whether env can reach t.
func (e *Env) hasTarget(t model.Target) bool {
	switch t {
	case model.TargetWebserver:
		return e.Webserver != nil
	case model.TargetScheduler:
		return e.Scheduler != nil
	case model.TargetDocker:
		return e.Images != nil
	default:
		return false
	}
}

// Check is one conformance assertion.
type Check struct {
	// Name is the stable identifier used by --only and --skip.
	Name string

	Description string

	// Targets lists what the check needs to reach.
	Targets []model.Target

	// Skip returns a non-empty reason when the check does not apply to
	// the configured image.
	Skip func(cfg *config.Config) string

	Run func(ctx context.Context, env *Env) error
}

// Needs reports which targets a selection of checks requires.
func Needs(checks []Check) map[model.Target]bool {
	needs := make(map[model.Target]bool)
	for _, c := range checks {
		for _, t := range c.Targets {
			needs[t] = true
		}
	}
	return needs
}

// Select filters checks by name. A non-empty only keeps just the named
// checks; skip then removes names. Unknown names are an error.
func Select(checks []Check, only, skip []string) ([]Check, error) {
	known := make(map[string]bool, len(checks))
	for _, c := range checks {
		known[c.Name] = true
	}

	var unknown []string
	toSet := func(names []string) map[string]bool {
		set := make(map[string]bool, len(names))
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			if !known[n] {
				unknown = append(unknown, n)
			}
			set[n] = true
		}
		return set
	}
	onlySet := toSet(only)
	skipSet := toSet(skip)
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("unknown check(s): %s (run 'ac-conformance checks' for the list)", strings.Join(unknown, ", ")))
	}

	var selected []Check
	for _, c := range checks {
		if len(onlySet) > 0 && !onlySet[c.Name] {
			continue
		}
		if skipSet[c.Name] {
			continue
		}
		selected = append(selected, c)
	}
	return selected, nil
}

// All returns every check in execution order. Cheap label and PATH checks
// come first, then package inspection, then the checks that change state
// in the deployment.
func All() []Check {
	return []Check{
		airflowInPath,
		tiniInPath,
		entrypoint,
		maintainer,
		version,
		elasticsearchVersion,
		werkzeugVersion,
		redisVersion,
		versionCheckPlugin,
		connections,
		variables,
		listDAGs,
		triggerDAG,
		airflowConfigs,
		onbuildLabels,
		edgeLabels,
		restrictedRequirements,
		airflowInConstraints,
		istioProvider,
		istioExecutor,
	}
}

func targets(t ...model.Target) []model.Target { return t }

func expectContains(out, want, format string, args ...interface{}) error {
	if !strings.Contains(out, want) {
		return model.Assertf(format, args...)
	}
	return nil
}
