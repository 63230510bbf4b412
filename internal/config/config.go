// Package config resolves what the conformance suite runs against.
//
// Every setting comes from an environment variable (the names CI jobs
// already export) and can be overridden by a CLI flag. Tunables that are
// not part of the CI contract live in an optional JSONC suite file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/astronomer/ap-airflow/internal/model"
	"github.com/astronomer/ap-airflow/internal/pyver"
	"github.com/astronomer/ap-airflow/internal/release"
)

// Environment variable names.
const (
	EnvAirflowVersion = "AIRFLOW_VERSION"
	EnvEdgeBuild      = "EDGE_BUILD"
	EnvImage          = "AIRFLOW_IMAGE"
	EnvOnbuildImage   = "AIRFLOW_ONBUILD_IMAGE"
	EnvNamespace      = "NAMESPACE"
	EnvWebserverPod   = "WEBSERVER_POD"
	EnvSchedulerPod   = "SCHEDULER_POD"
)

// Backend selects how the suite reaches the Airflow containers.
type Backend string

const (
	// BackendKube execs into pods through the Kubernetes API.
	BackendKube Backend = "kube"

	// BackendDocker execs into local containers through the Docker API.
	// WebserverPod and SchedulerPod are then container names.
	BackendDocker Backend = "docker"
)

// ParseBackend converts a flag value to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(s)); b {
	case BackendKube, BackendDocker:
		return b, nil
	default:
		return "", fmt.Errorf("invalid backend %q (valid: kube, docker)", s)
	}
}

// Default timings of the DAG run wait.
const (
	DefaultDAGTimeout      = 100 * time.Second
	DefaultDAGPollInterval = 5 * time.Second
)

// Config is the resolved run configuration.
type Config struct {
	// AirflowVersion is the upstream Airflow version the image must contain.
	AirflowVersion string

	// EdgeBuild is true for images built from upstream main.
	EdgeBuild bool

	// Image and OnbuildImage are the references of the two variants.
	Image        string
	OnbuildImage string

	Namespace    string
	WebserverPod string
	SchedulerPod string

	// WebserverContainer and SchedulerContainer name the containers inside
	// the pods.
	WebserverContainer string
	SchedulerContainer string

	Backend Backend

	DAGTimeout      time.Duration
	DAGPollInterval time.Duration

	// Maintainer is the expected maintainer label value.
	Maintainer string

	// Only and Skip filter the checks by name.
	Only []string
	Skip []string
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnv builds a Config from environment variables, filling in defaults
// for everything CI does not set.
func FromEnv(lookup LookupFunc) *Config {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	return &Config{
		AirflowVersion:     get(EnvAirflowVersion),
		EdgeBuild:          get(EnvEdgeBuild) == "true",
		Image:              get(EnvImage),
		OnbuildImage:       get(EnvOnbuildImage),
		Namespace:          get(EnvNamespace),
		WebserverPod:       get(EnvWebserverPod),
		SchedulerPod:       get(EnvSchedulerPod),
		WebserverContainer: "webserver",
		SchedulerContainer: "scheduler",
		Backend:            BackendKube,
		DAGTimeout:         DefaultDAGTimeout,
		DAGPollInterval:    DefaultDAGPollInterval,
		Maintainer:         "Astronomer <humans@astronomer.io>",
	}
}

// ImageName returns the reference of the requested variant. A missing
// value is a CLIError that tells the user which variable to set; a value
// that is not a valid image reference is rejected early.
func (c *Config) ImageName(t model.ImageType) (string, error) {
	envName, value := EnvImage, c.Image
	if t == model.ImageOnbuild {
		envName, value = EnvOnbuildImage, c.OnbuildImage
	}
	if value == "" {
		return "", model.NewCLIError(model.ExitMissingConfig,
			fmt.Sprintf("Please provide docker image name using environment variable %s", envName))
	}
	if _, err := name.ParseReference(value); err != nil {
		return "", model.WrapCLIError(model.ExitMissingConfig,
			fmt.Sprintf("%s is not a valid image reference", envName), err)
	}
	return value, nil
}

// IsAirflow2 reports whether the expected Airflow is 2.x or later, which
// switches the CLI syntax and several config expectations. Edge builds
// track main and are always 2.x or later.
func (c *Config) IsAirflow2() bool {
	if release.IsEdgeBuild(c.AirflowVersion) {
		return true
	}
	v, err := pyver.Parse(c.AirflowVersion)
	if err != nil {
		return strings.HasPrefix(c.AirflowVersion, "2")
	}
	return v.Major() >= 2
}

// RequirePods checks the settings that pod-backed checks cannot run
// without.
func (c *Config) RequirePods(needWebserver, needScheduler bool) error {
	var missing []string
	if c.Backend == BackendKube && c.Namespace == "" {
		missing = append(missing, EnvNamespace)
	}
	if needWebserver && c.WebserverPod == "" {
		missing = append(missing, EnvWebserverPod)
	}
	if needScheduler && c.SchedulerPod == "" {
		missing = append(missing, EnvSchedulerPod)
	}
	if len(missing) > 0 {
		return model.NewCLIError(model.ExitMissingConfig,
			"missing required environment variables: "+strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks settings every run needs.
func (c *Config) Validate() error {
	if c.AirflowVersion == "" {
		return model.NewCLIError(model.ExitMissingConfig,
			fmt.Sprintf("Please provide the expected Airflow version using environment variable %s", EnvAirflowVersion))
	}
	if c.DAGPollInterval <= 0 || c.DAGTimeout < c.DAGPollInterval {
		return model.NewCLIError(model.ExitMissingConfig,
			fmt.Sprintf("invalid DAG wait: timeout %s must be at least the poll interval %s", c.DAGTimeout, c.DAGPollInterval))
	}
	return nil
}
