// Package model defines the domain types for the ac-conformance CLI.
//
// Key design decision: nothing here is persisted. Image metadata comes from
// Docker labels, package versions from pip inside the running containers,
// and every check outcome lives only for the duration of a run.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ImageType identifies which of the two published image variants a check
// is looking at.
type ImageType string

const (
	// ImageBase is the plain Astronomer Certified runtime image.
	ImageBase ImageType = "base"

	// ImageOnbuild is the variant whose ONBUILD triggers bake in a user's
	// DAGs, packages.txt and requirements.txt.
	ImageOnbuild ImageType = "onbuild"
)

// String returns the string representation of ImageType.
func (t ImageType) String() string {
	return string(t)
}

// IsValid checks whether the ImageType is one of the published variants.
func (t ImageType) IsValid() bool {
	return t == ImageBase || t == ImageOnbuild
}

// ParseImageType converts a string to an ImageType.
func ParseImageType(s string) (ImageType, error) {
	t := ImageType(strings.ToLower(s))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid image type: %q (valid: base, onbuild)", s)
	}
	return t, nil
}

// Distro is the base distribution an image was built on, as recorded in
// the io.astronomer.docker.distro label.
type Distro string

const (
	DistroDebian Distro = "debian"
	DistroAlpine Distro = "alpine"
	DistroRHEL   Distro = "rhel"
)

// RunAsUser returns the UID the astro user has on this distribution.
// The Airflow 1.x config template pins run_as_user to it so tasks never
// run as root. Unknown distributions yield an empty string.
func (d Distro) RunAsUser() string {
	switch d {
	case DistroDebian:
		return "50000"
	case DistroAlpine, DistroRHEL:
		return "100"
	default:
		return ""
	}
}

// Target names the place a check needs to reach.
type Target string

const (
	// TargetWebserver is the webserver container of the Airflow deployment.
	TargetWebserver Target = "webserver"

	// TargetScheduler is the scheduler container of the Airflow deployment.
	TargetScheduler Target = "scheduler"

	// TargetDocker is the local Docker daemon holding the images under test.
	TargetDocker Target = "docker"
)

// String returns the string representation of Target.
func (t Target) String() string {
	return string(t)
}

// CheckStatus is the outcome of a single conformance check.
type CheckStatus string

const (
	StatusPassed  CheckStatus = "passed"
	StatusFailed  CheckStatus = "failed"
	StatusSkipped CheckStatus = "skipped"
)

// String returns the string representation of CheckStatus.
func (s CheckStatus) String() string {
	return string(s)
}

// CheckResult records what happened when one check ran.
type CheckResult struct {
	// Name is the check's stable identifier (e.g., "redis-version").
	Name string `json:"name"`

	// Status is passed, failed or skipped.
	Status CheckStatus `json:"status"`

	// Message is the failure text or skip reason. Empty on success.
	Message string `json:"message,omitempty"`

	// Duration is the wall time the check took.
	Duration time.Duration `json:"duration"`
}

// Report is the aggregate of one suite run.
type Report struct {
	// AirflowVersion is the version the run was configured to expect.
	AirflowVersion string `json:"airflowVersion"`

	// EdgeBuild is true when the image under test tracks upstream main.
	EdgeBuild bool `json:"edgeBuild"`

	// Results holds one entry per selected check, in execution order.
	Results []CheckResult `json:"results"`

	// StartedAt is when the first check began.
	StartedAt time.Time `json:"startedAt"`
}

// Count returns how many results have the given status.
func (r *Report) Count(status CheckStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Failed reports whether any check failed.
func (r *Report) Failed() bool {
	return r.Count(StatusFailed) > 0
}

// AssertionError is returned by a check whose expectation about the image
// did not hold. It is distinct from infrastructure errors (a pod that
// cannot be reached, a Docker daemon that is down) so that reports can
// tell "the image is wrong" apart from "the check could not run".
type AssertionError struct {
	Message string
}

// Error satisfies the error interface.
func (e *AssertionError) Error() string {
	return e.Message
}

// Assertf builds an AssertionError with a formatted message.
func Assertf(format string, args ...interface{}) *AssertionError {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// ExitCode defines standard CLI exit codes. These codes allow CI systems
// to programmatically determine the outcome of a run.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitMissingConfig indicates a required environment variable or flag
	// (image name, namespace, pod name) was not provided.
	ExitMissingConfig ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitClusterUnreachable indicates the Kubernetes API could not be
	// reached or the kubeconfig could not be loaded.
	ExitClusterUnreachable ExitCode = 4

	// ExitChecksFailed indicates the suite ran and at least one check failed.
	ExitChecksFailed ExitCode = 5
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
