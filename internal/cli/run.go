// Package cli: run.go implements the "ac-conformance run" command.
//
// The run command resolves the configuration, connects to whatever the
// selected checks need (the Docker daemon for image labels, the Kubernetes
// API or local containers for the webserver and scheduler), runs the checks
// in order and prints a report. Any failed check turns into exit code 5.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/astronomer/ap-airflow/internal/config"
	"github.com/astronomer/ap-airflow/internal/conformance"
	"github.com/astronomer/ap-airflow/internal/docker"
	"github.com/astronomer/ap-airflow/internal/kube"
	"github.com/astronomer/ap-airflow/internal/model"
)

// runFlags holds the flag values for the run command.
type runFlags struct {
	settings settingsFlags

	only    []string
	skip    []string
	backend string

	webserverContainer string
	schedulerContainer string

	dagTimeout      time.Duration
	dagPollInterval time.Duration
}

// NewRunCommand creates the "run" cobra command.
func NewRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the conformance checks",
		Long: `Run the conformance checks against an image and a running deployment.

Image labels are read from the local Docker daemon. Commands run inside the
webserver and scheduler containers, reached through the Kubernetes API
(--backend kube, the default) or the local Docker daemon (--backend docker).

Examples:
  ac-conformance run
  ac-conformance run --only maintainer,version
  ac-conformance run --skip trigger-dag --json
  ac-conformance run --backend docker --webserver-pod airflow-webserver-1 --scheduler-pod airflow-scheduler-1`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), cmd, flags)
		},
	}

	flags.settings.bind(cmd)
	cmd.Flags().StringSliceVar(&flags.only, "only", nil, "Run only these checks (comma-separated)")
	cmd.Flags().StringSliceVar(&flags.skip, "skip", nil, "Skip these checks (comma-separated)")
	cmd.Flags().StringVar(&flags.backend, "backend", string(config.BackendKube), "How to reach the containers: kube or docker")
	cmd.Flags().StringVar(&flags.webserverContainer, "webserver-container", "webserver", "Webserver container name inside the pod")
	cmd.Flags().StringVar(&flags.schedulerContainer, "scheduler-container", "scheduler", "Scheduler container name inside the pod")
	cmd.Flags().DurationVar(&flags.dagTimeout, "dag-timeout", config.DefaultDAGTimeout, "How long to wait for the test DAG run")
	cmd.Flags().DurationVar(&flags.dagPollInterval, "dag-poll-interval", config.DefaultDAGPollInterval, "How often to poll the test DAG run state")

	return cmd
}

// resolveRunConfig layers the run-specific flags over the shared settings.
func resolveRunConfig(cmd *cobra.Command, flags *runFlags) (*config.Config, error) {
	cfg, err := flags.settings.resolve(cmd)
	if err != nil {
		return nil, err
	}

	backend, err := config.ParseBackend(flags.backend)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid --backend", err)
	}
	cfg.Backend = backend
	cfg.WebserverContainer = flags.webserverContainer
	cfg.SchedulerContainer = flags.schedulerContainer

	changed := cmd.Flags().Changed
	if changed("only") {
		cfg.Only = flags.only
	}
	if changed("skip") {
		cfg.Skip = flags.skip
	}
	if changed("dag-timeout") {
		cfg.DAGTimeout = flags.dagTimeout
	}
	if changed("dag-poll-interval") {
		cfg.DAGPollInterval = flags.dagPollInterval
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runRun is the main logic function for the run command.
func runRun(ctx context.Context, cmd *cobra.Command, flags *runFlags) error {
	// Step 1: Resolve environment, suite file and flags.
	cfg, err := resolveRunConfig(cmd, flags)
	if err != nil {
		return err
	}

	// Step 2: Pick the checks to run.
	checks, err := conformance.Select(conformance.All(), cfg.Only, cfg.Skip)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"airflowVersion": cfg.AirflowVersion,
		"edge":           cfg.EdgeBuild,
		"checks":         len(checks),
	}).Info("Starting conformance run")

	// Step 3: Connect only to what the applicable checks need.
	env, cleanup, err := connect(ctx, cfg, applicable(checks, cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	// Step 4: Run and report.
	report := conformance.NewRunner(env).Run(ctx, checks)
	if IsJSONOutput() {
		if err := printJSON(cmd, report); err != nil {
			return err
		}
	} else {
		printReportText(cmd.OutOrStdout(), report)
	}

	if report.Failed() {
		return model.NewCLIError(model.ExitChecksFailed,
			fmt.Sprintf("%d of %d checks failed", report.Count(model.StatusFailed), len(report.Results)))
	}
	return nil
}

// applicable drops checks whose skip rule fires for cfg, so their targets
// are not connected to.
func applicable(checks []conformance.Check, cfg *config.Config) []conformance.Check {
	out := make([]conformance.Check, 0, len(checks))
	for _, c := range checks {
		if c.Skip != nil && c.Skip(cfg) != "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// connect builds the check environment. The returned cleanup closes every
// client that was opened and is safe to call when err is non-nil.
func connect(ctx context.Context, cfg *config.Config, checks []conformance.Check) (*conformance.Env, func(), error) {
	env := &conformance.Env{Config: cfg, Log: log}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	needs := conformance.Needs(checks)
	needPods := needs[model.TargetWebserver] || needs[model.TargetScheduler]

	var dockerClient *docker.Client
	if needs[model.TargetDocker] || (needPods && cfg.Backend == config.BackendDocker) {
		c, err := docker.NewClient()
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = c.Close() })
		if err := c.Ping(ctx); err != nil {
			return nil, cleanup, err
		}
		log.Debug("Connected to Docker daemon")
		dockerClient = c
		env.Images = c.Inner()
	}

	if !needPods {
		return env, cleanup, nil
	}
	if err := cfg.RequirePods(needs[model.TargetWebserver], needs[model.TargetScheduler]); err != nil {
		return nil, cleanup, err
	}

	switch cfg.Backend {
	case config.BackendDocker:
		if cfg.WebserverPod != "" {
			env.Webserver = docker.NewContainerHost(dockerClient, cfg.WebserverPod)
		}
		if cfg.SchedulerPod != "" {
			env.Scheduler = docker.NewContainerHost(dockerClient, cfg.SchedulerPod)
		}
	default:
		kc, err := kube.NewClient()
		if err != nil {
			return nil, cleanup, err
		}
		if err := kc.Ping(ctx); err != nil {
			return nil, cleanup, err
		}
		log.WithField("namespace", cfg.Namespace).Debug("Connected to Kubernetes API")
		if cfg.WebserverPod != "" {
			env.Webserver = kube.NewPodHost(kc, cfg.Namespace, cfg.WebserverPod, cfg.WebserverContainer)
		}
		if cfg.SchedulerPod != "" {
			env.Scheduler = kube.NewPodHost(kc, cfg.Namespace, cfg.SchedulerPod, cfg.SchedulerContainer)
			env.SchedulerLogs = &kube.LogSource{
				Clientset: kc.Clientset(),
				Namespace: cfg.Namespace,
				Pod:       cfg.SchedulerPod,
				Container: cfg.SchedulerContainer,
				Lines:     kube.DefaultTailLines,
			}
		}
	}
	return env, cleanup, nil
}

// printReportText outputs the report as a human-readable table followed by
// a one-line summary.
//
//	CHECK                    STATUS   DURATION  MESSAGE
//	maintainer               passed   12ms
//	werkzeug-version         skipped  0s        Not needed for Airflow>=2
//
//	18 passed, 0 failed, 2 skipped
func printReportText(w io.Writer, report *model.Report) {
	fmt.Fprintf(w, "%-24s %-8s %-9s %s\n", "CHECK", "STATUS", "DURATION", "MESSAGE")
	for _, res := range report.Results {
		fmt.Fprintf(w, "%-24s %-8s %-9s %s\n",
			res.Name, res.Status, FormatDuration(res.Duration), firstLine(res.Message))
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d skipped\n",
		report.Count(model.StatusPassed),
		report.Count(model.StatusFailed),
		report.Count(model.StatusSkipped))
}

// FormatDuration rounds d for the report table: milliseconds below a
// second, tenths of a second above.
//
//	1234567 * time.Nanosecond → "1ms"
//	83450 * time.Millisecond  → "1m23.5s"
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
