package cli

import (
	"github.com/spf13/cobra"

	"github.com/astronomer/ap-airflow/internal/config"
	"github.com/astronomer/ap-airflow/internal/model"
)

// settingsFlags are the CLI overrides of the environment variables CI jobs
// export. A flag wins only when it is set explicitly, so an unset flag
// never masks the environment.
type settingsFlags struct {
	airflowVersion string
	edgeBuild      bool
	image          string
	onbuildImage   string
	namespace      string
	webserverPod   string
	schedulerPod   string

	// suiteFile is the path of the JSONC suite file.
	suiteFile string
}

// settingFlag maps one flag to its environment variable and Config field.
type settingFlag struct {
	name  string
	env   string
	usage string
	value *string
	apply func(c *config.Config, v string)
}

func (f *settingsFlags) stringFlags() []settingFlag {
	return []settingFlag{
		{"airflow-version", config.EnvAirflowVersion, "Expected Airflow version", &f.airflowVersion,
			func(c *config.Config, v string) { c.AirflowVersion = v }},
		{"image", config.EnvImage, "Base image reference", &f.image,
			func(c *config.Config, v string) { c.Image = v }},
		{"onbuild-image", config.EnvOnbuildImage, "Onbuild image reference", &f.onbuildImage,
			func(c *config.Config, v string) { c.OnbuildImage = v }},
		{"namespace", config.EnvNamespace, "Kubernetes namespace of the deployment", &f.namespace,
			func(c *config.Config, v string) { c.Namespace = v }},
		{"webserver-pod", config.EnvWebserverPod, "Webserver pod (or container with --backend docker)", &f.webserverPod,
			func(c *config.Config, v string) { c.WebserverPod = v }},
		{"scheduler-pod", config.EnvSchedulerPod, "Scheduler pod (or container with --backend docker)", &f.schedulerPod,
			func(c *config.Config, v string) { c.SchedulerPod = v }},
	}
}

// bind registers the flags on cmd.
func (f *settingsFlags) bind(cmd *cobra.Command) {
	for _, sf := range f.stringFlags() {
		cmd.Flags().StringVar(sf.value, sf.name, "", sf.usage+" (env "+sf.env+")")
	}
	cmd.Flags().BoolVar(&f.edgeBuild, "edge", false, "Image is an edge/main build (env "+config.EnvEdgeBuild+"=true)")
	cmd.Flags().StringVar(&f.suiteFile, "config", "",
		"JSONC suite file (default "+config.DefaultSuiteFile+" when present)")
}

// resolve builds the run configuration: environment first, then the suite
// file, then explicitly set flags.
func (f *settingsFlags) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.FromEnv(nil)

	path, optional := f.suiteFile, false
	if path == "" {
		path, optional = config.DefaultSuiteFile, true
	}
	suite, err := config.LoadSuiteFile(path, optional)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitMissingConfig, "invalid suite file", err)
	}
	if err := suite.Apply(cfg); err != nil {
		return nil, model.WrapCLIError(model.ExitMissingConfig, "invalid suite file", err)
	}
	log.WithField("path", path).Debug("Suite file applied")

	for _, sf := range f.stringFlags() {
		if cmd.Flags().Changed(sf.name) {
			sf.apply(cfg, *sf.value)
		}
	}
	if cmd.Flags().Changed("edge") {
		cfg.EdgeBuild = f.edgeBuild
	}
	return cfg, nil
}
