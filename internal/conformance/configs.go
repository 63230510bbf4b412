package conformance

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/astronomer/ap-airflow/internal/airflowcfg"
	"github.com/astronomer/ap-airflow/internal/config"
	"github.com/astronomer/ap-airflow/internal/docker"
	"github.com/astronomer/ap-airflow/internal/host"
	"github.com/astronomer/ap-airflow/internal/model"
	"github.com/astronomer/ap-airflow/internal/pyver"
)

// PythonLibDirCommand prints the directory of the Python standard library,
// whose parent holds site-packages.
const PythonLibDirCommand = `python -c "import os; print(os.path.dirname(os.__file__))"`

// expectedSetting is a config template value the platform relies on.
type expectedSetting struct {
	section, key, value string
	reason              string
}

var airflow2Settings = []expectedSetting{
	{"core", "lazy_load_plugins", "False",
		"[core] lazy_load_plugins needs to be False for astronomer-version-check plugin to work"},
	{"api", "auth_backend", "astronomer.flask_appbuilder.current_user_backend",
		"[api] auth_backend(s) needs to be set to 'astronomer.flask_appbuilder.current_user_backend' for Platform"},
	{"celery", "operation_timeout", "10.0",
		"[celery] operation_timeout needs to be set for AC >= 2.0.0"},
}

var updateFabPerms = expectedSetting{"webserver", "update_fab_perms", "False",
	"[webserver] update_fab_perms needs to be False for AC >= 1.10.10"}

var airflowConfigs = Check{
	Name:        "airflow-configs",
	Description: "default_airflow.cfg carries the platform settings",
	Targets:     targets(model.TargetDocker, model.TargetScheduler),
	Run:         runAirflowConfigs,
}

func runAirflowConfigs(ctx context.Context, env *Env) error {
	cfg := env.Config
	labels, err := imageLabels(ctx, env, model.ImageBase)
	if err != nil {
		return err
	}
	distro, err := docker.LookupLabel(labels, docker.LabelDistro)
	if err != nil {
		return err
	}

	libDir, err := host.CheckOutput(ctx, env.Scheduler, PythonLibDirCommand)
	if err != nil {
		return err
	}
	path := strings.TrimSpace(libDir) + "/" + airflowcfg.RelativePath

	ok, err := host.FileExists(ctx, env.Scheduler, path)
	if err != nil {
		return err
	}
	if !ok {
		return model.Assertf("%s does not exist !", airflowcfg.RelativePath)
	}
	content, err := host.FileContent(ctx, env.Scheduler, path)
	if err != nil {
		return err
	}
	tmpl, err := airflowcfg.Parse(content)
	if err != nil {
		return err
	}

	if cfg.IsAirflow2() {
		for _, s := range airflow2Settings {
			if err := expectSetting(tmpl, s); err != nil {
				return err
			}
		}
	} else {
		want := model.Distro(distro).RunAsUser()
		got, _ := tmpl.Lookup("core", "run_as_user")
		if strings.TrimSpace(got) != want {
			return model.Assertf("run_as_user should be '%s' for the %s distro, got '%s'", want, distro, got)
		}
	}

	// Unparsable versions (edge builds report "main") sort below every
	// release, so the check does not apply to them.
	if newer, err := pyver.AtLeast(cfg.AirflowVersion, "1.10.7"); err == nil && newer {
		return expectSetting(tmpl, updateFabPerms)
	}
	return nil
}

func expectSetting(tmpl *airflowcfg.Config, s expectedSetting) error {
	got, _ := tmpl.Lookup(s.section, s.key)
	if got != s.value {
		return model.Assertf("%s (got '%s')", s.reason, got)
	}
	return nil
}

// RestrictedRequirementMessage is what the onbuild trigger prints when a
// project tries to pin apache-airflow.
const RestrictedRequirementMessage = "Do not upgrade by specifying 'apache-airflow' in your requirements.txt"

var restrictedRequirementPatterns = []string{
	"apache-airflow==1.10.10",
	"apache-airflow>=1.10.5",
	"apache-airflow~=1.10.7",
	"apache-airflow == 1.10.10",
}

const buildTag = "testimage"

var restrictedRequirements = Check{
	Name:        "restricted-requirements",
	Description: "onbuild rejects apache-airflow in requirements.txt but accepts provider packages",
	Targets:     targets(model.TargetDocker),
	Run:         runRestrictedRequirements,
}

func runRestrictedRequirements(ctx context.Context, env *Env) error {
	onbuild, err := env.Config.ImageName(model.ImageOnbuild)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp(env.tempDir(), "ac-conformance-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	project := filepath.Join(dir, "test_project")
	if err := os.Mkdir(project, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(project, "Dockerfile"), []byte("FROM "+onbuild), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(project, "packages.txt"), nil, 0o644); err != nil {
		return err
	}

	build := func(requirement string) (*docker.BuildResult, error) {
		if err := os.WriteFile(filepath.Join(project, "requirements.txt"), []byte(requirement), 0o644); err != nil {
			return nil, err
		}
		env.logger().WithField("requirement", requirement).Debug("Building onbuild test project")
		return env.builder().Build(ctx, project, buildTag)
	}

	for _, requirement := range restrictedRequirementPatterns {
		res, err := build(requirement)
		if err != nil {
			return err
		}
		if res.ExitCode != 1 {
			return model.Assertf("build with requirement '%s' exited %d, expected 1", requirement, res.ExitCode)
		}
		if !strings.Contains(res.Stderr, RestrictedRequirementMessage) {
			return model.Assertf("build with requirement '%s' did not print %q", requirement, RestrictedRequirementMessage)
		}
	}

	provider := providerRequirement(env.Config)
	res, err := build(provider)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return model.Assertf("build with requirement '%s' failed: %s", provider, lastLine(res.Stderr))
	}
	return nil
}

// providerRequirement is a package whose name starts with apache-airflow
// but which users must still be able to install.
func providerRequirement(cfg *config.Config) string {
	if cfg.IsAirflow2() {
		return "apache-airflow-providers-amazon"
	}
	return "apache-airflow-backport-providers-amazon"
}
