package conformance

import (
	"context"
	"strings"

	"github.com/astronomer/ap-airflow/internal/config"
	"github.com/astronomer/ap-airflow/internal/docker"
	"github.com/astronomer/ap-airflow/internal/host"
	"github.com/astronomer/ap-airflow/internal/model"
	"github.com/astronomer/ap-airflow/internal/pyver"
	"github.com/astronomer/ap-airflow/internal/release"
)

// PipShowVersionCommand prints the installed apache-airflow version,
// including the +astro local label pip list would also show.
const PipShowVersionCommand = "pip show apache-airflow | grep Version | sed -e 's|Version: ||'"

// minPipVersion is the oldest pip that resolves Airflow 2 constraints.
const minPipVersion = "21.2.3"

var airflowInPath = Check{
	Name:        "airflow-in-path",
	Description: "airflow is on the webserver PATH",
	Targets:     targets(model.TargetWebserver),
	Run: func(ctx context.Context, env *Env) error {
		return expectBinary(ctx, env.Webserver, "airflow")
	},
}

var tiniInPath = Check{
	Name:        "tini-in-path",
	Description: "tini is on the webserver PATH",
	Targets:     targets(model.TargetWebserver),
	Run: func(ctx context.Context, env *Env) error {
		return expectBinary(ctx, env.Webserver, "tini")
	},
}

var entrypoint = Check{
	Name:        "entrypoint",
	Description: "/entrypoint exists",
	Targets:     targets(model.TargetWebserver),
	Run: func(ctx context.Context, env *Env) error {
		ok, err := host.FileExists(ctx, env.Webserver, "/entrypoint")
		if err != nil {
			return err
		}
		if !ok {
			return model.Assertf("Expected to find /entrypoint")
		}
		return nil
	},
}

func expectBinary(ctx context.Context, h host.Host, binary string) error {
	ok, err := host.Exists(ctx, h, binary)
	if err != nil {
		return err
	}
	if !ok {
		return model.Assertf("Expected '%s' to be in PATH", binary)
	}
	return nil
}

var maintainer = Check{
	Name:        "maintainer",
	Description: "maintainer label names Astronomer",
	Targets:     targets(model.TargetDocker),
	Run: func(ctx context.Context, env *Env) error {
		labels, err := imageLabels(ctx, env, model.ImageBase)
		if err != nil {
			return err
		}
		return expectMaintainer(labels, env.Config.Maintainer)
	},
}

func expectMaintainer(labels map[string]string, want string) error {
	got, err := docker.LookupLabel(labels, docker.LabelMaintainer)
	if err != nil {
		return err
	}
	if got != want {
		return model.Assertf("'maintainer' label should be '%s', got '%s'", want, got)
	}
	return nil
}

var version = Check{
	Name:        "version",
	Description: "image labels, airflow version and pip metadata agree on the release",
	Targets:     targets(model.TargetDocker, model.TargetWebserver),
	Skip: func(cfg *config.Config) string {
		if cfg.EdgeBuild {
			return "Not needed for Edge/main builds"
		}
		return ""
	},
	Run: runVersion,
}

func runVersion(ctx context.Context, env *Env) error {
	cfg := env.Config
	labels, err := imageLabels(ctx, env, model.ImageBase)
	if err != nil {
		return err
	}

	airflowVer, err := docker.LookupLabel(labels, docker.LabelAirflowVersion)
	if err != nil {
		return err
	}
	if airflowVer != cfg.AirflowVersion {
		return model.Assertf("label %s is '%s', expected '%s'", docker.LabelAirflowVersion, airflowVer, cfg.AirflowVersion)
	}

	out, err := host.CheckOutput(ctx, env.Webserver, "airflow version")
	if err != nil {
		return err
	}
	if err := expectContains(out, airflowVer, "'airflow version' printed '%s', expected it to contain '%s'", out, airflowVer); err != nil {
		return err
	}

	acVersion, err := docker.LookupLabel(labels, docker.LabelACVersion)
	if err != nil {
		return err
	}
	if err := expectContains(acVersion, airflowVer, "label %s is '%s', expected it to contain '%s'", docker.LabelACVersion, acVersion, airflowVer); err != nil {
		return err
	}

	pipVersion, err := host.CheckOutput(ctx, env.Webserver, PipShowVersionCommand)
	if err != nil {
		return err
	}
	if pipVersion == "" {
		return model.Assertf("pip show apache-airflow printed no version")
	}
	if !strings.Contains(pipVersion, "+astro.") {
		return model.Assertf("installed apache-airflow %s has no +astro. local version", pipVersion)
	}
	if release.PostRelease(acVersion) != release.AstroLocal(pipVersion) {
		return model.Assertf("Incorrect post-fix version in %s", pipVersion)
	}

	if !cfg.IsAirflow2() {
		return nil
	}
	pkgs, err := host.PipPackages(ctx, env.Webserver)
	if err != nil {
		return err
	}
	pip, err := requirePackage(pkgs, "pip")
	if err != nil {
		return err
	}
	return expectVersion(pyver.AtLeast, pip.Version, minPipVersion,
		"pip must be %s or greater, got %s", minPipVersion, pip.Version)
}

var onbuildLabels = Check{
	Name:        "onbuild-labels",
	Description: "onbuild image carries the onbuild and maintainer labels",
	Targets:     targets(model.TargetDocker),
	Run: func(ctx context.Context, env *Env) error {
		labels, err := imageLabels(ctx, env, model.ImageOnbuild)
		if err != nil {
			return err
		}
		onbuild, err := docker.LookupLabel(labels, docker.LabelOnbuild)
		if err != nil {
			return err
		}
		if onbuild != "true" {
			return model.Assertf("label %s should be 'true', got '%s'", docker.LabelOnbuild, onbuild)
		}
		return expectMaintainer(labels, env.Config.Maintainer)
	},
}

var edgeLabels = Check{
	Name:        "edge-labels",
	Description: "edge builds carry non-empty build provenance labels",
	Targets:     targets(model.TargetDocker),
	Skip: func(cfg *config.Config) string {
		if !cfg.EdgeBuild {
			return "Not needed for non-Edge/main builds"
		}
		return ""
	},
	Run: func(ctx context.Context, env *Env) error {
		labels, err := imageLabels(ctx, env, model.ImageBase)
		if err != nil {
			return err
		}
		return expectEdgeLabels(labels)
	},
}

func expectEdgeLabels(labels map[string]string) error {
	for _, key := range docker.EdgeProvenanceLabels {
		value, ok := labels[key]
		if !ok {
			return model.Assertf("'%s' should be in image labels for edge build (image labels: %s)",
				key, strings.Join(docker.SortedKeys(labels), ","))
		}
		if value == "" {
			return model.Assertf("'%s' label should not be empty", key)
		}
	}

	// The build tooling ref is a branch or a tag, never guaranteed both.
	if labels[docker.LabelBuiltByBranch] == "" && labels[docker.LabelBuiltByTag] == "" {
		return model.Assertf("either '%s' or '%s' should be a non-empty image label",
			docker.LabelBuiltByBranch, docker.LabelBuiltByTag)
	}
	return nil
}

func imageLabels(ctx context.Context, env *Env, t model.ImageType) (map[string]string, error) {
	imageName, err := env.Config.ImageName(t)
	if err != nil {
		return nil, err
	}
	return docker.Labels(ctx, env.Images, imageName)
}
