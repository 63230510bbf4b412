package conformance

import (
	"context"
	"fmt"

	"github.com/astronomer/ap-airflow/internal/config"
	"github.com/astronomer/ap-airflow/internal/host"
	"github.com/astronomer/ap-airflow/internal/model"
	"github.com/astronomer/ap-airflow/internal/pyver"
)

// ConstraintsFile pins the installed Airflow so user requirements cannot
// upgrade it.
const ConstraintsFile = "/usr/local/share/astronomer-pip-constraints.txt"

var elasticsearchVersion = Check{
	Name:        "elasticsearch-version",
	Description: "elasticsearch client is >= 5.5.3 and < 7.14",
	Targets:     targets(model.TargetWebserver),
	Run: func(ctx context.Context, env *Env) error {
		pkg, err := installedPackage(ctx, env.Webserver, "elasticsearch")
		if err != nil {
			return err
		}
		if err := expectVersion(pyver.AtLeast, pkg.Version, "5.5.3",
			"elasticsearch module must be version 5.5.3 or greater, got %s", pkg.Version); err != nil {
			return err
		}
		// https://github.com/astronomer/issues/issues/3347
		return expectVersion(pyver.Below, pkg.Version, "7.14",
			"elasticsearch module must be less than 7.14, got %s", pkg.Version)
	},
}

var werkzeugVersion = Check{
	Name:        "werkzeug-version",
	Description: "Werkzeug is < 1.0.0 on Airflow 1.x",
	Targets:     targets(model.TargetWebserver),
	Skip: func(cfg *config.Config) string {
		if cfg.IsAirflow2() {
			return "Not needed for Airflow>=2"
		}
		return ""
	},
	Run: func(ctx context.Context, env *Env) error {
		pkg, err := installedPackage(ctx, env.Webserver, "Werkzeug")
		if err != nil {
			return err
		}
		return expectVersion(pyver.Below, pkg.Version, "1.0.0",
			"Werkzeug pip module version must be less than 1.0.0, got %s", pkg.Version)
	},
}

var redisVersion = Check{
	Name:        "redis-version",
	Description: "redis client is not 3.4.0",
	Targets:     targets(model.TargetWebserver),
	Run: func(ctx context.Context, env *Env) error {
		pkg, err := installedPackage(ctx, env.Webserver, "redis")
		if err != nil {
			return err
		}
		same, err := pyver.Equal(pkg.Version, "3.4.0")
		if err != nil {
			return err
		}
		if same {
			return model.Assertf("redis module must not be 3.4.0")
		}
		return nil
	},
}

var versionCheckPlugin = Check{
	Name:        "version-check-plugin",
	Description: "astronomer-airflow-version-check, when installed, is >= 1.0.1",
	Targets:     targets(model.TargetWebserver),
	Run: func(ctx context.Context, env *Env) error {
		pkgs, err := host.PipPackages(ctx, env.Webserver)
		if err != nil {
			return err
		}
		pkg, ok := pkgs.Get("astronomer-airflow-version-check")
		if !ok {
			env.logger().Info("astronomer-airflow-version-check pip module is not installed")
			return nil
		}
		return expectVersion(pyver.AtLeast, pkg.Version, "1.0.1",
			"astronomer-airflow-version-check module must be greater than 1.0.0, got %s", pkg.Version)
	},
}

var airflowInConstraints = Check{
	Name:        "airflow-in-constraints",
	Description: "installed Airflow version is pinned in the pip constraints file",
	Targets:     targets(model.TargetScheduler),
	Run: func(ctx context.Context, env *Env) error {
		pkg, err := installedPackage(ctx, env.Scheduler, "apache-airflow")
		if err != nil {
			return err
		}
		constraints, err := host.FileContent(ctx, env.Scheduler, ConstraintsFile)
		if err != nil {
			return err
		}
		return expectContains(constraints, pkg.Version,
			"installed apache-airflow %s is not in %s", pkg.Version, ConstraintsFile)
	},
}

var istioProvider = Check{
	Name:        "istio-provider",
	Description: "Kubernetes provider ships the Istio patch",
	Targets:     targets(model.TargetScheduler),
	Skip: func(cfg *config.Config) string {
		if !cfg.IsAirflow2() || cfg.EdgeBuild {
			return "Airflow <2.0.0 does not support this test"
		}
		return ""
	},
	Run: func(ctx context.Context, env *Env) error {
		return expectImport(ctx, env.Scheduler, "airflow.providers.cncf.kubernetes.utils.istio", "Istio")
	},
}

var istioExecutor = Check{
	Name:        "istio-executor",
	Description: "Kubernetes executor ships the Istio patch",
	Targets:     targets(model.TargetScheduler),
	Run: func(ctx context.Context, env *Env) error {
		return expectImport(ctx, env.Scheduler, "airflow.executors.kubernetes_executor", "Istio")
	},
}

func expectImport(ctx context.Context, h host.Host, module, symbol string) error {
	cmd := fmt.Sprintf("python -c 'from %s import %s'", module, symbol)
	res, err := h.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("failed to run %q on %s: %w", cmd, h.Name(), err)
	}
	if !res.Succeeded() {
		return model.Assertf("cannot import %s from %s: %s", symbol, module, lastLine(res.Stderr))
	}
	return nil
}

func installedPackage(ctx context.Context, h host.Host, name string) (host.Package, error) {
	pkgs, err := host.PipPackages(ctx, h)
	if err != nil {
		return host.Package{}, err
	}
	return requirePackage(pkgs, name)
}

func requirePackage(pkgs host.Packages, name string) (host.Package, error) {
	pkg, ok := pkgs.Get(name)
	if !ok {
		return host.Package{}, model.Assertf("%s pip module is not installed", name)
	}
	return pkg, nil
}

// expectVersion applies a pyver comparison and turns false into an
// AssertionError. An unparsable version is reported as is.
func expectVersion(cmp func(v, bound string) (bool, error), v, bound, format string, args ...interface{}) error {
	ok, err := cmp(v, bound)
	if err != nil {
		return err
	}
	if !ok {
		return model.Assertf(format, args...)
	}
	return nil
}
