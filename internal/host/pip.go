package host

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// PipCommand lists installed distributions in machine-readable form.
const PipCommand = "pip list --format=json --disable-pip-version-check"

// Package is one installed Python distribution.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Packages is the set of installed distributions on a host, keyed by
// normalised name.
type Packages map[string]Package

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizeName applies PEP 503 name normalisation, so "Werkzeug",
// "werkzeug" and "astronomer_airflow_version_check" all find their package.
func NormalizeName(name string) string {
	return strings.ToLower(nameSeparators.ReplaceAllString(name, "-"))
}

// Get looks a distribution up by any spelling of its name.
func (p Packages) Get(name string) (Package, bool) {
	pkg, ok := p[NormalizeName(name)]
	return pkg, ok
}

// ParsePipList decodes the output of PipCommand.
func ParsePipList(data string) (Packages, error) {
	var list []Package
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("failed to decode pip list output: %w", err)
	}
	pkgs := make(Packages, len(list))
	for _, pkg := range list {
		pkgs[NormalizeName(pkg.Name)] = pkg
	}
	return pkgs, nil
}

// PipPackages returns the distributions installed on the host.
func PipPackages(ctx context.Context, h Host) (Packages, error) {
	out, err := CheckOutput(ctx, h, PipCommand)
	if err != nil {
		return nil, err
	}
	return ParsePipList(out)
}
