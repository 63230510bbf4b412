// Package release classifies Astronomer Certified release identifiers and
// derives the git refs CI installs Airflow from.
//
// A release id has the form "<airflow_version>-<patch>", optionally with a
// ".dev" suffix (e.g., "2.1.4-6", "2.1.4-6.dev"). Edge builds track the
// upstream main branch and carry "main" in the id instead (e.g., "main-dev").
package release

import (
	"strings"
)

// EdgeMarker is the token that identifies a build of the upstream main branch.
const EdgeMarker = "main"

// DevAllowlist lists Airflow versions for which no Python wheels are
// published. Dev releases of these versions are left out of DevReleases.
var DevAllowlist = []string{}

// IsEdgeBuild reports whether the id tracks the upstream main branch.
func IsEdgeBuild(id string) bool {
	return strings.Contains(id, EdgeMarker)
}

// IsDevRelease reports whether the id is an unreleased build: either it
// carries "dev" or it is an edge build.
func IsDevRelease(id string) bool {
	return strings.Contains(id, "dev") || IsEdgeBuild(id)
}

// AirflowVersion returns the upstream Airflow version of a release id:
// everything before the first hyphen, or "main" for edge builds.
//
//	AirflowVersion("2.1.4-6")  → "2.1.4"
//	AirflowVersion("main-dev") → "main"
func AirflowVersion(id string) string {
	if IsEdgeBuild(id) {
		return EdgeMarker
	}
	version, _, _ := strings.Cut(id, "-")
	return version
}

// PatchVersion returns the AC patch number of a release id: the segment
// after the first hyphen. Edge builds and ids without a hyphen have no
// patch number and report ok=false.
//
//	PatchVersion("2.1.4-6")     → "6", true
//	PatchVersion("2.1.4-6.dev") → "6.dev", true
//	PatchVersion("main-dev")    → "", false
func PatchVersion(id string) (string, bool) {
	if IsEdgeBuild(id) {
		return "", false
	}
	parts := strings.Split(id, "-")
	if len(parts) < 2 {
		return "", false
	}
	return parts[1], true
}

// AirflowRef returns the git ref of the astronomer/airflow fork that a
// release is installed from. Dev and edge releases follow a branch, pinned
// releases a tag.
//
//	AirflowRef("2.1.4-6")     → "certified-v2.1.4+astro.6"
//	AirflowRef("2.1.4-6.dev") → "certified-v2-1-4"
func AirflowRef(id string) string {
	version := AirflowVersion(id)
	if IsDevRelease(id) {
		return "certified-v" + strings.ReplaceAll(version, ".", "-")
	}
	patch, _ := PatchVersion(id)
	return "certified-v" + version + "+astro." + patch
}

// DevReleases filters ids down to dev releases whose Airflow version is
// not on DevAllowlist. The input order is preserved.
func DevReleases(ids []string) []string {
	var out []string
	for _, id := range ids {
		if !IsDevRelease(id) || allowlisted(AirflowVersion(id)) {
			continue
		}
		out = append(out, id)
	}
	return out
}

func allowlisted(version string) bool {
	for _, v := range DevAllowlist {
		if v == version {
			return true
		}
	}
	return false
}

// PostRelease extracts the AC post-release number from the value of the
// io.astronomer.docker.ac.version label.
//
//	"2.0.2-dev2"    → "2.0.2"  (dev suffix cut, no .post)
//	"2.0.2.post2.dev2" → "2"
//	"2.2.4.post3"   → "3"
//	"1.10.10-8"     → "8"
func PostRelease(acVersion string) string {
	switch {
	case strings.Contains(acVersion, "dev"):
		v := before(before(acVersion, "-dev"), ".dev")
		return lastAfter(v, ".post")
	case strings.Contains(acVersion, ".post"):
		return lastAfter(acVersion, ".post")
	default:
		return lastAfter(acVersion, "-")
	}
}

// AstroLocal returns the local version label pip reports after "+astro."
// (e.g., "2.2.4.post3+astro.3" → "3"). Strings without the marker are
// returned unchanged.
func AstroLocal(pipVersion string) string {
	return lastAfter(pipVersion, "+astro.")
}

// before returns s up to the first sep, or s when sep is absent.
func before(s, sep string) string {
	head, _, _ := strings.Cut(s, sep)
	return head
}

// lastAfter returns s after the last sep, or s when sep is absent.
func lastAfter(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}
