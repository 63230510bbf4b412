// Package pyver compares Python package versions as pip reports them.
//
// pip speaks PEP 440 ("2.2.4.post3+astro.3", "2.0.2.dev2", "7.13"), which
// semver parsers reject. Parse maps those strings onto
// github.com/Masterminds/semver/v3 so the ordinary semver comparison
// operators can be used:
//
//   - the release segment is padded or truncated to major.minor.patch
//   - aN, bN and rcN become the prereleases a.N, b.N and rc.N
//   - devN becomes the prerelease 0.N, which sorts before any alpha
//   - postN and the local "+label" are kept as build metadata, so a post
//     release compares equal to its base release
package pyver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// pep440 captures the parts of a (normalised) PEP 440 public version plus
// an optional local label. Epochs are not used by anything pip installs in
// these images and are rejected.
var pep440 = regexp.MustCompile(
	`^v?(?P<release>\d+(?:\.\d+)*)` +
		`(?:[-_.]?(?P<pre>a|alpha|b|beta|c|rc|pre|preview)[-_.]?(?P<prenum>\d*))?` +
		`(?:(?:[-_.]?(?:post|rev|r)[-_.]?(?P<post>\d*))|-(?P<postimplicit>\d+))?` +
		`(?:[-_.]?dev[-_.]?(?P<dev>\d*))?` +
		`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?$`,
)

// Parse converts a pip version string into a semver.Version.
func Parse(s string) (*semver.Version, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	idx := pep440.FindStringSubmatchIndex(raw)
	if idx == nil {
		return nil, fmt.Errorf("invalid Python package version %q", s)
	}
	// group returns the captured text and whether the group took part in
	// the match at all; "1.0.post" matches post with an empty number.
	group := func(name string) (string, bool) {
		i := pep440.SubexpIndex(name)
		if idx[2*i] < 0 {
			return "", false
		}
		return raw[idx[2*i]:idx[2*i+1]], true
	}

	release, _ := group("release")
	parts := strings.Split(release, ".")
	for i := range parts {
		parts[i] = numOrZero(parts[i])
	}
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	var b strings.Builder
	b.WriteString(strings.Join(parts[:3], "."))

	var pre []string
	if p, ok := group("pre"); ok {
		n, _ := group("prenum")
		pre = append(pre, canonicalPre(p), numOrZero(n))
	}
	if n, ok := group("dev"); ok {
		// A dev release sorts before every other prerelease of the same
		// version; numeric identifiers sort before alphanumeric ones.
		if len(pre) == 0 {
			pre = append(pre, "0")
		}
		pre = append(pre, "dev", numOrZero(n))
	}
	if len(pre) > 0 {
		b.WriteString("-" + strings.Join(pre, "."))
	}

	var meta []string
	if len(parts) > 3 {
		meta = append(meta, "rel."+strings.Join(parts[3:], "."))
	}
	if n, ok := group("post"); ok {
		meta = append(meta, "post."+numOrZero(n))
	} else if n, ok := group("postimplicit"); ok {
		meta = append(meta, "post."+numOrZero(n))
	}
	if l, ok := group("local"); ok {
		meta = append(meta, strings.NewReplacer("_", ".", "-", ".").Replace(l))
	}
	if len(meta) > 0 {
		b.WriteString("+" + strings.Join(meta, "."))
	}

	v, err := semver.StrictNewVersion(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid Python package version %q: %w", s, err)
	}
	return v, nil
}

// MustParse is like Parse but panics on error. It is meant for constant
// thresholds declared in code.
func MustParse(s string) *semver.Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare parses both versions and returns -1, 0 or 1.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// AtLeast reports whether v >= min.
func AtLeast(v, min string) (bool, error) {
	c, err := Compare(v, min)
	return c >= 0, err
}

// Below reports whether v < max.
func Below(v, max string) (bool, error) {
	c, err := Compare(v, max)
	return c < 0, err
}

// Equal reports whether v and other denote the same version.
func Equal(v, other string) (bool, error) {
	c, err := Compare(v, other)
	return c == 0, err
}

func canonicalPre(p string) string {
	switch p {
	case "alpha":
		return "a"
	case "beta":
		return "b"
	case "c", "pre", "preview":
		return "rc"
	default:
		return p
	}
}

func numOrZero(s string) string {
	if s == "" {
		return "0"
	}
	// Strip leading zeros; semver rejects them in numeric identifiers.
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
