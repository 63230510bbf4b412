// Package docker provides Docker Engine API access for the ac-conformance
// CLI.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Image label lookups on the base and onbuild images under test
//   - Exec into local containers as a host.Host backend
//   - Building throwaway images on top of the onbuild image
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
