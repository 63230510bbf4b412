package docker

import (
	"context"
	"fmt"
	"sort"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"github.com/astronomer/ap-airflow/internal/model"
)

// Label keys the Astronomer Certified images carry.
const (
	// LabelMaintainer is the standard maintainer label.
	LabelMaintainer = "maintainer"

	// LabelAirflowVersion holds the upstream Airflow version (e.g., "2.2.4").
	LabelAirflowVersion = "io.astronomer.docker.airflow.version"

	// LabelACVersion holds the full AC version (e.g., "2.2.4.post3").
	LabelACVersion = "io.astronomer.docker.ac.version"

	// LabelOnbuild is "true" on the onbuild variant.
	LabelOnbuild = "io.astronomer.docker.airflow.onbuild"

	// LabelDistro names the base distribution ("debian", "alpine", "rhel").
	LabelDistro = "io.astronomer.docker.distro"

	// LabelBuiltByBranch and LabelBuiltByTag record the ref of the build
	// tooling. Edge builds carry one of the two, never a guaranteed pair.
	LabelBuiltByBranch = "io.astronomer.airflow.built_by.git.branch"
	LabelBuiltByTag    = "io.astronomer.airflow.built_by.git.tag"
)

// ExpectedMaintainer is the maintainer label value on every published image.
const ExpectedMaintainer = "Astronomer <humans@astronomer.io>"

// EdgeProvenanceLabels must be present and non-empty on edge/main builds.
var EdgeProvenanceLabels = []string{
	"org.apache.airflow.ci.build.date",
	"org.apache.airflow.ci.build.url",
	"org.apache.airflow.ci.build.version",
	"org.apache.airflow.ci.js.node.version_string",
	"org.apache.airflow.ci.js.npm.version_string",
	"org.apache.airflow.ci.js.yarn.version_string",
	"org.apache.airflow.ci.python.version_string",
	"io.astronomer.airflow.built_from.git.branch",
	"io.astronomer.airflow.built_from.git.commit_sha",
	"io.astronomer.airflow.built_by.git.commit_sha",
	"io.astronomer.astronomer_certified.build.version",
}

// ImageInspector is the slice of the Docker API label lookups need.
// *client.Client satisfies it.
type ImageInspector interface {
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
}

// Labels returns all labels of an image. An image without labels yields
// an empty, non-nil map.
func Labels(ctx context.Context, api ImageInspector, imageName string) (map[string]string, error) {
	resp, err := api.ImageInspect(ctx, imageName)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return nil, model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("image %q is not present on the Docker host", imageName), err)
		}
		return nil, model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to inspect image %q", imageName), err)
	}

	labels := make(map[string]string)
	if resp.Config != nil {
		for k, v := range resp.Config.Labels {
			labels[k] = v
		}
	}
	return labels, nil
}

// Label returns a single label of an image. A missing label is an
// AssertionError naming the key.
func Label(ctx context.Context, api ImageInspector, imageName, key string) (string, error) {
	labels, err := Labels(ctx, api, imageName)
	if err != nil {
		return "", err
	}
	return LookupLabel(labels, key)
}

// LookupLabel is Label over an already fetched label map.
func LookupLabel(labels map[string]string, key string) (string, error) {
	value, ok := labels[key]
	if !ok {
		return "", model.Assertf("Image should have a label '%s'", key)
	}
	return value, nil
}

// SortedKeys returns the label keys in lexical order, for stable output.
func SortedKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
