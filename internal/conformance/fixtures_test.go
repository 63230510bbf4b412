package conformance

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	dockerspec "github.com/moby/docker-image-spec/specs-go/v1"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/astronomer/ap-airflow/internal/config"
	"github.com/astronomer/ap-airflow/internal/docker"
	"github.com/astronomer/ap-airflow/internal/host"
	"github.com/astronomer/ap-airflow/internal/host/hosttest"
)

const (
	baseImage    = "ap-airflow:2.2.4-buster"
	onbuildImage = "ap-airflow:2.2.4-buster-onbuild"
)

type fakeImages map[string]map[string]string

func (f fakeImages) ImageInspect(_ context.Context, imageID string, _ ...client.ImageInspectOption) (image.InspectResponse, error) {
	labels, ok := f[imageID]
	if !ok {
		return image.InspectResponse{}, cerrdefs.ErrNotFound
	}
	return image.InspectResponse{
		ID:     "sha256:" + imageID,
		Config: &dockerspec.DockerOCIImageConfig{ImageConfig: ocispec.ImageConfig{Labels: labels}},
	}, nil
}

func conformingImages() fakeImages {
	return fakeImages{
		baseImage: {
			docker.LabelMaintainer:     docker.ExpectedMaintainer,
			docker.LabelAirflowVersion: "2.2.4",
			docker.LabelACVersion:      "2.2.4.post3",
			docker.LabelDistro:         "debian",
		},
		onbuildImage: {
			docker.LabelMaintainer: docker.ExpectedMaintainer,
			docker.LabelOnbuild:    "true",
		},
	}
}

// fakeBuilder answers builds by the content of requirements.txt.
type fakeBuilder struct {
	mu     sync.Mutex
	builds []string
	result func(requirement string) *docker.BuildResult
}

func (b *fakeBuilder) Build(_ context.Context, contextDir, _ string) (*docker.BuildResult, error) {
	data, err := os.ReadFile(filepath.Join(contextDir, "requirements.txt"))
	if err != nil {
		return nil, err
	}
	req := string(data)
	b.mu.Lock()
	b.builds = append(b.builds, req)
	b.mu.Unlock()
	return b.result(req), nil
}

// conformingBuilder behaves like the real onbuild trigger.
func conformingBuilder() *fakeBuilder {
	return &fakeBuilder{result: func(req string) *docker.BuildResult {
		if strings.HasPrefix(req, "apache-airflow-") {
			return &docker.BuildResult{}
		}
		return &docker.BuildResult{ExitCode: 1, Stderr: "ERROR: " + RestrictedRequirementMessage + "\n"}
	}}
}

type fakeLogs struct {
	calls int
}

func (f *fakeLogs) Tail(context.Context) (string, error) {
	f.calls++
	return "scheduler log line\n", nil
}

func pipList(pkgs map[string]string) string {
	list := make([]host.Package, 0, len(pkgs))
	for name, version := range pkgs {
		list = append(list, host.Package{Name: name, Version: version})
	}
	data, _ := json.Marshal(list)
	return string(data)
}

func testConfig(airflowVersion string) *config.Config {
	return &config.Config{
		AirflowVersion:  airflowVersion,
		Image:           baseImage,
		OnbuildImage:    onbuildImage,
		Backend:         config.BackendKube,
		Maintainer:      docker.ExpectedMaintainer,
		DAGTimeout:      40 * time.Millisecond,
		DAGPollInterval: 5 * time.Millisecond,
	}
}

type testEnv struct {
	*Env
	webserver *hosttest.Fake
	scheduler *hosttest.Fake
	images    fakeImages
	builder   *fakeBuilder
	logs      *fakeLogs
	hook      *logtest.Hook
}

func newTestEnv(t *testing.T, airflowVersion string) *testEnv {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	te := &testEnv{
		webserver: hosttest.New("webserver"),
		scheduler: hosttest.New("scheduler"),
		images:    conformingImages(),
		builder:   conformingBuilder(),
		logs:      &fakeLogs{},
		hook:      hook,
	}
	te.Env = &Env{
		Config:        testConfig(airflowVersion),
		Webserver:     te.webserver,
		Scheduler:     te.scheduler,
		Images:        te.images,
		Builder:       te.builder,
		SchedulerLogs: te.logs,
		TempDir:       t.TempDir(),
		Log:           logger,
	}
	return te
}

func (te *testEnv) loggedAt(level logrus.Level, substr string) bool {
	for _, e := range te.hook.AllEntries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
