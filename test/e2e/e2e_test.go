package e2e

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/astronomer/ap-airflow/internal/config"
	"github.com/astronomer/ap-airflow/internal/conformance"
	"github.com/astronomer/ap-airflow/internal/docker"
	"github.com/astronomer/ap-airflow/internal/kube"
	"github.com/astronomer/ap-airflow/internal/model"
)

var _ = Describe("Astronomer Certified image", Ordered, func() {
	var (
		ctx          context.Context
		cfg          *config.Config
		env          *conformance.Env
		dockerClient *docker.Client
	)

	BeforeAll(func() {
		ctx = context.Background()
		cfg = config.FromEnv(nil)
		if cfg.AirflowVersion == "" || cfg.Namespace == "" || cfg.SchedulerPod == "" || cfg.WebserverPod == "" {
			Skip("AIRFLOW_VERSION, NAMESPACE, WEBSERVER_POD and SCHEDULER_POD must be set")
		}

		By("Connecting to the Docker daemon")
		var err error
		dockerClient, err = docker.NewClient()
		Expect(err).NotTo(HaveOccurred())
		Expect(dockerClient.Ping(ctx)).To(Succeed())

		By("Connecting to the Kubernetes API")
		kc, err := kube.NewClient()
		Expect(err).NotTo(HaveOccurred())
		Expect(kc.Ping(ctx)).To(Succeed())

		log := logrus.New()
		log.SetOutput(GinkgoWriter)
		log.SetLevel(logrus.DebugLevel)

		env = &conformance.Env{
			Config:    cfg,
			Webserver: kube.NewPodHost(kc, cfg.Namespace, cfg.WebserverPod, cfg.WebserverContainer),
			Scheduler: kube.NewPodHost(kc, cfg.Namespace, cfg.SchedulerPod, cfg.SchedulerContainer),
			Images:    dockerClient.Inner(),
			SchedulerLogs: &kube.LogSource{
				Clientset: kc.Clientset(),
				Namespace: cfg.Namespace,
				Pod:       cfg.SchedulerPod,
				Container: cfg.SchedulerContainer,
			},
			Log: log,
		}
	})

	AfterAll(func() {
		if dockerClient != nil {
			Expect(dockerClient.Close()).To(Succeed())
		}
	})

	for _, check := range conformance.All() {
		check := check
		It(check.Name+": "+check.Description, func() {
			report := conformance.NewRunner(env).Run(ctx, []conformance.Check{check})
			Expect(report.Results).To(HaveLen(1))

			res := report.Results[0]
			if res.Status == model.StatusSkipped {
				Skip(res.Message)
			}
			Expect(res.Status).To(Equal(model.StatusPassed), res.Message)
		})
	}
})
