// Package kube reaches the Airflow pods under test through the Kubernetes
// API: exec into a container and read its logs.
package kube

import (
	"context"
	"fmt"
	"os"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/astronomer/ap-airflow/internal/model"
)

// Client bundles the REST config (needed to build exec streams) with a
// typed clientset.
type Client struct {
	config    *rest.Config
	clientset kubernetes.Interface
}

// NewClient loads cluster credentials. In-cluster service account config
// is tried first, then the kubeconfig named by KUBECONFIG, then the
// default ~/.kube/config.
func NewClient() (*Client, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitClusterUnreachable, "failed to load Kubernetes config", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitClusterUnreachable, "failed to create Kubernetes client", err)
	}

	return &Client{config: config, clientset: clientset}, nil
}

func loadConfig() (*rest.Config, error) {
	config, err := rest.InClusterConfig()
	if err == nil {
		return config, nil
	}

	kubeconfigPath := os.Getenv("KUBECONFIG")
	if kubeconfigPath == "" {
		kubeconfigPath = clientcmd.RecommendedHomeFile
	}

	config, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig from %s: %w", kubeconfigPath, err)
	}
	return config, nil
}

// Ping asks the API server for its version, which fails fast when the
// cluster is unreachable or the credentials are rejected.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.clientset.Discovery().ServerVersion()
	if err != nil {
		return model.WrapCLIError(model.ExitClusterUnreachable, "Kubernetes API is not reachable", err)
	}
	return ctx.Err()
}

// Clientset exposes the typed client for callers that need more than exec
// and logs.
func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}
