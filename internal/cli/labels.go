// Package cli: labels.go implements the "ac-conformance labels" command,
// which prints the labels of the image under test as the checks see them.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/astronomer/ap-airflow/internal/docker"
	"github.com/astronomer/ap-airflow/internal/model"
)

// labelsFlags holds the flag values for the labels command.
type labelsFlags struct {
	settings settingsFlags
	onbuild  bool
}

// NewLabelsCommand creates the "labels" cobra command.
func NewLabelsCommand() *cobra.Command {
	flags := &labelsFlags{}

	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Print the labels of the image under test",
		Long: `Print the labels of AIRFLOW_IMAGE, or AIRFLOW_ONBUILD_IMAGE with --onbuild.

Examples:
  ac-conformance labels
  ac-conformance labels --onbuild --json
  ac-conformance labels --image quay.io/astronomer/ap-airflow:2.2.4-buster`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLabels(cmd.Context(), cmd, flags)
		},
	}

	flags.settings.bind(cmd)
	cmd.Flags().BoolVar(&flags.onbuild, "onbuild", false, "Inspect the onbuild image instead of the base image")

	return cmd
}

func runLabels(ctx context.Context, cmd *cobra.Command, flags *labelsFlags) error {
	cfg, err := flags.settings.resolve(cmd)
	if err != nil {
		return err
	}

	imageType := model.ImageBase
	if flags.onbuild {
		imageType = model.ImageOnbuild
	}
	imageName, err := cfg.ImageName(imageType)
	if err != nil {
		return err
	}

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	labels, err := docker.Labels(ctx, cli.Inner(), imageName)
	if err != nil {
		return err
	}
	log.WithField("image", imageName).Debugf("Found %d labels", len(labels))

	if IsJSONOutput() {
		return printJSON(cmd, map[string]interface{}{
			"image":  imageName,
			"labels": labels,
		})
	}
	printLabelsText(cmd.OutOrStdout(), labels)
	return nil
}

// printLabelsText prints one key=value line per label in key order.
func printLabelsText(w io.Writer, labels map[string]string) {
	if len(labels) == 0 {
		fmt.Fprintln(w, "No labels found.")
		return
	}
	for _, k := range docker.SortedKeys(labels) {
		fmt.Fprintf(w, "%s=%s\n", k, labels[k])
	}
}
