// Package cli: release.go implements the "ac-conformance release" command
// group: the helpers CI jobs call to classify release identifiers, derive
// the Airflow git ref to build from, and read the release to base image map.
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astronomer/ap-airflow/internal/model"
	"github.com/astronomer/ap-airflow/internal/release"
)

// NewReleaseCommand creates the "release" cobra command and its children.
func NewReleaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release identifier helpers for CI",
		Long: `Helpers over release identifiers of the form <airflow_version>-<patch>[.dev]
(e.g., 2.1.4-6, 2.1.4-6.dev) or containing "main" for edge builds.

Examples:
  ac-conformance release ref 2.1.4-6
  ac-conformance release is-dev main-dev
  ac-conformance release dev 2.1.4-6 2.2.0-1.dev main-dev
  ac-conformance release images 2.2.4-3`,
	}

	cmd.AddCommand(newReleaseValueCommand("ref", "Print the Airflow git ref to build from",
		func(id string) (string, error) { return release.AirflowRef(id), nil }))
	cmd.AddCommand(newReleaseValueCommand("version", "Print the Airflow version of a release",
		func(id string) (string, error) { return release.AirflowVersion(id), nil }))
	cmd.AddCommand(newReleaseValueCommand("patch", "Print the AC patch number of a release",
		func(id string) (string, error) {
			patch, ok := release.PatchVersion(id)
			if !ok {
				return "", model.NewCLIError(model.ExitGeneralError,
					fmt.Sprintf("release %q has no patch version", id))
			}
			return patch, nil
		}))
	cmd.AddCommand(newReleaseValueCommand("is-dev", "Print whether a release is a dev or edge release",
		func(id string) (string, error) { return strconv.FormatBool(release.IsDevRelease(id)), nil }))
	cmd.AddCommand(newReleaseDevCommand())
	cmd.AddCommand(newReleaseImagesCommand())

	return cmd
}

// newReleaseValueCommand builds a subcommand that maps one release id to
// one value.
func newReleaseValueCommand(use, short string, fn func(id string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <release>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := fn(args[0])
			if err != nil {
				return err
			}
			if IsJSONOutput() {
				return printJSON(cmd, map[string]string{"release": args[0], use: value})
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newReleaseDevCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dev <release>...",
		Short: "Print the dev releases that need a dev build",
		Long: `Print the dev or edge releases among the arguments, one per line,
leaving out Airflow versions that have no published wheels.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev := release.DevReleases(args)
			if IsJSONOutput() {
				if dev == nil {
					dev = []string{}
				}
				return printJSON(cmd, map[string][]string{"releases": dev})
			}
			for _, id := range dev {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newReleaseImagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "images [<release>]",
		Short: "Print the base images of one or all releases",
		Long: `Print the release to base image map in release order, or the base
images of a single release.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			images, err := release.DefaultImageMap()
			if err != nil {
				return err
			}

			entries := images.Entries()
			if len(args) == 1 {
				distros, err := images.Lookup(args[0])
				if err != nil {
					return model.WrapCLIError(model.ExitGeneralError, "unknown release", err)
				}
				entries = []release.ImageEntry{{Release: args[0], Distros: distros}}
			}

			if IsJSONOutput() {
				return printJSON(cmd, map[string][]release.ImageEntry{"images": entries})
			}
			printImagesText(cmd.OutOrStdout(), entries, len(args) == 1)
			return nil
		},
	}
}

// printImagesText prints either the distros of one release (one per line,
// for shell loops) or "release: distro, distro" lines for the whole map.
func printImagesText(w io.Writer, entries []release.ImageEntry, single bool) {
	if single {
		for _, d := range entries[0].Distros {
			fmt.Fprintln(w, d)
		}
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s: %s\n", e.Release, strings.Join(e.Distros, ", "))
	}
}
