// Package cli: checks.go implements the "ac-conformance checks" command,
// which lists the available checks so CI configuration can name them in
// --only and --skip.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astronomer/ap-airflow/internal/conformance"
	"github.com/astronomer/ap-airflow/internal/model"
)

// NewChecksCommand creates the "checks" cobra command.
func NewChecksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "checks",
		Short: "List the conformance checks",
		Long: `List every conformance check with the targets it needs.

Examples:
  ac-conformance checks
  ac-conformance checks --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := conformance.All()
			if IsJSONOutput() {
				return printJSON(cmd, checksJSON(checks))
			}
			printChecksText(cmd.OutOrStdout(), checks)
			return nil
		},
	}
}

// checkJSON is the JSON output structure for one check.
type checkJSON struct {
	Name        string   `json:"name"`
	Targets     []string `json:"targets"`
	Description string   `json:"description"`
}

func checksJSON(checks []conformance.Check) map[string][]checkJSON {
	out := make([]checkJSON, 0, len(checks))
	for _, c := range checks {
		out = append(out, checkJSON{
			Name:        c.Name,
			Targets:     targetNames(c.Targets),
			Description: c.Description,
		})
	}
	return map[string][]checkJSON{"checks": out}
}

// printChecksText outputs the checks as an aligned table.
//
//	NAME                     TARGETS             DESCRIPTION
//	airflow-in-path          webserver           airflow is on the webserver PATH
//	version                  docker,webserver    image labels, airflow version ...
func printChecksText(w io.Writer, checks []conformance.Check) {
	fmt.Fprintf(w, "%-24s %-19s %s\n", "NAME", "TARGETS", "DESCRIPTION")
	for _, c := range checks {
		fmt.Fprintf(w, "%-24s %-19s %s\n", c.Name, strings.Join(targetNames(c.Targets), ","), c.Description)
	}
}

func targetNames(targets []model.Target) []string {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.String())
	}
	return names
}
