// Package model defines the domain types shared by the ac-conformance CLI.
//
// This package contains plain data structures with no external dependencies:
// image variants, base distributions, check outcomes and the run report.
//
// The package also defines exit codes (ExitCode), a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling,
// and AssertionError for failed image expectations.
package model
