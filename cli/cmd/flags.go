// Package cmd provides CLI commands for the triage binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for stats.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (stats only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		TUIFlag,
	}
}

// ConfigFlags returns the flags every command uses to locate its
// configuration and override the storage backend.
func ConfigFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to triage.yaml (flags override file values)",
			EnvVars: []string{"TRIAGE_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Storage backend: fs or s3",
		},
		&cli.StringFlag{
			Name:  "bucket",
			Usage: "S3 bucket (s3 backend)",
		},
		&cli.StringFlag{
			Name:  "classifier-url",
			Usage: "Classification service predict endpoint",
		},
	}
}
