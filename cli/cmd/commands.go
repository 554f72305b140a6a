package cmd

import "github.com/urfave/cli/v2"

// Commands returns every triage subcommand.
func Commands(commit string) []*cli.Command {
	return []*cli.Command{
		RunCommand(),
		HealthCommand(),
		StatsCommand(),
		VersionCommand(commit),
	}
}
