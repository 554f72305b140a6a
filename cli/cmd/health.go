package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/triage/cli/render"
	"github.com/pithecene-io/triage/runtime"
)

// HealthCommand returns the health command.
// It checks the classification service and never touches storage.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check the classification service",
		Flags:  append(ConfigFlags(), ReadOnlyFlags()...),
		Action: healthAction,
	}
}

func healthAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for health command", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return invalidConfig(err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return invalidConfig(err)
	}
	client, err := buildClassifier(cfg)
	if err != nil {
		return invalidConfig(err)
	}

	status, err := client.Health(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("classification service unreachable: %v", err), runtime.ExitCodeInfrastructure)
	}
	if err := r.Render(status); err != nil {
		return err
	}
	if !status.Healthy() {
		return cli.Exit("classification service is not ready", runtime.ExitCodeInfrastructure)
	}
	return nil
}
