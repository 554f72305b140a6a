package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/triage/cli/reader"
	"github.com/pithecene-io/triage/cli/render"
	"github.com/pithecene-io/triage/cli/tui"
	"github.com/pithecene-io/triage/runtime"
	"github.com/pithecene-io/triage/storage"
)

// StatsCommand returns the stats command.
// Stats reads the audit log and reports status and class counts for a day.
func StatsCommand() *cli.Command {
	flags := append(ConfigFlags(), ReadOnlyFlags()...)
	flags = append(flags, &cli.StringFlag{
		Name:  "day",
		Usage: "Day to summarize: YYYY-MM-DD, today or yesterday (default today, UTC)",
	})
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show status and class counts from the audit log",
		Flags:  flags,
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	day, err := reader.ParseDay(c.String("day"), time.Now())
	if err != nil {
		return invalidConfig(err)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return invalidConfig(err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return invalidConfig(err)
	}

	backend, err := buildBackend(c.Context, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("storage backend: %v", err), runtime.ExitCodeInfrastructure)
	}
	logReader, ok := backend.(storage.LogReader)
	if !ok {
		return cli.Exit(fmt.Sprintf("%s backend cannot read its audit log", backend.Name()), runtime.ExitCodeInfrastructure)
	}
	rd, err := reader.New(logReader, backend.Name())
	if err != nil {
		return err
	}

	stats, err := rd.Stats(c.Context, day)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeInfrastructure)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsDay, stats)
	}
	return r.Render(stats)
}
