package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	triageconfig "github.com/pithecene-io/triage/cli/config"
	"github.com/pithecene-io/triage/runtime"
)

// Precedence for every setting: explicit CLI flag, then config file, then
// the flag's own default. Defaults from triageconfig fill what is left.

// resolveString returns the CLI value if set, else the config value if
// non-empty, else the flag default.
func resolveString(c *cli.Context, name, configValue string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if configValue != "" {
		return configValue
	}
	return c.String(name)
}

// resolveInt returns the CLI value if set, else the config value if
// non-zero, else the flag default.
func resolveInt(c *cli.Context, name string, configValue int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	if configValue != 0 {
		return configValue
	}
	return c.Int(name)
}

// resolveBool returns the CLI value if set, else the config value.
func resolveBool(c *cli.Context, name string, configValue bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return configValue
}

// resolveDuration returns the CLI value if set, else the config value if
// non-zero, else the flag default.
func resolveDuration(c *cli.Context, name string, configValue time.Duration) time.Duration {
	if c.IsSet(name) {
		return c.Duration(name)
	}
	if configValue != 0 {
		return configValue
	}
	return c.Duration(name)
}

// configVal safely extracts a value from a possibly nil config.
func configVal[T any](cfg *triageconfig.Config, fn func(*triageconfig.Config) T) T {
	var zero T
	if cfg == nil {
		return zero
	}
	return fn(cfg)
}

// loadConfig reads --config when given, applies the shared flag overrides,
// then fills defaults. The result is not validated.
func loadConfig(c *cli.Context) (*triageconfig.Config, error) {
	var file *triageconfig.Config
	if path := c.String("config"); path != "" {
		loaded, err := triageconfig.Load(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", runtime.ErrInvalidConfig, err)
		}
		file = loaded
	}

	cfg := &triageconfig.Config{}
	if file != nil {
		*cfg = *file
	}
	cfg.Storage.Backend = resolveString(c, "backend", configVal(file, func(f *triageconfig.Config) string { return f.Storage.Backend }))
	cfg.Storage.S3.Bucket = resolveString(c, "bucket", configVal(file, func(f *triageconfig.Config) string { return f.Storage.S3.Bucket }))
	cfg.Classifier.URL = resolveString(c, "classifier-url", configVal(file, func(f *triageconfig.Config) string { return f.Classifier.URL }))
	return cfg, nil
}

// invalidConfig converts a configuration error to the invalid-config exit.
func invalidConfig(err error) error {
	return cli.Exit(err.Error(), runtime.ExitCodeInvalidConfig)
}
