package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"frcvideos/internal/api"
	"frcvideos/internal/config"
	"frcvideos/internal/daemon"
	"frcvideos/internal/daemonrun"
	"frcvideos/internal/database"
	"frcvideos/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// apiClient returns nil when no API bind address is configured.
func (c *commandContext) apiClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
}

// cliLogger writes to stderr so command output on stdout stays parseable.
func (c *commandContext) cliLogger(cfg *config.Config) *slog.Logger {
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) withDatabase(ctx context.Context, fn func(*config.Config, *database.DB) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	db, err := database.OpenPath(ctx, cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(cfg, db)
}

// withComponents wires the auto-rename services locally without starting
// the job runner or API.
func (c *commandContext) withComponents(ctx context.Context, fn func(*config.Config, daemon.Components) error) error {
	return c.withDatabase(ctx, func(cfg *config.Config, db *database.DB) error {
		return fn(cfg, daemonrun.Components(cfg, db, c.cliLogger(cfg)))
	})
}

// viaDaemon runs fn against the daemon API. It reports false when no daemon
// is reachable so the caller can fall back to local execution.
func (c *commandContext) viaDaemon(fn func(*api.Client) error) (bool, error) {
	client, err := c.apiClient()
	if err != nil {
		return false, err
	}
	if client == nil {
		return false, nil
	}
	if err := fn(client); err != nil {
		if api.IsUnavailable(err) {
			return false, nil
		}
		return true, err
	}
	return true, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func requireArg(args []string, name string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", errors.New(name + " is required")
	}
	return strings.TrimSpace(args[0]), nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
