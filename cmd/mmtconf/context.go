package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mmtconf/internal/config"
	"mmtconf/internal/logging"
	"mmtconf/internal/runstore"
)

type commandContext struct {
	overrides    []string
	logLevel     string
	logFormat    string
	logSource    bool
	registryFlag string

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

// ensureLogger builds the CLI logger on first use. Logs go to stderr so
// stdout stays clean for exported documents.
func (c *commandContext) ensureLogger(cmd *cobra.Command) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:       c.logLevel,
			Format:      c.logFormat,
			Writer:      cmd.ErrOrStderr(),
			Development: c.logSource,
		})
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	logger, err := c.ensureLogger(cmd)
	if err != nil {
		return nil, err
	}
	return config.Load(path, config.LoadOptions{
		Overrides: c.overrides,
		Logger:    logger.With(logging.String(logging.FieldConfig, path)),
	})
}

func (c *commandContext) registryPath() (string, error) {
	path := strings.TrimSpace(c.registryFlag)
	if path == "" {
		return config.DefaultRegistryPath()
	}
	return config.ExpandPath(path)
}

func (c *commandContext) withRegistry(fn func(*runstore.Store) error) error {
	path, err := c.registryPath()
	if err != nil {
		return fmt.Errorf("resolve registry path: %w", err)
	}
	store, err := runstore.Open(path)
	if err != nil {
		return fmt.Errorf("open run registry: %w", err)
	}
	defer store.Close()
	return fn(store)
}
