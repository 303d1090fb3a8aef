package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"imgsync/internal/config"
	"imgsync/internal/logging"
	"imgsync/internal/manifest"
	"imgsync/internal/pipeline"
	"imgsync/internal/scheduler"
)

type commandContext struct {
	configFlag *string
	debugFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, debugFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		debugFlag:  debugFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = err
			return
		}
		if c.debugFlag != nil && *c.debugFlag {
			cfg.Logging.DebugLogging = true
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// logger writes to the command's stderr so stdout stays parseable.
func (c *commandContext) logger(w io.Writer) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.LogLevel(),
		Format: cfg.Logging.Format,
		Writer: w,
	})
}

// runner bundles a pipeline with the resources it holds open.
type runner struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	manifest *manifest.Store
}

func (r *runner) Close() error {
	if r.manifest == nil {
		return nil
	}
	return r.manifest.Close()
}

func (c *commandContext) newRunner(ctx context.Context, cmd *cobra.Command, session *scheduler.Session) (*runner, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	r := &runner{logger: logger}
	opts := []pipeline.Option{}
	if session != nil {
		opts = append(opts, pipeline.WithSession(session))
	}
	if cfg.Manifest.Enabled {
		store, err := manifest.Open(ctx, cfg.Manifest.Path)
		if err != nil {
			logging.WarnWithContext(logger, "manifest unavailable", "manifest_open_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "fetch history will not be recorded"),
			)
		} else {
			r.manifest = store
			opts = append(opts, pipeline.WithRecorder(store))
		}
	}

	p, err := pipeline.New(cfg, logger, opts...)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	r.pipeline = p
	return r, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
