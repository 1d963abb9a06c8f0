package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/card-catalog/internal/config"
	"github.com/ramonehamilton/card-catalog/internal/logger"
)

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
	}
}

// configPath is the --config value, or the default location.
func (c *commandContext) configPath() string {
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			return path
		}
	}
	return config.DefaultPath()
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		overrides := &config.Config{Log: config.LogConfig{
			Level:  flagValue(c.logLevelFlag),
			Format: flagValue(c.logFormatFlag),
		}}
		if err := cfg.Merge(overrides); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// newLogger builds a component logger writing to the command's stderr.
func (c *commandContext) newLogger(cmd *cobra.Command, component string) *logger.Logger {
	opts := logger.Options{Output: cmd.ErrOrStderr()}
	if c.config != nil {
		opts.Level = c.config.Log.Level
		opts.Format = c.config.Log.Format
	}
	return logger.New(component, opts)
}

func flagValue(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
