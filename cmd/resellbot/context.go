package main

import (
	"context"
	"strings"
	"sync"

	"ResellBot/internal/app"
	"ResellBot/internal/config"
	"ResellBot/internal/logging"
)

type commandContext struct {
	configFlag  *string
	retryFailed *bool

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(configFlag *string, retryFailed *bool) *commandContext {
	return &commandContext{configFlag: configFlag, retryFailed: retryFailed}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// withApp builds the application for one command and closes it afterwards.
func (c *commandContext) withApp(ctx context.Context, fn func(*app.Application) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	opts := app.Options{}
	if c.retryFailed != nil {
		opts.RetryFailed = *c.retryFailed
	}
	application, err := app.New(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}
	defer application.Close()
	return fn(application)
}
