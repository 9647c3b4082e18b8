package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/al0nec0der/StrIve-sub000/internal/api"
	"github.com/al0nec0der/StrIve-sub000/internal/config"
	"github.com/al0nec0der/StrIve-sub000/internal/daemonrun"
	"github.com/al0nec0der/StrIve-sub000/internal/logging"
)

type commandContext struct {
	configFlag *string
	addrFlag   *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag, addrFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		addrFlag:   addrFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) apiAddress() string {
	if c.addrFlag != nil && strings.TrimSpace(*c.addrFlag) != "" {
		return strings.TrimSpace(*c.addrFlag)
	}
	if c.config != nil {
		return c.config.API.Bind
	}
	return ""
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client := api.NewClient(c.apiAddress(), cfg.API.Token)
	if err := fn(client); err != nil {
		return wrapDaemonError(err, c.apiAddress())
	}
	return nil
}

// withLocalRuntime builds the rating stack in-process. Logs go to stderr at
// warn level so command output stays clean.
func (c *commandContext) withLocalRuntime(ctx context.Context, fn func(*daemonrun.Runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:            "warn",
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		logger = slog.Default()
	}
	rt, err := daemonrun.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build local rating runtime: %w", err)
	}
	defer rt.Close()
	return fn(rt)
}

func wrapDaemonError(err error, addr string) error {
	var statusErr *api.StatusError
	switch {
	case errors.Is(err, api.ErrDaemonUnavailable):
		return fmt.Errorf("connect to daemon at %s: not reachable; start it with `strive serve` or use --local", addr)
	case errors.As(err, &statusErr) && statusErr.Code == 401:
		return fmt.Errorf("daemon rejected the request: set api.token or STRIVE_API_TOKEN to match the daemon")
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
