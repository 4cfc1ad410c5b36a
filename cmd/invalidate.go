package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/fedsearch/fedsearch/pkg/cache"
	"github.com/fedsearch/fedsearch/pkg/config"
)

// InvalidateCommand creates the invalidate command
func InvalidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "invalidate",
		Usage: "Clear all cached search results, suggestions and remote sub-results",
		Action: func(ctx context.Context, c *cli.Command) error {
			return invalidateCache(c.String("config"))
		},
	}
}

func invalidateCache(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.CacheDir == "" {
		fmt.Println("Cache is in-memory, nothing to invalidate")
		return nil
	}

	c, err := cache.Open(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warnf("closing cache: %v", err)
		}
	}()

	if err := c.InvalidateAll(); err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}

	fmt.Println("Cache invalidated")
	return nil
}
