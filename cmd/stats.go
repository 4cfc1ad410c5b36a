package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/fedsearch/fedsearch/pkg/config"
	"github.com/fedsearch/fedsearch/pkg/contentstore"
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show content store statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			return showStats(c.String("config"))
		},
	}
}

func showStats(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store := contentstore.NewManager(cfg.StorageDir)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warnf("closing store: %v", err)
		}
	}()

	stats, err := store.Stats()
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}

	if len(stats) == 0 {
		fmt.Println("No sites found")
		return nil
	}

	sites := make([]string, 0, len(stats))
	total := 0
	for site, count := range stats {
		sites = append(sites, site)
		total += count
	}
	sort.Strings(sites)

	fmt.Printf("Content store statistics\n\n")
	for _, site := range sites {
		fmt.Printf("  %s: %s items\n", site, formatNumber(stats[site]))
	}
	fmt.Printf("\nTotal: %s items across %d sites\n", formatNumber(total), len(sites))
	return nil
}
