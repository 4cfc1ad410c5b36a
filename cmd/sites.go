package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/fedsearch/fedsearch/pkg/config"
	"github.com/fedsearch/fedsearch/pkg/contentstore"
)

// SitesCommand creates the sites command
func SitesCommand() *cli.Command {
	return &cli.Command{
		Name:  "sites",
		Usage: "List tenant sites in the local content store",
		Action: func(ctx context.Context, c *cli.Command) error {
			return listSites(c.String("config"))
		},
	}
}

func listSites(configPath string) error {
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

	sites, err := store.ListSites()
	if err != nil {
		return fmt.Errorf("listing sites: %w", err)
	}

	if len(sites) == 0 {
		fmt.Println("No sites found")
		return nil
	}

	fmt.Printf("Sites (%d):\n", len(sites))
	for _, site := range sites {
		visibility := "private"
		if site.Public {
			visibility = "public"
		}
		fmt.Printf("  - %s (%s) %s\n", site.Name, visibility, site.URL)
	}
	return nil
}
