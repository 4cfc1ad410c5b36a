package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/fedsearch/fedsearch/pkg/config"
	"github.com/fedsearch/fedsearch/pkg/contentstore"
)

// ImportCommand creates the import command
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import content items into a site from a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "site",
				Usage:    "Target site name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "file",
				Usage:    "JSON file with an array of items",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "site-url",
				Usage: "Site base URL, set when the site is created",
			},
			&cli.BoolFlag{
				Name:  "public",
				Usage: "Mark the site as public (searchable)",
				Value: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return importItems(c.String("config"), c.String("site"), c.String("file"), c.String("site-url"), c.Bool("public"))
		},
	}
}

func importItems(configPath, site, filePath, siteURL string, public bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filePath, err)
	}

	var items []contentstore.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("parsing %s: %w", filePath, err)
	}

	store := contentstore.NewManager(cfg.StorageDir)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warnf("closing store: %v", err)
		}
	}()

	if _, err := store.EnsureSite(contentstore.SiteInfo{Name: site, Public: public, URL: siteURL}); err != nil {
		return fmt.Errorf("ensuring site %s: %w", site, err)
	}

	imported := 0
	for _, item := range items {
		if item.Title == "" || item.URL == "" {
			logger.Warnf("skipping item without title or url (id: %q)", item.ID)
			continue
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.Status == "" {
			item.Status = "publish"
		}
		if item.PostType == "" {
			item.PostType = "page"
		}
		item.Site = site

		if err := store.UpsertItem(site, item); err != nil {
			return fmt.Errorf("importing item %s: %w", item.ID, err)
		}
		imported++
	}

	fmt.Printf("Imported %d items into site %s\n", imported, site)
	return nil
}
