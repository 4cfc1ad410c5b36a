package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/fedsearch/fedsearch/pkg/config"
	"github.com/fedsearch/fedsearch/pkg/contentstore"
)

// TreeCommand creates the tree command
func TreeCommand() *cli.Command {
	return &cli.Command{
		Name:  "tree",
		Usage: "Show a site's pages as a hierarchy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "site",
				Usage:    "Site name",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "post-type",
				Usage: "Post type to list",
				Value: "page",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return showTree(c.String("config"), c.String("site"), c.String("post-type"))
		},
	}
}

func showTree(configPath, site, postType string) error {
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

	siteStore, err := store.GetSite(site)
	if err != nil {
		return fmt.Errorf("opening site %s: %w", site, err)
	}

	printed, err := printSubtree(siteStore, postType, "", 0)
	if err != nil {
		return err
	}
	if printed == 0 {
		fmt.Println("No items found")
	}
	return nil
}

// printSubtree prints the children of parentID at the given depth, then
// recurses. Returns how many items were printed in total.
func printSubtree(s *contentstore.SiteStore, postType, parentID string, depth int) (int, error) {
	items, err := s.ItemsByParent(postType, parentID)
	if err != nil {
		return 0, fmt.Errorf("listing children of %q: %w", parentID, err)
	}

	printed := 0
	for _, item := range items {
		fmt.Printf("%s- %s %s\n", strings.Repeat("  ", depth), item.Title, metaStyle.Render(item.URL))
		printed++

		below, err := printSubtree(s, postType, item.ID, depth+1)
		if err != nil {
			return printed, err
		}
		printed += below
	}
	return printed, nil
}
