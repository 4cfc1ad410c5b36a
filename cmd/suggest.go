package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// SuggestCommand creates the suggest command
func SuggestCommand() *cli.Command {
	return &cli.Command{
		Name:  "suggest",
		Usage: "Show typeahead suggestions for a query",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "Partial query",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return suggestContent(ctx, c.String("config"), c.String("query"))
		},
	}
}

func suggestContent(ctx context.Context, configPath, query string) error {
	agg, store, c, _, err := setupAggregator(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := agg.Close(); err != nil {
			logger.Warnf("closing sources: %v", err)
		}
		if err := store.Close(); err != nil {
			logger.Warnf("closing store: %v", err)
		}
		if err := c.Close(); err != nil {
			logger.Warnf("closing cache: %v", err)
		}
	}()

	suggestions, err := agg.Suggest(ctx, query)
	if err != nil {
		return fmt.Errorf("suggesting: %w", err)
	}

	if len(suggestions) == 0 {
		fmt.Println(noDataStyle.Render("No suggestions"))
		return nil
	}

	for _, s := range suggestions {
		fmt.Printf("%s  %s %s\n", titleStyle.Render(s.Title), urlStyle.Render(s.URL), metaStyle.Render("("+s.SourceName+")"))
	}
	return nil
}
