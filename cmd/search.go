package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	scoreStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search across all configured sources",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "Search query",
			},
			&cli.BoolFlag{
				Name:  "remote",
				Usage: "Include remote sources",
				Value: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return searchContent(ctx, c.String("config"), c.String("query"), c.Bool("remote"))
		},
	}
}

func searchContent(ctx context.Context, configPath, query string, includeRemote bool) error {
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

	result, err := agg.Search(ctx, query, includeRemote)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if result.EmptyQuery {
		fmt.Println(noDataStyle.Render("Empty query, nothing to search for"))
		return nil
	}
	if result.Total == 0 {
		fmt.Println(noDataStyle.Render("No results found"))
		return nil
	}

	for i, hit := range result.Hits {
		fmt.Printf("%d. %s %s\n", i+1, titleStyle.Render(hit.Title), scoreStyle.Render(fmt.Sprintf("[%d]", hit.Score)))
		fmt.Printf("   %s\n", urlStyle.Render(hit.URL))
		meta := hit.SourceName
		if !hit.ModifiedAt.IsZero() {
			meta += " · " + formatTime(hit.ModifiedAt)
		}
		fmt.Printf("   %s\n", metaStyle.Render(meta))
		if i < len(result.Hits)-1 {
			fmt.Println()
		}
	}

	suffix := ""
	if result.Cached {
		suffix = " (cached)"
	}
	fmt.Printf("\nTotal: %d results%s\n", result.Total, suffix)
	return nil
}
