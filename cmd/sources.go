package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/fedsearch/fedsearch/pkg/config"
)

// SourcesCommand creates the sources command
func SourcesCommand() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "List configured search sources",
		Action: func(ctx context.Context, c *cli.Command) error {
			return listSources(c.String("config"))
		},
	}
}

func listSources(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	names := cfg.ListSources()
	if len(names) == 0 {
		fmt.Println("No sources configured")
		return nil
	}

	fmt.Printf("Configured sources (%d), in fan-out order:\n", len(names))
	for _, name := range names {
		sourceType, _, err := cfg.GetSourceConfig(name)
		if err != nil {
			return err
		}
		fmt.Printf("  - %s (type: %s, score bonus: %d, timeout: %v)\n",
			name, sourceType, cfg.SourceScoreBonus(name), cfg.SourceTimeout(name))
	}
	return nil
}
