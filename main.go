package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/fedsearch/fedsearch/cmd"
	"github.com/fedsearch/fedsearch/pkg/config"
	pkglog "github.com/fedsearch/fedsearch/pkg/log"
)

func main() {
	app := &cli.Command{
		Name:  "fedsearch",
		Usage: "Federated content search across local sites and remote APIs",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if c.Bool("debug") {
				pkglog.SetGlobalDebug(true)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.ServeCommand(),
			cmd.SearchCommand(),
			cmd.SuggestCommand(),
			cmd.SourcesCommand(),
			cmd.SitesCommand(),
			cmd.ImportCommand(),
			cmd.TreeCommand(),
			cmd.InvalidateCommand(),
			cmd.StatsCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		log.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}
