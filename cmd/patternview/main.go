// Command patternview serves knitting patterns as interactive pages and
// exports them as standalone files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/areumknits/patternview/cmd/patternview/commands"
)

const version = "0.1.0-dev"

func newApp() *cli.Command {
	return &cli.Command{
		Name:            "patternview",
		Usage:           "interactive knitting pattern viewer",
		Version:         version + " (" + runtime.Version() + ")",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "verbose logging and uncached assets"},
		},
		Commands: []*cli.Command{
			{
				Name:      "serve",
				Usage:     "Serve the pattern catalog in DIR",
				ArgsUsage: "[DIR]",
				Flags:     commands.ServeFlags(),
				Action:    commands.Serve,
			},
			{
				Name:      "export",
				Usage:     "Write the standalone interactive HTML file for one pattern",
				ArgsUsage: "DIR SLUG",
				Flags:     commands.ExportFlags(),
				Action:    commands.Export,
			},
			{
				Name:      "validate",
				Usage:     "Parse every pattern in DIR and report problems",
				ArgsUsage: "[DIR]",
				Action:    commands.Validate,
			},
			{
				Name:  "version",
				Usage: "Show version",
				Action: func(_ context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "patternview version %s\n", version)
					return nil
				},
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
