package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/uptiq/policy-rag/internal/config"
	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/observability/logging"
)

func main() {
	app := &cli.App{
		Name:  "ragctl",
		Usage: "Run HR policy queries and manage the retrieval index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "query",
				Usage:  "Run one question through the pipeline",
				Action: queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Question to answer",
						Required: true,
					},
					methodFlag(),
					topKFlag(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the run record as JSON to this file",
					},
					&cli.BoolFlag{
						Name:  "via-nats",
						Usage: "Send the query to a worker over NATS instead of running it locally",
					},
				},
			},
			{
				Name:   "batch",
				Usage:  "Run every line of a file as an independent question",
				Action: batchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "File with one question per line",
						Required: true,
					},
					methodFlag(),
					topKFlag(),
					&cli.IntFlag{
						Name:    "parallel",
						Aliases: []string{"p"},
						Usage:   "Number of runs executed concurrently",
						Value:   4,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write run records as a JSON array to this file",
					},
				},
			},
			{
				Name:   "index",
				Usage:  "Index the corpus into the configured vector store",
				Action: indexCommand,
			},
			{
				Name:   "sources",
				Usage:  "List indexed corpus files from the source registry",
				Action: sourcesCommand,
			},
			{
				Name:   "methods",
				Usage:  "List supported transformation methods",
				Action: methodsCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func methodFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "method",
		Aliases: []string{"m"},
		Usage:   "Transformation method",
		Value:   string(domain.MethodBasic),
	}
}

func topKFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "top-k",
		Usage: "Documents retrieved per query (0 uses the configured default)",
	}
}

func setup(c *cli.Context) error {
	if path := c.String("config"); path != "" {
		if err := os.Setenv("CONFIG_FILE", path); err != nil {
			return err
		}
	}
	// stdout carries command output.
	slog.SetDefault(logging.NewLogger(os.Stderr, "ragctl", c.String("log-level")))
	return nil
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
