package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/uptiq/policy-rag/internal/bootstrap"
	"github.com/uptiq/policy-rag/internal/config"
	"github.com/uptiq/policy-rag/internal/core/domain"
	natsqueue "github.com/uptiq/policy-rag/internal/infrastructure/queue/nats"
)

func queryCommand(c *cli.Context) error {
	method, err := domain.ParseMethod(c.String("method"))
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	req := domain.QueryRequest{Query: c.String("query"), Method: string(method), TopK: c.Int("top-k")}
	ctx, cancel := context.WithTimeout(c.Context, cfg.RunTimeout())
	defer cancel()

	var run *domain.PipelineRun
	if c.Bool("via-nats") {
		run, err = queryViaNATS(ctx, cfg, req)
		if err != nil {
			return err
		}
	} else {
		app, err := bootstrap.New(c.Context, cfg, bootstrap.Options{Service: "ragctl"})
		if err != nil {
			return err
		}
		defer app.Close()
		run = app.Orchestrator.Run(ctx, req.Query, method, req.TopK)
	}

	if err := writeJSONOutput(c.App.Writer, c.String("output"), run); err != nil {
		return err
	}
	if c.String("output") == "" {
		return nil
	}
	fmt.Fprintln(c.App.Writer, run.FinalAnswer)
	return nil
}

func queryViaNATS(ctx context.Context, cfg config.Config, req domain.QueryRequest) (*domain.PipelineRun, error) {
	if cfg.NATSURL == "" {
		return nil, errors.New("NATS_URL is required for --via-nats")
	}
	noRetry := false
	conn, err := natsqueue.Connect(cfg.NATSURL, natsqueue.Options{
		Name:                 "ragctl",
		RetryOnFailedConnect: &noRetry,
	})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.Request(ctx, cfg.NATSQueriesSubject, req)
}

func batchCommand(c *cli.Context) error {
	method, err := domain.ParseMethod(c.String("method"))
	if err != nil {
		return err
	}
	f, err := os.Open(c.String("file"))
	if err != nil {
		return fmt.Errorf("open questions: %w", err)
	}
	questions, err := readQuestions(f)
	_ = f.Close()
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return errors.New("questions file is empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := bootstrap.New(c.Context, cfg, bootstrap.Options{Service: "ragctl"})
	if err != nil {
		return err
	}
	defer app.Close()

	runs, err := runBatch(c.Context, app.Orchestrator, questions, method, c.Int("top-k"), c.Int("parallel"), cfg.RunTimeout())
	if err != nil {
		return err
	}
	return writeJSONOutput(c.App.Writer, c.String("output"), runs)
}

func indexCommand(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := bootstrap.New(c.Context, cfg, bootstrap.Options{Service: "ragctl", SkipStartupIndex: true})
	if err != nil {
		return err
	}
	defer app.Close()
	if app.Indexer == nil {
		return errors.New("vector store is unavailable")
	}

	report, indexErr := app.Indexer.IndexCorpus(c.Context)
	if report != nil {
		if err := writeJSONOutput(c.App.Writer, "", report); err != nil {
			return err
		}
	}
	return indexErr
}

func sourcesCommand(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := bootstrap.New(c.Context, cfg, bootstrap.Options{Service: "ragctl", SkipStartupIndex: true})
	if err != nil {
		return err
	}
	defer app.Close()
	if app.Registry == nil {
		return errors.New("source registry needs vector_store=qdrant and a reachable postgres_dsn")
	}

	sources, err := app.Registry.List(c.Context)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILENAME\tSTATUS\tCHUNKS\tUPDATED\tERROR")
	for _, s := range sources {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.Filename, s.Status, s.ChunkCount, s.UpdatedAt.Format("2006-01-02 15:04"), s.Error)
	}
	return w.Flush()
}

func methodsCommand(c *cli.Context) error {
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tSYNTHESIS\tRERANKS")
	for _, m := range domain.Methods() {
		fmt.Fprintf(w, "%s\t%s\t%t\n", m, m.Synthesis(), m.Reranks())
	}
	return w.Flush()
}

// readQuestions returns non-blank lines; lines starting with # are comments.
func readQuestions(r io.Reader) ([]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

func writeJSONOutput(stdout io.Writer, path string, v any) error {
	w := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
