package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/core/ports"
)

type batchTask struct {
	idx      int
	ctx      context.Context
	question string
	runs     []*domain.PipelineRun
	wg       *sync.WaitGroup
}

// runBatch executes every question as an independent run. Results keep the
// order of questions regardless of completion order.
func runBatch(
	ctx context.Context,
	runner ports.PipelineRunner,
	questions []string,
	method domain.TransformationMethod,
	topK int,
	parallel int,
	runTimeout time.Duration,
) ([]*domain.PipelineRun, error) {
	if parallel <= 0 {
		parallel = 1
	}
	logger := slog.Default().With("component", "batch")
	runs := make([]*domain.PipelineRun, len(questions))

	pool, err := ants.NewPoolWithFunc(parallel, func(args any) {
		task, ok := args.(*batchTask)
		if !ok {
			panic("batch pool args type error")
		}
		defer task.wg.Done()

		runCtx := task.ctx
		if runTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(task.ctx, runTimeout)
			defer cancel()
		}
		run := runner.Run(runCtx, task.question, method, topK)
		task.runs[task.idx] = run
		logger.Info("batch_run_finished", "index", task.idx, "run_id", run.RunID, "status", run.Status())
	})
	if err != nil {
		return nil, fmt.Errorf("create batch pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, q := range questions {
		wg.Add(1)
		task := &batchTask{idx: i, ctx: ctx, question: q, runs: runs, wg: &wg}
		if err := pool.Invoke(task); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit question %d: %w", i, err)
		}
	}
	wg.Wait()
	return runs, nil
}
