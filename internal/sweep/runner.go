package sweep

import (
	"context"
	"log/slog"
	"time"
)

// Runner drives periodic sweep passes while serving.
type Runner struct {
	Evaluator Evaluator
	Interval  time.Duration
	DryRun    bool
	Logger    *slog.Logger
}

// Start launches the loop in its own goroutine. It stops when ctx is
// cancelled.
func (r Runner) Start(ctx context.Context) {
	if r.Interval <= 0 {
		r.Interval = 5 * time.Minute
	}
	go r.run(ctx)
}

func (r Runner) run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		r.pass(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r Runner) pass(ctx context.Context) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	result, err := r.Evaluator.EvaluateAllProjects(ctx, r.DryRun)
	if err != nil {
		log.Error("sweep pass failed", "error", err)
		return
	}
	log.Info("sweep pass complete",
		"total", result.TotalProjects,
		"evaluated", result.EvaluatedProjects,
		"transitioned", result.SuccessfulTransitions,
		"failed", result.FailedTransitions)
}
