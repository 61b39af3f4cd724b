// File: internal/scenario/runner.go
package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/config"
	"github.com/avasilev/shopbridge/internal/failures"
)

// Runner executes scenarios, each with its own browser session.
type Runner struct {
	cfg      *config.Config
	api      ShopAPI
	launcher schemas.BrowserLauncher
	store    schemas.RunStore
	logger   *zap.Logger
}

// NewRunner creates a runner. store may be nil.
func NewRunner(cfg *config.Config, api ShopAPI, launcher schemas.BrowserLauncher, store schemas.RunStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		api:      api,
		launcher: launcher,
		store:    store,
		logger:   logger.Named("runner"),
	}
}

// Run executes scenarios and returns their results in the given order. Up to
// browser.concurrency scenarios run at once. Scenarios that could not start
// before ctx was cancelled are reported as skipped. The error is non-nil only
// when ctx was cancelled.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (*schemas.RunResult, error) {
	run := &schemas.RunResult{
		ID:        uuid.NewString(),
		BaseURL:   r.cfg.Shop.BaseURL,
		Started:   time.Now(),
		Scenarios: make([]schemas.ScenarioResult, len(scenarios)),
	}
	logger := r.logger.With(zap.String("run_id", run.ID))
	logger.Info("Starting run.", zap.Int("scenarios", len(scenarios)), zap.String("base_url", run.BaseURL))

	limit := int64(r.cfg.Browser.Concurrency)
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(limit)
	var wg sync.WaitGroup

	for i, sc := range scenarios {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(scenarios); j++ {
				run.Scenarios[j] = skipped(scenarios[j], "run cancelled before the scenario started")
			}
			break
		}
		wg.Add(1)
		go func(i int, sc Scenario) {
			defer wg.Done()
			defer sem.Release(1)
			run.Scenarios[i] = r.runOne(ctx, sc, logger)
		}(i, sc)
	}
	wg.Wait()
	run.Finished = time.Now()

	passed, failed, skippedCount := run.Counts()
	logger.Info("Run finished.",
		zap.Int("passed", passed),
		zap.Int("failed", failed),
		zap.Int("skipped", skippedCount),
		zap.Duration("duration", run.Finished.Sub(run.Started)))

	if r.store != nil {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		if err := r.store.SaveRun(saveCtx, run); err != nil {
			logger.Error("Failed to save run history.", zap.Error(err))
		}
		cancel()
	}
	return run, ctx.Err()
}

// runOne gives sc an exclusive browser session for its whole lifetime and
// records its outcome.
func (r *Runner) runOne(ctx context.Context, sc Scenario, logger *zap.Logger) schemas.ScenarioResult {
	logger = logger.With(zap.String("scenario", sc.Name()))
	env := newEnv(r.cfg, r.api, r.launcher, logger)
	res := schemas.ScenarioResult{
		Name:        sc.Name(),
		DisplayName: sc.DisplayName(),
		Started:     time.Now(),
	}

	err := env.acquire(ctx)
	if err == nil {
		defer env.release(ctx)
		err = r.execute(ctx, sc, env)
	}

	res.Duration = time.Since(res.Started)
	res.Steps = env.recorder.Steps()
	if err != nil {
		res.Status = schemas.StatusFailed
		res.FailureKind = string(failures.KindOf(err))
		res.Error = err.Error()
		logger.Error("Scenario failed.", zap.String("kind", res.FailureKind), zap.Error(err))
	} else {
		res.Status = schemas.StatusPassed
		logger.Info("Scenario passed.", zap.Duration("duration", res.Duration))
	}
	return res
}

// execute runs sc and turns a panic into a failure of that scenario only.
func (r *Runner) execute(ctx context.Context, sc Scenario, env *Env) (err error) {
	defer func() {
		if p := recover(); p != nil {
			env.Logger.Error("Scenario panicked.", zap.Any("panic", p), zap.Stack("stack"))
			err = failures.Wrap(failures.KindUnknown, sc.Name(), panicError{p})
		}
	}()
	return sc.Run(ctx, env)
}

type panicError struct{ v interface{} }

func (p panicError) Error() string { return fmt.Sprintf("panic: %v", p.v) }

func skipped(sc Scenario, reason string) schemas.ScenarioResult {
	return schemas.ScenarioResult{
		Name:        sc.Name(),
		DisplayName: sc.DisplayName(),
		Status:      schemas.StatusSkipped,
		Error:       reason,
		Started:     time.Now(),
	}
}
