// File: internal/reporting/recorder.go
package reporting

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avasilev/shopbridge/api/schemas"
	"github.com/avasilev/shopbridge/internal/failures"
)

// Recorder labels the logical actions of one scenario. It only observes: the
// error of a step is returned to the caller unchanged.
type Recorder struct {
	logger *zap.Logger

	mu    sync.Mutex
	steps []schemas.StepResult
}

func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{logger: logger}
}

// Step runs fn and records its outcome under name. Attachments carried by a
// classified failure are stored with the step.
func (r *Recorder) Step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	started := time.Now()
	r.logger.Debug("Step started.", zap.String("step", name))

	err := fn(ctx)

	res := schemas.StepResult{
		Name:     name,
		Status:   schemas.StatusPassed,
		Started:  started,
		Duration: time.Since(started),
	}
	if err != nil {
		res.Status = schemas.StatusFailed
		res.Error = err.Error()
		res.Attachments = failures.AttachmentsOf(err)
		r.logger.Warn("Step failed.", zap.String("step", name), zap.Duration("duration", res.Duration), zap.Error(err))
	} else {
		r.logger.Info("Step passed.", zap.String("step", name), zap.Duration("duration", res.Duration))
	}

	r.mu.Lock()
	r.steps = append(r.steps, res)
	r.mu.Unlock()
	return err
}

// Skip records a step that was not run.
func (r *Recorder) Skip(name, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, schemas.StepResult{
		Name:    name,
		Status:  schemas.StatusSkipped,
		Started: time.Now(),
		Error:   reason,
	})
}

// Steps returns a copy of the recorded steps in execution order.
func (r *Recorder) Steps() []schemas.StepResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schemas.StepResult, len(r.steps))
	copy(out, r.steps)
	return out
}
