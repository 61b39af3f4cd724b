package schemas

import "time"

// -- Result Schemas --

// Status is the outcome of a step or scenario.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Attachment is a piece of evidence attached to a step, such as a captured
// HTTP exchange, a screenshot or a DOM snapshot.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// StepResult is one labelled logical action inside a scenario.
type StepResult struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Started     time.Time     `json:"started"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
	Attachments []Attachment  `json:"attachments,omitempty"`
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name        string        `json:"name"`
	DisplayName string        `json:"display_name"`
	Status      Status        `json:"status"`
	FailureKind string        `json:"failure_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
	Started     time.Time     `json:"started"`
	Duration    time.Duration `json:"duration"`
	Steps       []StepResult  `json:"steps"`
}

// RunResult groups the scenarios executed by one invocation.
type RunResult struct {
	ID        string           `json:"id"`
	BaseURL   string           `json:"base_url"`
	Started   time.Time        `json:"started"`
	Finished  time.Time        `json:"finished"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

// Failed reports whether any scenario in the run failed.
func (r *RunResult) Failed() bool {
	for _, s := range r.Scenarios {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Counts returns the number of passed, failed and skipped scenarios.
func (r *RunResult) Counts() (passed, failed, skipped int) {
	for _, s := range r.Scenarios {
		switch s.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return passed, failed, skipped
}
