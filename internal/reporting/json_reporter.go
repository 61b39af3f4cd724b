// File: internal/reporting/json_reporter.go
package reporting

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/avasilev/shopbridge/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONReporter writes the run as one indented JSON document.
type JSONReporter struct {
	w io.WriteCloser
}

func NewJSONReporter(w io.WriteCloser) *JSONReporter {
	return &JSONReporter{w: w}
}

func (r *JSONReporter) Write(run *schemas.RunResult) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func (r *JSONReporter) Close() error {
	return r.w.Close()
}
