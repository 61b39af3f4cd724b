// File: internal/reporting/text_reporter.go
package reporting

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/avasilev/shopbridge/api/schemas"
)

// TextReporter writes a human readable summary.
type TextReporter struct {
	w io.WriteCloser
}

func NewTextReporter(w io.WriteCloser) *TextReporter {
	return &TextReporter{w: w}
}

func (r *TextReporter) Write(run *schemas.RunResult) error {
	bw := bufio.NewWriter(r.w)
	fmt.Fprintf(bw, "Run %s against %s\n", run.ID, run.BaseURL)

	for _, sc := range run.Scenarios {
		fmt.Fprintf(bw, "\n%s %s (%s)\n", statusMark(sc.Status), sc.DisplayName, round(sc.Duration))
		for _, st := range sc.Steps {
			fmt.Fprintf(bw, "    %s %s (%s)\n", statusMark(st.Status), st.Name, round(st.Duration))
			if st.Error != "" {
				fmt.Fprintf(bw, "        %s\n", st.Error)
			}
			for _, a := range st.Attachments {
				fmt.Fprintf(bw, "        attachment: %s [%s, %d bytes]\n", a.Name, a.ContentType, len(a.Body))
				if a.ContentType == "text/plain" {
					for _, line := range strings.Split(strings.TrimRight(string(a.Body), "\n"), "\n") {
						fmt.Fprintf(bw, "          | %s\n", line)
					}
				}
			}
		}
		if sc.Error != "" && len(sc.Steps) == 0 {
			fmt.Fprintf(bw, "    %s\n", sc.Error)
		}
	}

	passed, failed, skipped := run.Counts()
	fmt.Fprintf(bw, "\n%d passed, %d failed, %d skipped in %s\n",
		passed, failed, skipped, round(run.Finished.Sub(run.Started)))
	return bw.Flush()
}

func (r *TextReporter) Close() error {
	return r.w.Close()
}

func statusMark(s schemas.Status) string {
	switch s {
	case schemas.StatusPassed:
		return "PASS"
	case schemas.StatusFailed:
		return "FAIL"
	default:
		return "SKIP"
	}
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
