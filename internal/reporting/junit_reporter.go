// File: internal/reporting/junit_reporter.go
package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/avasilev/shopbridge/api/schemas"
)

const junitSuiteName = "shopbridge"

// JUnitReporter writes the run in the JUnit XML format understood by CI
// servers. Each scenario is a test case; its steps go to system-out.
type JUnitReporter struct {
	w io.WriteCloser
}

func NewJUnitReporter(w io.WriteCloser) *JUnitReporter {
	return &JUnitReporter{w: w}
}

func (r *JUnitReporter) Write(run *schemas.RunResult) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	passed, failed, skipped := run.Counts()
	total := passed + failed + skipped
	elapsed := run.Finished.Sub(run.Started)

	suites := doc.CreateElement("testsuites")
	suites.CreateAttr("name", junitSuiteName)
	suites.CreateAttr("tests", fmt.Sprint(total))
	suites.CreateAttr("failures", fmt.Sprint(failed))
	suites.CreateAttr("time", seconds(elapsed))

	suite := suites.CreateElement("testsuite")
	suite.CreateAttr("name", junitSuiteName)
	suite.CreateAttr("id", run.ID)
	suite.CreateAttr("tests", fmt.Sprint(total))
	suite.CreateAttr("failures", fmt.Sprint(failed))
	suite.CreateAttr("errors", "0")
	suite.CreateAttr("skipped", fmt.Sprint(skipped))
	suite.CreateAttr("time", seconds(elapsed))
	suite.CreateAttr("timestamp", run.Started.UTC().Format(time.RFC3339))

	props := suite.CreateElement("properties")
	prop := props.CreateElement("property")
	prop.CreateAttr("name", "base_url")
	prop.CreateAttr("value", run.BaseURL)

	for _, sc := range run.Scenarios {
		tc := suite.CreateElement("testcase")
		tc.CreateAttr("name", sc.DisplayName)
		tc.CreateAttr("classname", junitSuiteName+"."+sc.Name)
		tc.CreateAttr("time", seconds(sc.Duration))

		switch sc.Status {
		case schemas.StatusFailed:
			f := tc.CreateElement("failure")
			f.CreateAttr("message", sc.Error)
			f.CreateAttr("type", sc.FailureKind)
			f.SetText(failureDetail(sc))
		case schemas.StatusSkipped:
			s := tc.CreateElement("skipped")
			s.CreateAttr("message", sc.Error)
		}

		if len(sc.Steps) > 0 {
			tc.CreateElement("system-out").SetText(stepLog(sc.Steps))
		}
	}

	doc.Indent(2)
	_, err := doc.WriteTo(r.w)
	return err
}

func (r *JUnitReporter) Close() error {
	return r.w.Close()
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

// failureDetail renders the failing step with its text attachments.
func failureDetail(sc schemas.ScenarioResult) string {
	var b strings.Builder
	for _, st := range sc.Steps {
		if st.Status != schemas.StatusFailed {
			continue
		}
		fmt.Fprintf(&b, "step %q: %s\n", st.Name, st.Error)
		for _, a := range st.Attachments {
			if a.ContentType == "text/plain" {
				fmt.Fprintf(&b, "\n%s\n%s\n", a.Name, a.Body)
			} else {
				fmt.Fprintf(&b, "attachment %s (%s, %d bytes)\n", a.Name, a.ContentType, len(a.Body))
			}
		}
	}
	if b.Len() == 0 {
		return sc.Error
	}
	return b.String()
}

func stepLog(steps []schemas.StepResult) string {
	var b strings.Builder
	for _, st := range steps {
		fmt.Fprintf(&b, "[%s] %s (%s)\n", st.Status, st.Name, st.Duration.Round(time.Millisecond))
	}
	return b.String()
}
