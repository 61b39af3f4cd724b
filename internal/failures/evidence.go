// File: internal/failures/evidence.go
package failures

import (
	"context"
	"fmt"
	"time"

	"github.com/avasilev/shopbridge/api/schemas"
)

const evidenceTimeout = 15 * time.Second

// Evidence captures the browser state as report attachments. Capture runs on a
// context detached from ctx's cancellation so a timed out step still yields
// its screenshot. Parts that cannot be captured are skipped.
func Evidence(ctx context.Context, bc schemas.BrowserContext) []schemas.Attachment {
	if bc == nil {
		return nil
	}
	capCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), evidenceTimeout)
	defer cancel()

	ev, err := bc.Evidence(capCtx)
	if ev == nil {
		if err != nil {
			return []schemas.Attachment{{
				Name:        "evidence error",
				ContentType: "text/plain",
				Body:        []byte(err.Error()),
			}}
		}
		return nil
	}

	var out []schemas.Attachment
	if len(ev.Screenshot) > 0 {
		out = append(out, schemas.Attachment{Name: "screenshot", ContentType: "image/png", Body: ev.Screenshot})
	}
	if ev.DOM != "" {
		out = append(out, schemas.Attachment{
			Name:        fmt.Sprintf("dom %s", ev.URL),
			ContentType: "text/html",
			Body:        []byte(ev.DOM),
		})
	}
	return out
}

// AssertionAt builds an assertion failure with evidence taken from bc.
func AssertionAt(ctx context.Context, bc schemas.BrowserContext, op string, cause error, format string, args ...interface{}) *Error {
	fe := Assertion(op, format, args...)
	fe.Err = cause
	return fe.Attach(Evidence(ctx, bc)...)
}

// NavigationAt classifies a failed page load in bc as an assertion failure
// with evidence. Errors caused by ctx ending are returned unchanged.
func NavigationAt(ctx context.Context, bc schemas.BrowserContext, op, target string, err error) error {
	if ctx.Err() != nil {
		return err
	}
	return AssertionAt(ctx, bc, op, err, "could not load %s", target)
}
