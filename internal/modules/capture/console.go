package capture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"revi/agent-core/internal/modules/breadcrumb"
	"revi/agent-core/internal/modules/capture/entity"
)

// Console forwards host console output into the breadcrumb timeline.
// Error-level lines additionally reach the error capture as messages so a
// console.error shows up in issue listings.
type Console struct {
	crumbs *breadcrumb.Ring
	errors *ErrorCapture
	now    func() time.Time
}

func NewConsole(crumbs *breadcrumb.Ring, errors *ErrorCapture) *Console {
	return &Console{
		crumbs: crumbs,
		errors: errors,
		now:    time.Now,
	}
}

// Capture records one console line. level follows console semantics:
// log, info, warn, error, debug.
func (c *Console) Capture(level string, args ...any) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	message := strings.Join(parts, " ")

	c.crumbs.Push(breadcrumb.Breadcrumb{
		Timestamp: c.now().UnixMilli(),
		Category:  breadcrumb.CategoryConsole,
		Level:     level,
		Message:   message,
	})

	if level == "error" && c.errors != nil {
		c.errors.CaptureMessage(context.Background(), message, CaptureOptions{Level: entity.SeverityError})
	}
}
