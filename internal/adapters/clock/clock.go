// Package clock provides the wall clock.
package clock

import (
	"time"

	"github.com/example/dispatch/internal/ports/secondary"
)

// System reads the wall clock in UTC, truncated to the microsecond precision
// both stores keep.
type System struct{}

var _ secondary.Clock = System{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
