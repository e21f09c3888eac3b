package runner

import (
	"fmt"
	"time"
)

// FormatElapsed renders a wall-clock duration for the run summary, largest
// unit first, omitting leading zero-valued units. Whole seconds only; a
// duration under one second renders "-" (unmeasured as far as the summary is
// concerned).
func FormatElapsed(d time.Duration) string {
	total := int64(d.Seconds())
	if total <= 0 {
		return "-"
	}

	days := total / (3600 * 24)
	hours := total / 3600 % 24
	minutes := total % 3600 / 60
	seconds := total % 3600 % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%02d day(s), %02d hour(s), %02d minute(s), %02d second(s)", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%02d hour(s), %02d minute(s) %02d second(s)", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%02d minute(s), %02d second(s)", minutes, seconds)
	default:
		return fmt.Sprintf("%02d second(s)", seconds)
	}
}
