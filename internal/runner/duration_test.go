package runner

import (
	"testing"
	"time"
)

func TestFormatElapsed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{"sub-second is unmeasured", 300 * time.Millisecond, "-"},
		{"zero", 0, "-"},
		{"negative", -5 * time.Second, "-"},
		{"seconds only", 3 * time.Second, "03 second(s)"},
		{"minutes and seconds", 5*time.Minute + 3*time.Second, "05 minute(s), 03 second(s)"},
		{"hours", 2*time.Hour + 5*time.Minute + 3*time.Second, "02 hour(s), 05 minute(s) 03 second(s)"},
		{"days", 49*time.Hour + 61*time.Second, "02 day(s), 01 hour(s), 01 minute(s), 01 second(s)"},
		{"fraction truncated", 3*time.Second + 900*time.Millisecond, "03 second(s)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FormatElapsed(tt.d); got != tt.want {
				t.Errorf("FormatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}
