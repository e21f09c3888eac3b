// Package quarantine persists rejected input files for later inspection: one
// structured line appended to a shared error log, plus a verbatim copy of the
// offending file into the dataset's mismatch directory.
package quarantine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// logTimeLayout matches the format external consumers of errors.log parse:
// day/month/year with a 12-hour clock.
const logTimeLayout = "02/01/2006 03:04:05 PM"

const (
	defaultMaxAttempts = 5
	defaultBaseBackoff = 100 * time.Millisecond
)

// Sink appends to one shared error log. An external process may be appending
// to the same file, so log writes retry on failure — but with a bounded
// attempt count and doubling backoff, then surface the error. An append that
// cannot succeed after backoff is a real I/O problem, not contention.
type Sink struct {
	LogPath string

	// MaxAttempts and BaseBackoff tune the append retry. Zero values take the
	// package defaults.
	MaxAttempts int
	BaseBackoff time.Duration

	// Test seams.
	now   func() time.Time
	sleep func(time.Duration)
}

// New returns a Sink appending to logPath with default retry settings.
func New(logPath string) *Sink {
	return &Sink{LogPath: logPath}
}

// Quarantine records one invalid input file: (a) appends a log line of the
// form "<timestamp>, ERROR, SCHEMA ERR, <filePath>, <message>", then (b)
// copies the file unchanged into mismatchDir under its original name,
// creating the directory if needed.
//
// Errors:
//   - Log-append failure (after retries) or copy failure. The log line is
//     written before the copy is attempted, so a copy failure never loses the
//     log record.
func (s *Sink) Quarantine(mismatchDir, filePath, fileName, message string) error {
	line := fmt.Sprintf("%s, ERROR, SCHEMA ERR, %s, %s", s.timeNow().Format(logTimeLayout), filePath, message)
	if err := s.appendLine(line); err != nil {
		return fmt.Errorf("append error log: %w", err)
	}
	if err := copyFile(filePath, mismatchDir, fileName); err != nil {
		return fmt.Errorf("copy to mismatch dir: %w", err)
	}
	return nil
}

// appendLine opens the log in append mode, writes line + "\n", and closes.
// Open-write-close per line keeps the retry unit simple and tolerates an
// external appender holding the file between our writes.
func (s *Sink) appendLine(line string) error {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	backoff := s.BaseBackoff
	if backoff <= 0 {
		backoff = defaultBaseBackoff
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			s.doSleep(backoff)
			backoff *= 2
		}
		if err = writeLine(s.LogPath, line); err == nil {
			return nil
		}
	}
	return err
}

func writeLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func copyFile(src, dstDir, name string) error {
	// MkdirAll is a no-op when the directory already exists.
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(filepath.Join(dstDir, name))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func (s *Sink) timeNow() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Sink) doSleep(d time.Duration) {
	if s.sleep != nil {
		s.sleep(d)
		return
	}
	time.Sleep(d)
}
