// Package fakelog provides a logger that records messages for assertions.
package fakelog

import (
	"fmt"
	"sync"
)

// Entry is one recorded message.
type Entry struct {
	Level   string
	Message string
}

// Logger records Info and Warn calls.
type Logger struct {
	mu      sync.Mutex
	entries []Entry
}

// New creates an empty recorder.
func New() *Logger {
	return &Logger{}
}

// Info records an info message.
func (l *Logger) Info(format string, args ...any) {
	l.record("info", format, args...)
}

// Warn records a warning.
func (l *Logger) Warn(format string, args ...any) {
	l.record("warn", format, args...)
}

func (l *Logger) record(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Messages returns the recorded messages of a level in order.
func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []string
	for _, e := range l.entries {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Last returns the most recent message of a level, or "".
func (l *Logger) Last(level string) string {
	msgs := l.Messages(level)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}
