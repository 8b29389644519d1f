package console

import (
	"strings"
	"sync"
)

// logBuffer keeps the most recent console lines.
type logBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newLogBuffer(max int) *logBuffer {
	if max <= 0 {
		max = DefaultMaxLines
	}
	return &logBuffer{max: max}
}

func (b *logBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, strings.TrimRight(line, "\r\n"))
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *logBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

func (b *logBuffer) Reset() {
	b.mu.Lock()
	b.lines = nil
	b.mu.Unlock()
}
