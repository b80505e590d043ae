// Package history keeps the most recent log lines for the terminal overlay.
package history

import (
	"fmt"
	"sync"
	"time"
)

// Buffer is a fixed-size circular buffer of timestamped lines
type Buffer struct {
	lines    []string
	maxLines int
	index    int
	full     bool
	now      func() time.Time
	mutex    sync.RWMutex
}

// NewBuffer creates a circular buffer holding up to maxLines lines.
// A non-positive maxLines is treated as 1.
func NewBuffer(maxLines int) *Buffer {
	if maxLines < 1 {
		maxLines = 1
	}
	return &Buffer{
		lines:    make([]string, maxLines),
		maxLines: maxLines,
		now:      time.Now,
	}
}

// Add stores a new line, overwriting the oldest once full
func (b *Buffer) Add(line string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.lines[b.index] = fmt.Sprintf("[%s] %s", b.now().Format("15:04:05.000"), line)
	b.index = (b.index + 1) % b.maxLines
	if b.index == 0 {
		b.full = true
	}
}

// Recent returns up to n of the newest lines, oldest first. n <= 0 returns all.
func (b *Buffer) Recent(n int) []string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	count := b.index
	start := 0
	if b.full {
		count = b.maxLines
		start = b.index
	}
	if n > 0 && n < count {
		start = (start + count - n) % b.maxLines
		count = n
	}

	result := make([]string, 0, count)
	for i := 0; i < count; i++ {
		result = append(result, b.lines[(start+i)%b.maxLines])
	}
	return result
}

// Len returns the number of stored lines
func (b *Buffer) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.full {
		return b.maxLines
	}
	return b.index
}
