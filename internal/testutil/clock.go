package testutil

import "sync"

// RevisionClock hands out consecutive revision numbers for building test
// histories.
//
// Unlike a real entity revision, a RevisionClock can be rewound so the same
// history can be rebuilt with identical revisions.
//
// Thread-safety: all methods are safe for concurrent use.
type RevisionClock struct {
	mu    sync.Mutex
	start int64
	rev   int64
}

// NewRevisionClock creates a clock whose first Next() returns start+1.
func NewRevisionClock(start int64) *RevisionClock {
	return &RevisionClock{start: start, rev: start}
}

// Next increments and returns the next revision.
func (c *RevisionClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rev++
	return c.rev
}

// Current returns the last revision handed out (or the start).
func (c *RevisionClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rev
}

// Reset rewinds the clock to its start.
func (c *RevisionClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rev = c.start
}
