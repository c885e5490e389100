// Package dedupe drops feed lines already seen within a recent window. Reconnecting
// streams replay their last messages, so the window only needs to cover a backlog.
package dedupe

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultWindow is the number of recent lines remembered by New(0).
const DefaultWindow = 4096

// Window remembers the xxHash64 of the last size lines. It is safe for concurrent use.
type Window struct {
	mu     sync.Mutex
	ring   []uint64
	next   int
	filled bool
	counts map[uint64]int
}

// New returns a window over the last size lines, DefaultWindow when size is not positive.
func New(size int) *Window {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Window{
		ring:   make([]uint64, size),
		counts: make(map[uint64]int, size),
	}
}

// Sum computes the hash lines are remembered by.
func Sum(line []byte) uint64 {
	return xxhash.Sum64(line)
}

// Seen reports whether line is among the remembered lines and remembers it.
func (w *Window) Seen(line []byte) bool {
	h := Sum(line)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.counts[h] > 0 {
		return true
	}

	if w.filled {
		old := w.ring[w.next]
		if w.counts[old]--; w.counts[old] <= 0 {
			delete(w.counts, old)
		}
	}
	w.ring[w.next] = h
	w.counts[h]++
	w.next++
	if w.next == len(w.ring) {
		w.next = 0
		w.filled = true
	}
	return false
}

// Len returns the number of remembered lines.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.filled {
		return len(w.ring)
	}
	return w.next
}
