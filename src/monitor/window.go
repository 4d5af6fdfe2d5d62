package monitor

import "sync"

// DefaultWindowSize is how many recent readings the dashboard keeps.
const DefaultWindowSize = 5

// Window is a fixed-capacity FIFO of readings. Once full, each Push evicts
// the oldest entry. Snapshots are ordered oldest first.
type Window struct {
	mu   sync.RWMutex
	buf  []Reading
	head int // index of the oldest element
	n    int
}

// NewWindow returns an empty window holding at most size readings (minimum 1).
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{buf: make([]Reading, size)}
}

// Push appends r, dropping the oldest reading when the window is full.
func (w *Window) Push(r Reading) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.n < len(w.buf) {
		w.buf[(w.head+w.n)%len(w.buf)] = r
		w.n++
		return
	}
	w.buf[w.head] = r
	w.head = (w.head + 1) % len(w.buf)
}

// Snapshot copies the current contents, oldest first.
func (w *Window) Snapshot() []Reading {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Reading, w.n)
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Latest returns the newest reading, if any.
func (w *Window) Latest() (Reading, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.n == 0 {
		return Reading{}, false
	}
	return w.buf[(w.head+w.n-1)%len(w.buf)], true
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.n
}

func (w *Window) Cap() int { return len(w.buf) }
