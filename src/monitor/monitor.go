// Package monitor produces the live reading feed behind the dashboard.
//
// A Monitor ticks on a fixed interval, asks its Source for one new Reading,
// appends it to a bounded Window and publishes the resulting Update to every
// subscriber. Subscribers never block the ticker: a slow consumer only ever
// sees the newest pending update.
package monitor

import (
	"context"
	"sync"
	"time"
)

// Update is what subscribers receive after every tick.
type Update struct {
	Seq      uint64    `json:"seq"`
	Latest   Reading   `json:"latest"`
	Readings []Reading `json:"readings"`
}

// Monitor couples a Source with a Window and fans updates out to subscribers.
type Monitor struct {
	src      Source
	win      *Window
	interval time.Duration
	clock    func() time.Time
	rec      *Recorder

	mu      sync.Mutex
	seq     uint64
	current Update
	subs    map[int]chan Update
	nextSub int
	closed  bool
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithInterval sets the tick interval; non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithWindowSize sets how many readings are retained.
func WithWindowSize(n int) Option {
	return func(m *Monitor) {
		m.win = NewWindow(n)
	}
}

// WithClock lets tests control reading timestamps.
func WithClock(clock func() time.Time) Option {
	return func(m *Monitor) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithRecorder appends every reading to a JSONL recorder.
func WithRecorder(r *Recorder) Option {
	return func(m *Monitor) {
		m.rec = r
	}
}

// New builds a monitor around src. Defaults: the source's default interval
// and a window of DefaultWindowSize readings.
func New(src Source, opts ...Option) *Monitor {
	m := &Monitor{
		src:      src,
		win:      NewWindow(DefaultWindowSize),
		interval: DefaultInterval(src.Name()),
		clock:    time.Now,
		subs:     map[int]chan Update{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

func (m *Monitor) Source() Source          { return m.src }
func (m *Monitor) Interval() time.Duration { return m.interval }
func (m *Monitor) WindowSize() int         { return m.win.Cap() }

// Tick generates exactly one reading and publishes it. After Close it
// produces nothing and returns the last update.
func (m *Monitor) Tick() Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return m.current
	}
	r := m.src.Next(m.clock())
	m.win.Push(r)
	// the recorder is closed only after closed is set under mu
	if m.rec != nil {
		m.rec.Record(r)
	}
	m.seq++
	u := Update{Seq: m.seq, Latest: r, Readings: m.win.Snapshot()}
	m.current = u
	Debugf("[monitor] tick seq=%d %s temp=%.2f", u.Seq, r.TimestampLabel(), r.Temp)
	for _, ch := range m.subs {
		deliver(ch, u)
	}
	return u
}

// deliver hands u to ch without blocking, replacing a stale pending update.
func deliver(ch chan Update, u Update) {
	select {
	case ch <- u:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- u:
	default:
	}
}

// Current returns the most recent update (Seq 0 before the first tick).
func (m *Monitor) Current() Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe registers a listener. The returned cancel func unregisters it and
// closes the channel; it is safe to call more than once.
func (m *Monitor) Subscribe(buf int) (<-chan Update, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Update, buf)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(c)
			}
		})
	}
}

// Run ticks once immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	Infof("[monitor] source=%s interval=%s window=%d", m.src.Name(), m.interval, m.win.Cap())
	m.Tick()
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			m.Tick()
		}
	}
}

// Close closes every subscriber channel and flushes the recorder.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		for id, ch := range m.subs {
			delete(m.subs, id)
			close(ch)
		}
	}
	m.mu.Unlock()
	if m.rec != nil {
		return m.rec.Close()
	}
	return nil
}
