package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Recorder appends readings to a JSONL file from a single writer goroutine.
// Record never blocks the ticker for longer than a channel send.
type Recorder struct {
	path string
	ch   chan Reading
	wg   sync.WaitGroup
	once sync.Once
	err  error
}

// NewRecorder opens (or creates) path for appending and starts the writer.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("recorder: open %s: %w", path, err)
	}
	Infof("[writer] readings file (append): %s", path)
	r := &Recorder{path: path, ch: make(chan Reading, 128)}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer f.Close()
		enc := json.NewEncoder(f)
		for rd := range r.ch {
			if err := enc.Encode(rd); err != nil {
				Errorf("[writer] encode reading: %v", err)
				if r.err == nil {
					r.err = err
				}
			}
		}
	}()
	return r, nil
}

func (r *Recorder) Path() string { return r.path }

// Record queues one reading.
func (r *Recorder) Record(rd Reading) {
	r.ch <- rd
}

// Close drains pending readings and closes the file. It returns the first
// encode error seen, if any.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		close(r.ch)
		r.wg.Wait()
	})
	return r.err
}
