// Package dashboard serves the live dashboard: an HTML page that subscribes
// to monitor updates over Server-Sent Events, the chart and table endpoints
// it refreshes from, and a static export of the same page for GitHub Pages.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
	"github.com/katehuntsman/cintel-05-cintel/src/plot"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// keepAliveInterval spaces SSE comments that stop proxies from idling the stream out.
const keepAliveInterval = 15 * time.Second

// Logger is satisfied by *log.Logger and monitor.Printer.
type Logger interface {
	Printf(format string, args ...any)
}

// Server wraps the HTTP listener and handlers backing the dashboard.
type Server struct {
	settings  Settings
	mon       *monitor.Monitor
	logger    Logger
	chartOpts plot.Options
	clock     func() time.Time

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithChartOptions overrides titles, size and theme of the chart endpoints.
func WithChartOptions(o plot.Options) Option {
	return func(s *Server) {
		s.chartOpts = o
	}
}

// WithClock allows tests to control the date/time card.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a dashboard server for mon.
func NewServer(settings Settings, mon *monitor.Monitor, opts ...Option) *Server {
	settings.normalize()
	s := &Server{
		settings:  settings,
		mon:       mon,
		logger:    nopLogger{},
		chartOpts: ChartOptionsFor(mon.Source()),
		clock:     time.Now,
		status:    StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ChartOptionsFor returns the default chart options for a source.
func ChartOptionsFor(src monitor.Source) plot.Options {
	o := plot.DefaultOptions()
	if src != nil && src.Name() == "stock" {
		o.Title = "Stock Price with Regression Line"
		o.YLabel = "Price (USD)"
	}
	return o
}

// Handler returns the dashboard routes; Start serves it, tests may mount it directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/chart.svg", s.handleChartSVG)
	mux.HandleFunc("/chart.png", s.handleChartPNG)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/readings.csv", s.handleCSV)
	mux.HandleFunc("/api/readings.xlsx", s.handleXLSX)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("dashboard: server is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("dashboard: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dashboard: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("dashboard: serve error: %v", err)
		}
	}()
	s.logger.Printf("dashboard: listening on %s", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
// Open event streams end when their request context is cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		// streams outliving the deadline are cut
		_ = s.server.Close()
		s.listener = nil
		s.server = nil
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

func (s *Server) currentView() (view, error) {
	return buildView(s.mon.Source(), s.mon.Current(), s.clock())
}

// allow answers 405 unless r uses GET or HEAD.
func allow(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", fmt.Sprintf("%s, %s", http.MethodGet, http.MethodHead))
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	return false
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if !allow(w, r) {
		return
	}
	v, err := s.currentView()
	if err != nil {
		s.fail(w, err)
		return
	}
	var buf bytes.Buffer
	if err := renderIndex(&buf, s.settings, v.snap, false); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleChartSVG(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r) {
		return
	}
	v, err := s.currentView()
	if err != nil {
		s.fail(w, err)
		return
	}
	var buf bytes.Buffer
	if err := plot.RenderSVG(&buf, v.frame, v.key, v.trend, s.chartOpts); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r) {
		return
	}
	v, err := s.currentView()
	if err != nil {
		s.fail(w, err)
		return
	}
	opts := s.chartOpts
	if v.snap.Trend != nil && opts.Hint == "" {
		opts.Hint = plot.TrendHint(v.trend)
	}
	var buf bytes.Buffer
	if err := plot.RenderPNG(&buf, v.frame, v.key, v.trend, opts); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r) {
		return
	}
	v, err := s.currentView()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v.snap)
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r) {
		return
	}
	v, err := s.currentView()
	if err != nil {
		s.fail(w, err)
		return
	}
	var buf bytes.Buffer
	if err := v.frame.WriteCSV(&buf); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="readings.csv"`)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleXLSX(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r) {
		return
	}
	v, err := s.currentView()
	if err != nil {
		s.fail(w, err)
		return
	}
	var buf bytes.Buffer
	if err := v.frame.WriteXLSX(&buf); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="readings.xlsx"`)
	_, _ = buf.WriteTo(w)
}

// handleEvents streams one "snapshot" event per monitor update. The current
// state goes out first so a fresh page never waits a full interval.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	// the stream lives longer than WriteTimeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	updates, cancel := s.mon.Subscribe(1)
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(u monitor.Update) error {
		v, err := buildView(s.mon.Source(), u, s.clock())
		if err != nil {
			return err
		}
		if err := writeEvent(w, "snapshot", u.Seq, v.snap); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	if cur := s.mon.Current(); cur.Seq > 0 {
		if err := send(cur); err != nil {
			s.logger.Printf("dashboard: event stream: %v", err)
			return
		}
	} else {
		_, _ = fmt.Fprint(w, ": waiting for first reading\n\n")
		flusher.Flush()
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := send(u); err != nil {
				s.logger.Printf("dashboard: event stream: %v", err)
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes one SSE frame. JSON never contains raw newlines, so the
// payload fits a single data line.
func writeEvent(w http.ResponseWriter, name string, id uint64, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "id: %d\nevent: %s\ndata: %s\n\n", id, name, data)
	_, err = fmt.Fprint(w, b.String())
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r) {
		return
	}
	cur := s.mon.Current()
	resp := healthResponse{
		Status:        string(s.Status()),
		Source:        s.mon.Source().Name(),
		Seq:           cur.Seq,
		Readings:      len(cur.Readings),
		UptimeSeconds: s.uptimeSeconds(),
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status        string `json:"status"`
	Source        string `json:"source"`
	Seq           uint64 `json:"seq"`
	Readings      int    `json:"readings"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.Printf("dashboard: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
