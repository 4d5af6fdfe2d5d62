package dashboard

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/katehuntsman/cintel-05-cintel/src/analysis"
	"github.com/katehuntsman/cintel-05-cintel/src/config"
	"github.com/katehuntsman/cintel-05-cintel/src/monitor"
)

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestMonitor(t *testing.T, src monitor.Source, ticks int) *monitor.Monitor {
	t.Helper()
	n := 0
	clock := func() time.Time {
		ts := testStart.Add(time.Duration(3*n) * time.Second)
		n++
		return ts
	}
	mon := monitor.New(src, monitor.WithClock(clock))
	for i := 0; i < ticks; i++ {
		mon.Tick()
	}
	t.Cleanup(func() { _ = mon.Close() })
	return mon
}

func newTestServer(mon *monitor.Monitor) *Server {
	settings := Settings{Host: "127.0.0.1", Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	return NewServer(settings, mon, WithClock(func() time.Time { return testStart.Add(time.Minute) }))
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", url, err)
	}
	return resp, body
}

func TestSettingsFromConfigHonorsEnv(t *testing.T) {
	t.Setenv("CINTEL_PORT", "9001")
	t.Setenv("CINTEL_HOST", "0.0.0.0")
	cfg := config.Default()
	cfg.Title = "Live Prices"
	settings := SettingsFromConfig(&cfg)
	if settings.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", settings.Port)
	}
	if settings.Host != "0.0.0.0" {
		t.Fatalf("expected host override, got %s", settings.Host)
	}
	if settings.Title != "Live Prices" || len(settings.Links) != len(cfg.Links) {
		t.Fatalf("title/links not carried over: %+v", settings)
	}
	if settings.URL() != "http://0.0.0.0:9001" {
		t.Fatalf("url = %s", settings.URL())
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.Address() != "127.0.0.1:8050" || s.Title != DefaultTitle || s.WriteTimeout != DefaultWriteTimeout {
		t.Fatalf("unexpected defaults %+v", s)
	}
}

func TestServerServesDashboard(t *testing.T) {
	mon := newTestMonitor(t, monitor.NewEnvironmentSource(7), 3)
	srv := newTestServer(mon)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	if srv.Status() != StatusReady {
		t.Fatalf("status = %s", srv.Status())
	}
	base := srv.BaseURL()
	latest := mon.Current().Latest

	resp, body := get(t, base+"/")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("index: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	page := string(body)
	for _, want := range []string{"Most Recent Readings", "Chart with Current Trend", "Current Date and Time",
		`id="datetime">` + latest.TimestampLabel(), "EventSource", `"/chart.svg?v="`, "<svg"} {
		if !strings.Contains(page, want) {
			t.Fatalf("index missing %q", want)
		}
	}

	resp, body = get(t, base+"/api/snapshot")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("snapshot status %d", resp.StatusCode)
	}
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Seq != 3 || len(snap.Readings) != 3 || len(snap.Rows) != 3 || snap.Trend == nil || snap.Trend.N != 3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Source != "environment" || len(snap.Fields) != 3 || !strings.HasSuffix(snap.ValueText, "°C") {
		t.Fatalf("unexpected snapshot fields %+v", snap)
	}

	resp, body = get(t, base+"/chart.svg?v=99")
	if resp.Header.Get("Content-Type") != "image/svg+xml" || !bytes.Contains(body, []byte("<svg")) {
		t.Fatalf("chart.svg: %s %.80s", resp.Header.Get("Content-Type"), body)
	}

	resp, body = get(t, base+"/chart.png")
	if resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("chart.png content type %s", resp.Header.Get("Content-Type"))
	}
	if _, err := png.Decode(bytes.NewReader(body)); err != nil {
		t.Fatalf("chart.png decode: %v", err)
	}

	_, body = get(t, base+"/api/readings.csv")
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(rows) != 4 || rows[0][0] != analysis.TimestampColumn {
		t.Fatalf("csv rows = %v", rows)
	}

	_, body = get(t, base+"/api/readings.xlsx")
	book, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	defer book.Close()
	sheetRows, err := book.GetRows(analysis.SheetName)
	if err != nil || len(sheetRows) != 4 {
		t.Fatalf("xlsx rows = %v err=%v", sheetRows, err)
	}

	resp, body = get(t, base+"/health")
	var health healthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.StatusCode != http.StatusOK || health.Status != "ready" || health.Seq != 3 || health.Readings != 3 {
		t.Fatalf("health = %+v", health)
	}
}

func TestServerRejectsBadRequests(t *testing.T) {
	mon := newTestMonitor(t, monitor.NewEnvironmentSource(1), 1)
	h := newTestServer(mon).Handler()
	cases := []struct {
		method, path string
		status       int
	}{
		{http.MethodPost, "/", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/chart.svg", http.StatusMethodNotAllowed},
		{http.MethodPut, "/api/snapshot", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/events", http.StatusMethodNotAllowed},
		{http.MethodGet, "/missing", http.StatusNotFound},
		{http.MethodGet, "/api/unknown", http.StatusNotFound},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(c.method, c.path, nil))
		if rec.Code != c.status {
			t.Fatalf("%s %s => %d want %d", c.method, c.path, rec.Code, c.status)
		}
		if c.status == http.StatusMethodNotAllowed && rec.Header().Get("Allow") == "" {
			t.Fatalf("%s %s: missing Allow header", c.method, c.path)
		}
	}
}

func TestServerBeforeFirstReading(t *testing.T) {
	mon := newTestMonitor(t, monitor.NewStockSource(1), 0)
	h := newTestServer(mon).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chart.svg", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "waiting for data") {
		t.Fatalf("chart before data: %d %.120s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))
	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Seq != 0 || snap.Latest != nil || snap.Trend != nil || len(snap.Rows) != 0 {
		t.Fatalf("empty snapshot = %+v", snap)
	}
	if snap.Source != "stock" || snap.ValueText != "waiting for data" {
		t.Fatalf("empty snapshot text = %+v", snap)
	}
}

func TestStockValueBox(t *testing.T) {
	mon := newTestMonitor(t, monitor.NewStockSource(3), 2)
	v, err := newTestServer(mon).currentView()
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if !strings.HasPrefix(v.snap.ValueText, "$") || !strings.HasSuffix(v.snap.ValueText, " USD") {
		t.Fatalf("value text = %q", v.snap.ValueText)
	}
	if v.key != "price" || !strings.HasPrefix(v.snap.Caption, "Current price") {
		t.Fatalf("key=%q caption=%q", v.key, v.snap.Caption)
	}
}

func TestDateTimeCardFollowsLatestReading(t *testing.T) {
	mon := newTestMonitor(t, monitor.NewEnvironmentSource(5), 1)
	latest := mon.Current().Latest
	rendered := latest.Timestamp.Add(47 * time.Second)
	v, err := buildView(mon.Source(), mon.Current(), rendered)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if v.snap.DateTime != latest.TimestampLabel() {
		t.Fatalf("datetime = %q want %q", v.snap.DateTime, latest.TimestampLabel())
	}
	if !v.snap.GeneratedAt.Equal(rendered) {
		t.Fatalf("generated_at = %v want %v", v.snap.GeneratedAt, rendered)
	}

	empty, err := buildView(mon.Source(), monitor.Update{}, rendered)
	if err != nil {
		t.Fatalf("empty view: %v", err)
	}
	if empty.snap.DateTime != rendered.Format(monitor.TimestampLayout) {
		t.Fatalf("empty datetime = %q", empty.snap.DateTime)
	}
}

type sseEvent struct {
	id, name, data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			ev.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEventsStreamOneSnapshotPerUpdate(t *testing.T) {
	mon := newTestMonitor(t, monitor.NewEnvironmentSource(5), 1)
	ts := httptest.NewServer(newTestServer(mon).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	r := bufio.NewReader(resp.Body)

	first := readEvent(t, r)
	if first.name != "snapshot" || first.id != "1" {
		t.Fatalf("first event = %+v", first)
	}
	for want := 2; want <= 3; want++ {
		mon.Tick()
		ev := readEvent(t, r)
		var snap Snapshot
		if err := json.Unmarshal([]byte(ev.data), &snap); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if int(snap.Seq) != want || len(snap.Rows) != want {
			t.Fatalf("event seq=%d rows=%d want %d", snap.Seq, len(snap.Rows), want)
		}
	}
	// closing the monitor ends the stream
	_ = mon.Close()
	if _, err := io.ReadAll(r); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestStartTwiceFails(t *testing.T) {
	mon := newTestMonitor(t, monitor.NewEnvironmentSource(1), 0)
	srv := newTestServer(mon)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatalf("second start should fail")
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if srv.Addr() != "" {
		t.Fatalf("addr after shutdown = %q", srv.Addr())
	}
}
