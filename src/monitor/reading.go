package monitor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// TimestampLayout is the display format used for reading timestamps everywhere
// (grid, date/time card, CSV/XLSX export).
const TimestampLayout = "2006-01-02 15:04:05"

// ErrUnknownSource is returned by NewSource for unsupported source names.
var ErrUnknownSource = errors.New("unknown source")

// Reading is one simulated observation. Stock sources store the price in Temp
// and leave the other two values at zero; Fields tells consumers which slots are live.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Temp      float64   `json:"temp"`
	Humidity  float64   `json:"humidity"`
	Pressure  float64   `json:"pressure"`
}

// TimestampLabel renders the timestamp the way the dashboard displays it.
func (r Reading) TimestampLabel() string {
	return r.Timestamp.Format(TimestampLayout)
}

// Value returns the value stored under a field key ("temp", "humidity",
// "pressure", or the stock alias "price").
func (r Reading) Value(key string) (float64, bool) {
	switch key {
	case "temp", "price":
		return r.Temp, true
	case "humidity":
		return r.Humidity, true
	case "pressure":
		return r.Pressure, true
	}
	return 0, false
}

// Field describes one numeric column a source produces.
type Field struct {
	Key    string `json:"key" yaml:"key"`
	Label  string `json:"label" yaml:"label"`
	Unit   string `json:"unit" yaml:"unit"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// Decimals is the rounding applied when values are generated and displayed.
	Decimals int `json:"decimals" yaml:"decimals"`
}

// Format renders v with the field's prefix, rounding and unit, e.g. "-17.3 °C" or "$123.45 USD".
func (f Field) Format(v float64) string {
	s := fmt.Sprintf("%s%.*f", f.Prefix, f.Decimals, v)
	if f.Unit != "" {
		s += " " + f.Unit
	}
	return s
}

// Source produces readings on demand. Next is only ever called from the
// monitor's ticking goroutine but implementations guard their RNG anyway so
// tests can call it directly.
type Source interface {
	Name() string
	Fields() []Field
	Next(now time.Time) Reading
}

// NewSource builds a source by name ("environment" or "stock").
func NewSource(name string, seed int64) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "environment", "env":
		return NewEnvironmentSource(seed), nil
	case "stock":
		return NewStockSource(seed), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
}

// DefaultInterval returns the update interval the named source uses when
// nothing is configured: 3s for the environment feed, 1s for stock ticks.
func DefaultInterval(source string) time.Duration {
	if strings.EqualFold(strings.TrimSpace(source), "stock") {
		return time.Second
	}
	return 3 * time.Second
}

// uniformRange is an inclusive [Min,Max] bound used by the simulators.
type uniformRange struct {
	Min, Max float64
}

var (
	tempRange     = uniformRange{-18, -16}
	humidityRange = uniformRange{70, 90}
	pressureRange = uniformRange{980, 1020}
	priceRange    = uniformRange{100, 150}
)

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) uniform(r uniformRange, decimals int) float64 {
	l.mu.Lock()
	f := l.rnd.Float64()
	l.mu.Unlock()
	v := roundTo(r.Min+f*(r.Max-r.Min), decimals)
	// rounding can push a value a hair past the bound
	if v < r.Min {
		v = r.Min
	}
	if v > r.Max {
		v = r.Max
	}
	return v
}

// EnvironmentSource simulates an antarctic weather station.
type EnvironmentSource struct {
	rnd *lockedRand
}

// NewEnvironmentSource returns a simulator; seed 0 seeds from the clock.
func NewEnvironmentSource(seed int64) *EnvironmentSource {
	return &EnvironmentSource{rnd: newLockedRand(seed)}
}

func (s *EnvironmentSource) Name() string { return "environment" }

func (s *EnvironmentSource) Fields() []Field {
	return []Field{
		{Key: "temp", Label: "Temperature", Unit: "°C", Decimals: 1},
		{Key: "humidity", Label: "Humidity", Unit: "%", Decimals: 1},
		{Key: "pressure", Label: "Pressure", Unit: "hPa", Decimals: 1},
	}
}

func (s *EnvironmentSource) Next(now time.Time) Reading {
	return Reading{
		Timestamp: now.Truncate(time.Second),
		Temp:      s.rnd.uniform(tempRange, 1),
		Humidity:  s.rnd.uniform(humidityRange, 1),
		Pressure:  s.rnd.uniform(pressureRange, 1),
	}
}

// StockSource simulates a fluctuating share price.
type StockSource struct {
	rnd *lockedRand
}

// NewStockSource returns a price simulator; seed 0 seeds from the clock.
func NewStockSource(seed int64) *StockSource {
	return &StockSource{rnd: newLockedRand(seed)}
}

func (s *StockSource) Name() string { return "stock" }

func (s *StockSource) Fields() []Field {
	return []Field{{Key: "price", Label: "Stock Price", Unit: "USD", Prefix: "$", Decimals: 2}}
}

func (s *StockSource) Next(now time.Time) Reading {
	return Reading{
		Timestamp: now.Truncate(time.Second),
		Temp:      s.rnd.uniform(priceRange, 2),
	}
}
