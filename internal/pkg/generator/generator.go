package generator

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/anicoll/eco-monitor/internal/pkg/model"
)

const (
	DefaultHistoryLength  = 20
	DefaultHistorySpacing = 5 * time.Minute
)

// Source is the random source the generator draws from. *rand.Rand
// satisfies it.
type Source interface {
	Float64() float64
	IntN(n int) int
}

type Generator struct {
	mu      sync.Mutex
	src     Source
	now     func() time.Time
	length  int
	spacing time.Duration
}

func WithSource(src Source) func(*Generator) {
	return func(g *Generator) {
		g.src = src
	}
}

func WithSeed(seed uint64) func(*Generator) {
	return func(g *Generator) {
		g.src = rand.New(rand.NewPCG(seed, seed))
	}
}

func WithClock(now func() time.Time) func(*Generator) {
	return func(g *Generator) {
		g.now = now
	}
}

// WithHistory overrides the number of history rows and the gap between them.
// Non-positive values keep the defaults.
func WithHistory(length int, spacing time.Duration) func(*Generator) {
	return func(g *Generator) {
		if length > 0 {
			g.length = length
		}
		if spacing > 0 {
			g.spacing = spacing
		}
	}
}

func New(opts ...func(*Generator)) *Generator {
	g := &Generator{
		now:     time.Now,
		length:  DefaultHistoryLength,
		spacing: DefaultHistorySpacing,
	}
	for _, o := range opts {
		o(g)
	}
	if g.src == nil {
		g.src = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return g
}

// Reading draws one reading stamped with the current time. Values are rounded
// to one decimal, the precision the dashboard shows.
func (g *Generator) Reading() model.Reading {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.reading(g.now())
	r.AmbientTemperature = round1(r.AmbientTemperature)
	r.AmbientHumidity = round1(r.AmbientHumidity)
	r.SoilHumidity = round1(r.SoilHumidity)
	return r
}

// Devices draws an independent on/off state for every actuator.
func (g *Generator) Devices() []model.DeviceState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.devices()
}

func (g *Generator) Status() model.ConnectionStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status()
}

// History regenerates the whole series: oldest first, evenly spaced, ending
// at the current time.
func (g *Generator) History() model.History {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.history(g.now())
}

func (g *Generator) Snapshot() *model.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	reading := g.reading(now)
	reading.AmbientTemperature = round1(reading.AmbientTemperature)
	reading.AmbientHumidity = round1(reading.AmbientHumidity)
	reading.SoilHumidity = round1(reading.SoilHumidity)

	return &model.Snapshot{
		ID:          uuid.New(),
		Status:      g.status(),
		Reading:     reading,
		Devices:     g.devices(),
		History:     g.history(now),
		GeneratedAt: now,
	}
}

func (g *Generator) reading(ts time.Time) model.Reading {
	return model.Reading{
		Timestamp:          ts,
		AmbientTemperature: g.uniform(model.AmbientTemperatureRange),
		AmbientHumidity:    g.uniform(model.AmbientHumidityRange),
		SoilHumidity:       g.uniform(model.SoilHumidityRange),
		RawADC:             model.RawADCMin + g.src.IntN(model.RawADCMax-model.RawADCMin+1),
	}
}

func (g *Generator) devices() []model.DeviceState {
	return lo.Map(model.DeviceKinds, func(k model.DeviceKind, _ int) model.DeviceState {
		return model.DeviceState{Kind: k, Name: k.Name(), On: g.coin()}
	})
}

func (g *Generator) status() model.ConnectionStatus {
	if g.coin() {
		return model.StatusOnline
	}
	return model.StatusOffline
}

func (g *Generator) history(now time.Time) model.History {
	return lo.Times(g.length, func(i int) model.HistoryRow {
		ts := now.Add(-time.Duration(g.length-1-i) * g.spacing)
		return model.HistoryRow{
			Reading: g.reading(ts),
			Devices: g.devices(),
		}
	})
}

func (g *Generator) uniform(r model.Range) float64 {
	return r.Min + g.src.Float64()*(r.Max-r.Min)
}

func (g *Generator) coin() bool {
	return g.src.IntN(2) == 1
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
