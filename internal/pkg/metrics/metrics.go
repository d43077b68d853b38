package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anicoll/eco-monitor/internal/pkg/model"
)

const namespace = "eco"

// Metrics mirrors the latest snapshot into prometheus gauges. It is registered
// as a sink so it sees every refresh.
type Metrics struct {
	gatherer prometheus.Gatherer

	ambientTemperature prometheus.Gauge
	ambientHumidity    prometheus.Gauge
	soilHumidity       prometheus.Gauge
	rawADC             prometheus.Gauge
	online             prometheus.Gauge
	deviceOn           *prometheus.GaugeVec
	refreshes          prometheus.Counter
	sinkErrors         *prometheus.CounterVec
	lastRefresh        prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() to keep
// them off the default registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		ambientTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ambient_temperature_celsius",
			Help:      "Latest ambient temperature reading.",
		}),
		ambientHumidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ambient_humidity_percent",
			Help:      "Latest ambient humidity reading.",
		}),
		soilHumidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "soil_humidity_percent",
			Help:      "Latest soil humidity reading.",
		}),
		rawADC: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "soil_raw_adc",
			Help:      "Latest raw soil sensor ADC value.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_online",
			Help:      "1 when the node reports online, 0 otherwise.",
		}),
		deviceOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_on",
			Help:      "Actuator state (1 on, 0 off).",
		}, []string{"device"}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Total snapshots generated.",
		}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Total snapshot publish failures by sink.",
		}, []string{"sink"}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the latest snapshot.",
		}),
	}

	reg.MustRegister(
		m.ambientTemperature,
		m.ambientHumidity,
		m.soilHumidity,
		m.rawADC,
		m.online,
		m.deviceOn,
		m.refreshes,
		m.sinkErrors,
		m.lastRefresh,
	)
	return m
}

func (m *Metrics) Write(_ context.Context, snap *model.Snapshot) error {
	m.refreshes.Inc()
	m.lastRefresh.Set(float64(snap.GeneratedAt.Unix()))
	m.ambientTemperature.Set(snap.Reading.AmbientTemperature)
	m.ambientHumidity.Set(snap.Reading.AmbientHumidity)
	m.soilHumidity.Set(snap.Reading.SoilHumidity)
	m.rawADC.Set(float64(snap.Reading.RawADC))
	m.online.Set(boolToFloat(snap.Status == model.StatusOnline))
	for _, d := range snap.Devices {
		m.deviceOn.WithLabelValues(d.Kind.String()).Set(boolToFloat(d.On))
	}
	return nil
}

func (m *Metrics) RegisterNode(context.Context, model.Node) error {
	return nil
}

func (m *Metrics) SinkFailed(name string) {
	m.sinkErrors.WithLabelValues(name).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
