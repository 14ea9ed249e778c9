// Package metrics exposes Prometheus collectors for the cell simulation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure reasons used as the "reason" label of tick failures.
const (
	ReasonNoSurfaceImage = "no_surface_image"
	ReasonDeviceLost     = "device_lost"
	ReasonEncoding       = "encoding"
)

// Collectors are the per-simulation metrics.
type Collectors struct {
	Ticks          prometheus.Counter
	TickFailures   *prometheus.CounterVec
	Generation     prometheus.Gauge
	EncodeDuration prometheus.Histogram
}

// New registers the collectors with reg. Registration errors, such as a
// second simulation on the same registry without a distinguishing label,
// are returned and leave reg unchanged.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cellgrid_ticks_total",
			Help: "Number of frames recorded and submitted",
		}),
		TickFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cellgrid_tick_failures_total",
			Help: "Number of skipped frames by failure reason",
		}, []string{"reason"}),
		Generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cellgrid_generation",
			Help: "Current value of the generation counter",
		}),
		EncodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cellgrid_tick_encode_seconds",
			Help:    "Time spent recording and submitting one frame",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
	all := c.collectors()
	for i, col := range all {
		if err := reg.Register(col); err != nil {
			for _, done := range all[:i] {
				reg.Unregister(done)
			}
			return nil, err
		}
	}
	return c, nil
}

// Labeled wraps reg so every collector registered through it carries
// simulation=name. An empty name returns reg unchanged.
func Labeled(reg prometheus.Registerer, name string) prometheus.Registerer {
	if name == "" {
		return reg
	}
	return prometheus.WrapRegistererWith(prometheus.Labels{"simulation": name}, reg)
}

// Unregister removes the collectors from reg.
func (c *Collectors) Unregister(reg prometheus.Registerer) {
	for _, col := range c.collectors() {
		reg.Unregister(col)
	}
}

func (c *Collectors) collectors() []prometheus.Collector {
	return []prometheus.Collector{c.Ticks, c.TickFailures, c.Generation, c.EncodeDuration}
}

// ObserveTick records a successful tick.
func (c *Collectors) ObserveTick(d time.Duration, generation uint64) {
	c.Ticks.Inc()
	c.Generation.Set(float64(generation))
	c.EncodeDuration.Observe(d.Seconds())
}

// ObserveFailure records a skipped tick.
func (c *Collectors) ObserveFailure(reason string) {
	c.TickFailures.WithLabelValues(reason).Inc()
}

// NewServer returns an HTTP server exposing g on /metrics.
func NewServer(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}
