// Package metrics exposes Prometheus counters for speech conversions and
// upstream failures.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stepfun_tts"

// Conversion outcomes, one per resolved response shape plus failures.
const (
	OutcomeBinary  = "binary"
	OutcomeJSONURL = "json_url"
	OutcomeNoAudio = "no_audio"
	OutcomeError   = "error"
)

// Recorder counts conversions and classified upstream failures.
type Recorder struct {
	registry      *prometheus.Registry
	conversions   *prometheus.CounterVec
	upstreamFails *prometheus.CounterVec
	storedBytes   prometheus.Counter
}

// New creates a Recorder backed by its own registry, with Go runtime and
// process collectors registered alongside.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return NewWithRegistry(reg)
}

// NewWithRegistry creates a Recorder registering its collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Recorder {
	recorder := &Recorder{
		registry: reg,
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Speech conversions by resolved response shape.",
		}, []string{"outcome"}),
		upstreamFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Classified upstream failures by operation and kind.",
		}, []string{"operation", "kind"}),
		storedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_audio_bytes_total",
			Help:      "Bytes of audio written to the blob store.",
		}),
	}

	reg.MustRegister(recorder.conversions, recorder.upstreamFails, recorder.storedBytes)

	return recorder
}

// Conversion records one finished conversion. A nil Recorder is a no-op.
func (r *Recorder) Conversion(outcome string) {
	if r == nil {
		return
	}

	r.conversions.WithLabelValues(outcome).Inc()
}

// UpstreamFailure records a classified failure for an operation.
func (r *Recorder) UpstreamFailure(operation, kind string) {
	if r == nil {
		return
	}

	r.upstreamFails.WithLabelValues(operation, kind).Inc()
}

// StoredBytes adds n to the stored audio byte counter.
func (r *Recorder) StoredBytes(n int64) {
	if r == nil || n <= 0 {
		return
	}

	r.storedBytes.Add(float64(n))
}

// Conversions returns the counter vector, mainly for tests.
func (r *Recorder) Conversions() *prometheus.CounterVec {
	return r.conversions
}

// UpstreamFailures returns the failure counter vector.
func (r *Recorder) UpstreamFailures() *prometheus.CounterVec {
	return r.upstreamFails
}

// StoredAudioBytes returns the stored byte counter.
func (r *Recorder) StoredAudioBytes() prometheus.Counter {
	return r.storedBytes
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
