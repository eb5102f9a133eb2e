package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kokorotts"

type metrics struct {
	registry *prometheus.Registry

	// requestsTotal counts POST /tts requests by response status code.
	requestsTotal *prometheus.CounterVec
	// synthDuration observes successful synthesis wall time in seconds.
	synthDuration prometheus.Histogram
	// audioSeconds counts seconds of audio produced.
	audioSeconds prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tts_requests_total",
				Help:      "Total number of POST /tts requests",
			},
			[]string{"code"},
		),
		synthDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "synthesis_duration_seconds",
				Help:      "Histogram of synthesis duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		audioSeconds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audio_seconds_total",
				Help:      "Total seconds of audio synthesized",
			},
		),
	}

	m.registry.MustRegister(m.requestsTotal, m.synthDuration, m.audioSeconds)
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
