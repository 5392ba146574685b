package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "listenroom"

type Metrics struct {
	ActiveRooms      prometheus.Gauge
	Observers        prometheus.Gauge
	Commands         *prometheus.CounterVec
	Broadcasts       prometheus.Counter
	DroppedFrames    prometheus.Counter
	ResolverRequests *prometheus.CounterVec
	ResolverDuration *prometheus.HistogramVec
	RefillRuns       *prometheus.CounterVec
}

// New registers all collectors on reg. A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveRooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Rooms currently loaded in memory",
		}),
		Observers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers",
			Help:      "Sockets currently attached to rooms",
		}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Room commands by type and result",
		}, []string{"command", "result"}),
		Broadcasts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "State frames fanned out to rooms",
		}),
		DroppedFrames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_frames_total",
			Help:      "Frames dropped because an observer was too slow",
		}),
		ResolverRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_requests_total",
			Help:      "Metadata resolver calls by operation and result",
		}, []string{"op", "result"}),
		ResolverDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolver_duration_seconds",
			Help:      "Metadata resolver call latency",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8),
		}, []string{"op"}),
		RefillRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refill_runs_total",
			Help:      "Automatic queue refills by outcome",
		}, []string{"outcome"}),
	}
}
