// Package metrics exposes the router core's Prometheus instrumentation,
// using promauto to register everything at construction time.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	labelReason = "reason"
)

// Metrics bundles the router's counters and gauges. The zero value is not
// usable; construct with New.
type Metrics struct {
	framesForwarded prometheus.Counter
	icmpSent        *prometheus.CounterVec
	arpRequestsSent prometheus.Counter
	arpAbandoned    prometheus.Counter
	framesDropped   *prometheus.CounterVec
	cacheSize       prometheus.Gauge
	pendingSize     prometheus.Gauge
}

// New registers a fresh set of metrics under reg. Passing a dedicated
// *prometheus.Registry per router instance (rather than the global
// default) keeps multiple router instances from colliding on metric names.
func New(reg prometheus.Registerer, router string) *Metrics {
	factory := promauto.With(reg)
	constLabels := prometheus.Labels{"router": router}
	return &Metrics{
		framesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name:        "iprouter_frames_forwarded_total",
			Help:        "Total number of IPv4 datagrams forwarded.",
			ConstLabels: constLabels,
		}),
		icmpSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "iprouter_icmp_sent_total",
			Help:        "Total number of ICMP messages generated, by reason.",
			ConstLabels: constLabels,
		}, []string{labelReason}),
		arpRequestsSent: factory.NewCounter(prometheus.CounterOpts{
			Name:        "iprouter_arp_requests_sent_total",
			Help:        "Total number of ARP requests transmitted.",
			ConstLabels: constLabels,
		}),
		arpAbandoned: factory.NewCounter(prometheus.CounterOpts{
			Name:        "iprouter_arp_resolutions_abandoned_total",
			Help:        "Total number of pending ARP resolutions abandoned after exhausting retries.",
			ConstLabels: constLabels,
		}),
		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "iprouter_frames_dropped_total",
			Help:        "Total number of frames dropped, by reason.",
			ConstLabels: constLabels,
		}, []string{labelReason}),
		cacheSize: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "iprouter_arp_cache_entries",
			Help:        "Current number of live ARP cache entries.",
			ConstLabels: constLabels,
		}),
		pendingSize: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "iprouter_arp_pending_entries",
			Help:        "Current number of unresolved ARP pending entries.",
			ConstLabels: constLabels,
		}),
	}
}

func (m *Metrics) IncForwarded() {
	if m != nil {
		m.framesForwarded.Inc()
	}
}

func (m *Metrics) IncICMP(reason string) {
	if m != nil {
		m.icmpSent.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncARPRequest() {
	if m != nil {
		m.arpRequestsSent.Inc()
	}
}

func (m *Metrics) IncARPAbandoned() {
	if m != nil {
		m.arpAbandoned.Inc()
	}
}

func (m *Metrics) IncDropped(reason string) {
	if m != nil {
		m.framesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SetCacheSize(n int) {
	if m != nil {
		m.cacheSize.Set(float64(n))
	}
}

func (m *Metrics) SetPendingSize(n int) {
	if m != nil {
		m.pendingSize.Set(float64(n))
	}
}
