package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache outcomes for tracking lookups
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheError    = "error"
	CacheDisabled = "disabled"
)

// ParcelMetrics records domain events
type ParcelMetrics interface {
	ParcelReceived(courier string)
	ParcelCollected(method string, overdueCharge, total float64)
	TrackingLookup(cacheResult string)
	ReminderSent()
}

type prometheusParcelMetrics struct {
	received       *prometheus.CounterVec
	collected      *prometheus.CounterVec
	overdueCharged prometheus.Counter
	revenue        prometheus.Counter
	lookups        *prometheus.CounterVec
	reminders      prometheus.Counter
}

// NewPrometheusParcelMetrics registers the domain collectors on reg
func NewPrometheusParcelMetrics(reg prometheus.Registerer) ParcelMetrics {
	factory := promauto.With(reg)
	return &prometheusParcelMetrics{
		received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcelhub",
			Name:      "parcels_received_total",
			Help:      "Parcels taken in at the hub",
		}, []string{"courier"}),
		collected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcelhub",
			Name:      "parcels_collected_total",
			Help:      "Parcels paid for and collected",
		}, []string{"method"}),
		overdueCharged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "parcelhub",
			Name:      "overdue_charge_collected_rm_total",
			Help:      "Overdue surcharge collected, in RM",
		}),
		revenue: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "parcelhub",
			Name:      "revenue_collected_rm_total",
			Help:      "Total collection revenue, in RM",
		}),
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcelhub",
			Name:      "tracking_lookups_total",
			Help:      "Tracking lookups by cache outcome",
		}, []string{"cache"}),
		reminders: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "parcelhub",
			Name:      "overdue_reminders_sent_total",
			Help:      "Overdue reminders delivered to recipients",
		}),
	}
}

func (m *prometheusParcelMetrics) ParcelReceived(courier string) {
	m.received.WithLabelValues(courier).Inc()
}

func (m *prometheusParcelMetrics) ParcelCollected(method string, overdueCharge, total float64) {
	m.collected.WithLabelValues(method).Inc()
	m.overdueCharged.Add(overdueCharge)
	m.revenue.Add(total)
}

func (m *prometheusParcelMetrics) TrackingLookup(cacheResult string) {
	m.lookups.WithLabelValues(cacheResult).Inc()
}

func (m *prometheusParcelMetrics) ReminderSent() {
	m.reminders.Inc()
}

// NoopParcelMetrics discards everything
type NoopParcelMetrics struct{}

func (NoopParcelMetrics) ParcelReceived(string)                    {}
func (NoopParcelMetrics) ParcelCollected(string, float64, float64) {}
func (NoopParcelMetrics) TrackingLookup(string)                    {}
func (NoopParcelMetrics) ReminderSent()                            {}
