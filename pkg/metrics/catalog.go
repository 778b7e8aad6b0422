package metrics

import "github.com/prometheus/client_golang/prometheus"

// CatalogMetrics counts catalog loads and applied push events.
type CatalogMetrics struct {
	events *prometheus.CounterVec
	loads  *prometheus.CounterVec
	size   prometheus.Gauge
}

// NewCatalogMetrics registers the catalog metrics on the provided registerer.
func NewCatalogMetrics(reg prometheus.Registerer) *CatalogMetrics {
	if reg == nil {
		return &CatalogMetrics{}
	}
	m := &CatalogMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_events_total",
			Help:      "Catalog push events applied to the snapshot by type.",
		}, []string{"event_type"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_loads_total",
			Help:      "Catalog loads by source (remote, cache, empty).",
		}, []string{"source"}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_products",
			Help:      "Products in the in-memory snapshot.",
		}),
	}
	reg.MustRegister(m.events, m.loads, m.size)
	return m
}

func (m *CatalogMetrics) IncEvent(eventType string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *CatalogMetrics) IncLoad(source string) {
	if m == nil || m.loads == nil {
		return
	}
	m.loads.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *CatalogMetrics) SetSize(n int) {
	if m == nil || m.size == nil {
		return
	}
	m.size.Set(float64(n))
}
