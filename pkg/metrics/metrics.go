package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contadores Prometheus del motor de asignación, sobre un registry propio.
type Metrics struct {
	registry *prometheus.Registry

	PlansTotal       prometheus.Counter
	PlansUnsatisfied prometheus.Counter
	WriteOffsTotal   prometheus.Counter
	ConflictsTotal   prometheus.Counter
	CreationsTotal   prometheus.Counter
	RollbacksTotal   prometheus.Counter
	RollbackFailures prometheus.Counter
}

// New construye el registry con los contadores del motor y los colectores estándar.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "labstock",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)
		return c
	}

	return &Metrics{
		registry:         reg,
		PlansTotal:       counter("allocation_plans_total", "Planes de asignación calculados."),
		PlansUnsatisfied: counter("allocation_plans_unsatisfied_total", "Planes con stock insuficiente."),
		WriteOffsTotal:   counter("writeoff_entries_total", "Asientos de baja confirmados."),
		ConflictsTotal:   counter("batch_conflicts_total", "Descuentos rechazados por modificación concurrente."),
		CreationsTotal:   counter("composite_creations_total", "Creaciones compuestas confirmadas."),
		RollbacksTotal:   counter("composite_rollbacks_total", "Creaciones compuestas revertidas."),
		RollbackFailures: counter("composite_rollback_failures_total", "Compensaciones fallidas (estado FAILED)."),
	}
}

// Handler expone el registry en formato Prometheus (se monta vía adaptor de fiber).
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
