// Package metrics defines the Prometheus collectors exported by the
// host interface engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/frobware/go-hostif"
)

// Metrics holds the engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Objects      *prometheus.GaugeVec
	Mutations    *prometheus.CounterVec
	Resolves     *prometheus.CounterVec
	Dispatches   *prometheus.CounterVec
	DeviceErrors *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg
// registers with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Objects: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hostif_objects",
				Help: "Number of live objects by type.",
			},
			[]string{"type"},
		),
		Mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostif_mutations_total",
				Help: "Total number of create, set and remove operations by outcome.",
			},
			[]string{"op", "type", "result"},
		),
		Resolves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostif_resolves_total",
				Help: "Total number of table lookups by the precedence level that matched.",
			},
			[]string{"level"},
		),
		Dispatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostif_dispatches_total",
				Help: "Total number of dispatch decisions by trap type and delivery.",
			},
			[]string{"trap_type", "delivered"},
		),
		DeviceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostif_device_errors_total",
				Help: "Total number of failed device materialise and destroy calls.",
			},
			[]string{"op"},
		),
	}
}

// SetObjects records the live object count for t.
func (m *Metrics) SetObjects(t hostif.ObjectType, n int) {
	if m == nil {
		return
	}
	m.Objects.WithLabelValues(t.String()).Set(float64(n))
}

// Mutation counts a create, set or remove of an object of type t. A
// non-nil err is classified by its error kind.
func (m *Metrics) Mutation(op string, t hostif.ObjectType, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		if k := hostif.Kind(err); k != nil {
			result = kindLabel(k)
		}
	}
	m.Mutations.WithLabelValues(op, t.String(), result).Inc()
}

// Resolve counts a lookup that matched at level, or found nothing when
// level is MatchLevelNone.
func (m *Metrics) Resolve(level hostif.MatchLevel) {
	if m == nil {
		return
	}
	m.Resolves.WithLabelValues(level.String()).Inc()
}

// Dispatch counts a dispatch decision.
func (m *Metrics) Dispatch(d hostif.Decision) {
	if m == nil {
		return
	}
	delivered := "false"
	if d.Delivered {
		delivered = "true"
	}
	m.Dispatches.WithLabelValues(d.TrapType.String(), delivered).Inc()
}

// DeviceError counts a failed device operation.
func (m *Metrics) DeviceError(op string) {
	if m == nil {
		return
	}
	m.DeviceErrors.WithLabelValues(op).Inc()
}

func kindLabel(k error) string {
	switch k {
	case hostif.ErrInvalidReference:
		return "invalid_reference"
	case hostif.ErrDuplicateKey:
		return "duplicate_key"
	case hostif.ErrImmutable:
		return "immutable"
	case hostif.ErrInvalidValue:
		return "invalid_value"
	case hostif.ErrInUse:
		return "in_use"
	case hostif.ErrNotFound:
		return "not_found"
	case hostif.ErrStaleHandle:
		return "stale_handle"
	default:
		return "error"
	}
}
