package metrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/frobware/go-hostif"
	"github.com/frobware/go-hostif/metrics"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.SetObjects(hostif.ObjectTypeTrap, 3)
		m.Mutation("create", hostif.ObjectTypeTrap, nil)
		m.Resolve(hostif.MatchLevelWildcard)
		m.Dispatch(hostif.Decision{})
		m.DeviceError("materialize")
	})
}

func TestMutation_ClassifiesErrorKinds(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.Mutation("create", hostif.ObjectTypeTrap, nil)
	m.Mutation("create", hostif.ObjectTypeTrap, hostif.DuplicateKeyError{Key: "trap type lldp"})
	m.Mutation("remove", hostif.ObjectTypeTrap, hostif.InUseError{})
	m.Mutation("remove", hostif.ObjectTypeTrap, errors.New("disk on fire"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("create", "trap", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("create", "trap", "duplicate_key")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("remove", "trap", "in_use")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("remove", "trap", "error")))
}

func TestObjectsAndDispatch(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.SetObjects(hostif.ObjectTypeHostInterface, 4)
	m.Dispatch(hostif.Decision{TrapType: hostif.TrapTypeLLDP, Delivered: true})
	m.Resolve(hostif.MatchLevelNone)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.Objects.WithLabelValues("hostif")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("lldp", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolves.WithLabelValues("none")))
}
