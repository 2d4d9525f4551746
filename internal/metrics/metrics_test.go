package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
)

type fakeStore map[domain.Status]int

func (f fakeStore) CountByStatus() map[domain.Status]int {
	return f
}

func TestMetrics_Observe(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg, fakeStore{})

	m.ObserveTrigger(domain.TriggerProblem, "alerted")
	m.ObserveTrigger(domain.TriggerProblem, "alerted")
	m.ObserveTrigger(domain.TriggerOK, "resolved")
	m.ObserveCycle(ResultSuccess, 2*time.Second)
	m.ObserveCycle(ResultError, time.Second)
	m.ObserveEvictions(3)
	m.ObserveEvictions(0)

	require.InDelta(t, 2, testutil.ToFloat64(m.TriggersTotal.WithLabelValues("PROBLEM", "alerted")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.TriggersTotal.WithLabelValues("RESOLVED", "resolved")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.CyclesTotal.WithLabelValues(ResultError)), 0)
	require.InDelta(t, 3, testutil.ToFloat64(m.EvictionsTotal), 0)
	require.Equal(t, 1, testutil.CollectAndCount(m.CycleDuration))
}

// TestMetrics_TrackedAlarms verifies the gauge follows the store on every scrape.
func TestMetrics_TrackedAlarms(t *testing.T) {
	t.Parallel()

	store := fakeStore{domain.StatusProblem: 2}
	reg := prometheus.NewRegistry()
	New(reg, store)

	expected := `
# HELP alarm_relay_tracked_alarms Alarm records currently held by status
# TYPE alarm_relay_tracked_alarms gauge
alarm_relay_tracked_alarms{status="problem"} 2
alarm_relay_tracked_alarms{status="resolved"} 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "alarm_relay_tracked_alarms"))

	store[domain.StatusResolved] = 5

	expected = `
# HELP alarm_relay_tracked_alarms Alarm records currently held by status
# TYPE alarm_relay_tracked_alarms gauge
alarm_relay_tracked_alarms{status="problem"} 2
alarm_relay_tracked_alarms{status="resolved"} 5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "alarm_relay_tracked_alarms"))
}

// TestServe verifies the endpoint serves metrics and stops with the context.
func TestServe(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg, fakeStore{})
	m.ObserveEvictions(1)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)

	go func() {
		served <- Serve(ctx, lis, reg)
	}()

	resp, err := http.Get("http://" + lis.Addr().String() + "/metrics") //nolint:noctx // Test request.
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "alarm_relay_evictions_total 1")

	cancel()
	require.NoError(t, <-served)
}
