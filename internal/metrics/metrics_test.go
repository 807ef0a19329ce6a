package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndGauges(t *testing.T) {
	m := New()
	m.Submission("accepted")
	m.Submission("accepted")
	m.Submission("closed")
	m.ClientDropped()
	m.SetLiveClients(3)

	if got := testutil.ToFloat64(m.Submissions.WithLabelValues("accepted")); got != 2 {
		t.Fatalf("expected 2 accepted submissions, got %v", got)
	}
	if got := testutil.ToFloat64(m.DroppedClients); got != 1 {
		t.Fatalf("expected 1 dropped client, got %v", got)
	}
	if got := testutil.ToFloat64(m.LiveClients); got != 3 {
		t.Fatalf("expected 3 live clients, got %v", got)
	}

	m.ObserveSnapshotWrite(time.Now(), errors.New("boom"))
	if got := testutil.CollectAndCount(m.SnapshotWrites); got != 1 {
		t.Fatalf("expected one snapshot write series, got %d", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.Submission("accepted")
	m.AdminAction("set_rating")
	m.Broadcast("answers_changed")
	m.ClientDropped()
	m.SetLiveClients(1)
	m.ObserveSnapshotWrite(time.Now(), nil)
	m.ObserveRequest("GET", 200, time.Now())
	if m.Handler() == nil {
		t.Fatalf("expected a handler even without metrics")
	}
}
