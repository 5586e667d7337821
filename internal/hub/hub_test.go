package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tritonminingco/deepseaguard/internal/telemetry/metrics"
)

type fakeSubscriber struct {
	id       string
	received []Event
	failOn   int
	calls    int
}

func (s *fakeSubscriber) ID() string { return s.id }

func (s *fakeSubscriber) Send(e Event) error {
	s.calls++
	if s.failOn != 0 && s.calls >= s.failOn {
		return errors.New("send failed")
	}
	s.received = append(s.received, e)
	return nil
}

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	h := New(nil)
	a := &fakeSubscriber{id: "a"}
	b := &fakeSubscriber{id: "b"}
	h.Register(a)
	h.Register(b)

	h.Broadcast(Event{Kind: "echo", EmittedAt: time.Now()})

	require.Len(t, a.received, 1)
	require.Len(t, b.received, 1)
}

func TestBroadcastRemovesFailingSubscriber(t *testing.T) {
	h := New(nil)
	bad := &fakeSubscriber{id: "bad", failOn: 1}
	h.Register(bad)

	h.Broadcast(Event{Kind: "echo"})

	assert.Equal(t, 0, h.Count())
}

func TestBroadcastPreservesFIFOPerSubscriber(t *testing.T) {
	h := New(nil)
	s := &fakeSubscriber{id: "s"}
	h.Register(s)

	h.Broadcast(Event{Kind: "environmental_alert"})
	h.Broadcast(Event{Kind: "zone_alert"})

	require.Len(t, s.received, 2)
	assert.Equal(t, "environmental_alert", s.received[0].Kind)
	assert.Equal(t, "zone_alert", s.received[1].Kind)
}

func TestUnregisterRemovesSubscriber(t *testing.T) {
	h := New(nil)
	h.Register(&fakeSubscriber{id: "a"})
	h.Unregister("a")
	assert.Equal(t, 0, h.Count())
}

func TestBroadcastToEmptyHubDoesNothing(t *testing.T) {
	h := New(nil)
	assert.NotPanics(t, func() { h.Broadcast(Event{Kind: "echo"}) })
}

func TestRegisterUnregisterReportSubscriberGauge(t *testing.T) {
	m := metrics.New()
	h := New(m)

	h.Register(&fakeSubscriber{id: "a"})
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubscriberCount))

	h.Register(&fakeSubscriber{id: "b"})
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SubscriberCount))

	h.Unregister("a")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubscriberCount))
}
