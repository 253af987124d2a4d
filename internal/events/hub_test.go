package events

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoapi/internal/metrics"
	"videoapi/internal/model"
)

func event(tenant, video string, progress int) model.ProgressEvent {
	return model.ProgressEvent{
		VideoID:  video,
		TenantID: tenant,
		Status:   model.StateProcessing,
		Progress: progress,
		Stage:    "running analysis",
	}
}

func drain(s *Subscription) []model.ProgressEvent {
	var out []model.ProgressEvent
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestTenantIsolation(t *testing.T) {
	h := NewHub(8, nil)
	a := h.Subscribe("u1", "t1")
	b := h.Subscribe("u2", "t2")
	defer a.Close()
	defer b.Close()

	ev := event("t1", "v1", 25)
	h.Publish(ev, Partitions(ev)...)

	assert.Equal(t, []model.ProgressEvent{ev}, drain(a))
	assert.Empty(t, drain(b))
}

func TestSharedTenantReceivesAll(t *testing.T) {
	h := NewHub(8, nil)
	owner := h.Subscribe("owner", "owner")
	member := h.Subscribe("member", "owner")

	ev := event("owner", "v1", 50)
	h.Publish(ev, Partitions(ev)...)

	assert.Len(t, drain(owner), 1)
	assert.Len(t, drain(member), 1)
}

func TestVideoPartitionDeliversOnce(t *testing.T) {
	h := NewHub(8, nil)
	s := h.Subscribe("u1", "t1")
	require.NoError(t, h.Join(s.ID, "v1"))

	ev := event("t1", "v1", 75)
	h.Publish(ev, Partitions(ev)...)

	assert.Len(t, drain(s), 1)
}

func TestVideoPartitionOptInAndOut(t *testing.T) {
	h := NewHub(8, nil)
	s := h.Subscribe("admin", "admin")

	ev := event("t9", "v9", 25)
	h.Publish(ev, Partitions(ev)...)
	assert.Empty(t, drain(s))

	require.NoError(t, h.Join(s.ID, "v9"))
	h.Publish(ev, Partitions(ev)...)
	assert.Len(t, drain(s), 1)

	require.NoError(t, h.Leave(s.ID, "v9"))
	h.Publish(ev, Partitions(ev)...)
	assert.Empty(t, drain(s))
}

func TestJoinUnknownSubscription(t *testing.T) {
	h := NewHub(8, nil)
	assert.ErrorIs(t, h.Join("missing", "v1"), ErrSubscriptionNotFound)
	assert.ErrorIs(t, h.Leave("missing", "v1"), ErrSubscriptionNotFound)
}

func TestReconnectMissesEarlierEvents(t *testing.T) {
	h := NewHub(8, nil)
	first := h.Subscribe("u1", "t1")
	first.Close()

	missed := event("t1", "v1", 25)
	h.Publish(missed, Partitions(missed)...)

	second := h.Subscribe("u1", "t1")
	defer second.Close()
	next := event("t1", "v1", 50)
	h.Publish(next, Partitions(next)...)

	assert.Equal(t, []model.ProgressEvent{next}, drain(second))
}

func TestCloseIsIdempotentAndClosesChannel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	h := NewHub(8, m)
	s := h.Subscribe("u1", "t1")
	require.NoError(t, h.Join(s.ID, "v1"))
	assert.Equal(t, 1, h.Len())

	s.Close()
	s.Close()

	_, open := <-s.Events()
	assert.False(t, open)
	assert.Equal(t, 0, h.Len())
	_, ok := h.Lookup(s.ID)
	assert.False(t, ok)
	assert.Empty(t, h.rooms)
}

func TestFullBufferDrops(t *testing.T) {
	h := NewHub(1, nil)
	s := h.Subscribe("u1", "t1")

	first := event("t1", "v1", 25)
	second := event("t1", "v1", 50)
	h.Publish(first, Partitions(first)...)
	h.Publish(second, Partitions(second)...)

	assert.Equal(t, []model.ProgressEvent{first}, drain(s))
}

func TestPublishWithoutSubscribers(t *testing.T) {
	h := NewHub(0, nil)
	ev := event("t1", "v1", 100)
	assert.NotPanics(t, func() { h.Publish(ev, Partitions(ev)...) })
}

func TestOrderingPreserved(t *testing.T) {
	h := NewHub(8, nil)
	s := h.Subscribe("u1", "t1")
	for _, p := range []int{0, 25, 50, 75, 100} {
		ev := event("t1", "v1", p)
		h.Publish(ev, Partitions(ev)...)
	}

	var got []int
	for _, ev := range drain(s) {
		got = append(got, ev.Progress)
	}
	assert.Equal(t, []int{0, 25, 50, 75, 100}, got)
}

func TestCloseAll(t *testing.T) {
	h := NewHub(4, nil)
	a := h.Subscribe("u1", "t1")
	b := h.Subscribe("u2", "t2")
	require.NoError(t, h.Join(b.ID, "v1"))

	h.CloseAll()

	assert.Equal(t, 0, h.Len())
	_, open := <-a.Events()
	assert.False(t, open)
	_, open = <-b.Events()
	assert.False(t, open)
	assert.ErrorIs(t, h.Join(a.ID, "v1"), ErrSubscriptionNotFound)
}

func TestSubscribeWithVideos(t *testing.T) {
	h := NewHub(4, nil)
	s := h.Subscribe("admin", "admin", "v9")

	h.Publish(event("t2", "v9", 50), VideoPartition("v9"), TenantPartition("t2"))
	require.Len(t, drain(s), 1)

	s.Close()
	h.Publish(event("t2", "v9", 75), VideoPartition("v9"))
	assert.Equal(t, 0, h.Len())
}
