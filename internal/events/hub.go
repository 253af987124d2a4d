// Package events fans progress events out to live observers. Every observer
// belongs to exactly one tenant partition and may opt into video partitions.
// Delivery is best-effort and at-most-once: a full buffer drops the event and
// nothing is replayed.
package events

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"videoapi/internal/metrics"
	"videoapi/internal/model"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

const defaultBuffer = 32

// TenantPartition is the room every observer of tenant joins at connect time.
func TenantPartition(tenant string) string { return "tenant-" + tenant }

// VideoPartition is the optional per-video room.
func VideoPartition(videoID string) string { return "video-" + videoID }

// Partitions returns the rooms an event for ev belongs to.
func Partitions(ev model.ProgressEvent) []string {
	return []string{TenantPartition(ev.TenantID), VideoPartition(ev.VideoID)}
}

// Publisher delivers an event to every observer of any of the partitions.
// Publish never blocks on observers and never fails when nobody listens.
type Publisher interface {
	Publish(ev model.ProgressEvent, partitions ...string)
}

// Subscription is one live observer.
type Subscription struct {
	ID     string
	UserID string
	Tenant string

	ch     chan model.ProgressEvent
	hub    *Hub
	videos map[string]struct{} // guarded by hub.mu
	closed bool                // guarded by hub.mu
}

// Events is closed when the subscription is closed.
func (s *Subscription) Events() <-chan model.ProgressEvent { return s.ch }

// Close leaves every partition. Safe to call more than once.
func (s *Subscription) Close() { s.hub.remove(s) }

// Hub is the in-process fan-out.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]*Subscription
	subs    map[string]*Subscription
	buffer  int
	metrics *metrics.Metrics
}

var _ Publisher = (*Hub)(nil)

// NewHub returns a Hub whose observers buffer up to buffer events.
func NewHub(buffer int, m *metrics.Metrics) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		rooms:   make(map[string]map[string]*Subscription),
		subs:    make(map[string]*Subscription),
		buffer:  buffer,
		metrics: m,
	}
}

// Subscribe registers an observer in its tenant partition and in the
// partitions of videos, all before any later Publish can reach it.
func (h *Hub) Subscribe(userID, tenant string, videos ...string) *Subscription {
	s := &Subscription{
		ID:     uuid.NewString(),
		UserID: userID,
		Tenant: tenant,
		ch:     make(chan model.ProgressEvent, h.buffer),
		hub:    h,
		videos: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.subs[s.ID] = s
	h.joinLocked(TenantPartition(tenant), s)
	for _, v := range videos {
		s.videos[v] = struct{}{}
		h.joinLocked(VideoPartition(v), s)
	}
	h.mu.Unlock()

	h.metrics.ObserverAdded()
	return s
}

// Lookup finds a live subscription by id.
func (h *Hub) Lookup(id string) (*Subscription, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.subs[id]
	return s, ok
}

// Join adds the subscription to a video partition. It affects only events
// published after it returns.
func (h *Hub) Join(subID, videoID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.subs[subID]
	if !ok {
		return ErrSubscriptionNotFound
	}
	s.videos[videoID] = struct{}{}
	h.joinLocked(VideoPartition(videoID), s)
	return nil
}

// Leave removes the subscription from a video partition.
func (h *Hub) Leave(subID, videoID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.subs[subID]
	if !ok {
		return ErrSubscriptionNotFound
	}
	delete(s.videos, videoID)
	h.leaveLocked(VideoPartition(videoID), s)
	return nil
}

func (h *Hub) joinLocked(room string, s *Subscription) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Subscription)
		h.rooms[room] = members
	}
	members[s.ID] = s
}

func (h *Hub) leaveLocked(room string, s *Subscription) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, s.ID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	if s.closed {
		h.mu.Unlock()
		return
	}
	s.closed = true
	delete(h.subs, s.ID)
	h.leaveLocked(TenantPartition(s.Tenant), s)
	for v := range s.videos {
		h.leaveLocked(VideoPartition(v), s)
	}
	close(s.ch)
	h.mu.Unlock()

	h.metrics.ObserverRemoved()
}

// Publish delivers ev once to each observer in any of the partitions.
func (h *Hub) Publish(ev model.ProgressEvent, partitions ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, room := range partitions {
		for id, s := range h.rooms[room] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			select {
			case s.ch <- ev:
				h.metrics.EventPublished()
			default:
				h.metrics.EventDropped()
			}
		}
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// CloseAll closes every live subscription, ending their streams.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		s.Close()
	}
}
