// Package realtime fans reconciled batches out to the owner's other
// connected devices, one channel per (owner, kind).
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/proto"
	"github.com/dmitrijs2005/shopsync/internal/records"
	"github.com/google/uuid"
)

const DefaultBufferSize = 64

type channelKey struct {
	owner string
	kind  records.Kind
}

// Subscription is one device listening on one channel.
type Subscription struct {
	ID       string
	Owner    string
	Kind     records.Kind
	DeviceID string

	ch      chan *proto.SyncEvent
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
	evicted bool
	created time.Time
}

// C delivers events until the subscription is closed.
func (s *Subscription) C() <-chan *proto.SyncEvent { return s.ch }

// Done is closed together with C.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Evicted reports whether the hub dropped the subscriber for falling behind.
func (s *Subscription) Evicted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

func (s *Subscription) close(evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.evicted = evicted
	close(s.done)
	close(s.ch)
}

// Hub owns every live subscription. Publish never blocks: a subscriber whose
// buffer is full is evicted and has to catch up with a pull.
type Hub struct {
	bufferSize int
	logger     logging.Logger

	mu   sync.RWMutex
	subs map[channelKey]map[string]*Subscription
}

func NewHub(bufferSize int, logger logging.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		bufferSize: bufferSize,
		logger:     logger.With("module", "realtime"),
		subs:       make(map[channelKey]map[string]*Subscription),
	}
}

func (h *Hub) Subscribe(owner string, kind records.Kind, deviceID string) *Subscription {
	sub := &Subscription{
		ID:       uuid.NewString(),
		Owner:    owner,
		Kind:     kind,
		DeviceID: deviceID,
		ch:       make(chan *proto.SyncEvent, h.bufferSize),
		done:     make(chan struct{}),
		created:  time.Now(),
	}

	key := channelKey{owner, kind}
	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[string]*Subscription)
	}
	h.subs[key][sub.ID] = sub
	h.mu.Unlock()

	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	if h.remove(sub) {
		sub.close(false)
	}
}

func (h *Hub) remove(sub *Subscription) bool {
	key := channelKey{sub.Owner, sub.Kind}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subs[key]
	if !ok {
		return false
	}
	if _, ok := subs[sub.ID]; !ok {
		return false
	}
	delete(subs, sub.ID)
	if len(subs) == 0 {
		delete(h.subs, key)
	}
	return true
}

// Publish delivers ev to every subscriber of (owner, kind) except the
// device that caused it.
func (h *Hub) Publish(owner string, kind records.Kind, originDevice string, ev *proto.SyncEvent) {
	var slow []*Subscription

	h.mu.RLock()
	for _, sub := range h.subs[channelKey{owner, kind}] {
		if originDevice != "" && sub.DeviceID == originDevice {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		if h.remove(sub) {
			sub.close(true)
			h.logger.Warn(context.Background(), "subscriber evicted", "owner", owner, "kind", kind,
				"device", sub.DeviceID, "age", time.Since(sub.created).String())
		}
	}
}

// Count returns the number of live subscriptions on (owner, kind).
func (h *Hub) Count(owner string, kind records.Kind) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channelKey{owner, kind}])
}

// Close ends every subscription, used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[channelKey]map[string]*Subscription)
	h.mu.Unlock()

	for _, subs := range all {
		for _, sub := range subs {
			sub.close(false)
		}
	}
}
