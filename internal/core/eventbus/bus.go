package eventbus

import (
	"sync"
	"time"

	"github.com/rl1809/food-delivery/internal/core/domain"
)

const subscriberBuffer = 32

// Bus fans domain events out to live subscribers. Admin subscribers receive
// every published event; partner subscribers only receive events published
// for their partner id. Publishing never blocks and never fails with zero
// subscribers; there is no buffering or replay, so late subscribers miss
// prior events.
type Bus struct {
	mu       sync.Mutex
	nextID   int64
	admin    map[int64]chan domain.Event
	partners map[int64]map[int64]chan domain.Event
}

func New() *Bus {
	return &Bus{
		admin:    make(map[int64]chan domain.Event),
		partners: make(map[int64]map[int64]chan domain.Event),
	}
}

// PublishAdmin delivers evt to every admin subscriber. Slow subscribers with
// a full buffer are skipped rather than blocking the caller.
func (b *Bus) PublishAdmin(evt domain.Event) {
	evt = stamp(evt)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.admin {
		select {
		case ch <- evt:
		default:
		}
	}
}

// PublishPartner delivers evt only to subscribers registered for partnerID.
func (b *Bus) PublishPartner(partnerID int64, evt domain.Event) {
	evt.PartnerID = partnerID
	evt = stamp(evt)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.partners[partnerID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// SubscribeAdmin registers a broadcast subscriber. The returned function
// removes the subscription and closes the channel; it is idempotent.
func (b *Bus) SubscribeAdmin() (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan domain.Event, subscriberBuffer)
	b.admin[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.admin[id]; ok {
			delete(b.admin, id)
			close(ch)
		}
	}
}

// SubscribePartner registers a subscriber keyed by partner id.
func (b *Bus) SubscribePartner(partnerID int64) (<-chan domain.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan domain.Event, subscriberBuffer)
	subs, ok := b.partners[partnerID]
	if !ok {
		subs = make(map[int64]chan domain.Event)
		b.partners[partnerID] = subs
	}
	subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs, ok := b.partners[partnerID]
		if !ok {
			return
		}
		if _, ok := subs[id]; ok {
			delete(subs, id)
			close(ch)
		}
		if len(subs) == 0 {
			delete(b.partners, partnerID)
		}
	}
}

func stamp(evt domain.Event) domain.Event {
	if evt.TS == 0 {
		evt.TS = time.Now().UnixMilli()
	}
	if evt.Severity == "" {
		evt.Severity = "info"
	}
	return evt
}
