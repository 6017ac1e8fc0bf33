package session

import (
	"sync"

	"github.com/waabox/deviceauth/internal/domain"
)

// Listener receives session change events.
type Listener func(domain.ChangeEvent)

type subscription struct {
	id int
	fn Listener
}

// Broadcaster fans change events out to subscribers synchronously, in subscription order.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe registers fn and returns a func that unregisters it.
func (b *Broadcaster) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit delivers e to every subscriber. Empty events are dropped.
// Listeners run without the broadcaster lock held, so they may subscribe or unsubscribe.
func (b *Broadcaster) Emit(e domain.ChangeEvent) {
	if e.Empty() {
		return
	}
	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(e)
	}
}
