// Package auth carries the signed-in identity to whoever needs it and
// issues the bearer tokens that protect the notes API.
package auth

import (
	"context"
	"sync"
)

// Identity is the signed-in user.
type Identity struct {
	UserID string `json:"user_id"`
}

// Event is one observation of the authentication state.
// Identity is nil when nobody is signed in.
type Event struct {
	Identity     *Identity
	Initializing bool
}

// CancelFunc stops a subscription and closes its channel.
type CancelFunc func()

// Stream is an observable source of authentication events.
type Stream interface {
	Subscribe() (<-chan Event, CancelFunc)
}

// Broker is an in-process Stream. New subscribers receive the latest event
// immediately; slow subscribers only ever see the newest state.
type Broker struct {
	mu     sync.Mutex
	latest Event
	subs   map[int]chan Event
	nextID int
}

var _ Stream = (*Broker)(nil)

// NewBroker creates a Broker whose initial state is initial.
func NewBroker(initial Event) *Broker {
	return &Broker{latest: initial, subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber.
func (b *Broker) Subscribe() (<-chan Event, CancelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 1)
	ch <- b.latest
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish records ev as the latest state and delivers it to every subscriber.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = ev
	for _, ch := range b.subs {
		// drop a stale undelivered event in favour of the new one
		select {
		case <-ch:
		default:
		}
		ch <- ev
	}
}

// SignIn publishes a signed-in identity.
func (b *Broker) SignIn(userID string) {
	b.Publish(Event{Identity: &Identity{UserID: userID}})
}

// SignOut publishes the signed-out state.
func (b *Broker) SignOut() {
	b.Publish(Event{})
}

// Latest returns the most recently published event.
func (b *Broker) Latest() Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

type ctxKey struct{}

// WithUserID stores an authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFrom returns the authenticated user id stored in ctx, or "".
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
