package eventbus

import (
	"context"
	"sync"
)

const subscriberBuffer = 256

// ChannelTransport is the in-process transport. Forward delivers to
// subscribers in registration order on buffered channels; a full subscriber
// blocks the publisher rather than dropping events, which keeps per-document
// ordering intact.
type ChannelTransport struct {
	mu     sync.Mutex
	subs   map[int]*channelSub
	nextID int
	closed bool
}

type channelSub struct {
	filter Filter
	ch     chan Event
}

func NewChannelTransport() *ChannelTransport {
	return &ChannelTransport{subs: make(map[int]*channelSub)}
}

func (t *ChannelTransport) Forward(ctx context.Context, event Event) error {
	t.mu.Lock()
	targets := make([]*channelSub, 0, len(t.subs))
	for _, sub := range t.subs {
		if sub.filter.matches(event.Type) {
			targets = append(targets, sub)
		}
	}
	t.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (t *ChannelTransport) Subscribe(filter Filter) *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	subID := t.nextID
	t.nextID++
	sub := &channelSub{filter: filter, ch: make(chan Event, subscriberBuffer)}
	t.subs[subID] = sub

	return &Subscription{
		C: sub.ch,
		cancel: func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if _, ok := t.subs[subID]; ok {
				delete(t.subs, subID)
				close(sub.ch)
			}
		},
	}
}

func (t *ChannelTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	for subID, sub := range t.subs {
		delete(t.subs, subID)
		close(sub.ch)
	}
	return nil
}
