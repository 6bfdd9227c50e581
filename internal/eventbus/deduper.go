package eventbus

import (
	"sync"

	id "veridoc/pkg/domain"
)

// Deduper makes at-least-once consumers idempotent: the first delivery of an
// event id is applied, every redelivery is a no-op.
type Deduper struct {
	mu   sync.Mutex
	seen map[id.EventID]struct{}
}

func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[id.EventID]struct{})}
}

// Apply runs fn once per event id. It reports whether fn ran.
func (d *Deduper) Apply(event Event, fn func(Event)) bool {
	d.mu.Lock()
	if _, dup := d.seen[event.EventID]; dup {
		d.mu.Unlock()
		return false
	}
	d.seen[event.EventID] = struct{}{}
	d.mu.Unlock()

	fn(event)
	return true
}
