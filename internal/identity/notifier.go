package identity

import (
	"sync"

	"github.com/desertthunder/moviememo/internal/models"
)

// Notifier fans session changes out to subscribers in publication order.
type Notifier struct {
	mu      sync.Mutex
	deliver sync.Mutex
	subs    map[int]func(*models.Identity)
	next    int
	current *models.Identity
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(*models.Identity))}
}

// Current returns a copy of the last published session, or nil.
func (n *Notifier) Current() *models.Identity {
	n.mu.Lock()
	defer n.mu.Unlock()
	return clone(n.current)
}

// Subscribe registers fn and immediately delivers the current session to it.
//
// Callbacks run on the publishing goroutine and must not publish.
func (n *Notifier) Subscribe(fn func(*models.Identity)) Unsubscribe {
	n.deliver.Lock()
	defer n.deliver.Unlock()

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = fn
	current := clone(n.current)
	n.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Publish records s as the current session and notifies every subscriber.
func (n *Notifier) Publish(s *models.Identity) {
	n.deliver.Lock()
	defer n.deliver.Unlock()

	n.mu.Lock()
	n.current = clone(s)
	fns := make([]func(*models.Identity), 0, len(n.subs))
	for i := 0; i < n.next; i++ {
		if fn, ok := n.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(clone(s))
	}
}

func clone(s *models.Identity) *models.Identity {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
