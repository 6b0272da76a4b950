package session

import (
	"context"
	"sync"

	"github.com/desertthunder/moviememo/internal/models"
)

// Store holds the process-wide session state and notifies subscribers on every change.
//
// Every mutation publishes a new immutable [models.State]; all subscribers of one change
// receive the same pointer. Subscribers run synchronously on the mutating goroutine and must
// not call the setters.
type Store struct {
	mu      sync.Mutex
	deliver sync.Mutex
	state   *models.State
	subs    map[int]func(*models.State)
	next    int
	changed chan struct{}
}

// NewStore returns a store whose initial state is loading with no identity.
func NewStore() *Store {
	return &Store{
		state:   &models.State{Loading: true},
		subs:    make(map[int]func(*models.State)),
		changed: make(chan struct{}),
	}
}

// GetState returns the current snapshot.
func (s *Store) GetState() *models.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for change notifications and returns a func that removes it.
func (s *Store) Subscribe(fn func(*models.State)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// SetIdentity replaces the identity.
func (s *Store) SetIdentity(id *models.Identity) {
	s.update(func(st *models.State) bool {
		st.Identity = copyIdentity(id)
		return true
	})
}

// SetProfile replaces the profile.
func (s *Store) SetProfile(p *models.Profile) {
	s.update(func(st *models.State) bool {
		st.Profile = copyProfile(p)
		return true
	})
}

// SetProfileFor replaces the profile only while the identity is uid, reporting whether it did.
// Writers that finish after the session changed use it so a stale profile is never published.
func (s *Store) SetProfileFor(uid string, p *models.Profile) bool {
	return s.update(func(st *models.State) bool {
		if st.Identity == nil || st.Identity.UID != uid {
			return false
		}
		st.Profile = copyProfile(p)
		return true
	})
}

// SetLoading replaces the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.update(func(st *models.State) bool {
		st.Loading = loading
		return true
	})
}

// Wait blocks until pred holds for the current snapshot or ctx is done.
func (s *Store) Wait(ctx context.Context, pred func(*models.State) bool) (*models.State, error) {
	for {
		s.mu.Lock()
		state, changed := s.state, s.changed
		s.mu.Unlock()

		if pred(state) {
			return state, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// update applies mut to a copy of the state and, if mut reports a change, publishes it.
func (s *Store) update(mut func(*models.State) bool) bool {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	next := *s.state
	if !mut(&next) {
		s.mu.Unlock()
		return false
	}
	next.Version = s.state.Version + 1
	s.state = &next

	close(s.changed)
	s.changed = make(chan struct{})

	fns := make([]func(*models.State), 0, len(s.subs))
	for i := 0; i < s.next; i++ {
		if fn, ok := s.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(&next)
	}
	return true
}

func copyIdentity(id *models.Identity) *models.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func copyProfile(p *models.Profile) *models.Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
