package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/session"
)

// sessionFeed bridges Store notifications into the bubbletea loop, keeping only the latest.
type sessionFeed struct {
	latest chan *models.State
	done   chan struct{}
	once   sync.Once
	unsub  func()
}

func watchSession(store *session.Store) *sessionFeed {
	f := &sessionFeed{latest: make(chan *models.State, 1), done: make(chan struct{})}
	f.unsub = store.Subscribe(func(s *models.State) {
		// Deliveries are serialized by the store, so this is the only sender.
		select {
		case <-f.latest:
		default:
		}
		f.latest <- s
	})
	return f
}

// next waits for the following snapshot. It returns nil once the feed is closed.
func (f *sessionFeed) next() tea.Cmd {
	if f == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case s := <-f.latest:
			return sessionChangedMsg(s)
		case <-f.done:
			return nil
		}
	}
}

func (f *sessionFeed) close() {
	if f == nil {
		return
	}
	f.once.Do(func() {
		f.unsub()
		close(f.done)
	})
}
