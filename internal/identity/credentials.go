package identity

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/moviememo/internal/models"
)

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"

	expiryLeeway = time.Minute
)

// Credentials are the tokens issued for the signed-in principal.
type Credentials struct {
	Identity     models.Identity
	Provider     string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the ID token is expired or about to expire at now.
func (c *Credentials) Expired(now time.Time) bool {
	return !now.Add(expiryLeeway).Before(c.ExpiresAt)
}

// Persistence stores credentials between runs. Load returns nil, nil when nothing is stored.
type Persistence interface {
	Load(ctx context.Context) (*Credentials, error)
	Save(ctx context.Context, c *Credentials) error
	Clear(ctx context.Context) error
}

// MemoryPersistence keeps credentials for the lifetime of the process.
type MemoryPersistence struct {
	mu    sync.Mutex
	creds *Credentials
}

func (m *MemoryPersistence) Load(ctx context.Context) (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return nil, nil
	}
	c := *m.creds
	return &c, nil
}

func (m *MemoryPersistence) Save(ctx context.Context, c *Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := *c
	m.creds = &saved
	return nil
}

func (m *MemoryPersistence) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	return nil
}
