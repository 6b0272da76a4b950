package session

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/shared"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultUsernameAttempts = 5
	provisionTimeout        = 30 * time.Second
)

// Provisioner makes sure a profile exists for a signed-in principal.
//
// Calls for the same uid are collapsed so at most one create request per uid is in flight.
type Provisioner struct {
	profiles ProfileService
	store    *Store
	names    UsernameFunc
	attempts int
	logger   *log.Logger

	group    singleflight.Group
	mu       sync.Mutex
	inflight map[string]int
}

type ProvisionerOption func(*Provisioner)

func WithUsernames(fn UsernameFunc) ProvisionerOption {
	return func(p *Provisioner) { p.names = fn }
}

func WithAttempts(n int) ProvisionerOption {
	return func(p *Provisioner) {
		if n > 0 {
			p.attempts = n
		}
	}
}

func WithProvisionerLogger(logger *log.Logger) ProvisionerOption {
	return func(p *Provisioner) { p.logger = logger }
}

func NewProvisioner(profiles ProfileService, store *Store, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		profiles: profiles,
		store:    store,
		names:    RandomUsername,
		attempts: DefaultUsernameAttempts,
		logger:   shared.NewLogger(io.Discard),
		inflight: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InFlight reports whether provisioning for uid is running.
func (p *Provisioner) InFlight(uid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight[uid] > 0
}

// Ensure returns the profile for id, creating one with a generated username when none exists.
// A created or found profile is published to the store while id is still signed in.
func (p *Provisioner) Ensure(ctx context.Context, id models.Identity) (*models.Profile, error) {
	p.mu.Lock()
	p.inflight[id.UID]++
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.inflight[id.UID]--; p.inflight[id.UID] <= 0 {
			delete(p.inflight, id.UID)
		}
		p.mu.Unlock()
	}()

	res, err := p.do(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if res.profile != nil {
		p.store.SetProfileFor(id.UID, res.profile)
	}
	return res.profile, nil
}

// Join waits for a running provisioning call for id without ever creating a profile itself.
// With nothing in flight it looks the profile up, returning nil when there is none.
func (p *Provisioner) Join(ctx context.Context, id models.Identity) (*models.Profile, error) {
	if !p.InFlight(id.UID) {
		profile, _, err := p.lookup(ctx, id.UID)
		return profile, err
	}
	res, err := p.do(ctx, id, false)
	return res.profile, err
}

type provisionResult struct {
	profile   *models.Profile
	mayCreate bool
}

func (p *Provisioner) do(ctx context.Context, id models.Identity, allowCreate bool) (provisionResult, error) {
	for {
		ch := p.group.DoChan(id.UID, func() (any, error) {
			// The shared call outlives any single caller's cancellation.
			callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), provisionTimeout)
			defer cancel()
			profile, err := p.provision(callCtx, id, allowCreate)
			return provisionResult{profile: profile, mayCreate: allowCreate}, err
		})

		select {
		case res := <-ch:
			if res.Err != nil {
				return provisionResult{}, res.Err
			}
			out := res.Val.(provisionResult)
			// A creating caller that joined a lookup-only call goes again.
			if allowCreate && !out.mayCreate && out.profile == nil {
				continue
			}
			return out, nil
		case <-ctx.Done():
			return provisionResult{}, ctx.Err()
		}
	}
}

func (p *Provisioner) provision(ctx context.Context, id models.Identity, allowCreate bool) (*models.Profile, error) {
	profile, found, err := p.lookup(ctx, id.UID)
	if err != nil || found || !allowCreate {
		return profile, err
	}

	var lastErr string
	for attempt := 1; attempt <= p.attempts; attempt++ {
		username := p.names()

		taken := p.profiles.UsernameExists(ctx, username)
		if taken.Success && taken.Exists {
			p.logger.Debug("generated username taken", "username", username, "attempt", attempt)
			lastErr = ErrUsernameTaken.Error()
			continue
		}

		res := p.profiles.Create(ctx, id.Email, username, id.UID)
		if res.Success {
			created := res.Profile
			if created == nil {
				created = &models.Profile{Username: username, Email: id.Email}
			}
			if created.UID == "" {
				created.UID = id.UID
			}
			p.logger.Info("created profile", "uid", id.UID, "username", created.Username)
			return created, nil
		}

		lastErr = res.Error
		p.logger.Warn("profile create failed", "uid", id.UID, "username", username, "attempt", attempt, "error", res.Error)

		// The rejection may be for the uid rather than the username.
		if existing, found, err := p.lookup(ctx, id.UID); err == nil && found {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProvisioningFailed, lastErr)
}

// lookup reports the profile for uid and whether the backend has one.
func (p *Provisioner) lookup(ctx context.Context, uid string) (*models.Profile, bool, error) {
	exists := p.profiles.Exists(ctx, uid)
	if !exists.Success {
		return nil, false, fmt.Errorf("%w: %s", ErrProvisioningFailed, exists.Error)
	}
	if !exists.Exists {
		return nil, false, nil
	}

	res := p.profiles.Get(ctx, uid)
	if !res.Success {
		return nil, false, fmt.Errorf("%w: %s", ErrProvisioningFailed, res.Error)
	}
	if res.Profile == nil {
		return nil, false, nil
	}
	if res.Profile.UID == "" {
		res.Profile.UID = uid
	}
	return res.Profile, true, nil
}
