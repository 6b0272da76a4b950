package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moviememo/internal/identity"
	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/shared"
)

const defaultCheckTimeout = 10 * time.Second

// Reconciler keeps the store's profile consistent with the identity provider's session.
//
// Each notification starts a pass. Results of a pass are applied only if no newer notification
// arrived in the meantime, so the identity in the store is always the latest one notified.
// The reconciler never creates profiles; when provisioning for the same uid is running it waits
// for that result instead.
type Reconciler struct {
	provider    identity.Provider
	store       *Store
	profiles    ProfileReader
	provisioner *Provisioner
	timeout     time.Duration
	logger      *log.Logger

	mu     sync.Mutex
	gen    uint64
	unsub  identity.Unsubscribe
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type ReconcilerOption func(*Reconciler)

// WithProvisioner lets passes join provisioning calls running for the same uid.
func WithProvisioner(p *Provisioner) ReconcilerOption {
	return func(r *Reconciler) { r.provisioner = p }
}

func WithCheckTimeout(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.timeout = d }
}

func WithReconcilerLogger(logger *log.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = logger }
}

func NewReconciler(provider identity.Provider, store *Store, profiles ProfileReader, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		provider: provider,
		store:    store,
		profiles: profiles,
		timeout:  defaultCheckTimeout,
		logger:   shared.NewLogger(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var errAlreadyStarted = errors.New("reconciler already started")

// Start subscribes to session changes. An error means the provider could not be set up.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.ctx != nil {
		r.mu.Unlock()
		return errAlreadyStarted
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	unsub, err := r.provider.OnSessionChange(r.handle)
	if err != nil {
		r.cancel()
		r.store.SetLoading(false)
		return fmt.Errorf("failed to subscribe to session changes: %w", err)
	}

	r.mu.Lock()
	r.unsub = unsub
	r.mu.Unlock()
	return nil
}

// Close releases the subscription and waits for running passes. Their results are discarded.
func (r *Reconciler) Close() {
	r.mu.Lock()
	unsub := r.unsub
	r.unsub = nil
	r.gen++
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	r.wg.Wait()
}

func (r *Reconciler) handle(id *models.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gen++
	gen := r.gen
	r.store.SetIdentity(id)

	if id == nil {
		r.store.SetProfile(nil)
		r.store.SetLoading(false)
		return
	}

	// A profile belonging to someone else is cleared immediately.
	if p := r.store.GetState().Profile; p != nil && p.UID != id.UID {
		r.store.SetProfile(nil)
	}
	r.store.SetLoading(true)

	principal := *id
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.reconcile(gen, principal)
	}()
}

func (r *Reconciler) reconcile(gen uint64, id models.Identity) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	exists := r.profiles.Exists(ctx, id.UID)
	if !exists.Success {
		r.logger.Warn("profile check failed", "uid", id.UID, "error", exists.Error)
		r.settle(gen, id.UID, nil)
		return
	}

	if exists.Exists {
		res := r.profiles.Get(ctx, id.UID)
		if !res.Success {
			r.logger.Warn("profile fetch failed", "uid", id.UID, "error", res.Error)
		}
		if res.Profile != nil && res.Profile.UID == "" {
			res.Profile.UID = id.UID
		}
		r.settle(gen, id.UID, res.Profile)
		return
	}

	if r.provisioner != nil && r.provisioner.InFlight(id.UID) {
		r.logger.Debug("waiting for profile provisioning", "uid", id.UID)
		profile, err := r.provisioner.Join(ctx, id)
		if err != nil {
			r.logger.Warn("profile provisioning failed", "uid", id.UID, "error", err)
		}
		r.settle(gen, id.UID, profile)
		return
	}

	r.settle(gen, id.UID, nil)
}

// settle ends the pass. A nil profile never replaces one that already belongs to uid: a failed
// check does not regress the profile and a provisioning call may have published it since.
func (r *Reconciler) settle(gen uint64, uid string, profile *models.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		return
	}

	current := r.store.GetState().Profile
	switch {
	case profile != nil:
		r.store.SetProfileFor(uid, profile)
	case current != nil && current.UID != uid:
		r.store.SetProfile(nil)
	}
	r.store.SetLoading(false)
}
