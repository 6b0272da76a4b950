package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/desertthunder/moviememo/internal/models"
	tu "github.com/desertthunder/moviememo/internal/testing"
)

func startReconciler(t *testing.T, fp *tu.FakeProvider, b *fakeBackend, opts ...ReconcilerOption) (*Reconciler, *Store) {
	t.Helper()
	store := NewStore()
	r := NewReconciler(fp, store, newProfileClient(t, b), opts...)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(r.Close)
	return r, store
}

func settled(store *Store) func() bool {
	return func() bool { return !store.GetState().Loading }
}

func TestReconciler(t *testing.T) {
	t.Run("Start Failure Is Returned", func(t *testing.T) {
		fp := tu.NewFakeProvider()
		fp.SubscribeErr = errors.New("provider offline")
		store := NewStore()
		r := NewReconciler(fp, store, newProfileClient(t, newFakeBackend()))

		err := r.Start(context.Background())
		if err == nil || !errors.Is(err, fp.SubscribeErr) {
			t.Fatalf("expected subscription error, got %v", err)
		}
		if store.GetState().Loading {
			t.Error("loading should end when setup fails")
		}
	})

	t.Run("Start Twice", func(t *testing.T) {
		r, _ := startReconciler(t, tu.NewFakeProvider(), newFakeBackend())
		if err := r.Start(context.Background()); err == nil {
			t.Error("expected error starting twice")
		}
	})

	t.Run("No Session", func(t *testing.T) {
		_, store := startReconciler(t, tu.NewFakeProvider(), newFakeBackend())
		state := store.GetState()
		if state.Loading || state.Identity != nil || state.Profile != nil {
			t.Errorf("unexpected state %+v", state)
		}
	})

	t.Run("Existing Profile", func(t *testing.T) {
		fp := tu.NewFakeProvider()
		b := newFakeBackend()
		b.addProfile(models.Profile{UID: "u1", Username: "WiseOwl-12"})
		_, store := startReconciler(t, fp, b)

		fp.Publish(&models.Identity{UID: "u1", Email: "a@b.com"})
		if !store.GetState().Loading {
			t.Error("loading should be set while the profile is fetched")
		}

		tu.Eventually(t, time.Second, settled(store), "reconciliation did not settle")
		state := store.GetState()
		if state.Profile == nil || state.Profile.Username != "WiseOwl-12" {
			t.Errorf("profile = %+v", state.Profile)
		}
	})

	t.Run("Identity Follows Notifications", func(t *testing.T) {
		fp := tu.NewFakeProvider()
		b := newFakeBackend()
		b.addProfile(models.Profile{UID: "a", Username: "A"})
		b.addProfile(models.Profile{UID: "b", Username: "B"})
		_, store := startReconciler(t, fp, b)

		notifications := []*models.Identity{{UID: "a"}, nil, {UID: "b"}, {UID: "a"}, nil, {UID: "b"}}
		for i, id := range notifications {
			fp.Publish(id)
			got := store.GetState().Identity
			switch {
			case id == nil && got != nil:
				t.Fatalf("step %d: identity = %+v, want nil", i, got)
			case id != nil && (got == nil || got.UID != id.UID):
				t.Fatalf("step %d: identity = %+v, want %s", i, got, id.UID)
			}
		}

		tu.Eventually(t, time.Second, settled(store), "reconciliation did not settle")
		state := store.GetState()
		if state.Identity.UID != "b" || state.Profile == nil || state.Profile.UID != "b" {
			t.Errorf("final state %+v / %+v", state.Identity, state.Profile)
		}
	})

	t.Run("Sign Out Clears Profile", func(t *testing.T) {
		fp := tu.NewFakeProvider()
		b := newFakeBackend()
		b.addProfile(models.Profile{UID: "u1", Username: "X"})
		_, store := startReconciler(t, fp, b)

		fp.Publish(&models.Identity{UID: "u1"})
		tu.Eventually(t, time.Second, settled(store), "reconciliation did not settle")

		fp.Publish(nil)
		state := store.GetState()
		if state.Identity != nil || state.Profile != nil || state.Loading {
			t.Errorf("state after sign out = %+v", state)
		}
	})

	t.Run("Stale Pass Is Discarded", func(t *testing.T) {
		fp := tu.NewFakeProvider()
		b := newFakeBackend()
		b.addProfile(models.Profile{UID: "u1", Username: "Stale"})
		b.existsGate = make(chan struct{})
		r, store := startReconciler(t, fp, b)

		fp.Publish(&models.Identity{UID: "u1"})
		tu.Eventually(t, time.Second, func() bool { return b.existsCalls.Load() == 1 }, "check not issued")

		fp.Publish(nil)
		close(b.existsGate)
		r.wg.Wait()

		state := store.GetState()
		if state.Identity != nil || state.Profile != nil {
			t.Errorf("stale profile applied after sign out: %+v", state)
		}
	})

	t.Run("Check Failure Keeps Own Profile", func(t *testing.T) {
		fp := tu.NewFakeProvider()
		b := newFakeBackend()
		b.addProfile(models.Profile{UID: "u1", Username: "Kept"})
		_, store := startReconciler(t, fp, b)

		fp.Publish(&models.Identity{UID: "u1"})
		tu.Eventually(t, time.Second, settled(store), "reconciliation did not settle")

		b.existsStatus.Store(http.StatusServiceUnavailable)
		fp.Publish(&models.Identity{UID: "u1", EmailVerified: true})
		tu.Eventually(t, time.Second, settled(store), "reconciliation did not settle")

		if p := store.GetState().Profile; p == nil || p.Username != "Kept" {
			t.Errorf("profile should survive a failed check, got %+v", p)
		}

		fp.Publish(&models.Identity{UID: "u2"})
		if store.GetState().Profile != nil {
			t.Error("another principal's profile must be cleared immediately")
		}
		tu.Eventually(t, time.Second, settled(store), "reconciliation did not settle")
		if store.GetState().Profile != nil {
			t.Error("profile should stay absent after a failed check for a new principal")
		}
	})

	t.Run("Missing Profile Is Not Created", func(t *testing.T) {
		fp := tu.NewFakeProvider()
		b := newFakeBackend()
		_, store := startReconciler(t, fp, b, WithProvisioner(NewProvisioner(newProfileClient(t, b), NewStore())))

		fp.Publish(&models.Identity{UID: "u9", Email: "new@example.com"})
		tu.Eventually(t, time.Second, settled(store), "reconciliation did not settle")

		if store.GetState().Profile != nil {
			t.Error("expected no profile")
		}
		if n := b.creates.Load(); n != 0 {
			t.Errorf("reconciler issued %d creates", n)
		}
	})

	t.Run("Close Stops Updates", func(t *testing.T) {
		fp := tu.NewFakeProvider()
		r, store := startReconciler(t, fp, newFakeBackend())
		r.Close()

		fp.Publish(&models.Identity{UID: "u1"})
		if store.GetState().Identity != nil {
			t.Error("notifications after Close must be ignored")
		}
	})
}
