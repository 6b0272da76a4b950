package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/services"
)

// fakeBackend serves the profile endpoints from memory.
type fakeBackend struct {
	mu       sync.Mutex
	profiles map[string]models.Profile
	taken    map[string]bool
	created  []string

	createError  string
	existsStatus atomic.Int32
	changeStatus atomic.Int32

	createEntered chan struct{}
	createGate    chan struct{}
	existsGate    chan struct{}

	creates     atomic.Int32
	existsCalls atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{profiles: map[string]models.Profile{}, taken: map[string]bool{}}
}

func (b *fakeBackend) addProfile(p models.Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles[p.UID] = p
	b.taken[p.Username] = true
}

func (b *fakeBackend) failCreates(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createError = msg
}

func (b *fakeBackend) createdUsernames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.created...)
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /users/check/username/{username}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		taken := b.taken[r.PathValue("username")]
		b.mu.Unlock()
		respond(w, http.StatusOK, map[string]bool{"exists": taken})
	})

	mux.HandleFunc("GET /users/check/{uid}", func(w http.ResponseWriter, r *http.Request) {
		b.existsCalls.Add(1)
		if b.existsGate != nil {
			<-b.existsGate
		}
		if status := int(b.existsStatus.Load()); status != 0 {
			respond(w, status, map[string]string{"error": "backend unavailable"})
			return
		}
		b.mu.Lock()
		_, ok := b.profiles[r.PathValue("uid")]
		b.mu.Unlock()
		respond(w, http.StatusOK, map[string]bool{"exists": ok})
	})

	mux.HandleFunc("GET /users/{uid}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		p, ok := b.profiles[r.PathValue("uid")]
		b.mu.Unlock()
		if !ok {
			respond(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
			return
		}
		respond(w, http.StatusOK, p)
	})

	mux.HandleFunc("POST /users/create", func(w http.ResponseWriter, r *http.Request) {
		b.creates.Add(1)
		if b.createEntered != nil {
			b.createEntered <- struct{}{}
		}
		if b.createGate != nil {
			<-b.createGate
		}

		var body struct{ Email, Username, UID string }
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		b.created = append(b.created, body.Username)
		if msg := b.createError; msg != "" {
			b.mu.Unlock()
			respond(w, http.StatusBadRequest, map[string]any{"username": []string{msg}})
			return
		}
		p := models.Profile{UID: body.UID, Username: body.Username, Email: body.Email}
		b.profiles[body.UID] = p
		b.taken[body.Username] = true
		b.mu.Unlock()

		respond(w, http.StatusCreated, map[string]any{"message": "User created", "user": p})
	})

	mux.HandleFunc("PUT /users/{uid}/change_username", func(w http.ResponseWriter, r *http.Request) {
		if status := int(b.changeStatus.Load()); status != 0 {
			respond(w, status, map[string]any{
				"message":   "You can only change your username once every 30 days.",
				"remaining": map[string]int{"days": 29, "hours": 1},
			})
			return
		}
		var body struct {
			NewUsername string `json:"new_username"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		p := b.profiles[r.PathValue("uid")]
		p.Username = body.NewUsername
		b.profiles[p.UID] = p
		b.mu.Unlock()

		respond(w, http.StatusOK, map[string]any{"message": "Username updated", "user": p})
	})

	mux.HandleFunc("PUT /users/{username}/profile-picture", func(w http.ResponseWriter, r *http.Request) {
		username := r.PathValue("username")
		b.mu.Lock()
		defer b.mu.Unlock()
		for uid, p := range b.profiles {
			if p.Username == username {
				p.ProfilePicture = fmt.Sprintf("https://cdn.example.com/%s.png", username)
				b.profiles[uid] = p
				respond(w, http.StatusOK, map[string]any{"message": "Profile picture updated", "user": p})
				return
			}
		}
		respond(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	})

	return mux
}

func newProfileClient(t *testing.T, b *fakeBackend) *services.ProfileClient {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)
	return services.NewProfileClient(services.NewAPIService(srv.URL, nil, services.WithTrailingSlash(false)))
}

// sequence returns a UsernameFunc yielding names in order, repeating the last one.
func sequence(names ...string) UsernameFunc {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		name := names[min(i, len(names)-1)]
		i++
		return name
	}
}
