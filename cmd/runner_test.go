package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/services"
	"github.com/desertthunder/moviememo/internal/shared"
	tu "github.com/desertthunder/moviememo/internal/testing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

type fakeCatalog struct{}

func (fakeCatalog) Trending(ctx context.Context, page int) services.MoviesResult {
	return services.MoviesResult{
		Success:    true,
		Movies:     []models.Movie{{ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-31", VoteAverage: 8.2, VoteCount: 100}},
		Page:       page,
		TotalPages: 5,
	}
}

func (fakeCatalog) Popular(ctx context.Context, page int) services.MoviesResult {
	return services.MoviesResult{Error: "Invalid API key: You must be granted a valid key."}
}

func (fakeCatalog) Movie(ctx context.Context, id string) services.MovieResult {
	if id != "603" {
		return services.MovieResult{Error: "The resource you requested could not be found."}
	}
	return services.MovieResult{Success: true, Movie: &models.Movie{ID: 603, IMDbID: "tt0133093", Title: "The Matrix", ReleaseDate: "1999-03-31"}}
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]models.Profile
}

func newFakeProfiles(profiles ...models.Profile) *fakeProfiles {
	f := &fakeProfiles{profiles: map[string]models.Profile{}}
	for _, p := range profiles {
		f.profiles[p.UID] = p
	}
	return f
}

func (f *fakeProfiles) find(match func(models.Profile) bool) *models.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if match(p) {
			return &p
		}
	}
	return nil
}

func (f *fakeProfiles) Exists(ctx context.Context, uid string) services.ExistsResult {
	p := f.find(func(p models.Profile) bool { return p.UID == uid })
	return services.ExistsResult{Success: true, Exists: p != nil}
}

func (f *fakeProfiles) Get(ctx context.Context, uid string) services.ProfileResult {
	return services.ProfileResult{Success: true, Profile: f.find(func(p models.Profile) bool { return p.UID == uid })}
}

func (f *fakeProfiles) GetByUsername(ctx context.Context, username string) services.ProfileResult {
	return services.ProfileResult{Success: true, Profile: f.find(func(p models.Profile) bool { return p.Username == username })}
}

func (f *fakeProfiles) UsernameExists(ctx context.Context, username string) services.ExistsResult {
	p := f.find(func(p models.Profile) bool { return p.Username == username })
	return services.ExistsResult{Success: true, Exists: p != nil}
}

func (f *fakeProfiles) Create(ctx context.Context, email, username, uid string) services.ProfileResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := models.Profile{UID: uid, Email: email, Username: username}
	f.profiles[uid] = p
	return services.ProfileResult{Success: true, Profile: &p}
}

func (f *fakeProfiles) ChangeUsername(ctx context.Context, uid, newUsername string) services.UsernameChangeResult {
	if newUsername == "toosoon" {
		return services.UsernameChangeResult{Error: "You can only change your username once every 30 days", Remaining: &models.Cooldown{Days: 3}}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.profiles[uid]
	p.Username = newUsername
	f.profiles[uid] = p
	return services.UsernameChangeResult{Success: true, Profile: &p}
}

func (f *fakeProfiles) UpdateAvatar(ctx context.Context, username, filename string, data []byte) services.ProfileResult {
	return services.ProfileResult{Error: "not supported"}
}

type fakePlaylists struct {
	mu        sync.Mutex
	playlists map[int]models.Playlist
	added     []string
	deleted   []int
}

func newFakePlaylists(playlists ...models.Playlist) *fakePlaylists {
	f := &fakePlaylists{playlists: map[int]models.Playlist{}}
	for _, p := range playlists {
		f.playlists[p.ID] = p
	}
	return f
}

func (f *fakePlaylists) Get(ctx context.Context, id int) services.PlaylistResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[id]
	if !ok {
		return services.PlaylistResult{Success: true}
	}
	return services.PlaylistResult{Success: true, Playlist: &p}
}

func (f *fakePlaylists) UserPlaylists(ctx context.Context, uid string) services.PlaylistsResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Playlist{}
	for _, p := range f.playlists {
		if p.User != nil && p.User.UID == uid {
			out = append(out, p)
		}
	}
	return services.PlaylistsResult{Success: true, Playlists: out, TotalPlaylists: len(out)}
}

func (f *fakePlaylists) All(ctx context.Context) services.PlaylistsResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Playlist{}
	for _, p := range f.playlists {
		out = append(out, p)
	}
	return services.PlaylistsResult{Success: true, Playlists: out, TotalPlaylists: len(out)}
}

func (f *fakePlaylists) Create(ctx context.Context, uid, name, description string) services.PlaylistResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := models.Playlist{ID: len(f.playlists) + 100, Name: name, Description: description, User: &models.Profile{UID: uid}, Movies: []models.MovieRef{}}
	f.playlists[p.ID] = p
	return services.PlaylistResult{Success: true, Playlist: &p}
}

func (f *fakePlaylists) Update(ctx context.Context, id int, update services.PlaylistUpdate) services.PlaylistResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.playlists[id]
	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.Description != nil {
		p.Description = *update.Description
	}
	f.playlists[id] = p
	return services.PlaylistResult{Success: true, Playlist: &p}
}

func (f *fakePlaylists) Delete(ctx context.Context, id int) services.MutationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.playlists, id)
	f.deleted = append(f.deleted, id)
	return services.MutationResult{Success: true}
}

func (f *fakePlaylists) AddMovie(ctx context.Context, id int, imdbID string) services.PlaylistResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, imdbID)
	p := f.playlists[id]
	return services.PlaylistResult{Success: true, Playlist: &p}
}

func (f *fakePlaylists) RemoveMovie(ctx context.Context, id int, imdbID string) services.PlaylistResult {
	return services.PlaylistResult{Error: "Movie not in playlist"}
}

var (
	ada     = models.Identity{UID: "u1", Email: "ada@example.com", EmailVerified: true}
	adaUser = models.Profile{UID: "u1", Email: "ada@example.com", Username: "quietotter-12"}
)

type harness struct {
	runner    *Runner
	output    *bytes.Buffer
	provider  *tu.FakeProvider
	playlists *fakePlaylists
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	output := &bytes.Buffer{}
	provider := tu.NewFakeProvider()
	provider.AddUser(ada.Email, "hunter2", ada)

	playlists := newFakePlaylists(
		models.Playlist{ID: 1, Name: "Favorites", User: &adaUser, Movies: []models.MovieRef{{ID: 603, IMDbID: "tt0133093"}}, MovieCount: 1},
		models.Playlist{ID: 2, Name: "Not Mine", User: &models.Profile{UID: "u2", Username: "grace"}, Movies: []models.MovieRef{}},
	)

	runner := NewRunner(RunnerOpts{
		Logger:    shared.NewLogger(io.Discard),
		Output:    output,
		Catalog:   fakeCatalog{},
		Playlists: playlists,
		Profiles:  newFakeProfiles(adaUser),
		Provider:  provider,
	})
	t.Cleanup(runner.Close)

	return &harness{runner: runner, output: output, provider: provider, playlists: playlists}
}

func (h *harness) signIn(id models.Identity) {
	h.provider.Publish(&id)
}

func (h *harness) run(t *testing.T, build func(*Runner) *cli.Command, args ...string) error {
	t.Helper()
	cmd := build(h.runner)
	return cmd.Run(context.Background(), append([]string{cmd.Name}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			registry := prometheus.NewRegistry()
			playlists := newFakePlaylists()
			profiles := newFakeProfiles()

			runner := NewRunner(RunnerOpts{
				Config:    config,
				Logger:    logger,
				Output:    output,
				Registry:  registry,
				Catalog:   fakeCatalog{},
				Playlists: playlists,
				Profiles:  profiles,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.registry != registry {
				t.Error("expected registry to be set")
			}
			if runner.playlists != playlists {
				t.Error("expected playlists to be set")
			}
			if runner.profiles != profiles {
				t.Error("expected profiles to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("builds backend clients from config", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if _, ok := runner.playlists.(*services.PlaylistClient); !ok {
				t.Errorf("expected a playlist client, got %T", runner.playlists)
			}
			if _, ok := runner.profiles.(*services.ProfileClient); !ok {
				t.Errorf("expected a profile client, got %T", runner.profiles)
			}
		})

		t.Run("without catalog token leaves catalog unset", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Catalog.BearerToken = ""
			runner := NewRunner(RunnerOpts{Config: config})

			if _, err := runner.requireCatalog(); !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("with catalog token builds catalog client", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Catalog.BearerToken = "token"
			runner := NewRunner(RunnerOpts{Config: config})

			if _, ok := runner.catalog.(*services.CatalogClient); !ok {
				t.Errorf("expected a catalog client, got %T", runner.catalog)
			}
		})

		t.Run("SetLogger keeps injected clients", func(t *testing.T) {
			playlists := newFakePlaylists()
			runner := NewRunner(RunnerOpts{Playlists: playlists, Catalog: fakeCatalog{}})
			runner.SetLogger(shared.NewLogger(io.Discard))

			if runner.playlists != playlists {
				t.Error("expected injected playlists to survive rewiring")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: tu.NewLimitedWriter(1, &bytes.Buffer{})})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := map[string]bool{"setup": true, "auth": true, "movies": true, "profile": true, "playlists": true, "api": true, "tui": true}
		if len(commands) != len(want) {
			t.Errorf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			if !want[cmd.Name] {
				t.Errorf("unexpected command %q", cmd.Name)
			}
		}
	})
}

func TestMoviesCommands(t *testing.T) {
	t.Run("Trending", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, moviesCommand, "trending", "--page", "2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := h.output.String()
		if !strings.Contains(out, "The Matrix (1999)") {
			t.Errorf("expected movie line, got %q", out)
		}
		if !strings.Contains(out, "Page 2 of 5") {
			t.Errorf("expected page footer, got %q", out)
		}
	})

	t.Run("Trending JSON", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, moviesCommand, "trending", "--json", "--pretty=false"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), `"title":"The Matrix"`) {
			t.Errorf("expected compact JSON, got %q", h.output.String())
		}
	})

	t.Run("Invalid Page", func(t *testing.T) {
		h := newHarness(t)
		err := h.run(t, moviesCommand, "trending", "--page", "0")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("Catalog Error", func(t *testing.T) {
		h := newHarness(t)
		err := h.run(t, moviesCommand, "popular")
		if !errors.Is(err, shared.ErrAPIRequest) || !strings.Contains(err.Error(), "Invalid API key") {
			t.Errorf("expected wrapped catalog message, got %v", err)
		}
	})

	t.Run("Show", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, moviesCommand, "show", "603"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), "IMDb:    tt0133093") {
			t.Errorf("expected detail output, got %q", h.output.String())
		}
	})

	t.Run("Show Missing Id", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, moviesCommand, "show"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("Status Signed Out", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, authCommand, "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := h.output.String(); got != "Not signed in.\n" {
			t.Errorf("unexpected status output %q", got)
		}
	})

	t.Run("Login With Credentials", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, authCommand, "login", "--email", ada.Email, "--password", "hunter2"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := h.output.String()
		if !strings.Contains(out, "✓ Signed in as ada@example.com") || !strings.Contains(out, "Username: quietotter-12") {
			t.Errorf("unexpected login output %q", out)
		}
		if state := h.runner.store.GetState(); state.Profile == nil || state.Profile.UID != ada.UID {
			t.Errorf("expected profile in store, got %+v", state)
		}
	})

	t.Run("Login Wrong Password", func(t *testing.T) {
		h := newHarness(t)
		err := h.run(t, authCommand, "login", "--email", ada.Email, "--password", "nope")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("Login Needs Both Credentials", func(t *testing.T) {
		h := newHarness(t)
		err := h.run(t, authCommand, "login", "--email", ada.Email)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Status JSON", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(ada)
		if err := h.run(t, authCommand, "status", "--json", "--pretty=false"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := h.output.String()
		if !strings.Contains(out, `"signed_in":true`) || !strings.Contains(out, `"username":"quietotter-12"`) {
			t.Errorf("unexpected status JSON %q", out)
		}
	})

	t.Run("Signup", func(t *testing.T) {
		h := newHarness(t)
		err := h.run(t, authCommand, "signup", "--email", "new@example.com", "--password", "pw123456", "--username", "newbie")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		calls := strings.Join(h.provider.Calls(), ",")
		if !strings.Contains(calls, "SignUpWithCredentials,SendVerificationEmail,SignOut") {
			t.Errorf("unexpected provider calls %s", calls)
		}
		if !strings.Contains(h.output.String(), "username newbie") {
			t.Errorf("unexpected signup output %q", h.output.String())
		}
	})

	t.Run("Logout", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(ada)
		if err := h.run(t, authCommand, "logout"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := h.output.String(); got != "✓ Signed out\n" {
			t.Errorf("unexpected logout output %q", got)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, authCommand, "reset", "--email", ada.Email); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), "reset email sent to ada@example.com") {
			t.Errorf("unexpected reset output %q", h.output.String())
		}
	})
}

func TestProfileCommands(t *testing.T) {
	t.Run("Show Requires Sign In", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, profileCommand, "show"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Show By Username", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, profileCommand, "show", "--username", "quietotter-12"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), "Username: quietotter-12") {
			t.Errorf("unexpected profile output %q", h.output.String())
		}
	})

	t.Run("Unknown Username", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, profileCommand, "show", "--username", "nobody"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Change Username", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(ada)
		if err := h.run(t, profileCommand, "username", "loudotter-7"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := h.runner.store.GetState().Profile.Username; got != "loudotter-7" {
			t.Errorf("expected store to follow the rename, got %q", got)
		}
	})

	t.Run("Change Username Cooldown", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(ada)
		err := h.run(t, profileCommand, "username", "toosoon")
		if err == nil || !strings.Contains(err.Error(), "try again in 3d 0h 0m 0s") {
			t.Errorf("expected cooldown message, got %v", err)
		}
	})
}

func TestPlaylistsCommands(t *testing.T) {
	t.Run("List Requires Sign In", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, playlistsCommand, "list"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("List Mine", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(ada)
		if err := h.run(t, playlistsCommand, "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := h.output.String()
		if !strings.Contains(out, "Favorites") || strings.Contains(out, "Not Mine") {
			t.Errorf("expected only own playlists, got %q", out)
		}
	})

	t.Run("List All Signed Out", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, playlistsCommand, "list", "--all"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), "Not Mine") {
			t.Errorf("expected every playlist, got %q", h.output.String())
		}
	})

	t.Run("Show Resolves Movies", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, playlistsCommand, "show", "--json", "--pretty=false", "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), `"imdb_id":"tt0133093","title":"The Matrix"`) {
			t.Errorf("expected resolved movie, got %q", h.output.String())
		}
	})

	t.Run("Create", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(ada)
		if err := h.run(t, playlistsCommand, "create", "--description", "Saturday picks", "Weekend"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(h.output.String(), `✓ Created playlist "Weekend"`) {
			t.Errorf("unexpected create output %q", h.output.String())
		}
	})

	t.Run("Update Needs A Field", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(ada)
		if err := h.run(t, playlistsCommand, "update", "1"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Update Rename", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(ada)
		if err := h.run(t, playlistsCommand, "update", "--name", "Best Of", "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := h.playlists.playlists[1].Name; got != "Best Of" {
			t.Errorf("expected renamed playlist, got %q", got)
		}
	})

	t.Run("Delete Someone Elses Playlist", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(ada)
		err := h.run(t, playlistsCommand, "delete", "2")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if len(h.playlists.deleted) != 0 {
			t.Errorf("expected nothing deleted, got %v", h.playlists.deleted)
		}
	})

	t.Run("Delete Missing Playlist", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(ada)
		if err := h.run(t, playlistsCommand, "delete", "99"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Invalid Id", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, playlistsCommand, "delete", "abc"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Add Skips Duplicates", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(ada)
		if err := h.run(t, playlistsCommand, "add", "1", "tt0133093"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(h.playlists.added) != 0 {
			t.Errorf("expected no add call, got %v", h.playlists.added)
		}
		if !strings.Contains(h.output.String(), "already in") {
			t.Errorf("unexpected add output %q", h.output.String())
		}
	})

	t.Run("Add", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(ada)
		if err := h.run(t, playlistsCommand, "add", "1", "tt0234215"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(h.playlists.added) != 1 || h.playlists.added[0] != "tt0234215" {
			t.Errorf("expected tt0234215 to be added, got %v", h.playlists.added)
		}
	})

	t.Run("Remove Surfaces Backend Message", func(t *testing.T) {
		h := newHarness(t)
		h.signIn(ada)
		err := h.run(t, playlistsCommand, "remove", "1", "tt0234215")
		if err == nil || err.Error() != "Movie not in playlist" {
			t.Errorf("expected backend message, got %v", err)
		}
	})

	t.Run("Export", func(t *testing.T) {
		h := newHarness(t)
		dir := filepath.Join(t.TempDir(), "out")
		if err := h.run(t, playlistsCommand, "export", "--format", "csv", "--output", dir, "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(dir, "export_manifest.json"))
		tu.AssertFileExists(t, filepath.Join(dir, "playlist_1_movies.csv"))
		if !strings.Contains(h.output.String(), "Exported: 1/1") {
			t.Errorf("unexpected export summary %q", h.output.String())
		}
	})

	t.Run("Export Needs Ids", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, playlistsCommand, "export"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func newAPIHarness(t *testing.T, h http.HandlerFunc) (*Runner, *bytes.Buffer) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Logger: shared.NewLogger(io.Discard),
		Output: output,
		API:    services.NewAPIService(server.URL, nil),
	})
	return runner, output
}

func TestAPICommands(t *testing.T) {
	ctx := context.Background()

	t.Run("Get Pretty JSON", func(t *testing.T) {
		runner, output := newAPIHarness(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.Path != "/users/u1/exists/" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"exists":true}`))
		})

		if err := apiCommand(runner).Run(ctx, []string{"api", "get", "users/u1/exists/"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := output.String(); got != "{\n  \"exists\": true\n}\n" {
			t.Errorf("unexpected output %q", got)
		}
	})

	t.Run("Get Includes Headers", func(t *testing.T) {
		runner, output := newAPIHarness(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Total", "3")
			w.Write([]byte("ok"))
		})

		if err := apiCommand(runner).Run(ctx, []string{"api", "get", "--include", "/health"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		out := output.String()
		if !strings.HasPrefix(out, "HTTP 200 OK\n") {
			t.Errorf("expected status line, got %q", out)
		}
		if !strings.Contains(out, "X-Total: 3\n") {
			t.Errorf("expected header line, got %q", out)
		}
		if !strings.HasSuffix(out, "\nok\n") {
			t.Errorf("expected raw body, got %q", out)
		}
	})

	t.Run("Get Error Status", func(t *testing.T) {
		runner, _ := newAPIHarness(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Not found."}`))
		})

		err := apiCommand(runner).Run(ctx, []string{"api", "get", "/playlists/99/"})
		if !errors.Is(err, shared.ErrAPIRequest) || !strings.Contains(err.Error(), "Not found.") {
			t.Errorf("expected wrapped backend message, got %v", err)
		}
	})

	t.Run("Post", func(t *testing.T) {
		runner, output := newAPIHarness(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"name":"Weekend"}` {
				t.Errorf("unexpected body %s", body)
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":7}`))
		})

		args := []string{"api", "post", "--data", `{"name":"Weekend"}`, "/playlists/create/u1/"}
		if err := apiCommand(runner).Run(ctx, args); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), `"id": 7`) {
			t.Errorf("unexpected output %q", output.String())
		}
	})

	t.Run("Post Rejects Invalid JSON", func(t *testing.T) {
		runner, _ := newAPIHarness(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		err := apiCommand(runner).Run(ctx, []string{"api", "post", "--data", "{nope", "/x"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Missing Path", func(t *testing.T) {
		runner, _ := newAPIHarness(t, func(w http.ResponseWriter, r *http.Request) {})

		err := apiCommand(runner).Run(ctx, []string{"api", "get"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
