package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newPlaylistClient(t *testing.T, h http.HandlerFunc) *PlaylistClient {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewPlaylistClient(NewAPIService(server.URL, nil, WithTrailingSlash(true)))
}

func TestPlaylistClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		t.Run("Rejects Blank Names Without Network", func(t *testing.T) {
			var hits atomic.Int32
			c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) })

			for _, name := range []string{"", "   ", "\t\n", strings.Repeat("x", MaxPlaylistNameLength+1)} {
				if res := c.Create(ctx, "u1", name, ""); res.Success || res.Error == "" {
					t.Errorf("expected rejection for %q, got %+v", name, res)
				}
			}
			if hits.Load() != 0 {
				t.Errorf("expected no requests, got %d", hits.Load())
			}
		})

		t.Run("Valid Name Has No Movies", func(t *testing.T) {
			c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/playlists/create/u1/" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				var body map[string]any
				json.NewDecoder(r.Body).Decode(&body)
				if body["name"] != "Noir Nights" {
					t.Errorf("expected trimmed name, got %v", body["name"])
				}
				if _, ok := body["description"]; ok {
					t.Error("blank description should be omitted")
				}
				w.WriteHeader(http.StatusCreated)
				fmt.Fprint(w, `{"id": 3, "name": "Noir Nights", "created_at": "2024-05-01T00:00:00Z", "movies": null}`)
			})

			res := c.Create(ctx, "u1", "  Noir Nights ", "  ")
			if !res.Success || res.Playlist == nil {
				t.Fatalf("unexpected result %+v", res)
			}
			if res.Playlist.MovieCount != 0 || len(res.Playlist.Movies) != 0 || res.Playlist.Movies == nil {
				t.Errorf("expected an empty, non-nil movie list, got %+v", res.Playlist)
			}
		})

		t.Run("Wrapped Response", func(t *testing.T) {
			c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"message": "Playlist created", "playlist": {"id": 4, "name": "Heist", "description": "capers"}}`)
			})

			res := c.Create(ctx, "u1", "Heist", "capers")
			if !res.Success || res.Playlist.ID != 4 || res.Message != "Playlist created" {
				t.Errorf("unexpected result %+v", res)
			}
		})
	})

	t.Run("UserPlaylists", func(t *testing.T) {
		tc := []struct {
			name      string
			body      string
			wantCount int
			wantTotal int
		}{
			{"Null Playlists", `{"playlists": null}`, 0, 0},
			{"Envelope", `{"playlists": [{"id": 1, "name": "A"}, {"id": 2, "name": "B"}], "count": 2}`, 2, 2},
			{"Bare Array", `[{"id": 1, "name": "A"}]`, 1, 1},
			{"Non Array Playlists", `{"playlists": "oops", "count": 5}`, 0, 0},
			{"Missing Count", `{"playlists": [{"id": 1, "name": "A"}]}`, 1, 1},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) {
					if r.URL.Path != "/playlists/user/u1/" {
						t.Errorf("unexpected path %s", r.URL.Path)
					}
					fmt.Fprint(w, tt.body)
				})

				res := c.UserPlaylists(ctx, "u1")
				if !res.Success {
					t.Fatalf("expected success, got %+v", res)
				}
				if res.Playlists == nil {
					t.Error("expected non-nil playlists")
				}
				if len(res.Playlists) != tt.wantCount || res.TotalPlaylists != tt.wantTotal {
					t.Errorf("got %d playlists (total %d), want %d (total %d)", len(res.Playlists), res.TotalPlaylists, tt.wantCount, tt.wantTotal)
				}
			})
		}

		t.Run("Server Error", func(t *testing.T) {
			c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"detail": "boom"}`)
			})

			if res := c.UserPlaylists(ctx, "u1"); res.Success || res.Error != "boom" {
				t.Errorf("unexpected result %+v", res)
			}
		})
	})

	t.Run("All", func(t *testing.T) {
		c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/playlists/all/" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			fmt.Fprint(w, `[{"id": 1, "name": "A", "movies": [{"id": 550, "imdb_id": "tt0137523"}]}]`)
		})

		res := c.All(ctx)
		if !res.Success || len(res.Playlists) != 1 || res.Playlists[0].MovieCount != 1 {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Found", func(t *testing.T) {
			c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/playlists/9/" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				fmt.Fprint(w, `{"id": 9, "name": "Westerns", "movie_count": 0, "movies": []}`)
			})

			if res := c.Get(ctx, 9); !res.Success || res.Playlist.Name != "Westerns" {
				t.Errorf("unexpected result %+v", res)
			}
		})

		t.Run("Not Found", func(t *testing.T) {
			c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })

			if res := c.Get(ctx, 9); !res.Success || res.Playlist != nil {
				t.Errorf("expected success with nil playlist, got %+v", res)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("Sends Only Provided Fields", func(t *testing.T) {
			c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPut || r.URL.Path != "/playlists/9/update/" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				var body map[string]any
				json.NewDecoder(r.Body).Decode(&body)
				if _, ok := body["name"]; ok {
					t.Error("name should not be sent")
				}
				fmt.Fprintf(w, `{"id": 9, "name": "Westerns", "description": %q}`, body["description"])
			})

			desc := "dusty"
			res := c.Update(ctx, 9, PlaylistUpdate{Description: &desc})
			if !res.Success || res.Playlist.Description != "dusty" {
				t.Errorf("unexpected result %+v", res)
			}
		})

		t.Run("Nothing To Update", func(t *testing.T) {
			c := NewPlaylistClient(NewAPIService("http://unused.invalid", nil))
			if res := c.Update(ctx, 9, PlaylistUpdate{}); res.Success {
				t.Error("expected failure")
			}
		})

		t.Run("Not Found Is Failure", func(t *testing.T) {
			c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"detail": "Playlist not found"}`)
			})

			name := "x"
			if res := c.Update(ctx, 9, PlaylistUpdate{Name: &name}); res.Success || res.Error != "Playlist not found" {
				t.Errorf("unexpected result %+v", res)
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete || r.URL.Path != "/playlists/9/delete/" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			fmt.Fprint(w, `{"message": "Playlist deleted"}`)
		})

		if res := c.Delete(ctx, 9); !res.Success || res.Message != "Playlist deleted" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("AddMovie", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/playlists/9/add-movie/" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				var body map[string]string
				json.NewDecoder(r.Body).Decode(&body)
				if body["imdb_id"] != "tt0137523" {
					t.Errorf("unexpected body %v", body)
				}
				fmt.Fprint(w, `{"message": "Movie added"}`)
			})

			res := c.AddMovie(ctx, 9, "tt0137523")
			if !res.Success || res.Message != "Movie added" || res.Playlist != nil {
				t.Errorf("unexpected result %+v", res)
			}
		})

		t.Run("Duplicate Is Opaque Failure", func(t *testing.T) {
			c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error": "Movie already in playlist"}`)
			})

			if res := c.AddMovie(ctx, 9, "tt0137523"); res.Success || res.Error != "Movie already in playlist" {
				t.Errorf("unexpected result %+v", res)
			}
		})
	})

	t.Run("RemoveMovie", func(t *testing.T) {
		c := newPlaylistClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete || r.URL.Path != "/playlists/9/remove-movie/tt0137523/" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			fmt.Fprint(w, `{"id": 9, "name": "Westerns", "movies": []}`)
		})

		res := c.RemoveMovie(ctx, 9, "tt0137523")
		if !res.Success || res.Playlist == nil || res.Playlist.ID != 9 {
			t.Errorf("unexpected result %+v", res)
		}
	})
}
