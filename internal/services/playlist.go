package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/moviememo/internal/models"
)

// MaxPlaylistNameLength is the longest playlist name accepted client-side.
const MaxPlaylistNameLength = 100

// PlaylistClient manages playlists and their movies on the backend.
type PlaylistClient struct {
	api *APIService
}

// NewPlaylistClient creates a PlaylistClient over api.
func NewPlaylistClient(api *APIService) *PlaylistClient {
	return &PlaylistClient{api: api}
}

// PlaylistUpdate holds the fields to change. Nil fields are left untouched.
type PlaylistUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("playlist name is required")
	case utf8.RuneCountInString(name) > MaxPlaylistNameLength:
		return "", fmt.Errorf("playlist name must be %d characters or fewer", MaxPlaylistNameLength)
	}
	return name, nil
}

// Create creates a playlist owned by uid. Blank names are rejected before any request.
func (c *PlaylistClient) Create(ctx context.Context, uid, name, description string) PlaylistResult {
	name, err := validateName(name)
	if err != nil {
		return PlaylistResult{Error: err.Error()}
	}
	if strings.TrimSpace(uid) == "" {
		return PlaylistResult{Error: "uid is required"}
	}

	payload := PlaylistUpdate{Name: &name}
	if d := strings.TrimSpace(description); d != "" {
		payload.Description = &d
	}

	resp, err := c.api.SendJSON(ctx, http.MethodPost, c.api.Path("playlists", "create", uid), payload)
	if err != nil {
		return PlaylistResult{Error: transportMessage(err)}
	}
	return mutationPlaylist(resp)
}

// UserPlaylists lists the playlists owned by uid. Missing or malformed lists normalize to empty.
func (c *PlaylistClient) UserPlaylists(ctx context.Context, uid string) PlaylistsResult {
	if strings.TrimSpace(uid) == "" {
		return PlaylistsResult{Error: "uid is required"}
	}
	return c.list(ctx, c.api.Path("playlists", "user", uid))
}

// All lists every playlist on the backend.
func (c *PlaylistClient) All(ctx context.Context) PlaylistsResult {
	return c.list(ctx, c.api.Path("playlists", "all"))
}

func (c *PlaylistClient) list(ctx context.Context, path string) PlaylistsResult {
	resp, err := c.api.Get(ctx, path)
	if err != nil {
		return PlaylistsResult{Error: transportMessage(err)}
	}
	if resp.NotFound() {
		return PlaylistsResult{Success: true, Playlists: []models.Playlist{}}
	}
	if !resp.OK() {
		return PlaylistsResult{Error: resp.Message()}
	}

	playlists, total, err := decodePlaylists(resp.Body)
	if err != nil {
		return PlaylistsResult{Error: err.Error()}
	}
	return PlaylistsResult{Success: true, Playlists: playlists, TotalPlaylists: total}
}

// Get fetches one playlist. A missing playlist is a success with a nil Playlist.
func (c *PlaylistClient) Get(ctx context.Context, id int) PlaylistResult {
	resp, err := c.api.Get(ctx, c.api.Path("playlists", strconv.Itoa(id)))
	if err != nil {
		return PlaylistResult{Error: transportMessage(err)}
	}
	if resp.NotFound() {
		return PlaylistResult{Success: true}
	}
	if !resp.OK() {
		return PlaylistResult{Error: resp.Message()}
	}

	playlist, err := decodePlaylist(resp.Body)
	if err != nil {
		return PlaylistResult{Error: err.Error()}
	}
	return PlaylistResult{Success: true, Playlist: playlist}
}

// Update changes the name and/or description of a playlist.
func (c *PlaylistClient) Update(ctx context.Context, id int, update PlaylistUpdate) PlaylistResult {
	if update.Name == nil && update.Description == nil {
		return PlaylistResult{Error: "nothing to update"}
	}
	if update.Name != nil {
		name, err := validateName(*update.Name)
		if err != nil {
			return PlaylistResult{Error: err.Error()}
		}
		update.Name = &name
	}

	resp, err := c.api.SendJSON(ctx, http.MethodPut, c.api.Path("playlists", strconv.Itoa(id), "update"), update)
	if err != nil {
		return PlaylistResult{Error: transportMessage(err)}
	}
	return mutationPlaylist(resp)
}

// Delete removes a playlist.
func (c *PlaylistClient) Delete(ctx context.Context, id int) MutationResult {
	resp, err := c.api.Delete(ctx, c.api.Path("playlists", strconv.Itoa(id), "delete"))
	if err != nil {
		return MutationResult{Error: transportMessage(err)}
	}
	if !resp.OK() {
		return MutationResult{Error: resp.Message()}
	}
	return MutationResult{Success: true, Message: serverMessage(resp.JSONData)}
}

// AddMovie adds the movie identified by imdbID to a playlist.
func (c *PlaylistClient) AddMovie(ctx context.Context, id int, imdbID string) PlaylistResult {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return PlaylistResult{Error: "imdb id is required"}
	}

	payload := map[string]string{"imdb_id": imdbID}
	resp, err := c.api.SendJSON(ctx, http.MethodPost, c.api.Path("playlists", strconv.Itoa(id), "add-movie"), payload)
	if err != nil {
		return PlaylistResult{Error: transportMessage(err)}
	}
	return optionalPlaylist(resp)
}

// RemoveMovie removes the movie identified by imdbID from a playlist.
func (c *PlaylistClient) RemoveMovie(ctx context.Context, id int, imdbID string) PlaylistResult {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return PlaylistResult{Error: "imdb id is required"}
	}

	resp, err := c.api.Delete(ctx, c.api.Path("playlists", strconv.Itoa(id), "remove-movie", imdbID))
	if err != nil {
		return PlaylistResult{Error: transportMessage(err)}
	}
	return optionalPlaylist(resp)
}

func mutationPlaylist(resp *APIResponse) PlaylistResult {
	if !resp.OK() {
		return PlaylistResult{Error: resp.Message()}
	}
	playlist, err := decodePlaylist(resp.Body)
	if err != nil {
		return PlaylistResult{Error: err.Error()}
	}
	return PlaylistResult{Success: true, Playlist: playlist, Message: messageField(resp)}
}

// optionalPlaylist accepts mutation responses that may or may not echo the playlist.
func optionalPlaylist(resp *APIResponse) PlaylistResult {
	if !resp.OK() {
		return PlaylistResult{Error: resp.Message()}
	}
	playlist, _ := decodePlaylist(resp.Body)
	return PlaylistResult{Success: true, Playlist: playlist, Message: messageField(resp)}
}

func messageField(resp *APIResponse) string {
	if obj, ok := resp.JSONData.(map[string]any); ok {
		if msg, ok := obj["message"].(string); ok {
			return msg
		}
	}
	return ""
}

// decodePlaylist accepts a bare playlist or one wrapped as {"playlist": ...}.
func decodePlaylist(body []byte) (*models.Playlist, error) {
	var envelope struct {
		Playlist json.RawMessage `json:"playlist"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	raw := body
	if len(envelope.Playlist) > 0 && !bytes.Equal(envelope.Playlist, []byte("null")) {
		raw = envelope.Playlist
	}

	var playlist models.Playlist
	if err := json.Unmarshal(raw, &playlist); err != nil {
		return nil, fmt.Errorf("failed to decode playlist: %w", err)
	}
	if playlist.ID == 0 && playlist.Name == "" {
		return nil, fmt.Errorf("response did not include a playlist")
	}
	normalizePlaylist(&playlist)
	return &playlist, nil
}

// decodePlaylists accepts {"playlists": [...], "count": n}, a bare array, or a payload whose
// playlists field is null or not an array. Anything that is not an array becomes empty.
func decodePlaylists(body []byte) ([]models.Playlist, int, error) {
	trimmed := bytes.TrimSpace(body)
	raw := trimmed
	count := -1

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Playlists json.RawMessage `json:"playlists"`
			Count     *int            `json:"count"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, 0, fmt.Errorf("failed to decode response: %w", err)
		}
		raw = bytes.TrimSpace(envelope.Playlists)
		if envelope.Count != nil {
			count = *envelope.Count
		}
	}

	playlists := []models.Playlist{}
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &playlists); err != nil {
			return nil, 0, fmt.Errorf("failed to decode playlists: %w", err)
		}
	}
	for i := range playlists {
		normalizePlaylist(&playlists[i])
	}

	if count < 0 || len(playlists) == 0 {
		count = len(playlists)
	}
	return playlists, count, nil
}

func normalizePlaylist(p *models.Playlist) {
	if p.Movies == nil {
		p.Movies = []models.MovieRef{}
	}
	if p.MovieCount == 0 && len(p.Movies) > 0 {
		p.MovieCount = len(p.Movies)
	}
}
