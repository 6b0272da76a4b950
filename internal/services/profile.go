package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/desertthunder/moviememo/internal/models"
)

// MaxAvatarBytes is the largest avatar upload accepted.
const MaxAvatarBytes = 10 * 1024 * 1024

const avatarField = "profile_picture"

// ProfileClient reads and writes profile records on the backend.
type ProfileClient struct {
	api *APIService
}

// NewProfileClient creates a ProfileClient over api.
func NewProfileClient(api *APIService) *ProfileClient {
	return &ProfileClient{api: api}
}

// Exists reports whether a profile exists for uid.
func (c *ProfileClient) Exists(ctx context.Context, uid string) ExistsResult {
	if strings.TrimSpace(uid) == "" {
		return ExistsResult{Error: "uid is required"}
	}
	return c.exists(ctx, c.api.Path("users", "check", uid))
}

// UsernameExists reports whether username is taken.
func (c *ProfileClient) UsernameExists(ctx context.Context, username string) ExistsResult {
	if strings.TrimSpace(username) == "" {
		return ExistsResult{Error: "username is required"}
	}
	return c.exists(ctx, c.api.Path("users", "check", "username", username))
}

func (c *ProfileClient) exists(ctx context.Context, path string) ExistsResult {
	resp, err := c.api.Get(ctx, path)
	if err != nil {
		return ExistsResult{Error: transportMessage(err)}
	}
	if resp.NotFound() {
		return ExistsResult{Success: true}
	}
	if !resp.OK() {
		return ExistsResult{Error: resp.Message()}
	}

	var body struct {
		Exists bool `json:"exists"`
	}
	if err := resp.Decode(&body); err != nil {
		return ExistsResult{Error: err.Error()}
	}
	return ExistsResult{Success: true, Exists: body.Exists}
}

// Get fetches the profile for uid. A missing profile is a success with a nil Profile.
func (c *ProfileClient) Get(ctx context.Context, uid string) ProfileResult {
	if strings.TrimSpace(uid) == "" {
		return ProfileResult{Error: "uid is required"}
	}
	return c.read(ctx, c.api.Path("users", uid))
}

// GetByUsername fetches a profile by username. A missing profile is a success with a nil Profile.
func (c *ProfileClient) GetByUsername(ctx context.Context, username string) ProfileResult {
	if strings.TrimSpace(username) == "" {
		return ProfileResult{Error: "username is required"}
	}
	return c.read(ctx, c.api.Path("users", "username", username))
}

func (c *ProfileClient) read(ctx context.Context, path string) ProfileResult {
	resp, err := c.api.Get(ctx, path)
	if err != nil {
		return ProfileResult{Error: transportMessage(err)}
	}
	if resp.NotFound() {
		return ProfileResult{Success: true}
	}
	if !resp.OK() {
		return ProfileResult{Error: resp.Message()}
	}

	profile, err := decodeProfile(resp.Body)
	if err != nil {
		return ProfileResult{Error: err.Error()}
	}
	return ProfileResult{Success: true, Profile: profile}
}

// Create creates the profile for a newly signed up principal.
func (c *ProfileClient) Create(ctx context.Context, email, username, uid string) ProfileResult {
	switch {
	case strings.TrimSpace(uid) == "":
		return ProfileResult{Error: "uid is required"}
	case strings.TrimSpace(username) == "":
		return ProfileResult{Error: "username is required"}
	}

	payload := map[string]string{"email": email, "username": strings.TrimSpace(username), "uid": uid}
	resp, err := c.api.SendJSON(ctx, http.MethodPost, c.api.Path("users", "create"), payload)
	if err != nil {
		return ProfileResult{Error: transportMessage(err)}
	}
	return mutationProfile(resp)
}

// ChangeUsername asks the backend to rename the profile for uid.
//
// When the backend rejects the change because the previous one was too recent, the result
// carries the remaining cooldown.
func (c *ProfileClient) ChangeUsername(ctx context.Context, uid, newUsername string) UsernameChangeResult {
	newUsername = strings.TrimSpace(newUsername)
	switch {
	case strings.TrimSpace(uid) == "":
		return UsernameChangeResult{Error: "uid is required"}
	case newUsername == "":
		return UsernameChangeResult{Error: "new username is required"}
	}

	payload := map[string]string{"new_username": newUsername}
	resp, err := c.api.SendJSON(ctx, http.MethodPut, c.api.Path("users", uid, "change_username"), payload)
	if err != nil {
		return UsernameChangeResult{Error: transportMessage(err)}
	}

	var body struct {
		Message   string           `json:"message"`
		Remaining *models.Cooldown `json:"remaining"`
	}
	if resp.IsJSON {
		_ = json.Unmarshal(resp.Body, &body)
	}

	if !resp.OK() {
		return UsernameChangeResult{Error: resp.Message(), Remaining: body.Remaining, Message: body.Message}
	}

	profile, err := decodeProfile(resp.Body)
	if err != nil {
		return UsernameChangeResult{Error: err.Error()}
	}
	return UsernameChangeResult{Success: true, Profile: profile, Message: body.Message}
}

// ValidateAvatar checks the size and sniffed content type of an avatar, returning the content type.
func ValidateAvatar(filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("file is empty")
	}
	if len(data) > MaxAvatarBytes {
		return "", fmt.Errorf("file must be 10MB or smaller")
	}

	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed, nil
	}

	// Sniffing misses svg and newer binary formats such as avif.
	byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	switch {
	case byExt == "image/svg+xml" && bytes.Contains(data, []byte("<svg")):
		return byExt, nil
	case strings.HasPrefix(byExt, "image/") && sniffed == "application/octet-stream":
		return byExt, nil
	}
	return "", fmt.Errorf("file must be an image (got %s)", sniffed)
}

// UpdateAvatar uploads a new profile picture for username.
//
// Files over [MaxAvatarBytes] or without image content are rejected before any request is made.
func (c *ProfileClient) UpdateAvatar(ctx context.Context, username, filename string, data []byte) ProfileResult {
	if strings.TrimSpace(username) == "" {
		return ProfileResult{Error: "username is required"}
	}

	contentType, err := ValidateAvatar(filename, data)
	if err != nil {
		return ProfileResult{Error: err.Error()}
	}

	resp, err := c.api.Upload(ctx, http.MethodPut, c.api.Path("users", username, "profile-picture"),
		avatarField, filepath.Base(filename), contentType, data)
	if err != nil {
		return ProfileResult{Error: transportMessage(err)}
	}
	return mutationProfile(resp)
}

func mutationProfile(resp *APIResponse) ProfileResult {
	if !resp.OK() {
		return ProfileResult{Error: resp.Message()}
	}

	profile, err := decodeProfile(resp.Body)
	if err != nil {
		return ProfileResult{Error: err.Error()}
	}

	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(resp.Body, &body)
	return ProfileResult{Success: true, Profile: profile, Message: body.Message}
}

// decodeProfile accepts both a bare profile and one wrapped as {"user": ...}.
func decodeProfile(body []byte) (*models.Profile, error) {
	var envelope struct {
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	raw := body
	if len(envelope.User) > 0 && !bytes.Equal(envelope.User, []byte("null")) {
		raw = envelope.User
	}

	var profile models.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if profile.UID == "" && profile.Username == "" {
		return nil, fmt.Errorf("response did not include a user")
	}
	return &profile, nil
}
