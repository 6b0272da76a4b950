package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/desertthunder/moviememo/internal/models"
)

// ExistsResult answers an existence check.
type ExistsResult struct {
	Success bool   `json:"success"`
	Exists  bool   `json:"exists"`
	Error   string `json:"error,omitempty"`
}

// ProfileResult carries a single profile. A successful lookup of a missing profile has a nil Profile.
type ProfileResult struct {
	Success bool            `json:"success"`
	Profile *models.Profile `json:"profile"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// UsernameChangeResult carries the outcome of a username change.
// Remaining is set when the backend rejected the change because of the cooldown.
type UsernameChangeResult struct {
	Success   bool             `json:"success"`
	Profile   *models.Profile  `json:"profile,omitempty"`
	Message   string           `json:"message,omitempty"`
	Remaining *models.Cooldown `json:"remaining,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// PlaylistResult carries a single playlist.
type PlaylistResult struct {
	Success  bool             `json:"success"`
	Playlist *models.Playlist `json:"playlist"`
	Message  string           `json:"message,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// PlaylistsResult carries a playlist listing. Playlists is never nil on success.
type PlaylistsResult struct {
	Success        bool              `json:"success"`
	Playlists      []models.Playlist `json:"playlists"`
	TotalPlaylists int               `json:"total_playlists"`
	Error          string            `json:"error,omitempty"`
}

// MutationResult is returned by operations with no payload beyond a message.
type MutationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MoviesResult carries one page of catalog movies.
type MoviesResult struct {
	Success      bool           `json:"success"`
	Movies       []models.Movie `json:"movies"`
	Page         int            `json:"page"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
	Error        string         `json:"error,omitempty"`
}

// MovieResult carries a single catalog movie.
type MovieResult struct {
	Success bool          `json:"success"`
	Movie   *models.Movie `json:"movie"`
	Error   string        `json:"error,omitempty"`
}

// Err converts a failed envelope into an error for callers that prefer one.
func Err(success bool, msg string) error {
	if success {
		return nil
	}
	if msg == "" {
		msg = "request failed"
	}
	return errors.New(msg)
}

var messageKeys = []string{"message", "detail", "error", "status_message", "non_field_errors"}

// serverMessage pulls a human-readable message from a decoded JSON body.
func serverMessage(body any) string {
	obj, ok := body.(map[string]any)
	if !ok {
		return firstString(body)
	}

	for _, key := range messageKeys {
		if v, ok := obj[key]; ok {
			if nested, ok := v.(map[string]any); ok {
				if msg := serverMessage(nested); msg != "" {
					return msg
				}
				continue
			}
			if msg := firstString(v); msg != "" {
				return msg
			}
		}
	}

	// Field validation errors: {"username": ["already taken"]}
	fields := make([]string, 0, len(obj))
	for k := range obj {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if list, ok := obj[field].([]any); ok {
			if msg := firstString(list); msg != "" {
				return field + ": " + msg
			}
		}
	}
	return ""
}

func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		for _, item := range t {
			if s := firstString(item); s != "" {
				return s
			}
		}
	}
	return ""
}

// transportMessage describes an error where no response reached the caller.
func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "request canceled"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return "request timed out"
		}
		var opErr *net.OpError
		if errors.As(urlErr.Err, &opErr) {
			return fmt.Sprintf("unable to connect to %s", hostOf(urlErr.URL))
		}
		return fmt.Sprintf("unable to connect: %v", urlErr.Err)
	}
	return fmt.Sprintf("unable to connect: %v", err)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "server"
	}
	return u.Host
}
