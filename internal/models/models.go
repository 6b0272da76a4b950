package models

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// PosterBaseURL prefixes catalog poster paths.
	PosterBaseURL = "https://image.tmdb.org/t/p/w500"
	// DefaultAvatarURL is shown when neither the profile, the identity nor Gravatar provide an avatar.
	DefaultAvatarURL = "https://cdn.kyleb.dev/pfp/defaultpfp.png"
	gravatarBaseURL  = "https://www.gravatar.com/avatar/"
)

// Identity is the authenticated principal reported by the identity provider.
type Identity struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name,omitempty"`
	PhotoURL      string `json:"photo_url,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// Profile is the backend-owned user record keyed by [Identity.UID].
type Profile struct {
	UID            string    `json:"uid"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CreatedAt      Timestamp `json:"created_at"`
}

// State is a snapshot of the process-wide session state.
//
// Snapshots are never modified after they are published; every change produces a new one.
type State struct {
	Identity *Identity `json:"identity"`
	Profile  *Profile  `json:"profile"`
	Loading  bool      `json:"loading"`
	Version  uint64    `json:"version"`
}

// SignedIn reports whether the snapshot carries an identity.
func (s *State) SignedIn() bool {
	return s != nil && s.Identity != nil
}

// Playlist is a backend-owned, named list of movies.
type Playlist struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   Timestamp  `json:"created_at"`
	User        *Profile   `json:"user,omitempty"`
	Movies      []MovieRef `json:"movies"`
	MovieCount  int        `json:"movie_count"`
}

// Contains reports whether the playlist already holds imdbID.
func (p *Playlist) Contains(imdbID string) bool {
	for _, m := range p.Movies {
		if m.IMDbID == imdbID {
			return true
		}
	}
	return false
}

// MovieRef references a catalog movie from a playlist.
type MovieRef struct {
	ID      int       `json:"id"`
	IMDbID  string    `json:"imdb_id"`
	AddedAt Timestamp `json:"added_at"`
}

// PlaylistExport pairs a playlist with the catalog details of its movies.
// Missing lists the references the catalog could not resolve.
type PlaylistExport struct {
	Playlist Playlist   `json:"playlist"`
	Movies   []Movie    `json:"movies"`
	Missing  []MovieRef `json:"missing,omitempty"`
}

// CatalogKey returns the identifier used to look the movie up in the catalog.
func (r MovieRef) CatalogKey() string {
	if r.ID > 0 {
		return strconv.Itoa(r.ID)
	}
	return r.IMDbID
}

// Genre is a catalog genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Movie is a catalog movie as returned by list and detail endpoints.
// List results only carry GenreIDs; detail results carry Genres, Runtime and Tagline.
type Movie struct {
	ID          int     `json:"id"`
	IMDbID      string  `json:"imdb_id,omitempty"`
	Title       string  `json:"title"`
	PosterPath  string  `json:"poster_path,omitempty"`
	Overview    string  `json:"overview"`
	Tagline     string  `json:"tagline,omitempty"`
	ReleaseDate string  `json:"release_date,omitempty"`
	Runtime     int     `json:"runtime,omitempty"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
	GenreIDs    []int   `json:"genre_ids,omitempty"`
	Genres      []Genre `json:"genres,omitempty"`
}

// PosterURL returns the full poster image URL, or "" when the movie has no poster.
func (m Movie) PosterURL() string {
	if m.PosterPath == "" {
		return ""
	}
	return PosterBaseURL + m.PosterPath
}

// Year returns the release year, or "" when unknown.
func (m Movie) Year() string {
	if len(m.ReleaseDate) < 4 {
		return ""
	}
	return m.ReleaseDate[:4]
}

// GenreNames joins the detail genres with sep.
func (m Movie) GenreNames(sep string) string {
	names := make([]string, len(m.Genres))
	for i, g := range m.Genres {
		names[i] = g.Name
	}
	return strings.Join(names, sep)
}

// FormatRuntime renders minutes as "2h 15m".
func FormatRuntime(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

// Cooldown is the time left before a username may change again.
type Cooldown struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// Total returns the cooldown as a single duration.
func (c Cooldown) Total() time.Duration {
	return time.Duration(c.Days)*24*time.Hour +
		time.Duration(c.Hours)*time.Hour +
		time.Duration(c.Minutes)*time.Minute +
		time.Duration(c.Seconds)*time.Second
}

func (c Cooldown) String() string {
	return fmt.Sprintf("%dd %dh %dm %ds", c.Days, c.Hours, c.Minutes, c.Seconds)
}

// AvatarURL resolves the avatar to display: the profile picture, then the identity photo,
// then a Gravatar identicon for the email, then [DefaultAvatarURL].
func AvatarURL(p *Profile, id *Identity) string {
	if p != nil && p.ProfilePicture != "" {
		return p.ProfilePicture
	}
	if id != nil && id.PhotoURL != "" {
		return id.PhotoURL
	}

	email := ""
	if id != nil {
		email = id.Email
	}
	if email == "" && p != nil {
		email = p.Email
	}
	if email != "" {
		return GravatarURL(email)
	}
	return DefaultAvatarURL
}

// GravatarURL returns the identicon Gravatar URL for email.
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return gravatarBaseURL + hex.EncodeToString(sum[:]) + "?d=identicon"
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds (year 33658 in seconds).
const epochMillisThreshold = 1e12

// Timestamp decodes the timestamp layouts the backend emits, with or without a zone.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts the known string layouts and Unix epoch numbers (seconds or
// milliseconds). Anything else leaves the zero time so one odd field never fails the record.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}

	switch v := raw.(type) {
	case string:
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, v); err == nil {
				t.Time = parsed
				return nil
			}
		}
	case float64:
		if v > epochMillisThreshold {
			t.Time = time.UnixMilli(int64(v)).UTC()
		} else {
			t.Time = time.Unix(int64(v), 0).UTC()
		}
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}
