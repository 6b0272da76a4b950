package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/moviememo/internal/formatter"
	"github.com/desertthunder/moviememo/internal/models"
)

var (
	_ list.Item = movieItem{}
	_ list.Item = playlistItem{}
)

// movieItem wraps [models.Movie] to implement [list.Item].
type movieItem struct {
	movie models.Movie
}

func (i movieItem) FilterValue() string { return i.movie.Title }
func (i movieItem) Title() string {
	if year := i.movie.Year(); year != "" {
		return fmt.Sprintf("%s (%s)", i.movie.Title, year)
	}
	return i.movie.Title
}
func (i movieItem) Description() string {
	desc := "★ " + formatter.Rating(i.movie)
	if genres := i.movie.GenreNames(", "); genres != "" {
		desc = fmt.Sprintf("%s • %s", desc, genres)
	}
	return desc
}

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Name }
func (i playlistItem) Title() string       { return i.playlist.Name }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d movies", i.playlist.MovieCount)
	if d := strings.TrimSpace(i.playlist.Description); d != "" {
		desc = fmt.Sprintf("%s • %s", desc, d)
	}
	return desc
}

func movieItems(movies []models.Movie) []list.Item {
	items := make([]list.Item, len(movies))
	for i, m := range movies {
		items[i] = movieItem{movie: m}
	}
	return items
}

func playlistItems(playlists []models.Playlist) []list.Item {
	items := make([]list.Item, len(playlists))
	for i, p := range playlists {
		items[i] = playlistItem{playlist: p}
	}
	return items
}
