package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moviememo/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgMoviesFetched MsgKind = iota
	MsgMovieFetched
	MsgPlaylistsFetched
	MsgPlaylistMoviesFetched
	MsgSessionChanged
	MsgMutationDone
)

// fetched carries the result of one loader request back to Update.
type fetched[T any] struct {
	seq  uint64
	data T
	err  error
}

type moviesFetched struct {
	tab Tab
	fetched[moviePage]
}

type mutationDone struct {
	message string
	err     error
	reload  ViewState
}

// moviesFetchedMsg is the constructor for [MsgMoviesFetched]
func moviesFetchedMsg(tab Tab, seq uint64, page moviePage, err error) Msg {
	return Msg{kind: MsgMoviesFetched, data: moviesFetched{tab, fetched[moviePage]{seq, page, err}}}
}

// movieFetchedMsg is the constructor for [MsgMovieFetched]
func movieFetchedMsg(seq uint64, movie *models.Movie, err error) Msg {
	return Msg{kind: MsgMovieFetched, data: fetched[*models.Movie]{seq, movie, err}}
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(seq uint64, playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: fetched[[]models.Playlist]{seq, playlists, err}}
}

// playlistMoviesFetchedMsg is the constructor for [MsgPlaylistMoviesFetched]
func playlistMoviesFetchedMsg(seq uint64, export *models.PlaylistExport, err error) Msg {
	return Msg{kind: MsgPlaylistMoviesFetched, data: fetched[*models.PlaylistExport]{seq, export, err}}
}

// sessionChangedMsg is the constructor for [MsgSessionChanged]
func sessionChangedMsg(state *models.State) Msg {
	return Msg{kind: MsgSessionChanged, data: state}
}

// mutationDoneMsg is the constructor for [MsgMutationDone]. reload names the view whose data changed.
func mutationDoneMsg(message string, err error, reload ViewState) Msg {
	return Msg{kind: MsgMutationDone, data: mutationDone{message, err, reload}}
}
