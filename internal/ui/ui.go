package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/services"
	"github.com/desertthunder/moviememo/internal/session"
	"github.com/desertthunder/moviememo/internal/shared"
	"github.com/desertthunder/moviememo/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	BrowseView ViewState = iota
	DetailView
	PickPlaylistView
	PlaylistsView
	PlaylistMoviesView
)

// Tab selects the catalog listing shown in [BrowseView].
type Tab int

const (
	TrendingTab Tab = iota
	PopularTab
)

func (t Tab) String() string {
	switch t {
	case TrendingTab:
		return "Trending"
	case PopularTab:
		return "Popular"
	default:
		return ""
	}
}

const exportWorkers = 4

// Catalog lists and describes movies.
type Catalog interface {
	Trending(ctx context.Context, page int) services.MoviesResult
	Popular(ctx context.Context, page int) services.MoviesResult
	Movie(ctx context.Context, id string) services.MovieResult
}

// Collections reads and edits the signed-in user's playlists.
type Collections interface {
	UserPlaylists(ctx context.Context, uid string) services.PlaylistsResult
	AddMovie(ctx context.Context, id int, imdbID string) services.PlaylistResult
	RemoveMovie(ctx context.Context, id int, imdbID string) services.PlaylistResult
}

// PlaylistExporter resolves a playlist's movies against the catalog.
type PlaylistExporter interface {
	Export(ctx context.Context, id, workers int) (*models.PlaylistExport, error)
}

var (
	_ Catalog          = (*services.CatalogClient)(nil)
	_ Collections      = (*services.PlaylistClient)(nil)
	_ PlaylistExporter = (*tasks.Exporter)(nil)
)

// Deps are the collaborators the TUI reads from and writes to.
type Deps struct {
	Catalog     Catalog
	Collections Collections
	Exporter    PlaylistExporter
	Store       *session.Store
}

type moviePage struct {
	movies     []models.Movie
	page       int
	totalPages int
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	deps   Deps
	view   ViewState
	tab    Tab
	pages  [2]int
	width  int
	height int

	movies         [2]*tasks.Loader[moviePage]
	detail         *tasks.Loader[*models.Movie]
	playlists      *tasks.Loader[[]models.Playlist]
	playlistMovies *tasks.Loader[*models.PlaylistExport]
	playlistsUID   string

	movieList         list.Model
	playlistList      list.Model
	pickList          list.Model
	playlistMovieList list.Model

	selectedPlaylist *models.Playlist
	detailFrom       ViewState
	// detailID is the movie last requested for the detail view, whether or not it loaded.
	detailID int

	session *models.State
	feed    *sessionFeed
	status  string
	err     error
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, deps Deps) *Model {
	m := &Model{
		ctx:            ctx,
		deps:           deps,
		view:           BrowseView,
		pages:          [2]int{1, 1},
		movies:         [2]*tasks.Loader[moviePage]{tasks.NewLoader[moviePage](nil), tasks.NewLoader[moviePage](nil)},
		detail:         tasks.NewLoader[*models.Movie](nil),
		playlists:      tasks.NewLoader[[]models.Playlist](nil),
		playlistMovies: tasks.NewLoader[*models.PlaylistExport](nil),
		help:           help.New(),
		keys:           newKeyMap(),
	}

	m.movieList = newList(TrendingTab.String())
	m.playlistList = newList("My Playlists")
	m.pickList = newList("Add to playlist")
	m.playlistMovieList = newList("")

	if deps.Store != nil {
		m.session = deps.Store.GetState()
		m.feed = watchSession(deps.Store)
	}
	return m
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

// Init starts the first catalog fetch and begins listening for session changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadMovies(m.tab), m.feed.next())
}

// Close drops every in-flight result and stops session notifications.
func (m *Model) Close() {
	for _, l := range m.movies {
		l.Close()
	}
	m.detail.Close()
	m.playlists.Close()
	m.playlistMovies.Close()
	m.feed.close()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := msg.Width-4, msg.Height-8
		m.movieList.SetSize(w, h)
		m.playlistList.SetSize(w, h)
		m.pickList.SetSize(w, h)
		m.playlistMovieList.SetSize(w, h)
		return m, nil

	case tea.KeyMsg:
		if m.filtering() {
			return m.updateLists(msg)
		}
		if key.Matches(msg, m.keys.quit) {
			m.Close()
			return m, tea.Quit
		}
		switch m.view {
		case BrowseView:
			return m.handleBrowseKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case PickPlaylistView:
			return m.handlePickKeys(msg)
		case PlaylistsView:
			return m.handlePlaylistsKeys(msg)
		case PlaylistMoviesView:
			return m.handlePlaylistMoviesKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgMoviesFetched:
		d := msg.data.(moviesFetched)
		if !m.movies[d.tab].Finish(d.seq, d.data, d.err) {
			return m, nil
		}
		if d.tab == m.tab {
			return m, m.refreshMovies()
		}

	case MsgMovieFetched:
		d := msg.data.(fetched[*models.Movie])
		m.detail.Finish(d.seq, d.data, d.err)

	case MsgPlaylistsFetched:
		d := msg.data.(fetched[[]models.Playlist])
		if !m.playlists.Finish(d.seq, d.data, d.err) {
			return m, nil
		}
		items := playlistItems(m.playlists.Snapshot().Data)
		return m, tea.Batch(m.playlistList.SetItems(items), m.pickList.SetItems(items))

	case MsgPlaylistMoviesFetched:
		d := msg.data.(fetched[*models.PlaylistExport])
		if !m.playlistMovies.Finish(d.seq, d.data, d.err) {
			return m, nil
		}
		if export := m.playlistMovies.Snapshot().Data; export != nil {
			m.playlistMovieList.Title = export.Playlist.Name
			return m, m.playlistMovieList.SetItems(movieItems(export.Movies))
		}

	case MsgSessionChanged:
		return m, tea.Batch(m.applySession(msg.data.(*models.State)), m.feed.next())

	case MsgMutationDone:
		d := msg.data.(mutationDone)
		m.err = d.err
		m.status = ""
		if d.err == nil {
			m.status = d.message
		}
		cmds := []tea.Cmd{m.loadPlaylists()}
		if d.reload == PlaylistMoviesView && m.selectedPlaylist != nil {
			cmds = append(cmds, m.loadPlaylistMovies(m.selectedPlaylist.ID))
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

// applySession records a new session snapshot. Views that belong to a user are left when
// that user signs out or changes.
func (m *Model) applySession(state *models.State) tea.Cmd {
	prevUID := m.uid()
	m.session = state

	if m.uid() == prevUID {
		return nil
	}

	m.playlists.Reset()
	m.playlistMovies.Reset()
	m.selectedPlaylist = nil
	m.playlistsUID = ""

	switch m.view {
	case PickPlaylistView, PlaylistsView, PlaylistMoviesView:
		m.view = BrowseView
	}
	if !state.SignedIn() {
		m.status = "Signed out"
	}
	return tea.Batch(m.playlistList.SetItems(nil), m.pickList.SetItems(nil), m.playlistMovieList.SetItems(nil))
}

func (m *Model) uid() string {
	if !m.session.SignedIn() {
		return ""
	}
	return m.session.Identity.UID
}

func (m *Model) handleBrowseKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.tab):
		m.tab = (m.tab + 1) % 2
		m.movieList.Title = m.tab.String()
		if m.movies[m.tab].Snapshot().Phase == tasks.Idle {
			return m, tea.Batch(m.movieList.SetItems(nil), m.loadMovies(m.tab))
		}
		return m, m.refreshMovies()
	case key.Matches(msg, m.keys.next):
		snap := m.movies[m.tab].Snapshot()
		if snap.Data.totalPages == 0 || m.pages[m.tab] < snap.Data.totalPages {
			m.pages[m.tab]++
			return m, m.loadMovies(m.tab)
		}
		return m, nil
	case key.Matches(msg, m.keys.prev):
		if m.pages[m.tab] > 1 {
			m.pages[m.tab]--
			return m, m.loadMovies(m.tab)
		}
		return m, nil
	case key.Matches(msg, m.keys.reload):
		return m, m.loadMovies(m.tab)
	case key.Matches(msg, m.keys.playlists):
		return m, m.openPlaylists()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.movieList.SelectedItem().(movieItem); ok {
			return m, m.openDetail(item.movie.ID, BrowseView)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.movieList, cmd = m.movieList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = m.detailFrom
		return m, nil
	case key.Matches(msg, m.keys.reload):
		if m.detailID != 0 {
			return m, m.openDetail(m.detailID, m.detailFrom)
		}
	case key.Matches(msg, m.keys.add):
		snap := m.detail.Snapshot()
		if snap.Phase != tasks.Succeeded || snap.Data == nil {
			return m, nil
		}
		movie := snap.Data
		if movie.IMDbID == "" {
			m.err = fmt.Errorf("%s has no IMDb id and cannot be added", movie.Title)
			return m, nil
		}
		if m.uid() == "" {
			m.err = fmt.Errorf("%w: sign in to add movies to playlists", shared.ErrNotAuthenticated)
			return m, nil
		}
		m.err = nil
		m.view = PickPlaylistView
		return m, m.ensurePlaylists()
	}
	return m, nil
}

func (m *Model) handlePickKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = DetailView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		item, ok := m.pickList.SelectedItem().(playlistItem)
		movie := m.detail.Snapshot().Data
		if !ok || movie == nil {
			return m, nil
		}
		m.view = DetailView
		if item.playlist.Contains(movie.IMDbID) {
			m.err = nil
			m.status = fmt.Sprintf("%s is already in %s", movie.Title, item.playlist.Name)
			return m, nil
		}
		return m, m.addMovie(item.playlist, *movie)
	}

	var cmd tea.Cmd
	m.pickList, cmd = m.pickList.Update(msg)
	return m, cmd
}

func (m *Model) handlePlaylistsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = BrowseView
		return m, nil
	case key.Matches(msg, m.keys.reload):
		return m, m.loadPlaylists()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			p := item.playlist
			m.selectedPlaylist = &p
			m.playlistMovieList.Title = p.Name
			m.view = PlaylistMoviesView
			return m, tea.Batch(m.playlistMovieList.SetItems(nil), m.loadPlaylistMovies(p.ID))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handlePlaylistMoviesKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistsView
		return m, nil
	case key.Matches(msg, m.keys.reload):
		if m.selectedPlaylist != nil {
			return m, m.loadPlaylistMovies(m.selectedPlaylist.ID)
		}
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.playlistMovieList.SelectedItem().(movieItem); ok {
			return m, m.openDetail(item.movie.ID, PlaylistMoviesView)
		}
		return m, nil
	case key.Matches(msg, m.keys.remove):
		item, ok := m.playlistMovieList.SelectedItem().(movieItem)
		if !ok || m.selectedPlaylist == nil {
			return m, nil
		}
		return m, m.removeMovie(*m.selectedPlaylist, item.movie)
	}

	var cmd tea.Cmd
	m.playlistMovieList, cmd = m.playlistMovieList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case BrowseView:
		m.movieList, cmd = m.movieList.Update(msg)
	case PickPlaylistView:
		m.pickList, cmd = m.pickList.Update(msg)
	case PlaylistsView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case PlaylistMoviesView:
		m.playlistMovieList, cmd = m.playlistMovieList.Update(msg)
	}
	return m, cmd
}

func (m *Model) filtering() bool {
	switch m.view {
	case BrowseView:
		return m.movieList.FilterState() == list.Filtering
	case PickPlaylistView:
		return m.pickList.FilterState() == list.Filtering
	case PlaylistsView:
		return m.playlistList.FilterState() == list.Filtering
	case PlaylistMoviesView:
		return m.playlistMovieList.FilterState() == list.Filtering
	}
	return false
}

func (m *Model) refreshMovies() tea.Cmd {
	return m.movieList.SetItems(movieItems(m.movies[m.tab].Snapshot().Data.movies))
}

func (m *Model) openDetail(id int, from ViewState) tea.Cmd {
	m.detailID = id
	m.detailFrom = from
	m.view = DetailView
	m.err = nil
	m.status = ""

	seq := m.detail.Begin()
	ctx, catalog := m.ctx, m.deps.Catalog
	return func() tea.Msg {
		res := catalog.Movie(ctx, strconv.Itoa(id))
		if err := services.Err(res.Success, res.Error); err != nil {
			return movieFetchedMsg(seq, nil, err)
		}
		return movieFetchedMsg(seq, res.Movie, nil)
	}
}

func (m *Model) openPlaylists() tea.Cmd {
	if m.uid() == "" {
		m.err = fmt.Errorf("%w: sign in to see your playlists", shared.ErrNotAuthenticated)
		return nil
	}
	m.err = nil
	m.view = PlaylistsView
	return m.ensurePlaylists()
}

func (m *Model) ensurePlaylists() tea.Cmd {
	if m.playlistsUID == m.uid() && m.playlists.Snapshot().Phase != tasks.Idle {
		return nil
	}
	return m.loadPlaylists()
}

func (m *Model) loadMovies(tab Tab) tea.Cmd {
	seq := m.movies[tab].Begin()
	page := m.pages[tab]
	ctx, catalog := m.ctx, m.deps.Catalog
	return func() tea.Msg {
		var res services.MoviesResult
		if tab == PopularTab {
			res = catalog.Popular(ctx, page)
		} else {
			res = catalog.Trending(ctx, page)
		}
		if err := services.Err(res.Success, res.Error); err != nil {
			return moviesFetchedMsg(tab, seq, moviePage{}, err)
		}
		return moviesFetchedMsg(tab, seq, moviePage{movies: res.Movies, page: res.Page, totalPages: res.TotalPages}, nil)
	}
}

func (m *Model) loadPlaylists() tea.Cmd {
	uid := m.uid()
	if uid == "" || m.deps.Collections == nil {
		return nil
	}
	m.playlistsUID = uid

	seq := m.playlists.Begin()
	ctx, collections := m.ctx, m.deps.Collections
	return func() tea.Msg {
		res := collections.UserPlaylists(ctx, uid)
		if err := services.Err(res.Success, res.Error); err != nil {
			return playlistsFetchedMsg(seq, nil, err)
		}
		return playlistsFetchedMsg(seq, res.Playlists, nil)
	}
}

func (m *Model) loadPlaylistMovies(id int) tea.Cmd {
	if m.deps.Exporter == nil {
		return nil
	}

	seq := m.playlistMovies.Begin()
	ctx, exporter := m.ctx, m.deps.Exporter
	return func() tea.Msg {
		export, err := exporter.Export(ctx, id, exportWorkers)
		return playlistMoviesFetchedMsg(seq, export, err)
	}
}

func (m *Model) addMovie(p models.Playlist, movie models.Movie) tea.Cmd {
	ctx, collections := m.ctx, m.deps.Collections
	return func() tea.Msg {
		res := collections.AddMovie(ctx, p.ID, movie.IMDbID)
		if err := services.Err(res.Success, res.Error); err != nil {
			return mutationDoneMsg("", err, PlaylistsView)
		}
		return mutationDoneMsg(fmt.Sprintf("✓ Added %s to %s", movie.Title, p.Name), nil, PlaylistsView)
	}
}

func (m *Model) removeMovie(p models.Playlist, movie models.Movie) tea.Cmd {
	if movie.IMDbID == "" {
		m.err = errors.New("movie has no IMDb id")
		return nil
	}

	ctx, collections := m.ctx, m.deps.Collections
	return func() tea.Msg {
		res := collections.RemoveMovie(ctx, p.ID, movie.IMDbID)
		if err := services.Err(res.Success, res.Error); err != nil {
			return mutationDoneMsg("", err, PlaylistMoviesView)
		}
		return mutationDoneMsg(fmt.Sprintf("✓ Removed %s from %s", movie.Title, p.Name), nil, PlaylistMoviesView)
	}
}
