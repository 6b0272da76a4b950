package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/moviememo/internal/formatter"
	"github.com/desertthunder/moviememo/internal/tasks"
)

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case BrowseView:
		body = m.renderBrowse()
	case DetailView:
		body = m.renderDetail()
	case PickPlaylistView:
		body = m.renderPick()
	case PlaylistsView:
		body = m.renderPlaylists()
	case PlaylistMoviesView:
		body = m.renderPlaylistMovies()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderStatus())
}

// renderHeader shows who is signed in.
func (m *Model) renderHeader() string {
	s := m.session
	switch {
	case s == nil || (!s.SignedIn() && s.Loading):
		return styles.header.Render("Checking session...")
	case !s.SignedIn():
		return styles.header.Render("Not signed in • run `moviememo auth login`")
	case s.Profile != nil:
		return styles.header.Render(fmt.Sprintf("Signed in as %s", styles.ok.Render(s.Profile.Username)))
	case s.Loading:
		return styles.header.Render(fmt.Sprintf("Signed in as %s • loading profile...", s.Identity.Email))
	default:
		return styles.header.Render(fmt.Sprintf("Signed in as %s • no profile", s.Identity.Email))
	}
}

func (m *Model) renderStatus() string {
	switch {
	case m.err != nil:
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	case m.status != "":
		return styles.ok.Render(m.status)
	default:
		return ""
	}
}

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, 2)
	for _, t := range []Tab{TrendingTab, PopularTab} {
		if t == m.tab {
			tabs = append(tabs, styles.active.Render(t.String()))
		} else {
			tabs = append(tabs, styles.tab.Render(t.String()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) renderBrowse() string {
	snap := m.movies[m.tab].Snapshot()

	var footer string
	switch snap.Phase {
	case tasks.Idle, tasks.Loading:
		footer = styles.help.Render(fmt.Sprintf("Loading page %d...", m.pages[m.tab]))
	case tasks.Failed:
		footer = styles.err.Render(fmt.Sprintf("Could not load movies: %v", snap.Err))
	default:
		footer = styles.help.Render(fmt.Sprintf("Page %d of %d", snap.Data.page, snap.Data.totalPages))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.tab, m.keys.next, m.keys.prev, m.keys.playlists, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s\n\n%s", m.renderTabs(), m.movieList.View(), footer, helpView)
}

func (m *Model) renderDetail() string {
	snap := m.detail.Snapshot()
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.add, m.keys.reload, m.keys.back, m.keys.quit})

	switch {
	case snap.Phase == tasks.Loading:
		return fmt.Sprintf("%s\n\n%s", styles.help.Render("Loading movie..."), helpView)
	case snap.Phase == tasks.Failed:
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Could not load movie: %v", snap.Err)), helpView)
	case snap.Data == nil:
		return helpView
	}

	text := strings.TrimRight(string(formatter.MovieText(snap.Data)), "\n")
	if m.width > 8 {
		text = lipgloss.NewStyle().Width(m.width - 4).Render(text)
	}
	return fmt.Sprintf("%s\n\n%s", text, helpView)
}

func (m *Model) renderPick() string {
	title := ""
	if movie := m.detail.Snapshot().Data; movie != nil {
		title = styles.title.Render(fmt.Sprintf("Add '%s' to...", movie.Title))
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.pickListView(), helpView)
}

func (m *Model) pickListView() string {
	snap := m.playlists.Snapshot()
	switch {
	case snap.Phase == tasks.Loading && len(snap.Data) == 0:
		return styles.help.Render("Loading playlists...")
	case snap.Phase == tasks.Failed:
		return styles.err.Render(fmt.Sprintf("Could not load playlists: %v", snap.Err))
	case snap.Phase == tasks.Succeeded && len(snap.Data) == 0:
		return styles.warn.Render("You have no playlists yet. Create one with `moviememo playlists create`.")
	}
	return m.pickList.View()
}

func (m *Model) renderPlaylists() string {
	snap := m.playlists.Snapshot()
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.reload, m.keys.back, m.keys.quit})

	switch {
	case snap.Phase == tasks.Loading && len(snap.Data) == 0:
		return fmt.Sprintf("%s\n\n%s", styles.help.Render("Loading playlists..."), helpView)
	case snap.Phase == tasks.Failed:
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Could not load playlists: %v", snap.Err)), helpView)
	case snap.Phase == tasks.Succeeded && len(snap.Data) == 0:
		return fmt.Sprintf("%s\n\n%s", styles.warn.Render("You have no playlists yet."), helpView)
	}
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderPlaylistMovies() string {
	snap := m.playlistMovies.Snapshot()
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.remove, m.keys.reload, m.keys.back, m.keys.quit})

	switch {
	case snap.Phase == tasks.Loading && snap.Data == nil:
		return fmt.Sprintf("%s\n\n%s", styles.help.Render("Loading movies..."), helpView)
	case snap.Phase == tasks.Failed:
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Could not load playlist: %v", snap.Err)), helpView)
	}

	var missing string
	if snap.Data != nil && len(snap.Data.Missing) > 0 {
		missing = "\n" + styles.warn.Render(fmt.Sprintf("%d movies could not be found in the catalog", len(snap.Data.Missing)))
	}
	return fmt.Sprintf("%s%s\n\n%s", m.playlistMovieList.View(), missing, helpView)
}
