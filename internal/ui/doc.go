// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for browsing and curating movies:
//  1. [BrowseView] : Trending and popular catalog listings, paginated, switched with tab
//  2. [DetailView] : Details of one movie
//  3. [PickPlaylistView] : Choose one of your playlists to add the movie to
//  4. [PlaylistsView] : Your playlists
//  5. [PlaylistMoviesView] : Movies in a playlist, resolved against the catalog
//
// Every fetch is tracked by a [tasks.Loader], so a response that arrives after a newer
// request (a fast page flip, a reopened detail view) is discarded, and [Model.Close] makes
// any result still in flight a no-op. The header follows the session store: a
// subscription forwards each new snapshot into the update loop.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
