package tasks

import (
	"fmt"

	"github.com/desertthunder/moviememo/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Stage   Stage  // Operation stage
	Step    int    // Current step number within stage
	Total   int    // Total steps in this stage
	Message string // Human-readable message for display
	Data    any    // Optional stage-specific data for advanced UIs
}

// Stage of a playlist export.
type Stage int

const (
	FetchPlaylist Stage = iota
	ResolveMovies
	WriteFiles
	ExportDone
)

func (s Stage) String() string {
	switch s {
	case FetchPlaylist:
		return "fetch_playlist"
	case ResolveMovies:
		return "resolve_movies"
	case WriteFiles:
		return "write_files"
	case ExportDone:
		return "export_done"
	default:
		return ""
	}
}

// sendProgress sends without blocking; updates are dropped when nobody is listening.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchPlaylistUpdate(step, total, id int) ProgressUpdate {
	return ProgressUpdate{
		Stage:   FetchPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching playlist %d...", step, total, id),
	}
}

func resolveMoviesUpdate(step, total int, p *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Stage:   ResolveMovies,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Looking up %d movies for %s...", step, total, len(p.Movies), p.Name),
		Data:    p,
	}
}

func writeFilesUpdate(step, total int, name, format string) ProgressUpdate {
	return ProgressUpdate{
		Stage:   WriteFiles,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Writing %s as %s...", step, total, name, format),
	}
}

func exportCompletedUpdate(step, total int, name string, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Stage:   ExportDone,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, name, filesCount),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Stage:   ExportDone,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
