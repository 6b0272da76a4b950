package tasks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moviememo/internal/formatter"
	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/services"
	"github.com/desertthunder/moviememo/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkers = 4
	MaxWorkers     = 10
	ManifestName   = "export_manifest.json"
)

// Formats accepted by [Exporter.BulkExport].
var Formats = []string{"json", "csv", "markdown", "txt"}

// PlaylistSource fetches a playlist by id.
type PlaylistSource interface {
	Get(ctx context.Context, id int) services.PlaylistResult
}

// MovieSource fetches catalog details for one movie.
type MovieSource interface {
	Movie(ctx context.Context, id string) services.MovieResult
}

var (
	_ PlaylistSource = (*services.PlaylistClient)(nil)
	_ MovieSource    = (*services.CatalogClient)(nil)
)

// ExportOpts contains configuration for bulk playlist exports.
type ExportOpts struct {
	Format     string                 // json, csv, markdown or txt (default: json)
	OutputDir  string                 // Base output directory (default: moviememo_export_{epoch})
	Workers    int                    // Concurrent playlists and movie lookups (default: 4, max: 10)
	RateLimit  float64                // Playlist fetches per second (default: 5)
	FetchImage formatter.ImageFetcher // Cover downloader for markdown, nil skips covers
}

// PlaylistResult is the outcome of exporting one playlist.
type PlaylistResult struct {
	PlaylistID   int
	PlaylistName string
	Success      bool
	Files        []string
	Missing      int
	Error        error
}

// BulkExportResult summarizes [Exporter.BulkExport].
type BulkExportResult struct {
	TotalPlaylists    int
	SuccessfulExports int
	FailedExports     int
	OutputDirectory   string
	ManifestPath      string
	Results           []PlaylistResult
}

// Exporter joins backend playlists with catalog details and writes them to disk.
type Exporter struct {
	playlists PlaylistSource
	movies    MovieSource
	logger    *log.Logger
	now       func() time.Time
}

// NewExporter creates an Exporter. A nil logger discards output.
func NewExporter(playlists PlaylistSource, movies MovieSource, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Exporter{
		playlists: playlists,
		movies:    movies,
		logger:    shared.WithLogger(logger, "component", "exporter"),
		now:       time.Now,
	}
}

// Export fetches playlist id and resolves each of its movies with up to workers concurrent
// lookups. Movie order follows the playlist; references the catalog cannot resolve are
// listed in Missing instead of failing the export.
func (e *Exporter) Export(ctx context.Context, id, workers int) (*models.PlaylistExport, error) {
	if e.playlists == nil || e.movies == nil {
		return nil, fmt.Errorf("%w: exporter not initialized", shared.ErrServiceUnavailable)
	}

	res := e.playlists.Get(ctx, id)
	if err := services.Err(res.Success, res.Error); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if res.Playlist == nil {
		return nil, fmt.Errorf("%w: %d", shared.ErrPlaylistNotFound, id)
	}

	movies, missing, err := e.resolve(ctx, res.Playlist.Movies, workers)
	if err != nil {
		return nil, err
	}
	return &models.PlaylistExport{Playlist: *res.Playlist, Movies: movies, Missing: missing}, nil
}

func (e *Exporter) resolve(ctx context.Context, refs []models.MovieRef, workers int) ([]models.Movie, []models.MovieRef, error) {
	found := make([]*models.Movie, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(clampWorkers(workers))
	for i, ref := range refs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := e.movies.Movie(gctx, ref.CatalogKey())
			if !res.Success || res.Movie == nil {
				e.logger.Debug("movie lookup failed", "imdb_id", ref.IMDbID, "error", res.Error)
				return nil
			}
			found[i] = res.Movie
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	movies := make([]models.Movie, 0, len(refs))
	var missing []models.MovieRef
	for i, m := range found {
		if m == nil {
			missing = append(missing, refs[i])
			continue
		}
		movies = append(movies, *m)
	}
	return movies, missing, nil
}

// BulkExport exports several playlists concurrently with rate limiting and progress tracking.
//
// Individual failures are recorded in the result and the manifest; the error return is
// reserved for problems with the output directory or the manifest itself.
func (e *Exporter) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []int, opts ExportOpts) (*BulkExportResult, error) {
	opts.Format = strings.ToLower(strings.TrimSpace(opts.Format))
	if opts.Format == "" {
		opts.Format = "json"
	}
	if !validFormat(opts.Format) {
		return nil, fmt.Errorf("%w: unsupported format %q (want one of %s)", shared.ErrInvalidFlag, opts.Format, strings.Join(Formats, ", "))
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("moviememo_export_%d", e.now().Unix())
	}
	opts.Workers = clampWorkers(opts.Workers)
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	results := make([]PlaylistResult, len(ids))
	total := len(ids)

	var (
		mu        sync.Mutex
		completed int
	)
	finish := func(res PlaylistResult) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if res.Success {
			sendProgress(prog, exportCompletedUpdate(completed, total, res.PlaylistName, len(res.Files)))
		} else {
			sendProgress(prog, exportFailedUpdate(completed, total, res.PlaylistName, res.Error))
		}
	}

	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for i, id := range ids {
		g.Go(func() error {
			res := e.exportOne(ctx, prog, limiter, i+1, total, id, opts)
			results[i] = res
			finish(res)
			return nil
		})
	}
	_ = g.Wait()

	result := &BulkExportResult{
		TotalPlaylists:  total,
		OutputDirectory: opts.OutputDir,
		Results:         results,
	}
	manifest := &formatter.Manifest{
		ExportedAt:      e.now().UTC(),
		Format:          opts.Format,
		OutputDirectory: opts.OutputDir,
		TotalPlaylists:  total,
		Playlists:       make([]formatter.ManifestEntry, 0, total),
	}
	for _, res := range results {
		entry := formatter.ManifestEntry{
			PlaylistID:   res.PlaylistID,
			PlaylistName: res.PlaylistName,
			Success:      res.Success,
			Files:        res.Files,
			MissingCount: res.Missing,
		}
		if res.Success {
			result.SuccessfulExports++
		} else {
			result.FailedExports++
			entry.Error = res.Error.Error()
		}
		manifest.Playlists = append(manifest.Playlists, entry)
	}
	manifest.SuccessfulExports = result.SuccessfulExports
	manifest.FailedExports = result.FailedExports

	manifestPath := filepath.Join(opts.OutputDir, ManifestName)
	if err := formatter.WriteManifest(manifest, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	e.logger.Info("bulk export finished", "ok", result.SuccessfulExports, "failed", result.FailedExports, "dir", opts.OutputDir)
	return result, nil
}

func (e *Exporter) exportOne(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	limiter *rate.Limiter,
	step, total, id int,
	opts ExportOpts,
) PlaylistResult {
	result := PlaylistResult{PlaylistID: id, PlaylistName: fmt.Sprintf("Unknown (%d)", id)}

	if err := limiter.Wait(ctx); err != nil {
		result.Error = fmt.Errorf("rate limiter: %w", err)
		return result
	}

	sendProgress(prog, fetchPlaylistUpdate(step, total, id))
	export, err := e.Export(ctx, id, opts.Workers)
	if err != nil {
		result.Error = fmt.Errorf("failed to fetch playlist: %w", err)
		return result
	}
	result.PlaylistName = export.Playlist.Name
	result.Missing = len(export.Missing)
	sendProgress(prog, resolveMoviesUpdate(step, total, &export.Playlist))

	sendProgress(prog, writeFilesUpdate(step, total, export.Playlist.Name, opts.Format))
	files, err := writeExport(ctx, export, opts)
	if err != nil {
		result.Error = err
		return result
	}
	result.Files = files
	result.Success = true
	return result
}

// writeExport writes one playlist in opts.Format under opts.OutputDir.
func writeExport(ctx context.Context, export *models.PlaylistExport, opts ExportOpts) ([]string, error) {
	base := filepath.Join(opts.OutputDir, formatter.BaseName(export.Playlist))

	switch opts.Format {
	case "csv":
		res, err := formatter.WriteCSVExport(export, base)
		if err != nil {
			return nil, fmt.Errorf("CSV export failed: %w", err)
		}
		return []string{res.MoviesFile, res.MetadataFile}, nil
	case "markdown":
		res, err := formatter.WriteMarkdownExport(ctx, export, base, opts.FetchImage)
		if err != nil {
			return nil, fmt.Errorf("markdown export failed: %w", err)
		}
		return res.Files, nil
	case "txt":
		path, err := formatter.WriteTextExport(export, base+"_movies.txt")
		if err != nil {
			return nil, fmt.Errorf("text export failed: %w", err)
		}
		return []string{path}, nil
	default:
		path, err := formatter.WriteJSONExport(export, base+".json")
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
}

func validFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

func clampWorkers(n int) int {
	switch {
	case n <= 0:
		return DefaultWorkers
	case n > MaxWorkers:
		return MaxWorkers
	default:
		return n
	}
}
