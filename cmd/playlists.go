package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/moviememo/internal/formatter"
	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/services"
	"github.com/desertthunder/moviememo/internal/shared"
	"github.com/desertthunder/moviememo/internal/tasks"
	"github.com/urfave/cli/v3"
)

func parseID(s, what string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: %s", shared.ErrMissingArgument, what)
	}
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", shared.ErrInvalidArgument, what, s)
	}
	return id, nil
}

// PlaylistsList lists the signed in user's playlists, or every playlist with --all.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	var res services.PlaylistsResult
	if cmd.Bool("all") {
		res = r.playlists.All(ctx)
	} else {
		_, state, err := r.requireSignIn(ctx)
		if err != nil {
			return err
		}
		res = r.playlists.UserPlaylists(ctx, state.Identity.UID)
	}
	if err := services.Err(res.Success, res.Error); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(res.Playlists, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.PlaylistsText(res.Playlists))
}

// PlaylistsShow shows a playlist with the catalog details of its movies.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"), "playlist id")
	if err != nil {
		return err
	}

	exporter, err := r.exporter()
	if err != nil {
		return err
	}

	export, err := exporter.Export(ctx, id, int(cmd.Int("workers")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(export, cmd.Bool("pretty"))
	}

	text, err := formatter.ExportToText(export)
	if err != nil {
		return err
	}
	return r.writeBytes(text)
}

// PlaylistsCreate creates a playlist owned by the signed in user.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	_, state, err := r.requireSignIn(ctx)
	if err != nil {
		return err
	}

	res := r.playlists.Create(ctx, state.Identity.UID, name, cmd.String("description"))
	if err := services.Err(res.Success, res.Error); err != nil {
		return err
	}

	r.logger.Info("playlist created", "id", res.Playlist.ID, "name", res.Playlist.Name)
	return r.writePlain("✓ Created playlist %q (id %d)\n", res.Playlist.Name, res.Playlist.ID)
}

// PlaylistsUpdate renames a playlist or replaces its description.
func (r *Runner) PlaylistsUpdate(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"), "playlist id")
	if err != nil {
		return err
	}

	var update services.PlaylistUpdate
	if cmd.IsSet("name") {
		name := cmd.String("name")
		update.Name = &name
	}
	if cmd.IsSet("description") {
		desc := cmd.String("description")
		update.Description = &desc
	}
	if update.Name == nil && update.Description == nil {
		return fmt.Errorf("%w: pass --name or --description", shared.ErrMissingArgument)
	}

	if _, err := r.ownedPlaylist(ctx, id); err != nil {
		return err
	}

	res := r.playlists.Update(ctx, id, update)
	if err := services.Err(res.Success, res.Error); err != nil {
		return err
	}
	return r.writePlain("✓ Updated playlist %q\n", res.Playlist.Name)
}

// PlaylistsDelete deletes a playlist.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.StringArg("id"), "playlist id")
	if err != nil {
		return err
	}

	p, err := r.ownedPlaylist(ctx, id)
	if err != nil {
		return err
	}

	res := r.playlists.Delete(ctx, id)
	if err := services.Err(res.Success, res.Error); err != nil {
		return err
	}

	r.logger.Info("playlist deleted", "id", id)
	return r.writePlain("✓ Deleted playlist %q\n", p.Name)
}

// PlaylistsAdd adds a movie to a playlist by IMDb id.
func (r *Runner) PlaylistsAdd(ctx context.Context, cmd *cli.Command) error {
	id, imdbID, err := playlistMovieArgs(cmd)
	if err != nil {
		return err
	}

	p, err := r.ownedPlaylist(ctx, id)
	if err != nil {
		return err
	}
	if p.Contains(imdbID) {
		return r.writePlain("%s is already in %q\n", imdbID, p.Name)
	}

	res := r.playlists.AddMovie(ctx, id, imdbID)
	if err := services.Err(res.Success, res.Error); err != nil {
		return err
	}
	return r.writePlain("✓ Added %s to %q\n", imdbID, p.Name)
}

// PlaylistsRemove removes a movie from a playlist by IMDb id.
func (r *Runner) PlaylistsRemove(ctx context.Context, cmd *cli.Command) error {
	id, imdbID, err := playlistMovieArgs(cmd)
	if err != nil {
		return err
	}

	p, err := r.ownedPlaylist(ctx, id)
	if err != nil {
		return err
	}

	res := r.playlists.RemoveMovie(ctx, id, imdbID)
	if err := services.Err(res.Success, res.Error); err != nil {
		return err
	}
	return r.writePlain("✓ Removed %s from %q\n", imdbID, p.Name)
}

func playlistMovieArgs(cmd *cli.Command) (int, string, error) {
	id, err := parseID(cmd.StringArg("id"), "playlist id")
	if err != nil {
		return 0, "", err
	}
	imdbID := strings.TrimSpace(cmd.StringArg("imdb_id"))
	if imdbID == "" {
		return 0, "", fmt.Errorf("%w: IMDb id", shared.ErrMissingArgument)
	}
	return id, imdbID, nil
}

// ownedPlaylist fetches playlist id and checks that the signed in user owns it.
func (r *Runner) ownedPlaylist(ctx context.Context, id int) (*models.Playlist, error) {
	_, state, err := r.requireSignIn(ctx)
	if err != nil {
		return nil, err
	}

	res := r.playlists.Get(ctx, id)
	if err := services.Err(res.Success, res.Error); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	if res.Playlist == nil {
		return nil, fmt.Errorf("%w: %d", shared.ErrPlaylistNotFound, id)
	}
	if owner := res.Playlist.User; owner != nil && owner.UID != "" && owner.UID != state.Identity.UID {
		return nil, fmt.Errorf("%w: playlist %d belongs to %s", shared.ErrInvalidArgument, id, owner.Username)
	}
	return res.Playlist, nil
}

// PlaylistsExport writes one or more playlists to disk with a manifest.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	ids, err := r.exportIDs(ctx, cmd)
	if err != nil {
		return err
	}

	exporter, err := r.exporter()
	if err != nil {
		return err
	}

	opts := tasks.ExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		Workers:    int(cmd.Int("workers")),
		FetchImage: formatter.DownloadImage,
	}

	r.logger.Info("exporting playlists", "count", len(ids), "format", opts.Format)
	r.writePlain("Exporting %d playlist(s) as %s...\n\n", len(ids), opts.Format)

	progressCh := make(chan tasks.ProgressUpdate, 100)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Stage {
			case tasks.FetchPlaylist:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ResolveMovies, tasks.WriteFiles:
				r.writePlain("   %s\n", update.Message)
			case tasks.ExportDone:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	result, err := exporter.BulkExport(ctx, progressCh, ids, opts)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Output: %s\n", result.OutputDirectory)
	r.writePlain("Exported: %d/%d\n", result.SuccessfulExports, result.TotalPlaylists)
	r.writePlain("Manifest: %s\n", result.ManifestPath)

	if result.FailedExports > 0 {
		r.writePlain("\nFailed to export %d playlist(s):\n", result.FailedExports)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %v\n", res.PlaylistName, res.Error)
			}
		}
	}
	return nil
}

// exportIDs collects playlist ids from the arguments, or the user's playlists with --mine.
func (r *Runner) exportIDs(ctx context.Context, cmd *cli.Command) ([]int, error) {
	if cmd.Bool("mine") {
		_, state, err := r.requireSignIn(ctx)
		if err != nil {
			return nil, err
		}
		res := r.playlists.UserPlaylists(ctx, state.Identity.UID)
		if err := services.Err(res.Success, res.Error); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		ids := make([]int, len(res.Playlists))
		for i, p := range res.Playlists {
			ids[i] = p.ID
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("%w: you have no playlists to export", shared.ErrInvalidInput)
		}
		return ids, nil
	}

	args := cmd.Args().Slice()
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: at least one playlist id, or --mine", shared.ErrMissingArgument)
	}
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := parseID(a, "playlist id")
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
