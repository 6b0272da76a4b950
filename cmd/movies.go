package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/moviememo/internal/formatter"
	"github.com/desertthunder/moviememo/internal/services"
	"github.com/desertthunder/moviememo/internal/shared"
	"github.com/urfave/cli/v3"
)

// MoviesTrending lists one page of trending movies.
func (r *Runner) MoviesTrending(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.requireCatalog()
	if err != nil {
		return err
	}
	return r.listMovies(cmd, func(page int) services.MoviesResult { return catalog.Trending(ctx, page) })
}

// MoviesPopular lists one page of popular movies.
func (r *Runner) MoviesPopular(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.requireCatalog()
	if err != nil {
		return err
	}
	return r.listMovies(cmd, func(page int) services.MoviesResult { return catalog.Popular(ctx, page) })
}

func (r *Runner) listMovies(cmd *cli.Command, fetch func(page int) services.MoviesResult) error {
	page := int(cmd.Int("page"))
	if page < 1 {
		return fmt.Errorf("%w: --page must be 1 or greater", shared.ErrInvalidFlag)
	}

	r.logger.Debug("listing movies", "command", cmd.Name, "page", page)

	res := fetch(page)
	if err := services.Err(res.Success, res.Error); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(res, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.MoviesText(res.Movies, res.Page, res.TotalPages))
}

// MoviesShow shows the details of a single catalog movie.
func (r *Runner) MoviesShow(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: movie id", shared.ErrMissingArgument)
	}

	catalog, err := r.requireCatalog()
	if err != nil {
		return err
	}

	res := catalog.Movie(ctx, id)
	if err := services.Err(res.Success, res.Error); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(res.Movie, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.MovieText(res.Movie))
}
