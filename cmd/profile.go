package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/moviememo/internal/formatter"
	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/services"
	"github.com/desertthunder/moviememo/internal/shared"
	"github.com/urfave/cli/v3"
)

// ProfileShow shows the signed in user's profile, or the profile for --username.
func (r *Runner) ProfileShow(ctx context.Context, cmd *cli.Command) error {
	var (
		profile *models.Profile
		id      *models.Identity
	)

	if username := strings.TrimSpace(cmd.String("username")); username != "" {
		res := r.profiles.GetByUsername(ctx, username)
		if err := services.Err(res.Success, res.Error); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		if res.Profile == nil {
			return fmt.Errorf("%w: no profile with username %q", shared.ErrInvalidArgument, username)
		}
		profile = res.Profile
	} else {
		_, state, err := r.requireSignIn(ctx)
		if err != nil {
			return err
		}
		profile, id = state.Profile, state.Identity
	}

	if cmd.Bool("json") {
		return r.writeJSON(profile, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.ProfileText(profile, id))
}

// ProfileUsername renames the signed in user's profile.
func (r *Runner) ProfileUsername(ctx context.Context, cmd *cli.Command) error {
	username := strings.TrimSpace(cmd.StringArg("username"))
	if username == "" {
		return fmt.Errorf("%w: new username", shared.ErrMissingArgument)
	}

	account, _, err := r.requireSignIn(ctx)
	if err != nil {
		return err
	}

	res := account.ChangeUsername(ctx, username)
	if !res.Success {
		if res.Remaining != nil {
			return fmt.Errorf("%s (try again in %s)", res.Error, res.Remaining)
		}
		return errors.New(res.Error)
	}

	if res.Profile != nil {
		username = res.Profile.Username
	}
	r.logger.Info("username changed", "username", username)
	return r.writePlain("✓ Username changed to %s\n", username)
}

// ProfileAvatar uploads a new profile picture for the signed in user.
func (r *Runner) ProfileAvatar(ctx context.Context, cmd *cli.Command) error {
	path := strings.TrimSpace(cmd.StringArg("path"))
	if path == "" {
		return fmt.Errorf("%w: image path", shared.ErrMissingArgument)
	}

	account, _, err := r.requireSignIn(ctx)
	if err != nil {
		return err
	}

	res := account.ChangeAvatarFile(ctx, path)
	if err := services.Err(res.Success, res.Error); err != nil {
		return err
	}

	r.writePlain("✓ Profile picture updated\n")
	if res.Profile != nil && res.Profile.ProfilePicture != "" {
		r.writePlain("Avatar: %s\n", res.Profile.ProfilePicture)
	}
	return nil
}
