package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/moviememo/internal/formatter"
	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/session"
	"github.com/desertthunder/moviememo/internal/shared"
	"github.com/urfave/cli/v3"
)

// statusView is the JSON shape of `auth status`.
type statusView struct {
	SignedIn bool             `json:"signed_in"`
	Identity *models.Identity `json:"identity,omitempty"`
	Profile  *models.Profile  `json:"profile,omitempty"`
	Since    *time.Time       `json:"signed_in_since,omitempty"`
}

// AuthLogin signs in with email and password, or interactively with Google when no
// credentials are given.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	email := strings.TrimSpace(cmd.String("email"))
	password := cmd.String("password")
	google := cmd.Bool("google")

	if google && email != "" {
		return fmt.Errorf("%w: use either --google or --email, not both", shared.ErrInvalidArgument)
	}
	if !google && (email == "") != (password == "") {
		return fmt.Errorf("%w: --email and --password must be given together", shared.ErrMissingCredentials)
	}

	account, err := r.startSession(ctx)
	if err != nil {
		return err
	}

	var id *models.Identity
	if email == "" {
		r.writePlain("Opening browser for Google sign-in...\n")
		id, err = account.SignInInteractive(ctx)
	} else {
		r.logger.Debug("signing in", "email", email)
		id, err = account.SignIn(ctx, email, password)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	state, err := r.settle(ctx)
	if err != nil {
		return err
	}

	r.writePlain("✓ Signed in as %s\n", id.Email)
	if state.Profile != nil && state.Profile.UID == id.UID {
		r.writePlain("Username: %s\n", state.Profile.Username)
	} else {
		r.writePlain("No profile found for this account yet.\n")
	}
	return nil
}

// AuthSignup creates an account with its profile and sends the verification email.
func (r *Runner) AuthSignup(ctx context.Context, cmd *cli.Command) error {
	email := strings.TrimSpace(cmd.String("email"))
	password := cmd.String("password")
	username := strings.TrimSpace(cmd.String("username"))
	if username == "" {
		username = session.RandomUsername()
	}

	account, err := r.startSession(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("creating account", "email", email, "username", username)
	if err := account.SignUp(ctx, email, password, username); err != nil {
		return err
	}

	r.writePlain("✓ Account created for %s (username %s)\n", email, username)
	r.writePlain("Check your inbox to verify your email, then run `moviememo auth login`.\n")
	return nil
}

// AuthLogout signs out and clears the persisted session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	account, err := r.startSession(ctx)
	if err != nil {
		return err
	}
	if !r.store.GetState().SignedIn() {
		return r.writePlain("Not signed in.\n")
	}

	if err := account.SignOut(ctx); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthReset sends a password reset email.
func (r *Runner) AuthReset(ctx context.Context, cmd *cli.Command) error {
	email := strings.TrimSpace(cmd.String("email"))

	account, err := r.startSession(ctx)
	if err != nil {
		return err
	}
	if err := account.ResetPassword(ctx, email); err != nil {
		return err
	}
	return r.writePlain("✓ Password reset email sent to %s\n", email)
}

// AuthStatus shows the restored session and its profile.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.startSession(ctx); err != nil {
		return err
	}

	state := r.store.GetState()
	view := statusView{SignedIn: state.SignedIn(), Identity: state.Identity, Profile: state.Profile}
	if state.SignedIn() && r.history != nil {
		since, ok, err := r.history.SignedInSince(ctx, state.Identity.UID)
		if err != nil {
			r.logger.Warn("failed to read session history", "error", err)
		} else if ok {
			view.Since = &since
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}

	if err := r.writeBytes(formatter.ProfileText(state.Profile, state.Identity)); err != nil {
		return err
	}
	if view.Since != nil {
		r.writePlain("Signed in since: %s\n", view.Since.Local().Format("Jan 2, 2006 15:04"))
	}
	return nil
}
