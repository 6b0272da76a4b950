package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moviememo/internal/identity"
	"github.com/desertthunder/moviememo/internal/models"
	"github.com/desertthunder/moviememo/internal/services"
	"github.com/desertthunder/moviememo/internal/shared"
)

// Account implements the user-facing authentication and profile flows.
type Account struct {
	provider    identity.Provider
	profiles    ProfileService
	provisioner *Provisioner
	store       *Store
	logger      *log.Logger
}

func NewAccount(provider identity.Provider, profiles ProfileService, provisioner *Provisioner, store *Store, logger *log.Logger) *Account {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Account{
		provider:    provider,
		profiles:    profiles,
		provisioner: provisioner,
		store:       store,
		logger:      logger,
	}
}

// SignInInteractive signs in through the browser and provisions a profile for new principals.
// Provisioning failures are logged and do not fail the sign-in.
func (a *Account) SignInInteractive(ctx context.Context) (*models.Identity, error) {
	id, err := a.provider.SignInInteractive(ctx)
	if err != nil {
		return nil, err
	}
	a.provision(ctx, *id)
	return id, nil
}

// SignIn signs in with email and password. Any provider rejection is reported as
// [ErrIncorrectCredentials].
func (a *Account) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", shared.ErrMissingCredentials)
	}

	id, err := a.provider.SignInWithCredentials(ctx, email, password)
	if err != nil {
		var providerErr *identity.Error
		if errors.As(err, &providerErr) {
			a.logger.Debug("sign in rejected", "code", providerErr.Code)
			return nil, ErrIncorrectCredentials
		}
		return nil, err
	}

	a.provision(ctx, *id)
	return id, nil
}

func (a *Account) provision(ctx context.Context, id models.Identity) {
	if a.provisioner == nil {
		return
	}
	if _, err := a.provisioner.Ensure(ctx, id); err != nil {
		a.logger.Warn("profile provisioning failed", "uid", id.UID, "error", err)
	}
}

// SignUp creates the identity account, creates its profile with username, sends the
// verification email and signs out, in that order. A failing step stops the flow;
// completed steps are not undone.
func (a *Account) SignUp(ctx context.Context, email, password, username string) error {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	switch {
	case email == "" || password == "":
		return fmt.Errorf("%w: email and password are required", shared.ErrMissingCredentials)
	case username == "":
		return fmt.Errorf("%w: username is required", shared.ErrInvalidInput)
	}

	if taken := a.profiles.UsernameExists(ctx, username); taken.Success && taken.Exists {
		return ErrUsernameTaken
	}

	id, err := a.provider.SignUpWithCredentials(ctx, email, password)
	if err != nil {
		return err
	}

	created := a.profiles.Create(ctx, email, username, id.UID)
	if !created.Success {
		msg := created.Error
		if msg == "" {
			msg = "Failed to create user profile"
		}
		return errors.New(msg)
	}

	if err := a.provider.SendVerificationEmail(ctx, id); err != nil {
		return err
	}
	return a.provider.SignOut(ctx)
}

// ResetPassword sends a password reset email.
func (a *Account) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", shared.ErrMissingArgument)
	}
	return a.provider.SendPasswordReset(ctx, email)
}

func (a *Account) SignOut(ctx context.Context) error {
	return a.provider.SignOut(ctx)
}

// ChangeUsername renames the signed-in user's profile and publishes the result.
func (a *Account) ChangeUsername(ctx context.Context, newUsername string) services.UsernameChangeResult {
	state := a.store.GetState()
	if !state.SignedIn() {
		return services.UsernameChangeResult{Error: shared.ErrNotAuthenticated.Error()}
	}

	uid := state.Identity.UID
	res := a.profiles.ChangeUsername(ctx, uid, newUsername)
	if res.Success && res.Profile != nil {
		if res.Profile.UID == "" {
			res.Profile.UID = uid
		}
		a.store.SetProfileFor(uid, res.Profile)
	}
	return res
}

// ChangeAvatar uploads a new profile picture for the signed-in user and publishes the result.
func (a *Account) ChangeAvatar(ctx context.Context, filename string, data []byte) services.ProfileResult {
	state := a.store.GetState()
	switch {
	case !state.SignedIn():
		return services.ProfileResult{Error: shared.ErrNotAuthenticated.Error()}
	case state.Profile == nil:
		return services.ProfileResult{Error: shared.ErrNoProfile.Error()}
	}

	uid := state.Identity.UID
	res := a.profiles.UpdateAvatar(ctx, state.Profile.Username, filename, data)
	if res.Success && res.Profile != nil {
		if res.Profile.UID == "" {
			res.Profile.UID = uid
		}
		a.store.SetProfileFor(uid, res.Profile)
	}
	return res
}

// ChangeAvatarFile reads path and uploads it with [Account.ChangeAvatar].
func (a *Account) ChangeAvatarFile(ctx context.Context, path string) services.ProfileResult {
	info, err := os.Stat(path)
	if err != nil {
		return services.ProfileResult{Error: fmt.Sprintf("unable to read file: %v", err)}
	}
	if info.Size() > services.MaxAvatarBytes {
		return services.ProfileResult{Error: "file must be 10MB or smaller"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return services.ProfileResult{Error: fmt.Sprintf("unable to read file: %v", err)}
	}
	return a.ChangeAvatar(ctx, path, data)
}
