package session

import (
	"context"
	"errors"

	"github.com/desertthunder/moviememo/internal/services"
)

var (
	// ErrIncorrectCredentials is returned by sign-in whatever the provider's reason.
	ErrIncorrectCredentials = errors.New("Incorrect email or password.")
	ErrProvisioningFailed   = errors.New("profile provisioning failed")
	ErrUsernameTaken        = errors.New("username is already taken")
)

// ProfileReader is the read side of the profile backend used by the reconciler.
type ProfileReader interface {
	Exists(ctx context.Context, uid string) services.ExistsResult
	Get(ctx context.Context, uid string) services.ProfileResult
}

// ProfileService is the profile backend used by provisioning and account flows.
type ProfileService interface {
	ProfileReader
	UsernameExists(ctx context.Context, username string) services.ExistsResult
	Create(ctx context.Context, email, username, uid string) services.ProfileResult
	ChangeUsername(ctx context.Context, uid, newUsername string) services.UsernameChangeResult
	UpdateAvatar(ctx context.Context, username, filename string, data []byte) services.ProfileResult
}

var _ ProfileService = (*services.ProfileClient)(nil)
