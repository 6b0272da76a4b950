package identity

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/desertthunder/moviememo/internal/models"
)

// Unsubscribe releases a session subscription. Calling it more than once is harmless.
type Unsubscribe func()

// Provider is the identity capability consumed by the session layer.
type Provider interface {
	SignInInteractive(ctx context.Context) (*models.Identity, error)
	SignInWithCredentials(ctx context.Context, email, password string) (*models.Identity, error)
	SignUpWithCredentials(ctx context.Context, email, password string) (*models.Identity, error)
	SignOut(ctx context.Context) error
	SendVerificationEmail(ctx context.Context, id *models.Identity) error
	SendPasswordReset(ctx context.Context, email string) error
	OnSessionChange(fn func(*models.Identity)) (Unsubscribe, error)
}

var (
	ErrNoSession              = errors.New("no active session")
	ErrInteractiveUnavailable = errors.New("interactive sign-in is not configured")
)

// Error is a failure reported by the identity provider.
type Error struct {
	Code    string
	Message string
}

// NewError builds an Error whose message is derived from code.
func NewError(code string) *Error {
	return &Error{Code: code, Message: Humanize(code)}
}

func (e *Error) Error() string {
	return e.Message
}

var credentialCodes = map[string]bool{
	"INVALID_LOGIN_CREDENTIALS": true,
	"INVALID_PASSWORD":          true,
	"EMAIL_NOT_FOUND":           true,
	"INVALID_EMAIL":             true,
	"MISSING_PASSWORD":          true,
}

// IsCredentialError reports whether err means the email/password pair was rejected.
func IsCredentialError(err error) bool {
	var e *Error
	return errors.As(err, &e) && credentialCodes[e.Code]
}

// Humanize turns a provider message such as "WEAK_PASSWORD : Password should be at least 6
// characters" or "EMAIL_EXISTS" into a short sentence.
func Humanize(message string) string {
	if _, detail, ok := strings.Cut(message, " : "); ok {
		return strings.TrimSpace(detail)
	}

	words := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(message), "_", " "))
	if words == "" {
		return "Authentication failed"
	}
	r := []rune(words)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// errorCode strips the detail from "CODE : detail".
func errorCode(message string) string {
	code, _, _ := strings.Cut(message, " : ")
	return strings.TrimSpace(code)
}
