package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/moviememo/internal/identity"
	"github.com/desertthunder/moviememo/internal/shared"
)

// SessionRepository persists the signed-in identity session. At most one row is stored.
type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ identity.Persistence = (*SessionRepository)(nil)

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

// Load returns the stored session, or nil when there is none.
func (r *SessionRepository) Load(ctx context.Context) (*identity.Credentials, error) {
	query := `
		SELECT uid, email, display_name, photo_url, email_verified, provider, id_token, refresh_token, expires_at
		FROM identity_sessions
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var c identity.Credentials
	err := r.db.QueryRowContext(ctx, query).Scan(
		&c.Identity.UID,
		&c.Identity.Email,
		&c.Identity.DisplayName,
		&c.Identity.PhotoURL,
		&c.Identity.EmailVerified,
		&c.Provider,
		&c.IDToken,
		&c.RefreshToken,
		&c.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return &c, nil
}

// Save replaces any stored session with c.
func (r *SessionRepository) Save(ctx context.Context, c *identity.Credentials) error {
	if c == nil || c.Identity.UID == "" {
		return fmt.Errorf("%w: session has no uid", shared.ErrInvalidInput)
	}
	provider := c.Provider
	if provider == "" {
		provider = identity.ProviderPassword
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var createdAt time.Time
	err = tx.QueryRowContext(ctx, "SELECT created_at FROM identity_sessions WHERE uid = ?", c.Identity.UID).Scan(&createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		createdAt = r.now()
	case err != nil:
		return fmt.Errorf("failed to query session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM identity_sessions"); err != nil {
		return fmt.Errorf("failed to replace session: %w", err)
	}

	query := `
		INSERT INTO identity_sessions (
			id, uid, email, display_name, photo_url, email_verified, provider,
			id_token, refresh_token, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		shared.GenerateID(),
		c.Identity.UID,
		c.Identity.Email,
		c.Identity.DisplayName,
		c.Identity.PhotoURL,
		c.Identity.EmailVerified,
		provider,
		c.IDToken,
		c.RefreshToken,
		c.ExpiresAt.UTC(),
		createdAt.UTC(),
		r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Clear deletes the stored session.
func (r *SessionRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM identity_sessions"); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SignedInSince reports when the stored session for uid was first saved.
func (r *SessionRepository) SignedInSince(ctx context.Context, uid string) (time.Time, bool, error) {
	var createdAt time.Time
	err := r.db.QueryRowContext(ctx, "SELECT created_at FROM identity_sessions WHERE uid = ?", uid).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query session: %w", err)
	}
	return createdAt, true, nil
}
