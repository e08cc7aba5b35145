package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/anitrack/internal/session"
	"golang.org/x/oauth2"
)

// SessionRepository persists the current login credential. At most one row exists.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// SaveSession replaces the stored credential with cred.
func (r *SessionRepository) SaveSession(ctx context.Context, cred session.Credential) error {
	if cred.SessionID == "" || cred.Token == nil {
		return fmt.Errorf("cannot save incomplete session")
	}

	var expiry sql.NullTime
	if !cred.Token.Expiry.IsZero() {
		expiry = sql.NullTime{Time: cred.Token.Expiry, Valid: true}
	}

	tokenType := cred.Token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id != ?", cred.SessionID); err != nil {
			return fmt.Errorf("failed to clear previous sessions: %w", err)
		}

		query := `
			INSERT INTO sessions (id, username, access_token, refresh_token, token_type, expiry, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				access_token = excluded.access_token,
				refresh_token = excluded.refresh_token,
				token_type = excluded.token_type,
				expiry = excluded.expiry,
				updated_at = excluded.updated_at
		`

		now := time.Now()
		_, err := tx.ExecContext(ctx, query,
			cred.SessionID, cred.Username, cred.Token.AccessToken, cred.Token.RefreshToken,
			tokenType, expiry, now, now)
		if err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

// LoadSession returns the stored credential, or nil when none is saved.
func (r *SessionRepository) LoadSession(ctx context.Context) (*session.Credential, error) {
	query := `
		SELECT id, username, access_token, refresh_token, token_type, expiry
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT 1
	`

	var (
		id, username, access, refresh, tokenType string
		expiry                                   sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query).Scan(&id, &username, &access, &refresh, &tokenType, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: tokenType}
	if expiry.Valid {
		tok.Expiry = expiry.Time
	}

	return &session.Credential{SessionID: id, Username: username, Token: tok}, nil
}

// ClearSession deletes the stored credential.
func (r *SessionRepository) ClearSession(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
