package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/albumrank/internal/apperror"
	"github.com/sakif/albumrank/internal/model"
	"github.com/sakif/albumrank/internal/repository"
)

// TokenSealer encrypts tokens before they touch disk. *auth.Sealer
// satisfies it.
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// SessionDB is the sessions table. Access and refresh tokens are sealed on
// write and opened on read, so a copy of the database file alone does not
// leak credentials.
type SessionDB struct {
	conn   *sql.DB
	sealer TokenSealer
}

var _ repository.SessionRepository = (*SessionDB)(nil)

// Sessions returns the session store backed by db.
func (db *DB) Sessions(sealer TokenSealer) *SessionDB {
	return &SessionDB{conn: db.conn, sealer: sealer}
}

// Create inserts a new session and fills in its ID and timestamps.
func (s *SessionDB) Create(ctx context.Context, session *model.Session) error {
	access, refresh, err := s.seal(session.Tokens)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	session.ID = xid.New().String()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, access_token, refresh_token, expires_at, username, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		access,
		refresh,
		session.Tokens.ExpiresAt.UTC(),
		session.Username,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return apperror.Database("creating session", fmt.Errorf("sqlite: inserting session: %w", err))
	}
	return nil
}

// Get loads a session and opens its tokens.
// Returns apperror.ErrNotFound if no session exists with that ID.
func (s *SessionDB) Get(ctx context.Context, id string) (*model.Session, error) {
	var (
		sess            model.Session
		access, refresh string
	)

	err := s.conn.QueryRowContext(ctx,
		`SELECT id, access_token, refresh_token, expires_at, username, created_at, updated_at
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(
		&sess.ID,
		&access,
		&refresh,
		&sess.Tokens.ExpiresAt,
		&sess.Username,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", id)
		}
		return nil, apperror.Database("loading session", fmt.Errorf("sqlite: getting session %s: %w", id, err))
	}

	if sess.Tokens.AccessToken, err = s.sealer.Open(access); err != nil {
		return nil, apperror.Database("loading session", fmt.Errorf("sqlite: opening access token of %s: %w", id, err))
	}
	if sess.Tokens.RefreshToken, err = s.sealer.Open(refresh); err != nil {
		return nil, apperror.Database("loading session", fmt.Errorf("sqlite: opening refresh token of %s: %w", id, err))
	}

	return &sess, nil
}

// UpdateTokens replaces the token triple after a refresh.
func (s *SessionDB) UpdateTokens(ctx context.Context, id string, tokens model.TokenSet) error {
	access, refresh, err := s.seal(tokens)
	if err != nil {
		return err
	}

	res, err := s.conn.ExecContext(ctx,
		`UPDATE sessions SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		access,
		refresh,
		tokens.ExpiresAt.UTC(),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return apperror.Database("updating session", fmt.Errorf("sqlite: updating tokens of %s: %w", id, err))
	}
	return requireRow(res, id)
}

// SetUsername records the Spotify user id once it has been resolved.
func (s *SessionDB) SetUsername(ctx context.Context, id, username string) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE sessions SET username = ?, updated_at = ? WHERE id = ?`,
		username,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return apperror.Database("updating session", fmt.Errorf("sqlite: setting username of %s: %w", id, err))
	}
	return requireRow(res, id)
}

// Delete removes a session. Deleting an unknown id is not an error, so
// logging out twice is harmless.
func (s *SessionDB) Delete(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return apperror.Database("deleting session", fmt.Errorf("sqlite: deleting session %s: %w", id, err))
	}
	return nil
}

// DeleteIdleSince removes every session whose updated_at is before cutoff.
func (s *SessionDB) DeleteIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE updated_at < ?`, cutoff.UTC(),
	)
	if err != nil {
		return 0, apperror.Database("purging sessions", fmt.Errorf("sqlite: purging sessions: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.Database("purging sessions", fmt.Errorf("sqlite: counting purged sessions: %w", err))
	}
	return n, nil
}

func (s *SessionDB) seal(tokens model.TokenSet) (access, refresh string, err error) {
	if access, err = s.sealer.Seal(tokens.AccessToken); err != nil {
		return "", "", apperror.Database("storing session", fmt.Errorf("sqlite: sealing access token: %w", err))
	}
	if refresh, err = s.sealer.Seal(tokens.RefreshToken); err != nil {
		return "", "", apperror.Database("storing session", fmt.Errorf("sqlite: sealing refresh token: %w", err))
	}
	return access, refresh, nil
}

// requireRow turns "0 rows affected" into ErrNotFound.
func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Database("updating session", fmt.Errorf("sqlite: checking rows affected: %w", err))
	}
	if n == 0 {
		return apperror.NotFound("session", id)
	}
	return nil
}
