package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tarla/storefront/internal/session"
)

// SessionStore keeps visitor sessions as JSONB rows.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Load(ctx context.Context, id string) (*session.Session, error) {
	var payload []byte
	sess := &session.Session{ID: id}

	err := s.db.QueryRowContext(ctx,
		`SELECT data, expires_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > NOW()`,
		id).Scan(&payload, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if err := json.Unmarshal(payload, sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.Normalize()

	return sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, data, expires_at, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`,
		sess.ID, payload, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and returns how many
// were removed.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
