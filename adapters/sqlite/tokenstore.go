package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/glowdesk/aimeter/ports"
)

// TokenStore implements ports.TokenStore using SQLite.
type TokenStore struct {
	db *DB
}

// NewTokenStore creates a new SQLite token store.
func NewTokenStore(db *DB) *TokenStore {
	return &TokenStore{db: db}
}

// Create stores a new token.
func (s *TokenStore) Create(ctx context.Context, t ports.Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_tokens (id, prefix, secret_hash, user_id, name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.Prefix, t.SecretHash, nullString(t.UserID), t.Name, t.CreatedAt.UTC())
	return err
}

// GetByPrefix retrieves a token by its public prefix.
func (s *TokenStore) GetByPrefix(ctx context.Context, prefix string) (ports.Token, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, prefix, secret_hash, user_id, name, created_at, revoked_at
		FROM api_tokens
		WHERE prefix = ?
	`, prefix)

	t, err := scanToken(row)
	if err == sql.ErrNoRows {
		return ports.Token{}, ports.ErrNotFound
	}
	return t, err
}

// Revoke marks a token as revoked.
func (s *TokenStore) Revoke(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE api_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL
	`, at.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// List returns all tokens.
func (s *TokenStore) List(ctx context.Context) ([]ports.Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prefix, secret_hash, user_id, name, created_at, revoked_at
		FROM api_tokens
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []ports.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(row scanner) (ports.Token, error) {
	var t ports.Token
	var userID, name sql.NullString
	var revokedAt sql.NullTime
	err := row.Scan(&t.ID, &t.Prefix, &t.SecretHash, &userID, &name, &t.CreatedAt, &revokedAt)
	if err != nil {
		return ports.Token{}, err
	}
	t.UserID = userID.String
	t.Name = name.String
	if revokedAt.Valid {
		at := revokedAt.Time
		t.RevokedAt = &at
	}
	return t, nil
}

// Ensure interface compliance.
var _ ports.TokenStore = (*TokenStore)(nil)
