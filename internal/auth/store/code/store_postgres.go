package code

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"warden/internal/auth/models"
	id "warden/pkg/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert replaces the user's code for the purpose, giving it a new id so a
// consume racing with the reissue cannot remove the fresh code.
func (s *PostgresStore) Upsert(ctx context.Context, c *models.OneTimeCode) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO one_time_codes (id, user_id, purpose, code_hash, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, purpose) DO UPDATE
SET id = EXCLUDED.id, code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`,
		uuid.UUID(c.ID), uuid.UUID(c.UserID), string(c.Purpose), c.CodeHash, c.ExpiresAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert one-time code: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, userID id.UserID, purpose models.Purpose) (*models.OneTimeCode, error) {
	var (
		codeID, owner uuid.UUID
		p             string
		c             models.OneTimeCode
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, user_id, purpose, code_hash, expires_at, created_at
FROM one_time_codes WHERE user_id = $1 AND purpose = $2`, uuid.UUID(userID), string(purpose)).
		Scan(&codeID, &owner, &p, &c.CodeHash, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errCodeNotFound()
		}
		return nil, fmt.Errorf("find one-time code: %w", err)
	}
	c.ID = id.CodeID(codeID)
	c.UserID = id.UserID(owner)
	c.Purpose = models.Purpose(p)
	return &c, nil
}

// Consume deletes by id; zero affected rows means someone else got there first.
func (s *PostgresStore) Consume(ctx context.Context, codeID id.CodeID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE id = $1`, uuid.UUID(codeID))
	if err != nil {
		return fmt.Errorf("consume one-time code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume one-time code rows: %w", err)
	}
	if n == 0 {
		return ErrConsumed
	}
	return nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteWhere(ctx, "delete expired codes", `expires_at <= $1`, now)
}

func (s *PostgresStore) DeleteByUser(ctx context.Context, userID id.UserID) (int64, error) {
	return s.deleteWhere(ctx, "delete user codes", `user_id = $1`, uuid.UUID(userID))
}

func (s *PostgresStore) deleteWhere(ctx context.Context, op, where string, arg any) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE `+where, arg)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows: %w", op, err)
	}
	return n, nil
}
