package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"warden/internal/auth/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// PostgresStore persists users and links in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const userColumns = `id, username, email, email_verified, active, is_admin, image, created_at, updated_at`

const insertUserSQL = `INSERT INTO users (` + userColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const insertAccountSQL = `INSERT INTO oauth_accounts (id, user_id, provider, provider_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const updateUserSQL = `UPDATE users
SET username = $2, email = $3, email_verified = $4, active = $5, is_admin = $6, image = $7, updated_at = $8
WHERE id = $1`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func insertUser(ctx context.Context, ex execer, u *models.User) error {
	_, err := ex.ExecContext(ctx, insertUserSQL,
		uuid.UUID(u.ID), u.Username, u.Email, u.EmailVerified, u.Active, u.IsAdmin,
		nullString(u.Image), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "insert user")
	}
	return nil
}

func insertAccount(ctx context.Context, ex execer, a *models.OAuthAccount) error {
	_, err := ex.ExecContext(ctx, insertAccountSQL,
		uuid.UUID(a.ID), uuid.UUID(a.UserID), string(a.Provider), a.ProviderID, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "insert oauth account")
	}
	return nil
}

func updateUser(ctx context.Context, ex execer, u *models.User) error {
	res, err := ex.ExecContext(ctx, updateUserSQL,
		uuid.UUID(u.ID), u.Username, u.Email, u.EmailVerified, u.Active, u.IsAdmin,
		nullString(u.Image), u.UpdatedAt)
	if err != nil {
		return mapWriteError(err, "update user")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows: %w", err)
	}
	if rows == 0 {
		return errUserNotFound()
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, u *models.User) error {
	return insertUser(ctx, s.db, u)
}

func (s *PostgresStore) Update(ctx context.Context, u *models.User) error {
	return updateUser(ctx, s.db, u)
}

// Delete removes the user. Links and codes go with it by cascade.
func (s *PostgresStore) Delete(ctx context.Context, userID id.UserID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows: %w", err)
	}
	if rows == 0 {
		return errUserNotFound()
	}
	return nil
}

func (s *PostgresStore) withTx(ctx context.Context, name string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", name, err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is a no-op
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	return nil
}

// CreateWithAccount inserts a new user and its first link in one transaction.
func (s *PostgresStore) CreateWithAccount(ctx context.Context, u *models.User, a *models.OAuthAccount) error {
	return s.withTx(ctx, "create user with account", func(tx *sql.Tx) error {
		if err := insertUser(ctx, tx, u); err != nil {
			return err
		}
		return insertAccount(ctx, tx, a)
	})
}

// LinkAccount inserts a link and saves u in one transaction.
func (s *PostgresStore) LinkAccount(ctx context.Context, u *models.User, a *models.OAuthAccount) error {
	return s.withTx(ctx, "link account", func(tx *sql.Tx) error {
		if err := insertAccount(ctx, tx, a); err != nil {
			return err
		}
		return updateUser(ctx, tx, u)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		uid   uuid.UUID
		image sql.NullString
		u     models.User
	)
	if err := row.Scan(&uid, &u.Username, &u.Email, &u.EmailVerified, &u.Active, &u.IsAdmin,
		&image, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.ID = id.UserID(uid)
	u.Image = image.String
	return &u, nil
}

func (s *PostgresStore) findUser(ctx context.Context, op, where string, arg any) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errUserNotFound()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findUser(ctx, "find user by id", `id = $1`, uuid.UUID(userID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "find user by email", `lower(email) = lower($1)`, email)
}

func (s *PostgresStore) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	return s.findUser(ctx, "find user by identifier", `username = $1 OR lower(email) = lower($1) LIMIT 1`, identifier)
}

const accountColumns = `id, user_id, provider, provider_id, created_at, updated_at`

func scanAccount(row rowScanner) (*models.OAuthAccount, error) {
	var (
		accID, userID uuid.UUID
		provider      string
		a             models.OAuthAccount
	)
	if err := row.Scan(&accID, &userID, &provider, &a.ProviderID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ID = id.OAuthAccountID(accID)
	a.UserID = id.UserID(userID)
	a.Provider = id.Provider(provider)
	return &a, nil
}

func (s *PostgresStore) FindAccount(ctx context.Context, provider id.Provider, providerID string) (*models.OAuthAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM oauth_accounts WHERE provider = $1 AND provider_id = $2`,
		string(provider), providerID)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errAccountNotFound()
		}
		return nil, fmt.Errorf("find oauth account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) TouchAccount(ctx context.Context, accountID id.OAuthAccountID, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE oauth_accounts SET updated_at = $2 WHERE id = $1`, uuid.UUID(accountID), now)
	if err != nil {
		return fmt.Errorf("touch oauth account: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errAccountNotFound()
	}
	return nil
}

func (s *PostgresStore) ListAccountsByUser(ctx context.Context, userID id.UserID) ([]*models.OAuthAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM oauth_accounts WHERE user_id = $1 ORDER BY created_at`, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list oauth accounts: %w", err)
	}
	defer rows.Close()

	var out []*models.OAuthAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan oauth account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate oauth accounts: %w", err)
	}
	return out, nil
}

// filterClause renders f as a WHERE clause over alias u with positional args.
func filterClause(f models.UserFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Active != nil {
		args = append(args, *f.Active)
		conds = append(conds, "u.active = $"+strconv.Itoa(len(args)))
	}
	switch f.Provider {
	case "":
	case id.ProviderFilterPasswordless:
		conds = append(conds, "NOT EXISTS (SELECT 1 FROM oauth_accounts oa WHERE oa.user_id = u.id)")
	default:
		args = append(args, f.Provider)
		conds = append(conds, "EXISTS (SELECT 1 FROM oauth_accounts oa WHERE oa.user_id = u.id AND oa.provider = $"+strconv.Itoa(len(args))+")")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List pages users newest first. Links come back in the same query through
// a LEFT JOIN on the paged subquery.
func (s *PostgresStore) List(ctx context.Context, f models.UserFilter) ([]models.UserWithAccounts, int, error) {
	where, args := filterClause(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users u`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	if total == 0 || f.Offset() >= total {
		return []models.UserWithAccounts{}, total, nil
	}

	pageArgs := append(args, f.Limit, f.Offset())
	limitPos := strconv.Itoa(len(pageArgs) - 1)
	offsetPos := strconv.Itoa(len(pageArgs))
	query := `SELECT p.id, p.username, p.email, p.email_verified, p.active, p.is_admin, p.image, p.created_at, p.updated_at,
       a.id, a.provider, a.provider_id, a.created_at, a.updated_at
FROM (SELECT ` + userColumns + ` FROM users u` + where + `
      ORDER BY u.created_at DESC, u.id LIMIT $` + limitPos + ` OFFSET $` + offsetPos + `) p
LEFT JOIN oauth_accounts a ON a.user_id = p.id
ORDER BY p.created_at DESC, p.id, a.created_at`

	rows, err := s.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var (
		page  []models.UserWithAccounts
		index = make(map[id.UserID]int)
	)
	for rows.Next() {
		var (
			uid                    uuid.UUID
			image                  sql.NullString
			u                      models.User
			accID                  uuid.NullUUID
			provider, providerID   sql.NullString
			accCreated, accUpdated sql.NullTime
		)
		if err := rows.Scan(&uid, &u.Username, &u.Email, &u.EmailVerified, &u.Active, &u.IsAdmin,
			&image, &u.CreatedAt, &u.UpdatedAt,
			&accID, &provider, &providerID, &accCreated, &accUpdated); err != nil {
			return nil, 0, fmt.Errorf("scan user row: %w", err)
		}
		u.ID = id.UserID(uid)
		u.Image = image.String

		pos, seen := index[u.ID]
		if !seen {
			pos = len(page)
			index[u.ID] = pos
			page = append(page, models.UserWithAccounts{User: &u, Accounts: []*models.OAuthAccount{}})
		}
		if accID.Valid {
			page[pos].Accounts = append(page[pos].Accounts, &models.OAuthAccount{
				ID:         id.OAuthAccountID(accID.UUID),
				UserID:     u.ID,
				Provider:   id.Provider(provider.String),
				ProviderID: providerID.String,
				CreatedAt:  accCreated.Time,
				UpdatedAt:  accUpdated.Time,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return page, total, nil
}

func (s *PostgresStore) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]id.UserID, error) {
	rows, err := s.db.QueryContext(ctx, `DELETE FROM users u
WHERE u.email_verified = FALSE AND u.created_at < $1
  AND NOT EXISTS (SELECT 1 FROM oauth_accounts oa WHERE oa.user_id = u.id)
RETURNING u.id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete unverified users: %w", err)
	}
	defer rows.Close()

	var deleted []id.UserID
	for rows.Next() {
		var uid uuid.UUID
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan deleted user id: %w", err)
		}
		deleted = append(deleted, id.UserID(uid))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deleted users: %w", err)
	}
	return deleted, nil
}

func (s *PostgresStore) DeleteStaleAccounts(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM oauth_accounts oa
USING users u
WHERE oa.user_id = u.id AND u.active = FALSE AND oa.updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale oauth accounts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale oauth accounts rows: %w", err)
	}
	return n, nil
}

// mapWriteError turns unique violations into the package's duplicate errors
// by constraint name.
func mapWriteError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "users_username_key":
			return ErrUsernameTaken
		case "users_email_key":
			return ErrEmailTaken
		case "oauth_accounts_provider_key":
			return ErrIdentityLinked
		case "oauth_accounts_user_provider_key":
			return ErrProviderAlreadyLinked
		default:
			return fmt.Errorf("%s: %w", op, sentinel.ErrDuplicate)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
