// Package sqlstore implements store.Store over database/sql for Postgres
// (pgx) and SQLite. Queries are written with ? placeholders and rebound for
// Postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"studynotion/internal/model"
	"studynotion/internal/store"
)

// Repository persists users, sessions and history in a SQL database.
type Repository struct {
	db *store.DB
}

// New wraps an opened (and migrated) database.
func New(db *store.DB) *Repository {
	return &Repository{db: db}
}

var _ store.Store = (*Repository)(nil)

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Client.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// CreateUser inserts a user. The unique index on lower(email) backs the
// service-level existence check against concurrent signups.
func (r *Repository) CreateUser(ctx context.Context, u model.User) error {
	_, err := r.exec(ctx, `
		INSERT INTO users (id, firstname, lastname, email, password_hash, account_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.FirstName, u.LastName, strings.ToLower(u.Email), u.PasswordHash, string(u.AccountType), u.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return store.ErrDuplicateEmail
	}
	return err
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.queryRow(ctx, `
		SELECT id, firstname, lastname, email, password_hash, account_type, created_at
		FROM users WHERE email = ?
	`, strings.ToLower(email))
	return scanUser(row)
}

func (r *Repository) UserByID(ctx context.Context, id string) (model.User, error) {
	row := r.queryRow(ctx, `
		SELECT id, firstname, lastname, email, password_hash, account_type, created_at
		FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

func (r *Repository) UpdateUserName(ctx context.Context, id, firstName, lastName string) (model.User, error) {
	res, err := r.exec(ctx, `UPDATE users SET firstname = ?, lastname = ? WHERE id = ?`, firstName, lastName, id)
	if err != nil {
		return model.User{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.User{}, store.ErrNotFound
	}
	return r.UserByID(ctx, id)
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u           model.User
		accountType string
	)
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &accountType, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, err
	}
	u.AccountType = model.AccountType(accountType)
	return u, nil
}

// CreateSession stores a refresh session.
func (r *Repository) CreateSession(ctx context.Context, s model.Session) error {
	_, err := r.exec(ctx, `
		INSERT INTO sessions (id, user_id, created_at, expires_at, revoked)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.CreatedAt.UTC(), s.ExpiresAt.UTC(), s.Revoked)
	return err
}

func (r *Repository) SessionByID(ctx context.Context, id string) (model.Session, error) {
	row := r.queryRow(ctx, `SELECT id, user_id, created_at, expires_at, revoked FROM sessions WHERE id = ?`, id)
	var s model.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.Revoked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, store.ErrNotFound
		}
		return model.Session{}, err
	}
	return s, nil
}

// RevokeSession marks a session revoked. The update only matches a live
// row, so of two concurrent callers one gets ErrSessionRevoked.
func (r *Repository) RevokeSession(ctx context.Context, id string) error {
	res, err := r.exec(ctx, `UPDATE sessions SET revoked = ? WHERE id = ? AND revoked = ?`, true, id, false)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := r.SessionByID(ctx, id); err != nil {
		return err
	}
	return store.ErrSessionRevoked
}

// AppendHistory writes an entry; the type-specific fields go into the
// payload column.
func (r *Repository) AppendHistory(ctx context.Context, e model.HistoryEntry) error {
	payload, err := e.MarshalPayload()
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = r.exec(ctx, `
		INSERT INTO history_entries (id, user_id, type, created_at, payload)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.UserID, string(e.Type), e.CreatedAt, string(payload))
	return err
}

func (r *Repository) ListHistory(ctx context.Context, userID string) ([]model.HistoryEntry, error) {
	rows, err := r.query(ctx, `
		SELECT id, user_id, type, created_at, payload
		FROM history_entries
		WHERE user_id = ?
		ORDER BY created_at DESC, seq DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		var (
			e       model.HistoryEntry
			typ     string
			payload string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &e.CreatedAt, &payload); err != nil {
			return nil, err
		}
		e.Type = model.EntryType(typ)
		if err := e.UnmarshalPayload([]byte(payload)); err != nil {
			return nil, fmt.Errorf("decode payload of %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return r.db.Client.ExecContext(ctx, r.rebind(q), args...)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return r.db.Client.QueryContext(ctx, r.rebind(q), args...)
}

func (r *Repository) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return r.db.Client.QueryRowContext(ctx, r.rebind(q), args...)
}

// rebind turns ? placeholders into $1..$n for Postgres.
func (r *Repository) rebind(q string) string {
	if r.db.Dialect != store.Postgres {
		return q
	}
	return rebindDollar(q)
}

func rebindDollar(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
