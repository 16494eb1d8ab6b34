package apikey

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/naira-wallet/wallet_service/internal/authz"
)

var (
	// ErrNotFound is returned when a key does not exist for the owner.
	ErrNotFound = errors.New("api key not found")
	// ErrLimitReached is returned when the owner already holds MaxActiveKeys usable keys.
	ErrLimitReached = errors.New("active api key limit reached")
	// ErrNotExpired is returned when rolling over a key that is still valid.
	ErrNotExpired = errors.New("api key is not expired")
)

// Repository persists API key records. Create and Rotate check the usable key
// count and write in one atomic unit per owner.
type Repository interface {
	CreateWithinLimit(ctx context.Context, key Key, limit int, now time.Time) error
	Rotate(ctx context.Context, ownerID, expiredID string, replacement Key, limit int, now time.Time) error
	Get(ctx context.Context, id, ownerID string) (Key, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Key, error)
	Deactivate(ctx context.Context, id, ownerID string) (Key, error)
	ListActive(ctx context.Context) ([]Key, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

const keyColumns = `id, owner_id, name, secret_hash, permissions, is_active, expires_at, last_used_at, created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed key repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// lockOwner serializes limit checks per owner for the rest of tx.
func lockOwner(ctx context.Context, tx pgx.Tx, ownerID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ownerID)
	return err
}

func countUsable(ctx context.Context, tx pgx.Tx, ownerID string, now time.Time) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM api_keys WHERE owner_id = $1 AND is_active AND expires_at > $2`, ownerID, now).Scan(&n)
	return n, err
}

func insertKey(ctx context.Context, tx pgx.Tx, key Key) error {
	_, err := tx.Exec(ctx, `INSERT INTO api_keys (id, owner_id, name, secret_hash, permissions, is_active, expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		key.ID, key.OwnerID, key.Name, key.SecretHash, permissionStrings(key.Permissions), key.Active, key.ExpiresAt, key.CreatedAt, key.UpdatedAt)
	return err
}

// CreateWithinLimit inserts key unless the owner is at the limit.
func (r *PostgresRepository) CreateWithinLimit(ctx context.Context, key Key, limit int, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := lockOwner(ctx, tx, key.OwnerID); err != nil {
		return err
	}
	n, err := countUsable(ctx, tx, key.OwnerID, now)
	if err != nil {
		return err
	}
	if n >= limit {
		return ErrLimitReached
	}
	if err := insertKey(ctx, tx, key); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Rotate deactivates an expired key and inserts its replacement together.
func (r *PostgresRepository) Rotate(ctx context.Context, ownerID, expiredID string, replacement Key, limit int, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := lockOwner(ctx, tx, ownerID); err != nil {
		return err
	}
	old, err := scanKey(tx.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE id = $1 AND owner_id = $2 FOR UPDATE`, expiredID, ownerID))
	if err != nil {
		return err
	}
	if !old.IsExpired(now) {
		return ErrNotExpired
	}
	n, err := countUsable(ctx, tx, ownerID, now)
	if err != nil {
		return err
	}
	if n >= limit {
		return ErrLimitReached
	}
	if _, err := tx.Exec(ctx, `UPDATE api_keys SET is_active = false, updated_at = $2 WHERE id = $1`, expiredID, now); err != nil {
		return err
	}
	if err := insertKey(ctx, tx, replacement); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Get fetches one key owned by ownerID.
func (r *PostgresRepository) Get(ctx context.Context, id, ownerID string) (Key, error) {
	return scanKey(r.db.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE id = $1 AND owner_id = $2`, id, ownerID))
}

// ListByOwner returns all of the owner's keys, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]Key, error) {
	return r.list(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

// ListActive returns every key still flagged active, for validation scans.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]Key, error) {
	return r.list(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE is_active`)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Key, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]Key, 0)
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Deactivate soft-revokes a key.
func (r *PostgresRepository) Deactivate(ctx context.Context, id, ownerID string) (Key, error) {
	return scanKey(r.db.QueryRow(ctx, `UPDATE api_keys SET is_active = false, updated_at = now()
        WHERE id = $1 AND owner_id = $2 RETURNING `+keyColumns, id, ownerID))
}

// TouchLastUsed records a successful validation.
func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}

func scanKey(row pgx.Row) (Key, error) {
	var (
		key   Key
		perms []string
	)
	if err := row.Scan(&key.ID, &key.OwnerID, &key.Name, &key.SecretHash, &perms, &key.Active,
		&key.ExpiresAt, &key.LastUsedAt, &key.CreatedAt, &key.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Key{}, ErrNotFound
		}
		return Key{}, err
	}
	key.Permissions = make([]authz.Permission, 0, len(perms))
	for _, p := range perms {
		key.Permissions = append(key.Permissions, authz.Permission(p))
	}
	return key, nil
}

func permissionStrings(perms []authz.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
