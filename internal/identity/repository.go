package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/naira-wallet/wallet_service/internal/ledger"
)

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when another user already holds the email.
	ErrEmailTaken = errors.New("email already registered")
)

// Repository persists users. A user and their wallet are created together.
type Repository interface {
	CreateWithWallet(ctx context.Context, user User, wallet ledger.Wallet) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	UpdateProfile(ctx context.Context, id, firstName, lastName string) error
}

const userColumns = `id, email, first_name, last_name, is_active, created_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateWithWallet inserts the user and the wallet in one transaction.
func (r *PostgresRepository) CreateWithWallet(ctx context.Context, user User, wallet ledger.Wallet) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	_, err = tx.Exec(ctx, `INSERT INTO users (id, email, first_name, last_name, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, user.ID, user.Email, user.FirstName, user.LastName, user.Active, user.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	if err := ledger.InsertWalletTx(ctx, tx, wallet); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByEmail fetches a user by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// UpdateProfile refreshes the user's names.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id, firstName, lastName string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET first_name = $2, last_name = $3 WHERE id = $1`, id, firstName, lastName)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.Active, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}
