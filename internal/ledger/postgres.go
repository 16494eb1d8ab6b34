package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxTxAttempts = 3

const walletColumns = `id, owner_id, wallet_number, balance, currency, is_active, created_at, updated_at`

const transactionColumns = `id, reference, owner_id, wallet_id, type, status, direction, amount,
        sender_wallet_number, recipient_wallet_number, metadata, created_at, updated_at`

// queryer is satisfied by both the pool and an open transaction.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists wallets and transactions in PostgreSQL. Balance
// changes happen under row locks taken in ascending wallet id order.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateWallet(ctx context.Context, wallet Wallet) error {
	return insertWallet(ctx, s.db, wallet)
}

func insertWallet(ctx context.Context, q queryer, wallet Wallet) error {
	if wallet.Currency == "" {
		wallet.Currency = DefaultCurrency
	}
	_, err := q.Exec(ctx, `INSERT INTO wallets (id, owner_id, wallet_number, balance, currency, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		wallet.ID, wallet.OwnerID, wallet.WalletNumber, wallet.Balance, wallet.Currency, wallet.Active, wallet.CreatedAt, wallet.UpdatedAt)
	return translateWriteErr(err)
}

// InsertWalletTx writes a wallet inside a caller-owned transaction so that
// user and wallet creation share one commit.
func InsertWalletTx(ctx context.Context, tx pgx.Tx, wallet Wallet) error {
	return insertWallet(ctx, tx, wallet)
}

func (s *PostgresStore) WalletByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	return walletWhere(ctx, s.db, `owner_id = $1`, ownerID)
}

func (s *PostgresStore) WalletByNumber(ctx context.Context, number string) (Wallet, error) {
	return walletWhere(ctx, s.db, `wallet_number = $1`, number)
}

func walletWhere(ctx context.Context, q queryer, cond string, arg any) (Wallet, error) {
	row := q.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE `+cond, arg)
	return scanWallet(row)
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	if err := row.Scan(&w.ID, &w.OwnerID, &w.WalletNumber, &w.Balance, &w.Currency, &w.Active, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	return w, nil
}

func (s *PostgresStore) TransactionByReference(ctx context.Context, reference string) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reference = $1`, reference)
	return scanTransaction(row)
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t         Transaction
		sender    *string
		recipient *string
	)
	err := row.Scan(&t.ID, &t.Reference, &t.OwnerID, &t.WalletID, &t.Type, &t.Status, &t.Direction, &t.Amount,
		&sender, &recipient, &t.Metadata, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	if sender != nil {
		t.SenderWalletNumber = *sender
	}
	if recipient != nil {
		t.RecipientWalletNumber = *recipient
	}
	return t, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, ownerID string, filter Filter) ([]Transaction, int, error) {
	conds := []string{"owner_id = $1"}
	args := []any{ownerID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, txn)
	}
	return out, total, rows.Err()
}

func (s *PostgresStore) LatestPendingDeposit(ctx context.Context, ownerID string, since time.Time) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE owner_id = $1 AND type = $2 AND status = $3 AND created_at >= $4
        ORDER BY created_at DESC LIMIT 1`, ownerID, TypeDeposit, StatusPending, since)
	return scanTransaction(row)
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, txn Transaction) error {
	return insertTransaction(ctx, s.db, txn)
}

func insertTransaction(ctx context.Context, q queryer, txn Transaction) error {
	_, err := q.Exec(ctx, `INSERT INTO transactions (id, reference, owner_id, wallet_id, type, status, direction, amount,
            sender_wallet_number, recipient_wallet_number, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		txn.ID, txn.Reference, txn.OwnerID, txn.WalletID, txn.Type, txn.Status, txn.Direction, txn.Amount,
		nullIfEmpty(txn.SenderWalletNumber), nullIfEmpty(txn.RecipientWalletNumber), txn.Metadata, txn.CreatedAt, txn.UpdatedAt)
	return translateWriteErr(err)
}

func (s *PostgresStore) RepointPending(ctx context.Context, id, reference string, amount int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE transactions SET reference = $2, amount = $3, updated_at = now()
        WHERE id = $1 AND status = $4`, id, reference, amount, StatusPending)
	if err != nil {
		return translateWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (s *PostgresStore) FailPending(ctx context.Context, id string) error {
	return setStatus(ctx, s.db, id, StatusPending, StatusFailed)
}

func setStatus(ctx context.Context, q queryer, id string, from, to Status) error {
	tag, err := q.Exec(ctx, `UPDATE transactions SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// Atomically runs fn in a read-committed transaction, retrying the whole unit
// on serialization failures and deadlocks.
func (s *PostgresStore) Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !retryable(err) {
			return err
		}
	}
	return err
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &postgresTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func translateWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "wallets_wallet_number_key":
			return ErrDuplicateWalletNumber
		case "transactions_reference_key":
			return ErrDuplicateReference
		}
	}
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) WalletByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	return walletWhere(ctx, t.tx, `owner_id = $1`, ownerID)
}

func (t *postgresTx) WalletByNumber(ctx context.Context, number string) (Wallet, error) {
	return walletWhere(ctx, t.tx, `wallet_number = $1`, number)
}

func (t *postgresTx) LockWallets(ctx context.Context, ids ...string) (map[string]Wallet, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	out := make(map[string]Wallet, len(sorted))
	for _, id := range sorted {
		if _, done := out[id]; done {
			continue
		}
		row := t.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
		wallet, err := scanWallet(row)
		if err != nil {
			return nil, err
		}
		out[id] = wallet
	}
	return out, nil
}

func (t *postgresTx) LockTransaction(ctx context.Context, reference string) (Transaction, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reference = $1 FOR UPDATE`, reference)
	return scanTransaction(row)
}

func (t *postgresTx) TransferVolume(ctx context.Context, ownerID string, from, to time.Time) (int64, error) {
	var total int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM transactions
        WHERE owner_id = $1 AND type = $2 AND direction = $3 AND status = $4
          AND created_at >= $5 AND created_at < $6`,
		ownerID, TypeTransfer, DirectionDebit, StatusSuccess, from, to).Scan(&total)
	return total, err
}

func (t *postgresTx) AdjustBalance(ctx context.Context, walletID string, delta int64) (Wallet, error) {
	row := t.tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = now()
        WHERE id = $1 AND balance + $2 >= 0
        RETURNING `+walletColumns, walletID, delta)
	wallet, err := scanWallet(row)
	if errors.Is(err, ErrNotFound) {
		if _, lookupErr := walletWhere(ctx, t.tx, `id = $1`, walletID); lookupErr != nil {
			return Wallet{}, lookupErr
		}
		return Wallet{}, ErrInsufficientFunds
	}
	return wallet, err
}

func (t *postgresTx) InsertTransaction(ctx context.Context, txn Transaction) error {
	return insertTransaction(ctx, t.tx, txn)
}

func (t *postgresTx) SetStatus(ctx context.Context, id string, from, to Status) error {
	return setStatus(ctx, t.tx, id, from, to)
}
