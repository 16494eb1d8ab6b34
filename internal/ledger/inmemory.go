package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

type inMemoryStore struct {
	mu           sync.RWMutex
	wallets      map[string]Wallet
	byOwner      map[string]string
	byNumber     map[string]string
	transactions map[string]Transaction
	byReference  map[string]string
	order        []string
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests
// and local development. Atomic units are serialized behind a single lock.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets:      make(map[string]Wallet),
		byOwner:      make(map[string]string),
		byNumber:     make(map[string]string),
		transactions: make(map[string]Transaction),
		byReference:  make(map[string]string),
	}
}

func (s *inMemoryStore) CreateWallet(_ context.Context, wallet Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putWallet(wallet)
}

func (s *inMemoryStore) putWallet(wallet Wallet) error {
	if _, exists := s.byNumber[wallet.WalletNumber]; exists {
		return ErrDuplicateWalletNumber
	}
	if wallet.Currency == "" {
		wallet.Currency = DefaultCurrency
	}
	s.wallets[wallet.ID] = wallet
	s.byOwner[wallet.OwnerID] = wallet.ID
	s.byNumber[wallet.WalletNumber] = wallet.ID
	return nil
}

func (s *inMemoryStore) WalletByOwner(_ context.Context, ownerID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletByOwner(ownerID)
}

func (s *inMemoryStore) walletByOwner(ownerID string) (Wallet, error) {
	id, ok := s.byOwner[ownerID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return s.wallets[id], nil
}

func (s *inMemoryStore) WalletByNumber(_ context.Context, number string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletByNumber(number)
}

func (s *inMemoryStore) walletByNumber(number string) (Wallet, error) {
	id, ok := s.byNumber[number]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return s.wallets[id], nil
}

func (s *inMemoryStore) TransactionByReference(_ context.Context, reference string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactionByReference(reference)
}

func (s *inMemoryStore) transactionByReference(reference string) (Transaction, error) {
	id, ok := s.byReference[reference]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return cloneTransaction(s.transactions[id]), nil
}

func (s *inMemoryStore) ListTransactions(_ context.Context, ownerID string, filter Filter) ([]Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Transaction, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		txn := s.transactions[s.order[i]]
		if txn.OwnerID != ownerID {
			continue
		}
		if filter.Type != "" && txn.Type != filter.Type {
			continue
		}
		if filter.Status != "" && txn.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && txn.CreatedAt.Before(filter.Since) {
			continue
		}
		matched = append(matched, txn)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []Transaction{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	page := make([]Transaction, 0, end-filter.Offset)
	for _, txn := range matched[filter.Offset:end] {
		page = append(page, cloneTransaction(txn))
	}
	return page, total, nil
}

func (s *inMemoryStore) LatestPendingDeposit(_ context.Context, ownerID string, since time.Time) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest Transaction
		found  bool
	)
	for _, id := range s.order {
		txn := s.transactions[id]
		if txn.OwnerID != ownerID || txn.Type != TypeDeposit || txn.Status != StatusPending {
			continue
		}
		if txn.CreatedAt.Before(since) {
			continue
		}
		if !found || !txn.CreatedAt.Before(latest.CreatedAt) {
			latest, found = txn, true
		}
	}
	if !found {
		return Transaction{}, ErrNotFound
	}
	return cloneTransaction(latest), nil
}

func (s *inMemoryStore) InsertTransaction(_ context.Context, txn Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertTransaction(txn)
}

func (s *inMemoryStore) insertTransaction(txn Transaction) error {
	if _, exists := s.byReference[txn.Reference]; exists {
		return ErrDuplicateReference
	}
	s.transactions[txn.ID] = cloneTransaction(txn)
	s.byReference[txn.Reference] = txn.ID
	s.order = append(s.order, txn.ID)
	return nil
}

func (s *inMemoryStore) RepointPending(_ context.Context, id, reference string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.transactions[id]
	if !ok {
		return ErrNotFound
	}
	if txn.Status != StatusPending {
		return ErrStatusConflict
	}
	if other, exists := s.byReference[reference]; exists && other != id {
		return ErrDuplicateReference
	}
	delete(s.byReference, txn.Reference)
	txn.Reference = reference
	txn.Amount = amount
	txn.UpdatedAt = time.Now().UTC()
	s.transactions[id] = txn
	s.byReference[reference] = id
	return nil
}

func (s *inMemoryStore) FailPending(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.setStatus(id, StatusPending, StatusFailed)
	return err
}

func (s *inMemoryStore) setStatus(id string, from, to Status) (Transaction, error) {
	txn, ok := s.transactions[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if txn.Status != from {
		return Transaction{}, ErrStatusConflict
	}
	prev := txn
	txn.Status = to
	txn.UpdatedAt = time.Now().UTC()
	s.transactions[id] = txn
	return prev, nil
}

// Atomically holds the write lock for the whole unit and replays the undo log
// in reverse when fn fails.
func (s *inMemoryStore) Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &inMemoryTx{store: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type inMemoryTx struct {
	store *inMemoryStore
	undo  []func()
}

func (t *inMemoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *inMemoryTx) WalletByOwner(_ context.Context, ownerID string) (Wallet, error) {
	return t.store.walletByOwner(ownerID)
}

func (t *inMemoryTx) WalletByNumber(_ context.Context, number string) (Wallet, error) {
	return t.store.walletByNumber(number)
}

func (t *inMemoryTx) LockWallets(_ context.Context, ids ...string) (map[string]Wallet, error) {
	out := make(map[string]Wallet, len(ids))
	for _, id := range ids {
		wallet, ok := t.store.wallets[id]
		if !ok {
			return nil, ErrNotFound
		}
		out[id] = wallet
	}
	return out, nil
}

func (t *inMemoryTx) LockTransaction(_ context.Context, reference string) (Transaction, error) {
	return t.store.transactionByReference(reference)
}

func (t *inMemoryTx) TransferVolume(_ context.Context, ownerID string, from, to time.Time) (int64, error) {
	var total int64
	for _, txn := range t.store.transactions {
		if txn.OwnerID != ownerID || txn.Type != TypeTransfer || txn.Direction != DirectionDebit || txn.Status != StatusSuccess {
			continue
		}
		if txn.CreatedAt.Before(from) || !txn.CreatedAt.Before(to) {
			continue
		}
		total += txn.Amount
	}
	return total, nil
}

func (t *inMemoryTx) AdjustBalance(_ context.Context, walletID string, delta int64) (Wallet, error) {
	wallet, ok := t.store.wallets[walletID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	if wallet.Balance+delta < 0 {
		return Wallet{}, ErrInsufficientFunds
	}
	prev := wallet
	wallet.Balance += delta
	wallet.UpdatedAt = time.Now().UTC()
	t.store.wallets[walletID] = wallet
	t.undo = append(t.undo, func() { t.store.wallets[walletID] = prev })
	return wallet, nil
}

func (t *inMemoryTx) InsertTransaction(_ context.Context, txn Transaction) error {
	if err := t.store.insertTransaction(txn); err != nil {
		return err
	}
	t.undo = append(t.undo, func() {
		s := t.store
		delete(s.transactions, txn.ID)
		delete(s.byReference, txn.Reference)
		for i := len(s.order) - 1; i >= 0; i-- {
			if s.order[i] == txn.ID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (t *inMemoryTx) SetStatus(_ context.Context, id string, from, to Status) error {
	prev, err := t.store.setStatus(id, from, to)
	if err != nil {
		return err
	}
	t.undo = append(t.undo, func() { t.store.transactions[id] = prev })
	return nil
}

func cloneTransaction(txn Transaction) Transaction {
	if txn.Metadata != nil {
		meta := make(map[string]any, len(txn.Metadata))
		for k, v := range txn.Metadata {
			meta[k] = v
		}
		txn.Metadata = meta
	}
	return txn
}
