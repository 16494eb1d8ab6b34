package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func seedWallet(t *testing.T, s Store, id, owner, number string, balance int64) Wallet {
	t.Helper()
	now := time.Now().UTC()
	w := Wallet{ID: id, OwnerID: owner, WalletNumber: number, Active: true, CreatedAt: now, UpdatedAt: now}
	if err := s.CreateWallet(context.Background(), w); err != nil {
		t.Fatalf("create wallet %s: %v", id, err)
	}
	SeedBalance(s, id, balance)
	w.Balance = balance
	w.Currency = DefaultCurrency
	return w
}

func TestInMemoryStore_AtomicallyRollsBackOnError(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	seedWallet(t, s, "w-a", "u-a", "4500000000001", 10_000)
	seedWallet(t, s, "w-b", "u-b", "4500000000002", 0)

	boom := errors.New("boom")
	err := s.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.AdjustBalance(ctx, "w-a", -1_500); err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(ctx, "w-b", 1_500); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, Transaction{ID: "t-1", Reference: "TRF_1", OwnerID: "u-a", WalletID: "w-a"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	a, _ := s.WalletByOwner(ctx, "u-a")
	b, _ := s.WalletByOwner(ctx, "u-b")
	if a.Balance != 10_000 || b.Balance != 0 {
		t.Fatalf("balances not restored: a=%d b=%d", a.Balance, b.Balance)
	}
	if _, err := s.TransactionByReference(ctx, "TRF_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rolled back transaction to be gone, got %v", err)
	}
}

func TestInMemoryStore_AdjustBalanceRefusesNegative(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	seedWallet(t, s, "w-a", "u-a", "4500000000001", 500)

	err := s.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.AdjustBalance(ctx, "w-a", -501)
		return err
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestInMemoryStore_ConcurrentUnitsConserveTotal(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	seedWallet(t, s, "w-a", "u-a", "4500000000001", 100_000)
	seedWallet(t, s, "w-b", "u-b", "4500000000002", 100_000)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := "w-a", "w-b"
			if i%2 == 1 {
				from, to = to, from
			}
			err := s.Atomically(ctx, func(ctx context.Context, tx Tx) error {
				if _, err := tx.LockWallets(ctx, from, to); err != nil {
					return err
				}
				if _, err := tx.AdjustBalance(ctx, from, -700); err != nil {
					return err
				}
				_, err := tx.AdjustBalance(ctx, to, 700)
				return err
			})
			if err != nil {
				t.Errorf("unit %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	a, _ := s.WalletByOwner(ctx, "u-a")
	b, _ := s.WalletByOwner(ctx, "u-b")
	if a.Balance+b.Balance != 200_000 {
		t.Fatalf("total not conserved: %d", a.Balance+b.Balance)
	}
}

func TestInMemoryStore_ListTransactionsNewestFirstWithFilters(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		typ := TypeDeposit
		if i%2 == 1 {
			typ = TypeTransfer
		}
		txn := Transaction{
			ID:        fmt.Sprintf("t-%d", i),
			Reference: fmt.Sprintf("REF_%d", i),
			OwnerID:   "u-a",
			Type:      typ,
			Status:    StatusSuccess,
			Amount:    int64(100 * (i + 1)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.InsertTransaction(ctx, txn); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := s.InsertTransaction(ctx, Transaction{ID: "other", Reference: "REF_X", OwnerID: "u-b", CreatedAt: base}); err != nil {
		t.Fatalf("insert other: %v", err)
	}

	page, total, err := s.ListTransactions(ctx, "u-a", Filter{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(page) != 2 {
		t.Fatalf("expected 2 of 5, got %d of %d", len(page), total)
	}
	if page[0].ID != "t-4" || page[1].ID != "t-3" {
		t.Fatalf("unexpected order %s, %s", page[0].ID, page[1].ID)
	}

	deposits, total, err := s.ListTransactions(ctx, "u-a", Filter{Type: TypeDeposit, Limit: 10, Offset: 1})
	if err != nil {
		t.Fatalf("list deposits: %v", err)
	}
	if total != 3 || len(deposits) != 2 {
		t.Fatalf("expected 2 of 3 deposits, got %d of %d", len(deposits), total)
	}
	for _, d := range deposits {
		if d.Type != TypeDeposit {
			t.Fatalf("filter leaked %s", d.Type)
		}
	}
}

func TestInMemoryStore_RepointPendingAndFail(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	now := time.Now().UTC()
	pending := Transaction{ID: "t-1", Reference: "DEP_old", OwnerID: "u-a", Type: TypeDeposit, Status: StatusPending, Amount: 500, CreatedAt: now}
	if err := s.InsertTransaction(ctx, pending); err != nil {
		t.Fatalf("insert: %v", err)
	}

	latest, err := s.LatestPendingDeposit(ctx, "u-a", now.Add(-5*time.Minute))
	if err != nil || latest.ID != "t-1" {
		t.Fatalf("expected pending deposit, got %v %v", latest.ID, err)
	}
	if _, err := s.LatestPendingDeposit(ctx, "u-a", now.Add(time.Minute)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected window to exclude old deposit, got %v", err)
	}

	if err := s.RepointPending(ctx, "t-1", "DEP_new", 900); err != nil {
		t.Fatalf("repoint: %v", err)
	}
	if _, err := s.TransactionByReference(ctx, "DEP_old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old reference should be released, got %v", err)
	}
	got, err := s.TransactionByReference(ctx, "DEP_new")
	if err != nil || got.Amount != 900 {
		t.Fatalf("unexpected repointed record %+v %v", got, err)
	}

	if err := s.FailPending(ctx, "t-1"); err != nil {
		t.Fatalf("fail pending: %v", err)
	}
	if err := s.FailPending(ctx, "t-1"); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected status conflict on second fail, got %v", err)
	}
	if err := s.RepointPending(ctx, "t-1", "DEP_again", 100); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected failed record to refuse repoint, got %v", err)
	}
}

func TestInMemoryStore_TransferVolumeCountsSuccessfulDebits(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := []Transaction{
		{ID: "1", Reference: "A", OwnerID: "u", Type: TypeTransfer, Direction: DirectionDebit, Status: StatusSuccess, Amount: 300, CreatedAt: day.Add(time.Hour)},
		{ID: "2", Reference: "B", OwnerID: "u", Type: TypeTransfer, Direction: DirectionCredit, Status: StatusSuccess, Amount: 900, CreatedAt: day.Add(time.Hour)},
		{ID: "3", Reference: "C", OwnerID: "u", Type: TypeTransfer, Direction: DirectionDebit, Status: StatusSuccess, Amount: 400, CreatedAt: day.Add(-time.Hour)},
		{ID: "4", Reference: "D", OwnerID: "u", Type: TypeDeposit, Direction: DirectionCredit, Status: StatusSuccess, Amount: 5_000, CreatedAt: day.Add(time.Hour)},
		{ID: "5", Reference: "E", OwnerID: "u", Type: TypeTransfer, Direction: DirectionDebit, Status: StatusSuccess, Amount: 200, CreatedAt: day.Add(23 * time.Hour)},
	}
	for _, r := range rows {
		if err := s.InsertTransaction(ctx, r); err != nil {
			t.Fatalf("insert %s: %v", r.ID, err)
		}
	}

	var volume int64
	err := s.Atomically(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		volume, err = tx.TransferVolume(ctx, "u", day, day.AddDate(0, 0, 1))
		return err
	})
	if err != nil {
		t.Fatalf("volume: %v", err)
	}
	if volume != 500 {
		t.Fatalf("expected 500, got %d", volume)
	}
}

func TestInMemoryStore_DuplicateWalletNumber(t *testing.T) {
	s := NewInMemory()
	seedWallet(t, s, "w-a", "u-a", "4500000000001", 0)
	err := s.CreateWallet(context.Background(), Wallet{ID: "w-b", OwnerID: "u-b", WalletNumber: "4500000000001"})
	if !errors.Is(err, ErrDuplicateWalletNumber) {
		t.Fatalf("expected duplicate wallet number, got %v", err)
	}
}

func TestWalletNumberShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		n, err := NewWalletNumber()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !ValidWalletNumber(n) {
			t.Fatalf("invalid wallet number %q", n)
		}
	}
	if ValidWalletNumber("4612345678901") || ValidWalletNumber("45123") {
		t.Fatal("accepted malformed wallet number")
	}
}

func TestReferenceSuffixShared(t *testing.T) {
	suffix := NewReferenceSuffix(time.UnixMilli(1700000000000))
	if !strings.HasPrefix(suffix, "1700000000000_") || len(suffix) != len("1700000000000_")+9 {
		t.Fatalf("unexpected suffix %q", suffix)
	}
	if got := MajorUnits(150_050).String(); got != "1500.5" {
		t.Fatalf("unexpected major units %s", got)
	}
}
