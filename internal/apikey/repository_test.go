package apikey

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/naira-wallet/wallet_service/internal/authz"
	"github.com/naira-wallet/wallet_service/internal/infra"
)

func openPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := infra.NewPostgresPool(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := infra.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func seedOwner(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	owner := uuid.NewString()
	if _, err := pool.Exec(context.Background(), `INSERT INTO users (id, email) VALUES ($1, $2)`, owner, owner+"@test.local"); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return owner
}

func storedKey(owner string, expiresAt, now time.Time) Key {
	return Key{
		ID:          uuid.NewString(),
		OwnerID:     owner,
		Name:        "k",
		SecretHash:  "$argon2id$placeholder",
		Permissions: []authz.Permission{authz.Read},
		Active:      true,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPostgresRepository_ConcurrentCreatesStopAtLimit(t *testing.T) {
	pool := openPostgres(t)
	repo := NewPostgresRepository(pool)
	owner := seedOwner(t, pool)
	now := time.Now().UTC()

	const attempts = MaxActiveKeys + 3
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.CreateWithinLimit(context.Background(), storedKey(owner, now.Add(time.Hour), now), MaxActiveKeys, now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrLimitReached):
				rejected++
			default:
				t.Errorf("create: %v", err)
			}
		}()
	}
	wg.Wait()
	if created != MaxActiveKeys || rejected != attempts-MaxActiveKeys {
		t.Fatalf("expected %d created and %d rejected, got %d and %d", MaxActiveKeys, attempts-MaxActiveKeys, created, rejected)
	}
}

func TestPostgresRepository_RotateOnlyExpired(t *testing.T) {
	pool := openPostgres(t)
	repo := NewPostgresRepository(pool)
	ctx := context.Background()
	owner := seedOwner(t, pool)
	now := time.Now().UTC()

	live := storedKey(owner, now.Add(time.Hour), now)
	if err := repo.CreateWithinLimit(ctx, live, MaxActiveKeys, now); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Rotate(ctx, owner, live.ID, storedKey(owner, now.Add(time.Hour), now), MaxActiveKeys, now); !errors.Is(err, ErrNotExpired) {
		t.Fatalf("expected not expired, got %v", err)
	}

	later := now.Add(2 * time.Hour)
	replacement := storedKey(owner, later.Add(time.Hour), later)
	if err := repo.Rotate(ctx, owner, live.ID, replacement, MaxActiveKeys, later); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	old, err := repo.Get(ctx, live.ID, owner)
	if err != nil || old.Active {
		t.Fatalf("expired key still active: %+v %v", old, err)
	}
	if _, err := repo.Get(ctx, replacement.ID, owner); err != nil {
		t.Fatalf("replacement missing: %v", err)
	}
}
