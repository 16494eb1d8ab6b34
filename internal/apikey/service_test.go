package apikey

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/authz"
	"github.com/naira-wallet/wallet_service/internal/logging"
)

var testParams = Params{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestService(t *testing.T) (*Service, *MemoryRepository, *clock) {
	t.Helper()
	repo := NewMemoryRepository()
	svc := NewService(repo, NewHasher(testParams), logging.Discard())
	clk := &clock{t: time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)}
	svc.now = clk.now
	return svc, repo, clk
}

func createInput(name string) CreateInput {
	return CreateInput{Name: name, Permissions: []string{"read", "transfer"}, Expiry: "1D"}
}

func TestCreateKeyReturnsPlaintextOnce(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.NewString()

	out, err := svc.CreateKey(ctx, owner, createInput("ci"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(out.APIKey, SecretPrefix) || len(out.APIKey) != len(SecretPrefix)+64 {
		t.Fatalf("unexpected key shape %q", out.APIKey)
	}

	stored, err := repo.Get(ctx, out.ID, owner)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.Contains(stored.SecretHash, out.APIKey) || !strings.HasPrefix(stored.SecretHash, "$argon2id$") {
		t.Fatalf("stored hash leaks or has wrong form: %q", stored.SecretHash)
	}

	views, err := svc.ListKeys(ctx, owner)
	if err != nil || len(views) != 1 {
		t.Fatalf("list: %v %d", err, len(views))
	}
	if views[0].Expired {
		t.Fatal("fresh key reported expired")
	}
}

func TestCreateKeyValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	cases := []CreateInput{
		{Name: "", Permissions: []string{"read"}, Expiry: "1H"},
		{Name: strings.Repeat("x", 101), Permissions: []string{"read"}, Expiry: "1H"},
		{Name: "k", Permissions: nil, Expiry: "1H"},
		{Name: "k", Permissions: []string{"admin"}, Expiry: "1H"},
		{Name: "k", Permissions: []string{"read"}, Expiry: "2W"},
	}
	for i, in := range cases {
		if _, err := svc.CreateKey(ctx, "owner", in); !apperr.Is(err, apperr.InvalidArgument) {
			t.Fatalf("case %d: expected invalid argument, got %v", i, err)
		}
	}
}

func TestExpiryCodesUseCalendarUnits(t *testing.T) {
	base := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	want := map[Expiry]time.Time{
		ExpiryHour:  base.Add(time.Hour),
		ExpiryDay:   base.Add(24 * time.Hour),
		ExpiryMonth: base.AddDate(0, 1, 0),
		ExpiryYear:  time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC),
	}
	for code, expected := range want {
		got, ok := code.From(base)
		if !ok || !got.Equal(expected) {
			t.Fatalf("%s: expected %v, got %v", code, expected, got)
		}
	}
}

func TestSixthActiveKeyHitsLimit(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.NewString()

	var first Issued
	for i := 0; i < MaxActiveKeys; i++ {
		out, err := svc.CreateKey(ctx, owner, createInput("k"))
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if i == 0 {
			first = out
		}
	}
	if _, err := svc.CreateKey(ctx, owner, createInput("k6")); !apperr.Is(err, apperr.LimitExceeded) {
		t.Fatalf("expected limit exceeded, got %v", err)
	}

	if _, err := svc.RevokeKey(ctx, owner, first.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.CreateKey(ctx, owner, createInput("k6")); err != nil {
		t.Fatalf("expected create after revoke to succeed, got %v", err)
	}

	if _, err := svc.CreateKey(ctx, uuid.NewString(), createInput("other")); err != nil {
		t.Fatalf("limit must be per owner, got %v", err)
	}
}

func TestExpiredKeysDoNotCountTowardLimit(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()
	owner := uuid.NewString()

	for i := 0; i < MaxActiveKeys; i++ {
		in := createInput("short")
		in.Expiry = "1H"
		if _, err := svc.CreateKey(ctx, owner, in); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	clk.t = clk.t.Add(2 * time.Hour)
	if _, err := svc.CreateKey(ctx, owner, createInput("fresh")); err != nil {
		t.Fatalf("expected expired keys to free the limit, got %v", err)
	}
}

func TestRolloverRequiresExpiredKey(t *testing.T) {
	svc, repo, clk := newTestService(t)
	ctx := context.Background()
	owner := uuid.NewString()

	in := CreateInput{Name: "payments", Permissions: []string{"deposit"}, Expiry: "1H"}
	orig, err := svc.CreateKey(ctx, owner, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.RolloverKey(ctx, owner, RolloverInput{ExpiredKeyID: orig.ID, Expiry: "1M"}); !apperr.Is(err, apperr.InvalidState) {
		t.Fatalf("expected invalid state for live key, got %v", err)
	}
	if _, err := svc.RolloverKey(ctx, uuid.NewString(), RolloverInput{ExpiredKeyID: orig.ID, Expiry: "1M"}); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected not found for foreign owner, got %v", err)
	}

	clk.t = clk.t.Add(90 * time.Minute)
	next, err := svc.RolloverKey(ctx, owner, RolloverInput{ExpiredKeyID: orig.ID, Expiry: "1M"})
	if err != nil {
		t.Fatalf("rollover: %v", err)
	}
	if next.ID == orig.ID || next.APIKey == orig.APIKey {
		t.Fatal("rollover must mint a new key")
	}
	if next.Name != "payments" || len(next.Permissions) != 1 || next.Permissions[0] != authz.Deposit {
		t.Fatalf("rollover did not carry name/permissions: %+v", next)
	}
	old, _ := repo.Get(ctx, orig.ID, owner)
	if old.Active {
		t.Fatal("old key still active after rollover")
	}
}

func TestValidateAcceptsOnlyExactPlaintext(t *testing.T) {
	svc, repo, clk := newTestService(t)
	ctx := context.Background()
	owner := uuid.NewString()

	out, err := svc.CreateKey(ctx, owner, CreateInput{Name: "k", Permissions: []string{"read"}, Expiry: "1H"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	key, err := svc.Validate(ctx, out.APIKey)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if key.OwnerID != owner {
		t.Fatalf("unexpected owner %s", key.OwnerID)
	}
	svc.Drain()
	stored, _ := repo.Get(ctx, out.ID, owner)
	if stored.LastUsedAt == nil {
		t.Fatal("expected last used to be recorded")
	}

	tampered := out.APIKey[:len(out.APIKey)-1] + "0"
	if tampered == out.APIKey {
		tampered = out.APIKey[:len(out.APIKey)-1] + "1"
	}
	for _, candidate := range []string{tampered, "nonsense", strings.TrimPrefix(out.APIKey, SecretPrefix)} {
		if _, err := svc.Validate(ctx, candidate); !apperr.Is(err, apperr.Forbidden) {
			t.Fatalf("expected forbidden for %q, got %v", candidate, err)
		}
	}

	clk.t = clk.t.Add(time.Hour)
	_, err = svc.Validate(ctx, out.APIKey)
	if !apperr.Is(err, apperr.Forbidden) || apperr.MessageOf(err) != "API key is expired" {
		t.Fatalf("expected expired key refusal, got %v", err)
	}

	if _, err := svc.RevokeKey(ctx, owner, out.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.Validate(ctx, out.APIKey); apperr.MessageOf(err) != "Invalid API key" {
		t.Fatalf("revoked key must not match, got %v", err)
	}
}

func TestHasherRejectsMalformedHash(t *testing.T) {
	h := NewHasher(testParams)
	if _, err := h.Verify("sk_live_x", "$bcrypt$whatever"); err == nil {
		t.Fatal("expected malformed hash error")
	}
	enc, err := h.Hash("sk_live_abc")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if ok, err := h.Verify("sk_live_abc", enc); err != nil || !ok {
		t.Fatalf("expected verify ok, got %v %v", ok, err)
	}
}
