package apikey

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/naira-wallet/wallet_service/internal/apperr"
	"github.com/naira-wallet/wallet_service/internal/authz"
)

const (
	maxNameLength = 100
	touchTimeout  = 5 * time.Second
)

// Service issues, rotates, revokes and validates API keys.
type Service struct {
	repo   Repository
	hasher *Hasher
	logger *slog.Logger
	now    func() time.Time

	touches sync.WaitGroup
}

// NewService creates a key service.
func NewService(repo Repository, hasher *Hasher, logger *slog.Logger) *Service {
	return &Service{repo: repo, hasher: hasher, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateInput describes a new key.
type CreateInput struct {
	Name        string
	Permissions []string
	Expiry      string
}

// CreateKey issues a key and returns its plaintext once.
func (s *Service) CreateKey(ctx context.Context, ownerID string, in CreateInput) (Issued, error) {
	const op = "apikey.create"

	name := strings.TrimSpace(in.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return Issued{}, apperr.Invalid(op, "name must be between 1 and 100 characters")
	}
	perms, err := parsePermissions(in.Permissions)
	if err != nil {
		return Issued{}, apperr.Invalid(op, err.Error())
	}
	now := s.now()
	expiresAt, ok := Expiry(in.Expiry).From(now)
	if !ok {
		return Issued{}, apperr.Invalid(op, "Invalid expiry code. Use: 1H, 1D, 1M, 1Y")
	}

	key, secret, err := s.newKey(ownerID, name, perms, expiresAt, now)
	if err != nil {
		return Issued{}, apperr.Internalf(op, err)
	}
	if err := s.repo.CreateWithinLimit(ctx, key, MaxActiveKeys, now); err != nil {
		if errors.Is(err, ErrLimitReached) {
			return Issued{}, apperr.Limit(op, fmt.Sprintf("Maximum of %d active API keys allowed per user", MaxActiveKeys))
		}
		return Issued{}, apperr.Internalf(op, err)
	}
	s.logger.Info("apikey.created", slog.String("owner_id", ownerID), slog.String("key_id", key.ID))
	return issued(key, secret), nil
}

// RolloverInput names the expired key to replace.
type RolloverInput struct {
	ExpiredKeyID string
	Expiry       string
}

// RolloverKey replaces an expired key with a fresh one carrying the same name
// and permissions.
func (s *Service) RolloverKey(ctx context.Context, ownerID string, in RolloverInput) (Issued, error) {
	const op = "apikey.rollover"

	if _, err := uuid.Parse(in.ExpiredKeyID); err != nil {
		return Issued{}, apperr.Invalid(op, "expired_key_id must be a UUID")
	}
	now := s.now()
	expiresAt, ok := Expiry(in.Expiry).From(now)
	if !ok {
		return Issued{}, apperr.Invalid(op, "Invalid expiry code. Use: 1H, 1D, 1M, 1Y")
	}

	old, err := s.repo.Get(ctx, in.ExpiredKeyID, ownerID)
	if err != nil {
		return Issued{}, s.keyErr(op, err)
	}
	key, secret, err := s.newKey(ownerID, old.Name, old.Permissions, expiresAt, now)
	if err != nil {
		return Issued{}, apperr.Internalf(op, err)
	}
	if err := s.repo.Rotate(ctx, ownerID, old.ID, key, MaxActiveKeys, now); err != nil {
		return Issued{}, s.keyErr(op, err)
	}
	s.logger.Info("apikey.rolled_over", slog.String("owner_id", ownerID), slog.String("old_key_id", old.ID), slog.String("key_id", key.ID))
	return issued(key, secret), nil
}

// ListKeys returns the owner's keys newest first, without secrets.
func (s *Service) ListKeys(ctx context.Context, ownerID string) ([]View, error) {
	keys, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internalf("apikey.list", err)
	}
	now := s.now()
	views := make([]View, 0, len(keys))
	for _, k := range keys {
		views = append(views, View{
			ID:          k.ID,
			Name:        k.Name,
			Permissions: k.Permissions,
			Active:      k.Active,
			ExpiresAt:   k.ExpiresAt,
			LastUsedAt:  k.LastUsedAt,
			CreatedAt:   k.CreatedAt,
			Expired:     k.IsExpired(now),
		})
	}
	return views, nil
}

// RevokeKey deactivates one of the owner's keys.
func (s *Service) RevokeKey(ctx context.Context, ownerID, keyID string) (Key, error) {
	const op = "apikey.revoke"
	if _, err := uuid.Parse(keyID); err != nil {
		return Key{}, apperr.Missing(op, "API key")
	}
	key, err := s.repo.Deactivate(ctx, keyID, ownerID)
	if err != nil {
		return Key{}, s.keyErr(op, err)
	}
	s.logger.Info("apikey.revoked", slog.String("owner_id", ownerID), slog.String("key_id", keyID))
	return key, nil
}

// Validate finds the active key matching plaintext. A match that is expired is
// refused as well as no match at all.
func (s *Service) Validate(ctx context.Context, plaintext string) (Key, error) {
	const op = "apikey.validate"
	if !strings.HasPrefix(plaintext, SecretPrefix) {
		return Key{}, apperr.Deny(op, "Invalid API key")
	}
	keys, err := s.repo.ListActive(ctx)
	if err != nil {
		return Key{}, apperr.Internalf(op, err)
	}
	now := s.now()
	for _, k := range keys {
		ok, err := s.hasher.Verify(plaintext, k.SecretHash)
		if err != nil {
			s.logger.Warn("apikey.hash_unreadable", slog.String("key_id", k.ID), slog.String("error", err.Error()))
			continue
		}
		if !ok {
			continue
		}
		if !k.CanBeUsed(now) {
			return Key{}, apperr.Deny(op, "API key is expired")
		}
		s.touch(ctx, k.ID, now)
		return k, nil
	}
	return Key{}, apperr.Deny(op, "Invalid API key")
}

// touch records usage without holding up the caller.
func (s *Service) touch(ctx context.Context, id string, at time.Time) {
	s.touches.Add(1)
	go func() {
		defer s.touches.Done()
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
		defer cancel()
		if err := s.repo.TouchLastUsed(tctx, id, at); err != nil {
			s.logger.Warn("apikey.touch_failed", slog.String("key_id", id), slog.String("error", err.Error()))
		}
	}()
}

// Drain waits for pending last-used updates.
func (s *Service) Drain() {
	s.touches.Wait()
}

func (s *Service) newKey(ownerID, name string, perms []authz.Permission, expiresAt, now time.Time) (Key, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return Key{}, "", err
	}
	secret := SecretPrefix + hex.EncodeToString(raw)
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return Key{}, "", err
	}
	return Key{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		SecretHash:  hash,
		Permissions: append([]authz.Permission(nil), perms...),
		Active:      true,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, secret, nil
}

func (s *Service) keyErr(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.Missing(op, "API key")
	case errors.Is(err, ErrNotExpired):
		return apperr.State(op, "API key is not expired")
	case errors.Is(err, ErrLimitReached):
		return apperr.Limit(op, fmt.Sprintf("Maximum of %d active API keys allowed per user", MaxActiveKeys))
	}
	return apperr.Internalf(op, err)
}

func issued(k Key, secret string) Issued {
	return Issued{
		APIKey:      secret,
		ExpiresAt:   k.ExpiresAt,
		ID:          k.ID,
		Name:        k.Name,
		Permissions: k.Permissions,
		CreatedAt:   k.CreatedAt,
	}
}

func parsePermissions(raw []string) ([]authz.Permission, error) {
	if len(raw) == 0 {
		return nil, errors.New("at least one permission is required")
	}
	seen := make(map[authz.Permission]bool, len(raw))
	perms := make([]authz.Permission, 0, len(raw))
	for _, r := range raw {
		p, ok := authz.ParsePermission(r)
		if !ok {
			return nil, fmt.Errorf("unknown permission %q", r)
		}
		if !seen[p] {
			seen[p] = true
			perms = append(perms, p)
		}
	}
	return perms, nil
}
