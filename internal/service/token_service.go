package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sinaptika/tryout-backend/internal/config"
	"github.com/sinaptika/tryout-backend/internal/model"
)

// TokenIssuer issues and verifies part-scoped anti-replay tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, id model.Identity, sessionID uuid.UUID, part int) (*model.PartToken, error)
	// Validate returns the token only when it exists, is unexpired, and is
	// scoped to exactly (identity, part). Any mismatch is ErrInvalidSession.
	Validate(ctx context.Context, tokenID string, id model.Identity, part int) (*model.PartToken, error)
	// Lookup is Validate without the part check, for requests that carry no
	// part number (violation reports).
	Lookup(ctx context.Context, tokenID string, id model.Identity) (*model.PartToken, error)
	Revoke(ctx context.Context, tokenID string) error
}

// TokenService stores part tokens as TTL-bounded Redis entries. The token id
// doubles as the opaque exam session id on the wire.
type TokenService struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTokenService creates a TokenService with the configured token TTL.
func NewTokenService(rdb *redis.Client, ttl time.Duration) *TokenService {
	return &TokenService{rdb: rdb, ttl: ttl}
}

func (s *TokenService) Issue(ctx context.Context, id model.Identity, sessionID uuid.UUID, part int) (*model.PartToken, error) {
	tok := &model.PartToken{
		ID:           uuid.New(),
		IdentityKind: id.Kind,
		IdentityKey:  id.Key,
		SessionID:    sessionID,
		Part:         part,
		IssuedAt:     time.Now(),
	}

	payload, err := json.Marshal(tok)
	if err != nil {
		return nil, fmt.Errorf("marshal token: %w", err)
	}

	key := config.CacheKey.PartTokenKey(tok.ID.String())
	if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return tok, nil
}

func (s *TokenService) Validate(ctx context.Context, tokenID string, id model.Identity, part int) (*model.PartToken, error) {
	tok, err := s.Lookup(ctx, tokenID, id)
	if err != nil {
		return nil, err
	}
	if tok.Part != part {
		return nil, ErrInvalidSession
	}
	return tok, nil
}

func (s *TokenService) Lookup(ctx context.Context, tokenID string, id model.Identity) (*model.PartToken, error) {
	if _, err := uuid.Parse(tokenID); err != nil {
		return nil, ErrInvalidSession
	}

	raw, err := s.rdb.Get(ctx, config.CacheKey.PartTokenKey(tokenID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("get token: %w", err)
	}

	tok := &model.PartToken{}
	if err := json.Unmarshal([]byte(raw), tok); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}

	if tok.IdentityKind != id.Kind || tok.IdentityKey != id.Key {
		return nil, ErrInvalidSession
	}
	return tok, nil
}

func (s *TokenService) Revoke(ctx context.Context, tokenID string) error {
	return s.rdb.Del(ctx, config.CacheKey.PartTokenKey(tokenID)).Err()
}
