package sessionstore

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

// RedisStore is the ephemeral Store implementation for walk-up guests. All
// state lives in TTL-bounded cache entries and never touches durable storage;
// a guest's results vanish once the TTL lapses or Archive purges them.
//
// Plain reads and saves are unguarded; UpdateExclusive fences the session
// entry with WATCH so a lost race surfaces as ErrDeadlock and the caller
// retries, mirroring the row-lock semantics of the durable store.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a guest session store with the given entry TTL.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (st *RedisStore) CreateIfAbsent(ctx context.Context, s *model.ExamSession) (*model.ExamSession, bool, error) {
	existing, err := st.LoadActive(ctx, s.Identity())
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	// A terminal session under the same key is simply replaced; its staging
	// was already released and the result entry expires on its own TTL.
	if err := st.Save(ctx, s); err != nil {
		return nil, false, err
	}
	return s, true, nil
}

func (st *RedisStore) LoadActive(ctx context.Context, id model.Identity) (*model.ExamSession, error) {
	s, err := st.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Terminal() {
		return nil, ErrNotFound
	}
	return s, nil
}

func (st *RedisStore) LoadByID(ctx context.Context, id model.Identity, sessionID uuid.UUID) (*model.ExamSession, error) {
	s, err := st.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.ID != sessionID {
		return nil, ErrNotFound
	}
	return s, nil
}

func (st *RedisStore) LoadByCorrelation(ctx context.Context, id model.Identity, correlationID uuid.UUID) (*model.ExamSession, error) {
	owner, err := st.rdb.Get(ctx, config.CacheKey.GuestCorrelationKey(correlationID.String())).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve correlation: %w", err)
	}
	if owner != id.Key {
		return nil, ErrNotFound
	}

	s, err := st.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.CorrelationID != correlationID {
		return nil, ErrNotFound
	}
	return s, nil
}

func (st *RedisStore) Save(ctx context.Context, s *model.ExamSession) error {
	if err := validateStaging(s.Staging); err != nil {
		return err
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := st.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.GuestSessionKey(s.IdentityKey), payload, st.ttl)
	pipe.Set(ctx, config.CacheKey.GuestCorrelationKey(s.CorrelationID.String()), s.IdentityKey, st.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (st *RedisStore) UpdateExclusive(ctx context.Context, id model.Identity, sessionID uuid.UUID, fn func(*model.ExamSession) error) error {
	key := config.CacheKey.GuestSessionKey(id.Key)

	err := st.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return fmt.Errorf("load session: %w", err)
		}

		s := &model.ExamSession{}
		if err := json.Unmarshal([]byte(raw), s); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if s.ID != sessionID {
			return ErrNotFound
		}

		if err := fn(s); err != nil {
			return err
		}
		if err := validateStaging(s.Staging); err != nil {
			return err
		}

		payload, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, st.ttl)
			pipe.Set(ctx, config.CacheKey.GuestCorrelationKey(s.CorrelationID.String()), s.IdentityKey, st.ttl)
			return nil
		})
		return err
	}, key)

	// A concurrent write between WATCH and EXEC aborts the transaction; report
	// it like a lock conflict so the caller's retry loop handles it.
	if errors.Is(err, redis.TxFailedErr) {
		return ErrDeadlock
	}
	return err
}

func (st *RedisStore) SaveAnswers(ctx context.Context, s *model.ExamSession, answers []model.Answer) error {
	payload, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	key := config.CacheKey.GuestAnswersKey(s.IdentityKey, s.ID.String())
	return st.rdb.Set(ctx, key, payload, st.ttl).Err()
}

func (st *RedisStore) AppendViolation(ctx context.Context, v *model.Violation) (int, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal violation: %w", err)
	}

	key := config.CacheKey.GuestViolationsKey(v.IdentityKey, v.SessionID.String())
	pipe := st.rdb.Pipeline()
	lpush := pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, st.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(lpush.Val()), nil
}

func (st *RedisStore) CountViolations(ctx context.Context, id model.Identity, sessionID uuid.UUID) (int, error) {
	key := config.CacheKey.GuestViolationsKey(id.Key, sessionID.String())
	n, err := st.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (st *RedisStore) ListViolations(ctx context.Context, id model.Identity, sessionID uuid.UUID) ([]model.Violation, error) {
	key := config.CacheKey.GuestViolationsKey(id.Key, sessionID.String())
	raw, err := st.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	violations := make([]model.Violation, 0, len(raw))
	for _, item := range raw {
		var v model.Violation
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			return nil, fmt.Errorf("unmarshal violation: %w", err)
		}
		violations = append(violations, v)
	}
	return violations, nil
}

func (st *RedisStore) SnapshotAudit(ctx context.Context, s *model.ExamSession, violations []model.Violation) error {
	snapshot, err := json.Marshal(struct {
		Session    *model.ExamSession `json:"session"`
		Violations []model.Violation  `json:"violations"`
	}{s, violations})
	if err != nil {
		return fmt.Errorf("marshal audit snapshot: %w", err)
	}
	return st.rdb.Set(ctx, config.CacheKey.GuestAuditKey(s.ID.String()), snapshot, st.ttl).Err()
}

// Archive purges every cache entry belonging to the session. Guest results are
// read back once for display and then removed; nothing survives beyond this
// call except the TTL-bounded audit snapshot.
func (st *RedisStore) Archive(ctx context.Context, s *model.ExamSession) error {
	pipe := st.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.GuestSessionKey(s.IdentityKey))
	pipe.Del(ctx, config.CacheKey.GuestCorrelationKey(s.CorrelationID.String()))
	pipe.Del(ctx, config.CacheKey.GuestViolationsKey(s.IdentityKey, s.ID.String()))
	pipe.Del(ctx, config.CacheKey.GuestAnswersKey(s.IdentityKey, s.ID.String()))
	_, err := pipe.Exec(ctx)
	return err
}

func (st *RedisStore) load(ctx context.Context, id model.Identity) (*model.ExamSession, error) {
	raw, err := st.rdb.Get(ctx, config.CacheKey.GuestSessionKey(id.Key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	s := &model.ExamSession{}
	if err := json.Unmarshal([]byte(raw), s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if s.IdentityKey != id.Key || s.IdentityKind != id.Kind {
		return nil, ErrNotFound
	}
	if s.Staging == nil && !s.Terminal() {
		s.Staging = make(model.StagingArea)
	}
	return s, nil
}
