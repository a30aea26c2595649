package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sinaptika/tryout-backend/internal/config"
	"github.com/sinaptika/tryout-backend/internal/model"
)

// formatCacheTTL bounds how long a resolved format stays cached in Redis.
const formatCacheTTL = 10 * time.Minute

// FormatSource resolves format rows from the durable store.
type FormatSource interface {
	Resolve(ctx context.Context, eventID *uuid.UUID, variant model.ExamVariant) (model.ExamFormat, error)
}

// defaultFormats are the built-in baselines per variant. The full exam is the
// 95-question reference shape the rank thresholds are defined against.
var defaultFormats = map[model.ExamVariant]model.ExamFormat{
	model.VariantFull: {
		1: {QuestionCount: 40, TimeLimitSeconds: 2700},
		2: {QuestionCount: 30, TimeLimitSeconds: 1800},
		3: {QuestionCount: 25, TimeLimitSeconds: 1500},
	},
	model.VariantMedium: {
		1: {QuestionCount: 25, TimeLimitSeconds: 1800},
		2: {QuestionCount: 20, TimeLimitSeconds: 1500},
		3: {QuestionCount: 15, TimeLimitSeconds: 1200},
	},
	model.VariantShort: {
		1: {QuestionCount: 20, TimeLimitSeconds: 1200},
		2: {QuestionCount: 10, TimeLimitSeconds: 900},
		3: {QuestionCount: 10, TimeLimitSeconds: 900},
	},
}

// FormatService resolves the per-part question count and time limit for an
// exam variant, optionally overridden per event. Resolved formats are cached
// in Redis.
type FormatService struct {
	repo FormatSource
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewFormatService creates a new FormatService.
func NewFormatService(repo FormatSource, rdb *redis.Client, log zerolog.Logger) *FormatService {
	return &FormatService{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "format_service").Logger(),
	}
}

// Resolve returns the full three-part format for (event, variant). Stored rows
// override the built-in defaults per part; the custom variant has no default
// and requires complete rows.
func (s *FormatService) Resolve(ctx context.Context, eventID *uuid.UUID, variant model.ExamVariant) (model.ExamFormat, error) {
	eventKey := ""
	if eventID != nil {
		eventKey = eventID.String()
	}
	cacheKey := config.CacheKey.FormatKey(eventKey, string(variant))

	if raw, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
		var format model.ExamFormat
		if err := json.Unmarshal([]byte(raw), &format); err == nil {
			return format, nil
		}
		// Corrupt cache entry; fall through to a fresh resolve.
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("format cache: %w", err)
	}

	stored, err := s.repo.Resolve(ctx, eventID, variant)
	if err != nil {
		return nil, fmt.Errorf("resolve format: %w", err)
	}

	format := make(model.ExamFormat, model.LastPart)
	for part := model.FirstPart; part <= model.LastPart; part++ {
		if pf, ok := stored[part]; ok {
			format[part] = pf
		} else if pf, ok := defaultFormats[variant][part]; ok {
			format[part] = pf
		} else {
			return nil, ErrFormatUnavailable
		}
	}

	if payload, err := json.Marshal(format); err == nil {
		if err := s.rdb.Set(ctx, cacheKey, payload, formatCacheTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("variant", string(variant)).Msg("Format cache write failed")
		}
	}

	return format, nil
}
