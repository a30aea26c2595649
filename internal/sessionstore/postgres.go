package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sinaptika/tryout-backend/internal/config"
	"github.com/sinaptika/tryout-backend/internal/model"
)

const sessionColumns = `id, identity_kind, identity_key, correlation_id, variant, event_id,
	current_part, remaining_time, started_at, finished_at, disqualified_at,
	disqualify_reason, staging, result`

// PostgresStore is the durable Store implementation for enrolled participants.
// Session rows support exclusive row locking (SELECT ... FOR UPDATE) as the
// batch-commit path requires. Disqualification audit snapshots are queued to
// Redis and bulk-persisted by the audit worker.
type PostgresStore struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewPostgresStore creates a durable session store.
func NewPostgresStore(pool *pgxpool.Pool, rdb *redis.Client) *PostgresStore {
	return &PostgresStore{pool: pool, rdb: rdb}
}

func (st *PostgresStore) CreateIfAbsent(ctx context.Context, s *model.ExamSession) (*model.ExamSession, bool, error) {
	if existing, err := st.LoadActive(ctx, s.Identity()); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	staging, err := marshalStaging(s.Staging)
	if err != nil {
		return nil, false, err
	}

	tag, err := st.pool.Exec(ctx,
		`INSERT INTO exam_sessions
		 (id, identity_kind, identity_key, correlation_id, variant, event_id,
		  current_part, remaining_time, started_at, staging)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (identity_kind, identity_key)
		 WHERE finished_at IS NULL AND disqualified_at IS NULL
		 DO NOTHING`,
		s.ID, s.IdentityKind, s.IdentityKey, s.CorrelationID, s.Variant, s.EventID,
		s.CurrentPart, s.RemainingTime, s.StartedAt, staging,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Lost a concurrent-start race; the winner's session is the session.
		existing, err := st.LoadActive(ctx, s.Identity())
		if err != nil {
			return nil, false, fmt.Errorf("concurrent start detected, reload failed: %w", err)
		}
		return existing, false, nil
	}

	return s, true, nil
}

func (st *PostgresStore) LoadActive(ctx context.Context, id model.Identity) (*model.ExamSession, error) {
	row := st.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE identity_kind = $1 AND identity_key = $2
		   AND finished_at IS NULL AND disqualified_at IS NULL`,
		id.Kind, id.Key,
	)
	return scanSession(row)
}

func (st *PostgresStore) LoadByID(ctx context.Context, id model.Identity, sessionID uuid.UUID) (*model.ExamSession, error) {
	row := st.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE id = $1 AND identity_kind = $2 AND identity_key = $3`,
		sessionID, id.Kind, id.Key,
	)
	return scanSession(row)
}

func (st *PostgresStore) LoadByCorrelation(ctx context.Context, id model.Identity, correlationID uuid.UUID) (*model.ExamSession, error) {
	row := st.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE identity_kind = $1 AND identity_key = $2 AND correlation_id = $3`,
		id.Kind, id.Key, correlationID,
	)
	return scanSession(row)
}

func (st *PostgresStore) Save(ctx context.Context, s *model.ExamSession) error {
	return st.save(ctx, st.pool, s)
}

// save works against both the pool and an open transaction.
func (st *PostgresStore) save(ctx context.Context, q querier, s *model.ExamSession) error {
	if err := validateStaging(s.Staging); err != nil {
		return err
	}

	staging, err := marshalStaging(s.Staging)
	if err != nil {
		return err
	}
	result, err := marshalResult(s.Result)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx,
		`UPDATE exam_sessions
		 SET current_part = $1, remaining_time = $2, finished_at = $3,
		     disqualified_at = $4, disqualify_reason = $5, staging = $6, result = $7
		 WHERE id = $8`,
		s.CurrentPart, s.RemainingTime, s.FinishedAt,
		s.DisqualifiedAt, s.DisqualifyReason, staging, result, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (st *PostgresStore) UpdateExclusive(ctx context.Context, id model.Identity, sessionID uuid.UUID, fn func(*model.ExamSession) error) error {
	tx, err := st.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE id = $1 AND identity_kind = $2 AND identity_key = $3
		 FOR UPDATE`,
		sessionID, id.Kind, id.Key,
	)
	s, err := scanSession(row)
	if err != nil {
		return mapPgError(err)
	}

	if err := fn(s); err != nil {
		return err
	}

	if err := st.save(ctx, tx, s); err != nil {
		return mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

func (st *PostgresStore) SaveAnswers(ctx context.Context, s *model.ExamSession, answers []model.Answer) error {
	tx, err := st.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err)
	}
	defer tx.Rollback(ctx)

	for i := range answers {
		a := &answers[i]
		_, err := tx.Exec(ctx,
			`INSERT INTO exam_answers
			 (identity_kind, identity_key, session_id, question_id, part, choice, correct, committed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (identity_kind, identity_key, question_id) DO UPDATE
			 SET session_id = EXCLUDED.session_id, part = EXCLUDED.part,
			     choice = EXCLUDED.choice, correct = EXCLUDED.correct,
			     committed_at = EXCLUDED.committed_at`,
			a.IdentityKind, a.IdentityKey, a.SessionID, a.QuestionID, a.Part,
			a.Choice, a.Correct, a.CommittedAt,
		)
		if err != nil {
			return mapPgError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

func (st *PostgresStore) AppendViolation(ctx context.Context, v *model.Violation) (int, error) {
	meta, err := json.Marshal(v.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	err = st.pool.QueryRow(ctx,
		`INSERT INTO exam_violations (session_id, identity_kind, identity_key, type, metadata, detected_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		v.SessionID, v.IdentityKind, v.IdentityKey, v.Type, meta, v.DetectedAt,
	).Scan(&v.ID)
	if err != nil {
		return 0, fmt.Errorf("insert violation: %w", err)
	}

	return st.CountViolations(ctx, model.Identity{Kind: v.IdentityKind, Key: v.IdentityKey}, v.SessionID)
}

func (st *PostgresStore) CountViolations(ctx context.Context, _ model.Identity, sessionID uuid.UUID) (int, error) {
	var count int
	err := st.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_violations WHERE session_id = $1`, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count violations: %w", err)
	}
	return count, nil
}

func (st *PostgresStore) ListViolations(ctx context.Context, _ model.Identity, sessionID uuid.UUID) ([]model.Violation, error) {
	rows, err := st.pool.Query(ctx,
		`SELECT id, session_id, identity_kind, identity_key, type, metadata, detected_at
		 FROM exam_violations
		 WHERE session_id = $1
		 ORDER BY detected_at ASC, id ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []model.Violation
	for rows.Next() {
		var v model.Violation
		var meta []byte
		if err := rows.Scan(&v.ID, &v.SessionID, &v.IdentityKind, &v.IdentityKey, &v.Type, &meta, &v.DetectedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &v.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// AuditPayload is the queued disqualification snapshot consumed by the audit
// worker.
type AuditPayload struct {
	SessionID      string            `json:"session_id"`
	IdentityKey    string            `json:"identity_key"`
	Reason         string            `json:"reason"`
	Violations     []model.Violation `json:"violations"`
	DisqualifiedAt int64             `json:"disqualified_at"`
}

func (st *PostgresStore) SnapshotAudit(ctx context.Context, s *model.ExamSession, violations []model.Violation) error {
	reason := ""
	if s.DisqualifyReason != nil {
		reason = *s.DisqualifyReason
	}
	disqualifiedAt := time.Now()
	if s.DisqualifiedAt != nil {
		disqualifiedAt = *s.DisqualifiedAt
	}

	payload, err := json.Marshal(AuditPayload{
		SessionID:      s.ID.String(),
		IdentityKey:    s.IdentityKey,
		Reason:         reason,
		Violations:     violations,
		DisqualifiedAt: disqualifiedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	return st.rdb.RPush(ctx, config.WorkerKey.PersistAuditsQueue, payload).Err()
}

func (st *PostgresStore) Archive(ctx context.Context, s *model.ExamSession) error {
	_, err := st.pool.Exec(ctx,
		`UPDATE exam_sessions SET staging = NULL WHERE id = $1`, s.ID)
	return err
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	var staging, result []byte
	err := row.Scan(
		&s.ID, &s.IdentityKind, &s.IdentityKey, &s.CorrelationID, &s.Variant, &s.EventID,
		&s.CurrentPart, &s.RemainingTime, &s.StartedAt, &s.FinishedAt, &s.DisqualifiedAt,
		&s.DisqualifyReason, &staging, &result,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, mapPgError(err)
	}

	if len(staging) > 0 {
		if err := json.Unmarshal(staging, &s.Staging); err != nil {
			return nil, fmt.Errorf("unmarshal staging: %w", err)
		}
	}
	if s.Staging == nil && !s.Terminal() {
		s.Staging = make(model.StagingArea)
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &s.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return s, nil
}

func marshalStaging(a model.StagingArea) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal staging: %w", err)
	}
	return b, nil
}

func marshalResult(r *model.ExamResult) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return b, nil
}

// mapPgError translates PostgreSQL deadlock and serialization failures into
// the distinguished ErrDeadlock class. Everything else passes through.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40P01", "40001": // deadlock_detected, serialization_failure
			return fmt.Errorf("%w: %s", ErrDeadlock, pgErr.Message)
		}
	}
	return err
}
