package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sinaptika/tryout-backend/internal/model"
)

// FormatRepository reads per-variant exam format rows. An event may override
// the baseline rows for a variant; rows with a NULL event_id are the defaults.
type FormatRepository struct {
	pool *pgxpool.Pool
}

// NewFormatRepository creates a new FormatRepository.
func NewFormatRepository(pool *pgxpool.Pool) *FormatRepository {
	return &FormatRepository{pool: pool}
}

// Resolve returns the format rows for a variant, preferring event-specific
// overrides when eventID is set. An empty map means no rows exist and the
// caller should fall back to built-in defaults.
func (r *FormatRepository) Resolve(ctx context.Context, eventID *uuid.UUID, variant model.ExamVariant) (model.ExamFormat, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ON (part) part, question_count, time_limit_seconds
		 FROM exam_formats
		 WHERE variant = $1 AND (event_id = $2 OR event_id IS NULL)
		 ORDER BY part ASC, event_id ASC NULLS LAST`,
		variant, eventID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	format := make(model.ExamFormat)
	for rows.Next() {
		var part int
		var pf model.PartFormat
		if err := rows.Scan(&part, &pf.QuestionCount, &pf.TimeLimitSeconds); err != nil {
			return nil, err
		}
		format[part] = pf
	}
	return format, rows.Err()
}
