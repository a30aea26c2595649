package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sinaptika/tryout-backend/internal/model"
)

// ErrQuestionNotFound is returned when a question id does not exist in the
// content store.
var ErrQuestionNotFound = errors.New("question not found")

// QuestionRepository reads the exam content store. The store is read-only
// during an exam; this repository never writes outside the seeding path.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByPart retrieves up to limit questions for a part, ordered by number.
func (r *QuestionRepository) ListByPart(ctx context.Context, part, limit int) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, part, number, prompt_text, prompt_image, choices, correct_choice
		 FROM questions
		 WHERE part = $1
		 ORDER BY number ASC
		 LIMIT $2`, part, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// GetByID retrieves a single question. Used at final commit to resolve the
// current authoritative correct choice.
func (r *QuestionRepository) GetByID(ctx context.Context, id int64) (*model.Question, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, part, number, prompt_text, prompt_image, choices, correct_choice
		 FROM questions
		 WHERE id = $1`, id,
	)
	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return q, nil
}

// Create inserts a question. Only the seeding CLI calls this.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	choices, err := json.Marshal(q.Choices)
	if err != nil {
		return fmt.Errorf("marshal choices: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (part, number, prompt_text, prompt_image, choices, correct_choice)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		q.Part, q.Number, q.PromptText, q.PromptImage, choices, q.CorrectChoice,
	).Scan(&q.ID)
}

func scanQuestion(row pgx.Row) (*model.Question, error) {
	q := &model.Question{}
	var choices []byte
	if err := row.Scan(&q.ID, &q.Part, &q.Number, &q.PromptText, &q.PromptImage, &choices, &q.CorrectChoice); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(choices, &q.Choices); err != nil {
		return nil, fmt.Errorf("unmarshal choices: %w", err)
	}
	return q, nil
}
