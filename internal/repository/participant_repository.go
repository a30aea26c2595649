package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sinaptika/tryout-backend/internal/model"
)

// ParticipantRepository handles enrolled account data access.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// GetByUsername retrieves a participant by username.
func (r *ParticipantRepository) GetByUsername(ctx context.Context, username string) (*model.Participant, error) {
	p := &model.Participant{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, username, password_hash
		 FROM participants
		 WHERE username = $1`, username,
	).Scan(&p.ID, &p.Name, &p.Username, &p.PasswordHash)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new participant account.
func (r *ParticipantRepository) Create(ctx context.Context, p *model.Participant) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO participants (name, username, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		p.Name, p.Username, p.PasswordHash,
	).Scan(&p.ID)
}
