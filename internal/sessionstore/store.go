// Package sessionstore abstracts exam session persistence behind a single
// contract so the session engine runs identically for enrolled participants
// (PostgreSQL) and walk-up guests (Redis, TTL-bounded). Callers pick a Store
// per identity kind and never branch on kind beyond that.
package sessionstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sinaptika/tryout-backend/internal/model"
)

// Store errors. ErrDeadlock is a distinguished class so the batch-commit path
// can retry; everything else aborts immediately.
var (
	ErrNotFound = errors.New("session not found")
	ErrDeadlock = errors.New("transactional deadlock detected")
)

// Store is the uniform persistence contract for one identity class.
type Store interface {
	// CreateIfAbsent inserts a fresh session unless the identity already has an
	// active one, in which case the existing session is returned and created is
	// false. The at-most-one-active-session invariant is enforced here, not in
	// application logic.
	CreateIfAbsent(ctx context.Context, s *model.ExamSession) (session *model.ExamSession, created bool, err error)

	// LoadActive returns the identity's single active (not finished, not
	// disqualified) session, or ErrNotFound.
	LoadActive(ctx context.Context, id model.Identity) (*model.ExamSession, error)

	// LoadByID returns the identity's session with the given id regardless of
	// lifecycle state, or ErrNotFound. It never returns another identity's
	// session.
	LoadByID(ctx context.Context, id model.Identity, sessionID uuid.UUID) (*model.ExamSession, error)

	// LoadByCorrelation returns the identity's session with the given
	// correlation id regardless of lifecycle state, or ErrNotFound. It never
	// returns another identity's session.
	LoadByCorrelation(ctx context.Context, id model.Identity, correlationID uuid.UUID) (*model.ExamSession, error)

	// Save persists the full session state. The staging area is validated on
	// every write.
	Save(ctx context.Context, s *model.ExamSession) error

	// UpdateExclusive loads the session under an exclusive lock, applies fn,
	// and persists the mutation atomically. Returns ErrDeadlock when the
	// underlying store detected a lock conflict worth retrying. Errors from fn
	// propagate unchanged.
	UpdateExclusive(ctx context.Context, id model.Identity, sessionID uuid.UUID, fn func(*model.ExamSession) error) error

	// SaveAnswers writes the final committed answers, keyed (identity,
	// question) with last-commit-wins semantics.
	SaveAnswers(ctx context.Context, s *model.ExamSession, answers []model.Answer) error

	// AppendViolation records one violation and returns the session's new
	// violation count.
	AppendViolation(ctx context.Context, v *model.Violation) (int, error)

	// CountViolations returns the session's current violation count.
	CountViolations(ctx context.Context, id model.Identity, sessionID uuid.UUID) (int, error)

	// ListViolations returns the session's violation log in detection order.
	ListViolations(ctx context.Context, id model.Identity, sessionID uuid.UUID) ([]model.Violation, error)

	// SnapshotAudit preserves the violation log verbatim at disqualification
	// time for later audit.
	SnapshotAudit(ctx context.Context, s *model.ExamSession, violations []model.Violation) error

	// Archive releases a terminal session's draft state: the staging area for
	// durable identities, every cache entry for guests.
	Archive(ctx context.Context, s *model.ExamSession) error
}

// validateStaging rejects malformed staging content before any write. The
// staging area has a fixed schema (part -> positive question id -> choice A..E)
// rather than a loosely typed bag.
func validateStaging(a model.StagingArea) error {
	for part, answers := range a {
		if part < model.FirstPart || part > model.LastPart {
			return fmt.Errorf("staging: invalid part %d", part)
		}
		for qid, choice := range answers {
			if qid <= 0 {
				return fmt.Errorf("staging: invalid question id %d", qid)
			}
			if !model.IsValidChoice(choice) {
				return fmt.Errorf("staging: invalid choice %q for question %d", choice, qid)
			}
		}
	}
	return nil
}
