package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/sinaptika/tryout-backend/internal/repository"
	"github.com/sinaptika/tryout-backend/internal/sessionstore"
)

// Deadlock retry policy for staged writes.
const (
	stageMaxAttempts = 3
	backoffFloorMs   = 100
	backoffSpreadMs  = 401 // floor + [0,400] => 100..500 ms, scaled by attempt
)

// QuestionSource reads the exam content store.
type QuestionSource interface {
	ListByPart(ctx context.Context, part, limit int) ([]model.Question, error)
	GetByID(ctx context.Context, id int64) (*model.Question, error)
}

// AnswerService stages answers against a session and commits them at the end
// of the exam. Both staging paths serialize on an exclusive session lock with
// bounded deadlock retries; a whole-blob write outside the lock could discard
// a concurrent batch's merges for other question ids.
type AnswerService struct {
	stores    Stores
	tokens    TokenIssuer
	questions QuestionSource
	log       zerolog.Logger

	// backoff computes the jittered wait before a deadlock retry. Overridable
	// so tests do not sleep.
	backoff func(attempt int) time.Duration
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(stores Stores, tokens TokenIssuer, questions QuestionSource, log zerolog.Logger) *AnswerService {
	return &AnswerService{
		stores:    stores,
		tokens:    tokens,
		questions: questions,
		log:       log.With().Str("component", "answer_service").Logger(),
		backoff:   deadlockBackoff,
	}
}

// deadlockBackoff returns a randomized 100-500 ms interval scaled by the
// attempt number.
func deadlockBackoff(attempt int) time.Duration {
	jitter := time.Duration(backoffFloorMs+rand.Intn(backoffSpreadMs)) * time.Millisecond
	return time.Duration(attempt) * jitter
}

// StageAnswer is the single-answer fast path. It overwrites idempotently by
// question id inside the part's staging map and silently drops malformed
// entries instead of failing the request.
func (s *AnswerService) StageAnswer(ctx context.Context, id model.Identity, req *model.StageAnswerRequest) error {
	tok, err := s.tokens.Validate(ctx, req.ExamSessionID, id, req.Part)
	if err != nil {
		return err
	}

	if req.QuestionID <= 0 || !model.IsValidChoice(req.Choice) {
		// Defensive sanitation: drop the entry, succeed the request.
		s.log.Debug().
			Int64("question_id", req.QuestionID).
			Str("choice", req.Choice).
			Msg("Dropping malformed staged answer")
		return nil
	}

	answers := map[int64]string{req.QuestionID: req.Choice}
	return s.stageLocked(ctx, id, tok.SessionID, req.Part, answers, req.RemainingTime)
}

// StageBatch merges up to BatchMaxSize answers under the exclusive session
// lock.
func (s *AnswerService) StageBatch(ctx context.Context, id model.Identity, req *model.StageBatchRequest) error {
	tok, err := s.tokens.Validate(ctx, req.ExamSessionID, id, req.Part)
	if err != nil {
		return err
	}

	answers := sanitizeAnswers(req.Answers)
	return s.stageLocked(ctx, id, tok.SessionID, req.Part, answers, req.RemainingTime)
}

// stageLocked merges answers into the part's staging map under an exclusive
// session update, so a write never clobbers another writer's entries for
// different question ids. Detected deadlocks are retried with jittered
// backoff; exhaustion surfaces ErrSystemBusy so the caller can retry the
// whole write.
func (s *AnswerService) stageLocked(ctx context.Context, id model.Identity, sessionID uuid.UUID, part int, answers map[int64]string, remaining *int) error {
	st := s.stores.For(id)

	merge := func(sess *model.ExamSession) error {
		// Re-validate under the lock: the session must still be active.
		if sess.Terminal() {
			return ErrSessionOver
		}
		sess.Staging.Merge(part, answers)
		if remaining != nil {
			sess.RemainingTime = ClampReported(sess.RemainingTime, *remaining)
		}
		return nil
	}

	var err error
	for attempt := 1; attempt <= stageMaxAttempts; attempt++ {
		err = st.UpdateExclusive(ctx, id, sessionID, merge)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sessionstore.ErrDeadlock) {
			if errors.Is(err, sessionstore.ErrNotFound) {
				return ErrInvalidSession
			}
			return err
		}

		s.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("session_id", sessionID.String()).
			Msg("Deadlock on answer staging")

		if attempt == stageMaxAttempts {
			break
		}
		if err := s.wait(ctx, s.backoff(attempt)); err != nil {
			return err
		}
	}

	return ErrSystemBusy
}

// CommitFinalAnswers unions the staged parts, resolves each question's current
// correct choice, and writes the immutable answer rows. The staging area is
// cleared and nilled afterwards so no draft answers outlive the commit.
func (s *AnswerService) CommitFinalAnswers(ctx context.Context, sess *model.ExamSession) ([]model.Answer, error) {
	flat := sess.Staging.Flatten()

	qids := make([]int64, 0, len(flat))
	for qid := range flat {
		qids = append(qids, qid)
	}
	sort.Slice(qids, func(i, j int) bool { return qids[i] < qids[j] })

	now := time.Now()
	answers := make([]model.Answer, 0, len(flat))
	for _, qid := range qids {
		staged := flat[qid]
		q, err := s.questions.GetByID(ctx, qid)
		if err != nil {
			if errors.Is(err, repository.ErrQuestionNotFound) {
				// Content edited mid-session; the staged answer has nothing to
				// grade against.
				s.log.Warn().Int64("question_id", qid).Msg("Staged answer references missing question")
				continue
			}
			return nil, fmt.Errorf("resolve question %d: %w", qid, err)
		}

		answers = append(answers, model.Answer{
			IdentityKind: sess.IdentityKind,
			IdentityKey:  sess.IdentityKey,
			SessionID:    sess.ID,
			QuestionID:   qid,
			Part:         q.Part,
			Choice:       staged.Choice,
			Correct:      staged.Choice == q.CorrectChoice,
			CommittedAt:  now,
		})
	}

	st := s.stores.For(sess.Identity())
	if err := st.SaveAnswers(ctx, sess, answers); err != nil {
		return nil, fmt.Errorf("save answers: %w", err)
	}

	sess.Staging = nil
	return answers, nil
}

// wait blocks for d or until the context is cancelled.
func (s *AnswerService) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// sanitizeAnswers parses the wire answer map, dropping malformed entries.
// Keys must be positive numeric question ids, values a choice A..E.
func sanitizeAnswers(raw map[string]string) map[int64]string {
	out := make(map[int64]string, len(raw))
	for key, choice := range raw {
		qid, err := strconv.ParseInt(key, 10, 64)
		if err != nil || qid <= 0 || !model.IsValidChoice(choice) {
			continue
		}
		out[qid] = choice
	}
	return out
}
