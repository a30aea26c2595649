package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/sinaptika/tryout-backend/internal/sessionstore"
)

const completionAutoTimeout = "auto/timeout"

// SessionState is the caller-facing snapshot of a session's progress.
type SessionState struct {
	CorrelationID uuid.UUID           `json:"correlation_id"`
	Status        model.SessionStatus `json:"status"`
	CurrentPart   int                 `json:"current_part"`
	Variant       model.ExamVariant   `json:"variant"`
	StartedAt     time.Time           `json:"started_at"`
	Resumed       bool                `json:"resumed"`
}

// PartView is what a test-taker receives when entering a part.
type PartView struct {
	ExamSessionID  string                  `json:"exam_session_id"` // opaque part token id
	Part           int                     `json:"part"`
	Questions      []model.QuestionForExam `json:"questions"`
	RemainingTime  int                     `json:"remaining_time"`
	ViolationCount int                     `json:"violation_count"`

	// TimedOut marks that the stored budget was already spent; the part was
	// auto-completed and Completion carries the transition instead of content.
	TimedOut   bool            `json:"timed_out,omitempty"`
	Completion *PartCompletion `json:"completion,omitempty"`
}

// PartCompletion describes the transition after completing a part.
type PartCompletion struct {
	Status      model.SessionStatus `json:"status"`
	NextPart    int                 `json:"next_part,omitempty"`
	Finished    bool                `json:"finished"`
	Result      *model.ExamResult   `json:"result,omitempty"`
	AutoTimeout bool                `json:"auto_timeout,omitempty"`
}

// SessionResult is the finished-session payload for the result endpoint.
type SessionResult struct {
	CorrelationID    uuid.UUID           `json:"correlation_id"`
	Status           model.SessionStatus `json:"status"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
	DisqualifyReason *string             `json:"disqualify_reason,omitempty"`
	Result           *model.ExamResult   `json:"result,omitempty"`
}

// ExamSessionService is the session state machine. It is the only component
// the handlers call directly; storage, timing, answers, violations, and
// scoring are composed underneath it.
type ExamSessionService struct {
	stores     Stores
	tokens     TokenIssuer
	formats    FormatSource
	questions  QuestionSource
	answers    *AnswerService
	violations *ViolationService
	scoring    *ScoringService
	log        zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	stores Stores,
	tokens TokenIssuer,
	formats FormatSource,
	questions QuestionSource,
	answers *AnswerService,
	violations *ViolationService,
	scoring *ScoringService,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		stores:     stores,
		tokens:     tokens,
		formats:    formats,
		questions:  questions,
		answers:    answers,
		violations: violations,
		scoring:    scoring,
		log:        log.With().Str("component", "exam_session_service").Logger(),
	}
}

// Start begins a new session or resumes the identity's active one. Resuming
// first re-checks the violation threshold: a session that crossed it without
// being formally disqualified is disqualified now, not silently resumed.
func (s *ExamSessionService) Start(ctx context.Context, id model.Identity, variant model.ExamVariant, eventID *uuid.UUID) (*SessionState, error) {
	st := s.stores.For(id)

	sess, err := st.LoadActive(ctx, id)
	if err == nil {
		count, err := st.CountViolations(ctx, id, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("count violations: %w", err)
		}
		if count >= model.ViolationLimit {
			if err := s.violations.Disqualify(ctx, sess, DisqualifyReasonViolations); err != nil {
				return nil, err
			}
		}
		return sessionState(sess, true), nil
	}
	if !errors.Is(err, sessionstore.ErrNotFound) {
		return nil, err
	}

	// Resolving up front both validates the variant and fails custom variants
	// that have no format rows.
	if _, err := s.formats.Resolve(ctx, eventID, variant); err != nil {
		return nil, err
	}

	sess, created, err := st.CreateIfAbsent(ctx, model.NewExamSession(id, variant, eventID))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if created {
		s.log.Info().
			Str("session_id", sess.ID.String()).
			Str("identity_kind", string(id.Kind)).
			Str("variant", string(variant)).
			Msg("Session started")
	}
	return sessionState(sess, !created), nil
}

// EnterPart validates forward progress, initializes or evaluates the part's
// time budget, and returns the part content with a fresh part token. A part
// whose stored budget is already spent is auto-completed instead.
func (s *ExamSessionService) EnterPart(ctx context.Context, id model.Identity, part int) (*PartView, error) {
	if part < model.FirstPart || part > model.LastPart {
		return nil, ErrWrongPart
	}

	st := s.stores.For(id)
	sess, err := st.LoadActive(ctx, id)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}

	// Revisiting completed parts is rejected; only completePart moves forward.
	if part != sess.CurrentPart {
		return nil, ErrWrongPart
	}

	format, err := s.formats.Resolve(ctx, sess.EventID, sess.Variant)
	if err != nil {
		return nil, err
	}
	pf := format[part]

	if sess.RemainingTime == nil {
		budget := pf.TimeLimitSeconds
		sess.RemainingTime = &budget
		if err := st.Save(ctx, sess); err != nil {
			return nil, err
		}
	} else if PartExpired(sess.RemainingTime) {
		completion, err := s.finishPart(ctx, st, sess, format, part, true)
		if err != nil {
			return nil, err
		}
		return &PartView{Part: part, TimedOut: true, Completion: completion}, nil
	}

	tok, err := s.tokens.Issue(ctx, id, sess.ID, part)
	if err != nil {
		return nil, fmt.Errorf("issue part token: %w", err)
	}

	questions, err := s.questions.ListByPart(ctx, part, pf.QuestionCount)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	staged := sess.Staging[part]
	view := make([]model.QuestionForExam, 0, len(questions))
	for i := range questions {
		view = append(view, questions[i].ForExam(staged[questions[i].ID]))
	}

	count, err := st.CountViolations(ctx, id, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("count violations: %w", err)
	}

	return &PartView{
		ExamSessionID:  tok.ID.String(),
		Part:           part,
		Questions:      view,
		RemainingTime:  *sess.RemainingTime,
		ViolationCount: count,
	}, nil
}

// CompletePart merges the submitted answers and advances the state machine.
// Completing part 3 commits the final answers, scores the session, and
// finishes it.
func (s *ExamSessionService) CompletePart(ctx context.Context, id model.Identity, tokenID string, part int, answers map[string]string, timeSpent int) (*PartCompletion, error) {
	tok, err := s.tokens.Validate(ctx, tokenID, id, part)
	if err != nil {
		return nil, err
	}

	st := s.stores.For(id)
	sess, err := st.LoadByID(ctx, id, tok.SessionID)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if sess.Terminal() {
		return nil, ErrSessionOver
	}
	if part != sess.CurrentPart {
		return nil, ErrWrongPart
	}

	format, err := s.formats.Resolve(ctx, sess.EventID, sess.Variant)
	if err != nil {
		return nil, err
	}

	sess.Staging.Merge(part, sanitizeAnswers(answers))
	remaining := DeductSpent(sess.RemainingTime, timeSpent)
	sess.RemainingTime = &remaining

	completion, err := s.finishPart(ctx, st, sess, format, part, false)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Revoke(ctx, tokenID); err != nil {
		s.log.Warn().Err(err).Msg("Part token revoke failed")
	}
	return completion, nil
}

// GetResult returns the finished session's breakdown by correlation id and
// releases the session's draft state. Guest results are read back once and
// then purged.
func (s *ExamSessionService) GetResult(ctx context.Context, id model.Identity, correlationID uuid.UUID) (*SessionResult, error) {
	st := s.stores.For(id)
	sess, err := st.LoadByCorrelation(ctx, id, correlationID)
	if err != nil {
		if errors.Is(err, sessionstore.ErrNotFound) {
			return nil, ErrResultNotReady
		}
		return nil, err
	}
	if sess.FinishedAt == nil {
		return nil, ErrResultNotReady
	}

	result := &SessionResult{
		CorrelationID:    sess.CorrelationID,
		Status:           sess.Status(),
		StartedAt:        sess.StartedAt,
		FinishedAt:       *sess.FinishedAt,
		DisqualifyReason: sess.DisqualifyReason,
		Result:           sess.Result,
	}

	if err := st.Archive(ctx, sess); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Session archive failed")
	}
	return result, nil
}

// finishPart advances to the next part or, on the last part, commits and
// scores the session.
func (s *ExamSessionService) finishPart(ctx context.Context, st sessionstore.Store, sess *model.ExamSession, format model.ExamFormat, part int, autoTimeout bool) (*PartCompletion, error) {
	if part < model.LastPart {
		sess.CurrentPart = part + 1
		sess.RemainingTime = nil // re-initialized on next part entry
		if err := st.Save(ctx, sess); err != nil {
			return nil, err
		}
		if autoTimeout {
			s.log.Info().
				Str("session_id", sess.ID.String()).
				Int("part", part).
				Str("cause", completionAutoTimeout).
				Msg("Part auto-completed")
		}
		return &PartCompletion{
			Status:      sess.Status(),
			NextPart:    sess.CurrentPart,
			AutoTimeout: autoTimeout,
		}, nil
	}

	committed, err := s.answers.CommitFinalAnswers(ctx, sess)
	if err != nil {
		return nil, err
	}

	sess.Result = s.scoring.BuildResult(committed, format)
	now := time.Now()
	sess.FinishedAt = &now
	sess.RemainingTime = nil
	if err := st.Save(ctx, sess); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Float64("total_score", sess.Result.TotalScore).
		Str("rank", string(sess.Result.Rank)).
		Bool("auto_timeout", autoTimeout).
		Msg("Session finished")

	return &PartCompletion{
		Status:      sess.Status(),
		Finished:    true,
		Result:      sess.Result,
		AutoTimeout: autoTimeout,
	}, nil
}

func sessionState(sess *model.ExamSession, resumed bool) *SessionState {
	return &SessionState{
		CorrelationID: sess.CorrelationID,
		Status:        sess.Status(),
		CurrentPart:   sess.CurrentPart,
		Variant:       sess.Variant,
		StartedAt:     sess.StartedAt,
		Resumed:       resumed,
	}
}
