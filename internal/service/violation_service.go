package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/sinaptika/tryout-backend/internal/sessionstore"
)

// DisqualifyReasonViolations is the stored reason when the violation threshold
// triggers disqualification.
const DisqualifyReasonViolations = "violation threshold reached"

// ViolationReport is the outcome of one violation report.
type ViolationReport struct {
	ViolationCount int  `json:"violation_count"`
	Disqualified   bool `json:"disqualified"`
}

// ViolationService records client-reported behavioral signals and enforces the
// disqualification threshold.
type ViolationService struct {
	stores Stores
	tokens TokenIssuer
	log    zerolog.Logger
}

// NewViolationService creates a new ViolationService.
func NewViolationService(stores Stores, tokens TokenIssuer, log zerolog.Logger) *ViolationService {
	return &ViolationService{
		stores: stores,
		tokens: tokens,
		log:    log.With().Str("component", "violation_service").Logger(),
	}
}

// Report appends one violation and re-evaluates the threshold. The report must
// carry a live part token. The violation log is append-only, so a report
// against an already-terminal session still lands in the log, but crossing the
// threshold is the only thing that ever changes session state, and only once.
func (s *ViolationService) Report(ctx context.Context, id model.Identity, tokenID string, vtype model.ViolationType, meta model.ViolationMetadata) (*ViolationReport, error) {
	tok, err := s.tokens.Lookup(ctx, tokenID, id)
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

	count, err := st.AppendViolation(ctx, &model.Violation{
		SessionID:    sess.ID,
		IdentityKind: id.Kind,
		IdentityKey:  id.Key,
		Type:         vtype,
		Metadata:     meta,
		DetectedAt:   time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("append violation: %w", err)
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("type", string(vtype)).
		Int("count", count).
		Msg("Violation recorded")

	if count >= model.ViolationLimit {
		if err := s.Disqualify(ctx, sess, DisqualifyReasonViolations); err != nil {
			return nil, err
		}
	}

	return &ViolationReport{
		ViolationCount: count,
		Disqualified:   sess.DisqualifiedAt != nil,
	}, nil
}

// Disqualify terminates a session one-way. Re-disqualifying is a no-op, not an
// error. The violation log is snapshotted verbatim for audit.
func (s *ViolationService) Disqualify(ctx context.Context, sess *model.ExamSession, reason string) error {
	if sess.DisqualifiedAt != nil {
		return nil
	}

	now := time.Now()
	sess.DisqualifiedAt = &now
	sess.FinishedAt = &now
	sess.DisqualifyReason = &reason
	// No draft answers outlive a terminal session; disqualification releases
	// the staging area the same way the final commit does.
	sess.Staging = nil

	st := s.stores.For(sess.Identity())
	if err := st.Save(ctx, sess); err != nil {
		return fmt.Errorf("save disqualified session: %w", err)
	}

	violations, err := st.ListViolations(ctx, sess.Identity(), sess.ID)
	if err != nil {
		return fmt.Errorf("list violations: %w", err)
	}
	if err := st.SnapshotAudit(ctx, sess, violations); err != nil {
		// Session state is already saved; log and continue.
		s.log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Audit snapshot failed")
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("reason", reason).
		Msg("Session disqualified")
	return nil
}
