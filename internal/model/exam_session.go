package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam structure constants.
const (
	FirstPart      = 1
	LastPart       = 3
	ViolationLimit = 3
	BatchMaxSize   = 10
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress   SessionStatus = "IN_PROGRESS"
	SessionStatusFinished     SessionStatus = "FINISHED"
	SessionStatusDisqualified SessionStatus = "DISQUALIFIED"
)

// StagingArea holds pre-commit answers per part, keyed part -> questionID -> choice.
// It is cleared and nilled out after the final commit so no draft answers outlive
// the session.
type StagingArea map[int]map[int64]string

// Merge writes choices into the staging map for a part. Last writer wins per
// question id.
func (a StagingArea) Merge(part int, answers map[int64]string) {
	if a[part] == nil {
		a[part] = make(map[int64]string, len(answers))
	}
	for qid, choice := range answers {
		a[part][qid] = choice
	}
}

// Flatten unions all parts in ascending part order. The first writer wins on a
// duplicate question id across parts; question ids are unique per part in the
// current content model, so the union is normally disjoint.
func (a StagingArea) Flatten() map[int64]StagedAnswer {
	out := make(map[int64]StagedAnswer)
	for part := FirstPart; part <= LastPart; part++ {
		for qid, choice := range a[part] {
			if _, taken := out[qid]; taken {
				continue
			}
			out[qid] = StagedAnswer{Part: part, Choice: choice}
		}
	}
	return out
}

// StagedAnswer is one flattened staging entry.
type StagedAnswer struct {
	Part   int
	Choice string
}

// ExamSession represents one complete attempt by one identity across all parts.
type ExamSession struct {
	ID               uuid.UUID    `json:"id"`
	IdentityKind     IdentityKind `json:"identity_kind"`
	IdentityKey      string       `json:"identity_key"`
	CorrelationID    uuid.UUID    `json:"correlation_id"`
	Variant          ExamVariant  `json:"variant"`
	EventID          *uuid.UUID   `json:"event_id,omitempty"`
	CurrentPart      int          `json:"current_part"`
	RemainingTime    *int         `json:"remaining_time,omitempty"` // seconds; nil until part entry
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       *time.Time   `json:"finished_at,omitempty"`
	DisqualifiedAt   *time.Time   `json:"disqualified_at,omitempty"`
	DisqualifyReason *string      `json:"disqualify_reason,omitempty"`
	Staging          StagingArea  `json:"staging,omitempty"`
	Result           *ExamResult  `json:"result,omitempty"`
}

// NewExamSession creates a fresh session at part 1 with zero elapsed time.
func NewExamSession(id Identity, variant ExamVariant, eventID *uuid.UUID) *ExamSession {
	return &ExamSession{
		ID:            uuid.New(),
		IdentityKind:  id.Kind,
		IdentityKey:   id.Key,
		CorrelationID: uuid.New(),
		Variant:       variant,
		EventID:       eventID,
		CurrentPart:   FirstPart,
		StartedAt:     time.Now(),
		Staging:       make(StagingArea),
	}
}

// Identity returns the owning identity reference.
func (s *ExamSession) Identity() Identity {
	return Identity{Kind: s.IdentityKind, Key: s.IdentityKey}
}

// Terminal reports whether the session can no longer be mutated.
func (s *ExamSession) Terminal() bool {
	return s.FinishedAt != nil || s.DisqualifiedAt != nil
}

// Status derives the lifecycle state from the terminal timestamps.
func (s *ExamSession) Status() SessionStatus {
	switch {
	case s.DisqualifiedAt != nil:
		return SessionStatusDisqualified
	case s.FinishedAt != nil:
		return SessionStatusFinished
	default:
		return SessionStatusInProgress
	}
}

// StartSessionRequest is the payload for starting or resuming a session.
type StartSessionRequest struct {
	Variant string     `json:"variant" binding:"required,oneof=short medium full custom"`
	EventID *uuid.UUID `json:"event_id" binding:"omitempty"`
}

// CompletePartRequest is the payload for completing the current part.
type CompletePartRequest struct {
	ExamSessionID string            `json:"exam_session_id" binding:"required,uuid"`
	Answers       map[string]string `json:"answers" binding:"omitempty"`
	TimeSpent     int               `json:"time_spent" binding:"min=0"`
}
