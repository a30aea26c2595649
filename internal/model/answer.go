package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is a final, committed answer row. Unique per (identity, question);
// written only at final commit with correctness resolved at commit time.
type Answer struct {
	IdentityKind IdentityKind `json:"identity_kind"`
	IdentityKey  string       `json:"identity_key"`
	SessionID    uuid.UUID    `json:"session_id"`
	QuestionID   int64        `json:"question_id"`
	Part         int          `json:"part"`
	Choice       string       `json:"choice"`
	Correct      bool         `json:"correct"`
	CommittedAt  time.Time    `json:"committed_at"`
}

// StageAnswerRequest is the payload for the single-answer fast path.
type StageAnswerRequest struct {
	ExamSessionID string `json:"exam_session_id" binding:"required,uuid"`
	QuestionID    int64  `json:"question_id" binding:"required"`
	Choice        string `json:"choice" binding:"required"`
	Part          int    `json:"part" binding:"required,min=1,max=3"`
	RemainingTime *int   `json:"remaining_time" binding:"omitempty,min=0"`
}

// StageBatchRequest is the payload for the transactional batch path.
type StageBatchRequest struct {
	ExamSessionID string            `json:"exam_session_id" binding:"required,uuid"`
	Answers       map[string]string `json:"answers" binding:"required,max=10"`
	Part          int               `json:"part" binding:"required,min=1,max=3"`
	RemainingTime *int              `json:"remaining_time" binding:"omitempty,min=0"`
}
