package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationType enumerates the client-reported behavioral signals.
type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "tab-switch"
	ViolationWindowBlur     ViolationType = "window-blur"
	ViolationFullscreenExit ViolationType = "fullscreen-exit"
	ViolationCopyPaste      ViolationType = "copy-paste"
	ViolationRightClick     ViolationType = "right-click"
)

// IsValidViolationType reports whether a reported type is one we track.
func IsValidViolationType(t string) bool {
	switch ViolationType(t) {
	case ViolationTabSwitch, ViolationWindowBlur, ViolationFullscreenExit,
		ViolationCopyPaste, ViolationRightClick:
		return true
	}
	return false
}

// ViolationMetadata captures request context for the audit trail.
type ViolationMetadata struct {
	UserAgent string `json:"user_agent,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
}

// Violation is one append-only suspicious-behavior record.
type Violation struct {
	ID           int64             `json:"id,omitempty"`
	SessionID    uuid.UUID         `json:"session_id"`
	IdentityKind IdentityKind      `json:"identity_kind"`
	IdentityKey  string            `json:"identity_key"`
	Type         ViolationType     `json:"type"`
	Metadata     ViolationMetadata `json:"metadata"`
	DetectedAt   time.Time         `json:"detected_at"`
}

// ReportViolationRequest is the payload for a client-reported violation.
// ViolationCount is advisory only; the server recounts from its own records.
type ReportViolationRequest struct {
	ExamSessionID  string `json:"exam_session_id" binding:"required,uuid"`
	ViolationType  string `json:"violation_type" binding:"required"`
	Timestamp      *int64 `json:"timestamp" binding:"omitempty"`
	ViolationCount *int   `json:"violation_count" binding:"omitempty,min=0"`
}
