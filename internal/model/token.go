package model

import (
	"time"

	"github.com/google/uuid"
)

// PartToken is a short-lived, single-scope credential binding answer writes to
// one (identity, session, part) tuple. It exists only as a cache entry and is
// rotated on part entry and revoked on part completion.
type PartToken struct {
	ID           uuid.UUID    `json:"id"`
	IdentityKind IdentityKind `json:"identity_kind"`
	IdentityKey  string       `json:"identity_key"`
	SessionID    uuid.UUID    `json:"session_id"`
	Part         int          `json:"part"`
	IssuedAt     time.Time    `json:"issued_at"`
}
