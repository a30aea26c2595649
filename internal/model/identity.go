package model

// IdentityKind distinguishes enrolled participants from walk-up guests.
type IdentityKind string

const (
	IdentityParticipant IdentityKind = "participant"
	IdentityGuest       IdentityKind = "guest"
)

// Identity references one test-taker independent of how their state is stored.
// Key is the participant ID (as a string) for enrolled identities and a random
// UUID for guests.
type Identity struct {
	Kind IdentityKind `json:"kind"`
	Key  string       `json:"key"`
}

// Participant represents an enrolled test-taker account.
type Participant struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// LoginRequest is the payload for a participant login.
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// GuestRequest is the payload for minting a guest identity.
type GuestRequest struct {
	Name string `json:"name" binding:"required,min=2,max=100"`
}
