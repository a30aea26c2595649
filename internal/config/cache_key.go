package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// GuestSessionKey returns the cache key holding a guest's exam session state.
func (r *CacheKeyStruct) GuestSessionKey(identityKey string) string {
	return fmt.Sprintf("guest:%s:session", identityKey)
}

// GuestCorrelationKey returns the cache key mapping a session correlation id
// back to the owning guest identity.
func (r *CacheKeyStruct) GuestCorrelationKey(correlationID string) string {
	return fmt.Sprintf("guest:session_corr:%s", correlationID)
}

// GuestViolationsKey returns the cache key for a guest session's violation log.
func (r *CacheKeyStruct) GuestViolationsKey(identityKey, sessionID string) string {
	return fmt.Sprintf("guest:%s:session:%s:violations", identityKey, sessionID)
}

// GuestAnswersKey returns the cache key for a guest session's committed answers.
func (r *CacheKeyStruct) GuestAnswersKey(identityKey, sessionID string) string {
	return fmt.Sprintf("guest:%s:session:%s:answers", identityKey, sessionID)
}

// GuestAuditKey returns the cache key for a guest session's disqualification
// audit snapshot.
func (r *CacheKeyStruct) GuestAuditKey(sessionID string) string {
	return fmt.Sprintf("guest:session:%s:audit", sessionID)
}

// PartTokenKey returns the cache key for an issued part token.
func (r *CacheKeyStruct) PartTokenKey(tokenID string) string {
	return fmt.Sprintf("part_token:%s", tokenID)
}

// FormatKey returns the cache key for a resolved exam format.
func (r *CacheKeyStruct) FormatKey(eventID, variant string) string {
	if eventID == "" {
		return fmt.Sprintf("format:%s", variant)
	}
	return fmt.Sprintf("format:event:%s:%s", eventID, variant)
}

var CacheKey = NewCacheKeyStruct()
