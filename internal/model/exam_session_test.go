package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStagingMergeOverwritesPerQuestion(t *testing.T) {
	a := make(StagingArea)

	a.Merge(1, map[int64]string{10: "A", 11: "B"})
	a.Merge(1, map[int64]string{10: "C"})

	assert.Equal(t, map[int64]string{10: "C", 11: "B"}, a[1])
}

func TestStagingFlattenFirstWriterWinsAcrossParts(t *testing.T) {
	a := make(StagingArea)
	a.Merge(1, map[int64]string{10: "A"})
	a.Merge(2, map[int64]string{10: "B", 20: "C"})
	a.Merge(3, map[int64]string{30: "D"})

	flat := a.Flatten()

	assert.Len(t, flat, 3)
	assert.Equal(t, StagedAnswer{Part: 1, Choice: "A"}, flat[10])
	assert.Equal(t, StagedAnswer{Part: 2, Choice: "C"}, flat[20])
	assert.Equal(t, StagedAnswer{Part: 3, Choice: "D"}, flat[30])
}

func TestIsValidChoice(t *testing.T) {
	for _, c := range []string{"A", "B", "C", "D", "E"} {
		assert.True(t, IsValidChoice(c))
	}
	for _, c := range []string{"", "F", "a", "AB", "1"} {
		assert.False(t, IsValidChoice(c))
	}
}

func TestSessionStatus(t *testing.T) {
	sess := NewExamSession(Identity{Kind: IdentityGuest, Key: "g"}, VariantFull, nil)
	assert.Equal(t, SessionStatusInProgress, sess.Status())
	assert.False(t, sess.Terminal())

	now := sess.StartedAt
	sess.FinishedAt = &now
	assert.Equal(t, SessionStatusFinished, sess.Status())
	assert.True(t, sess.Terminal())

	sess.DisqualifiedAt = &now
	assert.Equal(t, SessionStatusDisqualified, sess.Status())
}
