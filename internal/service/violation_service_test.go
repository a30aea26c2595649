package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViolationFixture(t *testing.T) (*ViolationService, *fakeStore, *model.ExamSession, *model.PartToken) {
	t.Helper()

	store := newFakeStore()
	tokens := newFakeTokens()
	stores := Stores{model.IdentityParticipant: store, model.IdentityGuest: store}
	svc := NewViolationService(stores, tokens, zerolog.Nop())

	id := model.Identity{Kind: model.IdentityGuest, Key: "g-1"}
	sess := model.NewExamSession(id, model.VariantFull, nil)
	store.sessions[sess.ID] = sess

	tok, err := tokens.Issue(context.Background(), id, sess.ID, 1)
	require.NoError(t, err)

	return svc, store, sess, tok
}

func TestReportBelowThreshold(t *testing.T) {
	svc, store, sess, tok := newViolationFixture(t)
	ctx := context.Background()
	id := sess.Identity()

	for i := 1; i <= 2; i++ {
		report, err := svc.Report(ctx, id, tok.ID.String(), model.ViolationTabSwitch, model.ViolationMetadata{})
		require.NoError(t, err)
		assert.Equal(t, i, report.ViolationCount)
		assert.False(t, report.Disqualified)
	}

	assert.Nil(t, sess.DisqualifiedAt)
	assert.Equal(t, 0, store.audits)
}

func TestReportThresholdDisqualifies(t *testing.T) {
	svc, store, sess, tok := newViolationFixture(t)
	ctx := context.Background()
	id := sess.Identity()

	var report *ViolationReport
	var err error
	for i := 0; i < 3; i++ {
		report, err = svc.Report(ctx, id, tok.ID.String(), model.ViolationWindowBlur, model.ViolationMetadata{})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, report.ViolationCount)
	assert.True(t, report.Disqualified)

	require.NotNil(t, sess.DisqualifiedAt)
	require.NotNil(t, sess.FinishedAt, "disqualification implies finished")
	assert.Equal(t, *sess.DisqualifiedAt, *sess.FinishedAt)
	require.NotNil(t, sess.DisqualifyReason)
	assert.Equal(t, DisqualifyReasonViolations, *sess.DisqualifyReason)
	assert.Equal(t, 1, store.audits)
}

func TestReportAfterDisqualificationIsIdempotent(t *testing.T) {
	svc, store, sess, tok := newViolationFixture(t)
	ctx := context.Background()
	id := sess.Identity()

	for i := 0; i < 3; i++ {
		_, err := svc.Report(ctx, id, tok.ID.String(), model.ViolationCopyPaste, model.ViolationMetadata{})
		require.NoError(t, err)
	}
	firstDisqualifiedAt := *sess.DisqualifiedAt

	// A straggler report still lands in the log but changes nothing else.
	report, err := svc.Report(ctx, id, tok.ID.String(), model.ViolationCopyPaste, model.ViolationMetadata{})
	require.NoError(t, err)

	assert.Equal(t, 4, report.ViolationCount)
	assert.True(t, report.Disqualified)
	assert.Equal(t, firstDisqualifiedAt, *sess.DisqualifiedAt, "disqualification timestamp never moves")
	assert.Equal(t, 1, store.audits, "audit snapshot taken exactly once")
}

func TestDisqualifyReleasesStagedAnswers(t *testing.T) {
	svc, store, sess, tok := newViolationFixture(t)
	ctx := context.Background()
	id := sess.Identity()

	sess.Staging.Merge(1, map[int64]string{11: "A"})

	for i := 0; i < 3; i++ {
		_, err := svc.Report(ctx, id, tok.ID.String(), model.ViolationFullscreenExit, model.ViolationMetadata{})
		require.NoError(t, err)
	}

	require.NotNil(t, sess.DisqualifiedAt)
	assert.Nil(t, sess.Staging, "draft answers do not outlive the session")
	assert.Nil(t, store.sessions[sess.ID].Staging, "no staged answers persisted past disqualification")
}

func TestReportRequiresLiveToken(t *testing.T) {
	svc, _, sess, _ := newViolationFixture(t)

	_, err := svc.Report(context.Background(), sess.Identity(),
		"5f2e9c57-9f6a-4a05-bb16-1d4ee1c4ef8d", model.ViolationTabSwitch, model.ViolationMetadata{})
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestDisqualifyIdempotent(t *testing.T) {
	svc, store, sess, _ := newViolationFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Disqualify(ctx, sess, DisqualifyReasonViolations))
	first := *sess.DisqualifiedAt

	time.Sleep(time.Millisecond)
	require.NoError(t, svc.Disqualify(ctx, sess, "something else"))

	assert.Equal(t, first, *sess.DisqualifiedAt)
	assert.Equal(t, DisqualifyReasonViolations, *sess.DisqualifyReason)
	assert.Equal(t, 1, store.audits)
}
