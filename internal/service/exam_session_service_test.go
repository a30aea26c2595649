package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	sessions *ExamSessionService
	store    *fakeStore
	tokens   *fakeTokens
	id       model.Identity
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	store := newFakeStore()
	tokens := newFakeTokens()
	questions := newFakeQuestions(
		model.Question{ID: 11, Part: 1, Number: 1, CorrectChoice: "A"},
		model.Question{ID: 12, Part: 1, Number: 2, CorrectChoice: "B"},
		model.Question{ID: 21, Part: 2, Number: 1, CorrectChoice: "C"},
		model.Question{ID: 31, Part: 3, Number: 1, CorrectChoice: "D"},
	)
	stores := Stores{model.IdentityParticipant: store, model.IdentityGuest: store}
	log := zerolog.Nop()

	answers := NewAnswerService(stores, tokens, questions, log)
	answers.backoff = func(int) time.Duration { return 0 }
	violations := NewViolationService(stores, tokens, log)

	return &engineFixture{
		sessions: NewExamSessionService(
			stores, tokens, fakeFormats{}, questions,
			answers, violations, NewScoringService(), log,
		),
		store:  store,
		tokens: tokens,
		id:     model.Identity{Kind: model.IdentityParticipant, Key: "7"},
	}
}

func TestStartCreatesThenResumes(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	first, err := fx.sessions.Start(ctx, fx.id, model.VariantShort, nil)
	require.NoError(t, err)
	assert.False(t, first.Resumed)
	assert.Equal(t, 1, first.CurrentPart)
	assert.Equal(t, model.SessionStatusInProgress, first.Status)

	second, err := fx.sessions.Start(ctx, fx.id, model.VariantFull, nil)
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.CorrelationID, second.CorrelationID)
	assert.Equal(t, model.VariantShort, second.Variant, "resume keeps the original variant")
}

func TestStartRejectsUnknownCustomFormat(t *testing.T) {
	fx := newEngineFixture(t)

	_, err := fx.sessions.Start(context.Background(), fx.id, model.VariantCustom, nil)
	assert.ErrorIs(t, err, ErrFormatUnavailable)
}

func TestStartAppliesPendingThreshold(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	sess := model.NewExamSession(fx.id, model.VariantShort, nil)
	fx.store.sessions[sess.ID] = sess
	for i := 0; i < model.ViolationLimit; i++ {
		_, err := fx.store.AppendViolation(ctx, &model.Violation{
			SessionID: sess.ID, IdentityKind: fx.id.Kind, IdentityKey: fx.id.Key,
			Type: model.ViolationTabSwitch, DetectedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	state, err := fx.sessions.Start(ctx, fx.id, model.VariantShort, nil)
	require.NoError(t, err)

	assert.Equal(t, model.SessionStatusDisqualified, state.Status)
	assert.NotNil(t, sess.DisqualifiedAt)
	assert.Equal(t, 1, fx.store.audits)
}

func TestEnterPartInitializesBudgetAndIssuesToken(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	_, err := fx.sessions.Start(ctx, fx.id, model.VariantShort, nil)
	require.NoError(t, err)

	view, err := fx.sessions.EnterPart(ctx, fx.id, 1)
	require.NoError(t, err)

	assert.Equal(t, defaultFormats[model.VariantShort][1].TimeLimitSeconds, view.RemainingTime)
	assert.NotEmpty(t, view.ExamSessionID)
	assert.Len(t, view.Questions, 2)
	for _, q := range view.Questions {
		assert.Empty(t, q.Selected)
	}
	assert.False(t, view.TimedOut)
}

func TestEnterPartPrefillsStagedSelections(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	_, err := fx.sessions.Start(ctx, fx.id, model.VariantShort, nil)
	require.NoError(t, err)

	sess, err := fx.store.LoadActive(ctx, fx.id)
	require.NoError(t, err)
	sess.Staging.Merge(1, map[int64]string{11: "A"})

	view, err := fx.sessions.EnterPart(ctx, fx.id, 1)
	require.NoError(t, err)

	selected := make(map[int64]string)
	for _, q := range view.Questions {
		if q.Selected != "" {
			selected[q.ID] = q.Selected
		}
	}
	assert.Equal(t, map[int64]string{11: "A"}, selected)
}

func TestEnterPartRejectsOutOfOrder(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	_, err := fx.sessions.Start(ctx, fx.id, model.VariantShort, nil)
	require.NoError(t, err)

	_, err = fx.sessions.EnterPart(ctx, fx.id, 2)
	assert.ErrorIs(t, err, ErrWrongPart)

	_, err = fx.sessions.EnterPart(ctx, fx.id, 0)
	assert.ErrorIs(t, err, ErrWrongPart)

	_, err = fx.sessions.EnterPart(ctx, fx.id, 4)
	assert.ErrorIs(t, err, ErrWrongPart)
}

func TestEnterPartAutoCompletesExpiredBudget(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	_, err := fx.sessions.Start(ctx, fx.id, model.VariantShort, nil)
	require.NoError(t, err)

	sess, err := fx.store.LoadActive(ctx, fx.id)
	require.NoError(t, err)
	sess.RemainingTime = intPtr(0)

	view, err := fx.sessions.EnterPart(ctx, fx.id, 1)
	require.NoError(t, err)

	assert.True(t, view.TimedOut)
	require.NotNil(t, view.Completion)
	assert.True(t, view.Completion.AutoTimeout)
	assert.Equal(t, 2, view.Completion.NextPart)
	assert.Equal(t, 2, sess.CurrentPart)
	assert.Nil(t, sess.RemainingTime, "next part budget re-initializes on entry")
}

func TestCompletePartAdvancesAndFinishes(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	state, err := fx.sessions.Start(ctx, fx.id, model.VariantShort, nil)
	require.NoError(t, err)

	// Part 1.
	view, err := fx.sessions.EnterPart(ctx, fx.id, 1)
	require.NoError(t, err)
	completion, err := fx.sessions.CompletePart(ctx, fx.id, view.ExamSessionID, 1,
		map[string]string{"11": "A", "12": "C"}, 300)
	require.NoError(t, err)
	assert.False(t, completion.Finished)
	assert.Equal(t, 2, completion.NextPart)
	assert.Contains(t, fx.tokens.revoked, view.ExamSessionID)

	// Part 2.
	view, err = fx.sessions.EnterPart(ctx, fx.id, 2)
	require.NoError(t, err)
	completion, err = fx.sessions.CompletePart(ctx, fx.id, view.ExamSessionID, 2,
		map[string]string{"21": "C"}, 200)
	require.NoError(t, err)
	assert.Equal(t, 3, completion.NextPart)

	// Part 3 finishes and scores.
	view, err = fx.sessions.EnterPart(ctx, fx.id, 3)
	require.NoError(t, err)
	completion, err = fx.sessions.CompletePart(ctx, fx.id, view.ExamSessionID, 3,
		map[string]string{"31": "D"}, 100)
	require.NoError(t, err)

	assert.True(t, completion.Finished)
	assert.Equal(t, model.SessionStatusFinished, completion.Status)
	require.NotNil(t, completion.Result)

	// 11:A correct, 12:C incorrect, 21:C correct, 31:D correct.
	assert.Equal(t, 0.75, completion.Result.Parts[0].Score)
	assert.Equal(t, 1.0, completion.Result.Parts[1].Score)
	assert.Equal(t, 1.0, completion.Result.Parts[2].Score)
	assert.Equal(t, 2.75, completion.Result.TotalScore)
	assert.Equal(t, 40, completion.Result.MaxQuestions)

	sess, err := fx.store.LoadByCorrelation(ctx, fx.id, state.CorrelationID)
	require.NoError(t, err)
	assert.Nil(t, sess.Staging, "staging cleared at final commit")
	assert.NotNil(t, sess.FinishedAt)
	assert.Len(t, fx.store.committed[sess.ID], 4)
}

func TestCompletePartRejectsTerminalSession(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	_, err := fx.sessions.Start(ctx, fx.id, model.VariantShort, nil)
	require.NoError(t, err)
	view, err := fx.sessions.EnterPart(ctx, fx.id, 1)
	require.NoError(t, err)

	sess, err := fx.store.LoadActive(ctx, fx.id)
	require.NoError(t, err)
	now := time.Now()
	sess.FinishedAt = &now

	_, err = fx.sessions.CompletePart(ctx, fx.id, view.ExamSessionID, 1, nil, 10)
	assert.ErrorIs(t, err, ErrSessionOver)
}

func TestGetResult(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	state, err := fx.sessions.Start(ctx, fx.id, model.VariantShort, nil)
	require.NoError(t, err)

	// Unfinished sessions read as not ready.
	_, err = fx.sessions.GetResult(ctx, fx.id, state.CorrelationID)
	assert.ErrorIs(t, err, ErrResultNotReady)

	// Unknown correlation ids are indistinguishable from missing results.
	_, err = fx.sessions.GetResult(ctx, fx.id, uuid.New())
	assert.ErrorIs(t, err, ErrResultNotReady)

	// Finish the session through all three parts.
	for part := 1; part <= 3; part++ {
		view, err := fx.sessions.EnterPart(ctx, fx.id, part)
		require.NoError(t, err)
		_, err = fx.sessions.CompletePart(ctx, fx.id, view.ExamSessionID, part, nil, 60)
		require.NoError(t, err)
	}

	result, err := fx.sessions.GetResult(ctx, fx.id, state.CorrelationID)
	require.NoError(t, err)

	assert.Equal(t, state.CorrelationID, result.CorrelationID)
	assert.Equal(t, model.SessionStatusFinished, result.Status)
	require.NotNil(t, result.Result)
	assert.Equal(t, model.RankBronze, result.Result.Rank)
	assert.Len(t, fx.store.archived, 1, "draft state released after the read")
}

func TestGetResultForDisqualifiedSession(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	state, err := fx.sessions.Start(ctx, fx.id, model.VariantShort, nil)
	require.NoError(t, err)
	sess, err := fx.store.LoadActive(ctx, fx.id)
	require.NoError(t, err)

	now := time.Now()
	reason := DisqualifyReasonViolations
	sess.DisqualifiedAt = &now
	sess.FinishedAt = &now
	sess.DisqualifyReason = &reason

	result, err := fx.sessions.GetResult(ctx, fx.id, state.CorrelationID)
	require.NoError(t, err)

	assert.Equal(t, model.SessionStatusDisqualified, result.Status)
	require.NotNil(t, result.DisqualifyReason)
	assert.Equal(t, reason, *result.DisqualifyReason)
	assert.Nil(t, result.Result, "disqualified sessions carry no score")
}
