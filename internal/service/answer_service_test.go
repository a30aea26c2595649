package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/sinaptika/tryout-backend/internal/sessionstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnswerFixture(t *testing.T) (*AnswerService, *fakeStore, *fakeTokens, *model.ExamSession, *model.PartToken) {
	t.Helper()

	store := newFakeStore()
	tokens := newFakeTokens()
	questions := newFakeQuestions(
		model.Question{ID: 11, Part: 1, Number: 1, CorrectChoice: "A"},
		model.Question{ID: 12, Part: 1, Number: 2, CorrectChoice: "B"},
		model.Question{ID: 21, Part: 2, Number: 1, CorrectChoice: "C"},
	)
	stores := Stores{model.IdentityParticipant: store, model.IdentityGuest: store}
	svc := NewAnswerService(stores, tokens, questions, zerolog.Nop())
	svc.backoff = func(int) time.Duration { return 0 }

	id := model.Identity{Kind: model.IdentityParticipant, Key: "42"}
	sess := model.NewExamSession(id, model.VariantShort, nil)
	store.sessions[sess.ID] = sess

	tok, err := tokens.Issue(context.Background(), id, sess.ID, 1)
	require.NoError(t, err)

	return svc, store, tokens, sess, tok
}

func TestStageAnswerLastWriteWins(t *testing.T) {
	svc, _, _, sess, tok := newAnswerFixture(t)
	ctx := context.Background()
	id := sess.Identity()

	req := &model.StageAnswerRequest{ExamSessionID: tok.ID.String(), QuestionID: 11, Choice: "A", Part: 1}
	require.NoError(t, svc.StageAnswer(ctx, id, req))

	req.Choice = "D"
	require.NoError(t, svc.StageAnswer(ctx, id, req))

	assert.Equal(t, "D", sess.Staging[1][11])
	assert.Len(t, sess.Staging[1], 1)
}

func TestStageAnswerDropsMalformed(t *testing.T) {
	svc, _, _, sess, tok := newAnswerFixture(t)
	ctx := context.Background()
	id := sess.Identity()

	// Bad question id and bad choice both succeed without staging anything.
	require.NoError(t, svc.StageAnswer(ctx, id, &model.StageAnswerRequest{
		ExamSessionID: tok.ID.String(), QuestionID: -3, Choice: "A", Part: 1,
	}))
	require.NoError(t, svc.StageAnswer(ctx, id, &model.StageAnswerRequest{
		ExamSessionID: tok.ID.String(), QuestionID: 11, Choice: "Z", Part: 1,
	}))

	assert.Empty(t, sess.Staging[1])
}

func TestStageAnswerClampsReportedTime(t *testing.T) {
	svc, _, _, sess, tok := newAnswerFixture(t)
	ctx := context.Background()
	id := sess.Identity()
	sess.RemainingTime = intPtr(600)

	reported := 500
	require.NoError(t, svc.StageAnswer(ctx, id, &model.StageAnswerRequest{
		ExamSessionID: tok.ID.String(), QuestionID: 11, Choice: "A", Part: 1, RemainingTime: &reported,
	}))
	assert.Equal(t, 500, *sess.RemainingTime)

	// A larger report never restores time.
	reported = 9000
	require.NoError(t, svc.StageAnswer(ctx, id, &model.StageAnswerRequest{
		ExamSessionID: tok.ID.String(), QuestionID: 11, Choice: "A", Part: 1, RemainingTime: &reported,
	}))
	assert.Equal(t, 500, *sess.RemainingTime)
}

func TestStageAnswerPreservesOtherStagedEntries(t *testing.T) {
	svc, _, _, sess, tok := newAnswerFixture(t)
	ctx := context.Background()
	id := sess.Identity()

	// An earlier batch staged question 12; the single-answer write for
	// question 11 merges under the same exclusive update and must not
	// overwrite it.
	require.NoError(t, svc.StageBatch(ctx, id, &model.StageBatchRequest{
		ExamSessionID: tok.ID.String(), Part: 1, Answers: map[string]string{"12": "B"},
	}))
	require.NoError(t, svc.StageAnswer(ctx, id, &model.StageAnswerRequest{
		ExamSessionID: tok.ID.String(), QuestionID: 11, Choice: "A", Part: 1,
	}))

	assert.Equal(t, "B", sess.Staging[1][12])
	assert.Equal(t, "A", sess.Staging[1][11])
}

func TestStageAnswerRetriesDeadlocks(t *testing.T) {
	svc, store, _, sess, tok := newAnswerFixture(t)

	store.updateErrs = []error{
		fmt.Errorf("wrapped: %w", sessionstore.ErrDeadlock),
	}

	err := svc.StageAnswer(context.Background(), sess.Identity(), &model.StageAnswerRequest{
		ExamSessionID: tok.ID.String(), QuestionID: 11, Choice: "C", Part: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "C", sess.Staging[1][11])
}

func TestStageAnswerRejectsTerminalSession(t *testing.T) {
	svc, _, _, sess, tok := newAnswerFixture(t)
	now := time.Now()
	sess.FinishedAt = &now

	err := svc.StageAnswer(context.Background(), sess.Identity(), &model.StageAnswerRequest{
		ExamSessionID: tok.ID.String(), QuestionID: 11, Choice: "A", Part: 1,
	})
	assert.ErrorIs(t, err, ErrSessionOver)
}

func TestStageAnswerRejectsWrongPartToken(t *testing.T) {
	svc, _, _, sess, tok := newAnswerFixture(t)

	err := svc.StageAnswer(context.Background(), sess.Identity(), &model.StageAnswerRequest{
		ExamSessionID: tok.ID.String(), QuestionID: 11, Choice: "A", Part: 2,
	})
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestStageAnswerRejectsUnknownToken(t *testing.T) {
	svc, _, _, sess, _ := newAnswerFixture(t)

	err := svc.StageAnswer(context.Background(), sess.Identity(), &model.StageAnswerRequest{
		ExamSessionID: "b2fbee2a-24f0-41a2-9f2f-3c2cf4b0ac1e", QuestionID: 11, Choice: "A", Part: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestStageBatchMergesSanitized(t *testing.T) {
	svc, _, _, sess, tok := newAnswerFixture(t)

	err := svc.StageBatch(context.Background(), sess.Identity(), &model.StageBatchRequest{
		ExamSessionID: tok.ID.String(),
		Part:          1,
		Answers: map[string]string{
			"11":       "A",
			"12":       "C",
			"not-a-id": "A", // dropped
			"-7":       "B", // dropped
			"21":       "X", // dropped
		},
	})
	require.NoError(t, err)

	assert.Equal(t, map[int64]string{11: "A", 12: "C"}, sess.Staging[1])
}

func TestStageBatchRetriesDeadlocks(t *testing.T) {
	svc, store, _, sess, tok := newAnswerFixture(t)

	// Two deadlocks, then the scripted queue is empty and the merge applies.
	store.updateErrs = []error{
		fmt.Errorf("wrapped: %w", sessionstore.ErrDeadlock),
		fmt.Errorf("wrapped: %w", sessionstore.ErrDeadlock),
	}

	err := svc.StageBatch(context.Background(), sess.Identity(), &model.StageBatchRequest{
		ExamSessionID: tok.ID.String(),
		Part:          1,
		Answers:       map[string]string{"11": "B"},
	})
	require.NoError(t, err)
	assert.Equal(t, "B", sess.Staging[1][11])
}

func TestStageBatchExhaustsToSystemBusy(t *testing.T) {
	svc, store, _, sess, tok := newAnswerFixture(t)

	store.updateErrs = []error{
		sessionstore.ErrDeadlock,
		sessionstore.ErrDeadlock,
		sessionstore.ErrDeadlock,
	}

	err := svc.StageBatch(context.Background(), sess.Identity(), &model.StageBatchRequest{
		ExamSessionID: tok.ID.String(),
		Part:          1,
		Answers:       map[string]string{"11": "B"},
	})
	assert.ErrorIs(t, err, ErrSystemBusy)
	assert.Empty(t, sess.Staging[1], "no partial merge after exhaustion")
}

func TestStageBatchRejectsTerminalSession(t *testing.T) {
	svc, _, _, sess, tok := newAnswerFixture(t)
	now := time.Now()
	sess.FinishedAt = &now

	err := svc.StageBatch(context.Background(), sess.Identity(), &model.StageBatchRequest{
		ExamSessionID: tok.ID.String(),
		Part:          1,
		Answers:       map[string]string{"11": "A"},
	})
	assert.ErrorIs(t, err, ErrSessionOver)
}

func TestCommitFinalAnswers(t *testing.T) {
	svc, store, _, sess, _ := newAnswerFixture(t)
	ctx := context.Background()

	sess.Staging.Merge(1, map[int64]string{11: "A", 12: "C"})
	sess.Staging.Merge(2, map[int64]string{21: "C", 999: "A"}) // 999 has no question row

	answers, err := svc.CommitFinalAnswers(ctx, sess)
	require.NoError(t, err)

	require.Len(t, answers, 3, "answer for the missing question is dropped")
	byQID := make(map[int64]model.Answer, len(answers))
	for _, a := range answers {
		byQID[a.QuestionID] = a
	}

	assert.True(t, byQID[11].Correct)
	assert.False(t, byQID[12].Correct)
	assert.True(t, byQID[21].Correct)
	assert.Equal(t, 1, byQID[11].Part)
	assert.Equal(t, 2, byQID[21].Part)

	assert.Nil(t, sess.Staging, "staging cleared after commit")
	assert.Len(t, store.committed[sess.ID], 3)
}
