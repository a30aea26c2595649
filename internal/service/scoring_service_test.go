package service

import (
	"testing"

	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestScorePart(t *testing.T) {
	s := NewScoringService()

	assert.Equal(t, 0.0, s.ScorePart(0, 0))
	assert.Equal(t, 10.0, s.ScorePart(10, 0))
	assert.Equal(t, 9.0, s.ScorePart(10, 4))
	assert.Equal(t, -1.75, s.ScorePart(0, 7))
	assert.Equal(t, 1.25, s.ScorePart(2, 3))
	// 40-question part, 30 correct, 5 wrong, 5 blank.
	assert.Equal(t, 28.75, s.ScorePart(30, 5))
}

func TestBuildResult(t *testing.T) {
	s := NewScoringService()
	format := defaultFormats[model.VariantShort] // 20 + 10 + 10 = 40 questions

	answers := make([]model.Answer, 0)
	add := func(part, correct, incorrect int) {
		for i := 0; i < correct; i++ {
			answers = append(answers, model.Answer{Part: part, Correct: true})
		}
		for i := 0; i < incorrect; i++ {
			answers = append(answers, model.Answer{Part: part, Correct: false})
		}
	}
	add(1, 12, 5) // 12 - 1.25 = 10.75
	add(2, 8, 2)  // 8 - 0.5 = 7.5
	add(3, 10, 0) // 10

	result := s.BuildResult(answers, format)

	assert.Equal(t, 40, result.MaxQuestions)
	assert.Len(t, result.Parts, 3)

	assert.Equal(t, 10.75, result.Parts[0].Score)
	assert.Equal(t, 3, result.Parts[0].Unanswered)
	assert.Equal(t, 7.5, result.Parts[1].Score)
	assert.Equal(t, 0, result.Parts[1].Unanswered)
	assert.Equal(t, 10.0, result.Parts[2].Score)

	assert.Equal(t, 28.25, result.TotalScore)
	// Platinum cutoff at 40 questions is 61*40/95 = 25.684...
	assert.Equal(t, model.RankPlatinum, result.Rank)
}

func TestBuildResultEmpty(t *testing.T) {
	s := NewScoringService()
	format := defaultFormats[model.VariantFull]

	result := s.BuildResult(nil, format)

	assert.Equal(t, 0.0, result.TotalScore)
	assert.Equal(t, 95, result.MaxQuestions)
	assert.Equal(t, model.RankBronze, result.Rank)
	for i, part := range result.Parts {
		assert.Equal(t, i+1, part.Part)
		assert.Equal(t, format[i+1].QuestionCount, part.Unanswered)
	}
}

func TestRankReferenceThresholds(t *testing.T) {
	s := NewScoringService()

	assert.Equal(t, model.RankPlatinum, s.Rank(61.0, 95))
	assert.Equal(t, model.RankGold, s.Rank(60.99, 95))
	assert.Equal(t, model.RankGold, s.Rank(51.0, 95))
	assert.Equal(t, model.RankSilver, s.Rank(50.99, 95))
	assert.Equal(t, model.RankSilver, s.Rank(36.0, 95))
	assert.Equal(t, model.RankBronze, s.Rank(35.99, 95))
	assert.Equal(t, model.RankBronze, s.Rank(-5.0, 95))
}

func TestRankScalesWithExamSize(t *testing.T) {
	s := NewScoringService()

	// 40-question exam: platinum cutoff 61*40/95 = 25.684..., unrounded.
	assert.Equal(t, model.RankPlatinum, s.Rank(25.69, 40))
	assert.Equal(t, model.RankGold, s.Rank(25.68, 40))

	// Gold cutoff 51*40/95 = 21.473...
	assert.Equal(t, model.RankGold, s.Rank(21.48, 40))
	assert.Equal(t, model.RankSilver, s.Rank(21.47, 40))

	// Silver cutoff 36*40/95 = 15.157...
	assert.Equal(t, model.RankSilver, s.Rank(15.16, 40))
	assert.Equal(t, model.RankBronze, s.Rank(15.15, 40))
}
