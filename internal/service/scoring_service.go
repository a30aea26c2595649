package service

import (
	"math"

	"github.com/sinaptika/tryout-backend/internal/model"
)

// Scoring weights and the reference exam the rank thresholds are defined
// against. Thresholds scale linearly with the actual exam's question count.
const (
	correctWeight   = 1.0
	incorrectWeight = -0.25

	referenceQuestions = 95

	platinumBaseline = 61.0
	goldBaseline     = 51.0
	silverBaseline   = 36.0
)

// ScoringService computes part and aggregate scores and the rank. It is pure:
// all inputs come from committed answers and the resolved exam format.
type ScoringService struct{}

// NewScoringService creates a new ScoringService.
func NewScoringService() *ScoringService {
	return &ScoringService{}
}

// ScorePart computes one part's score, rounded to 2 decimals. Unanswered
// questions contribute nothing.
func (s *ScoringService) ScorePart(correct, incorrect int) float64 {
	return round2(float64(correct)*correctWeight + float64(incorrect)*incorrectWeight)
}

// BuildResult scores committed answers against the exam format and assigns
// the rank. Scores are rounded to 2 decimals at each part boundary and again
// at the aggregate.
func (s *ScoringService) BuildResult(answers []model.Answer, format model.ExamFormat) *model.ExamResult {
	correct := make(map[int]int, model.LastPart)
	incorrect := make(map[int]int, model.LastPart)
	for i := range answers {
		if answers[i].Correct {
			correct[answers[i].Part]++
		} else {
			incorrect[answers[i].Part]++
		}
	}

	result := &model.ExamResult{
		Parts:        make([]model.PartResult, 0, model.LastPart),
		MaxQuestions: format.TotalQuestions(),
	}

	total := 0.0
	for part := model.FirstPart; part <= model.LastPart; part++ {
		score := s.ScorePart(correct[part], incorrect[part])
		result.Parts = append(result.Parts, model.PartResult{
			Part:       part,
			Correct:    correct[part],
			Incorrect:  incorrect[part],
			Unanswered: format[part].QuestionCount - correct[part] - incorrect[part],
			Score:      score,
		})
		total += score
	}

	result.TotalScore = round2(total)
	result.Rank = s.Rank(result.TotalScore, result.MaxQuestions)
	return result
}

// Rank buckets an aggregate score. Baseline thresholds are defined against the
// 95-question reference exam and scaled by maxQuestions/95; the thresholds are
// compared unrounded while the score arrives already rounded to 2 decimals.
func (s *ScoringService) Rank(totalScore float64, maxQuestions int) model.Rank {
	scale := float64(maxQuestions) / referenceQuestions
	switch {
	case totalScore >= platinumBaseline*scale:
		return model.RankPlatinum
	case totalScore >= goldBaseline*scale:
		return model.RankGold
	case totalScore >= silverBaseline*scale:
		return model.RankSilver
	default:
		return model.RankBronze
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
