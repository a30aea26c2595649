package model

// Rank buckets an aggregate score against variant-scaled thresholds.
type Rank string

const (
	RankPlatinum Rank = "PLATINUM"
	RankGold     Rank = "GOLD"
	RankSilver   Rank = "SILVER"
	RankBronze   Rank = "BRONZE"
)

// PartResult is the scored breakdown for one part.
type PartResult struct {
	Part       int     `json:"part"`
	Correct    int     `json:"correct"`
	Incorrect  int     `json:"incorrect"`
	Unanswered int     `json:"unanswered"`
	Score      float64 `json:"score"`
}

// ExamResult is the final, immutable outcome of a finished session.
type ExamResult struct {
	Parts        []PartResult `json:"parts"`
	TotalScore   float64      `json:"total_score"`
	MaxQuestions int          `json:"max_questions"`
	Rank         Rank         `json:"rank"`
}
