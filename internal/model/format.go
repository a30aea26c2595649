package model

// ExamVariant selects the exam length.
type ExamVariant string

const (
	VariantShort  ExamVariant = "short"
	VariantMedium ExamVariant = "medium"
	VariantFull   ExamVariant = "full"
	VariantCustom ExamVariant = "custom"
)

// PartFormat is the resolved configuration for one part of one variant.
type PartFormat struct {
	QuestionCount    int `json:"question_count"`
	TimeLimitSeconds int `json:"time_limit_seconds"`
}

// ExamFormat maps part number (1..3) to its configuration.
type ExamFormat map[int]PartFormat

// TotalQuestions sums the question counts across all parts. Rank thresholds
// are scaled against this value.
func (f ExamFormat) TotalQuestions() int {
	total := 0
	for _, p := range f {
		total += p.QuestionCount
	}
	return total
}
