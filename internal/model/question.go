package model

// ValidChoices are the accepted answer labels.
const ValidChoices = "ABCDE"

// IsValidChoice reports whether a submitted choice is one of A..E.
func IsValidChoice(choice string) bool {
	if len(choice) != 1 {
		return false
	}
	for i := 0; i < len(ValidChoices); i++ {
		if choice[0] == ValidChoices[i] {
			return true
		}
	}
	return false
}

// Question is a single item from the read-only content store.
type Question struct {
	ID            int64             `json:"id"`
	Part          int               `json:"part"`
	Number        int               `json:"number"`
	PromptText    string            `json:"prompt_text"`
	PromptImage   *string           `json:"prompt_image,omitempty"`
	Choices       map[string]string `json:"choices"` // label A..E -> text
	CorrectChoice string            `json:"correct_choice"`
}

// QuestionForExam is a question stripped of its correct choice, safe to send
// to a test-taker.
type QuestionForExam struct {
	ID          int64             `json:"id"`
	Number      int               `json:"number"`
	PromptText  string            `json:"prompt_text"`
	PromptImage *string           `json:"prompt_image,omitempty"`
	Choices     map[string]string `json:"choices"`
	Selected    string            `json:"selected,omitempty"` // staged choice pre-fill
}

// ForExam strips answer-key data and pre-fills a previously staged selection.
func (q *Question) ForExam(selected string) QuestionForExam {
	return QuestionForExam{
		ID:          q.ID,
		Number:      q.Number,
		PromptText:  q.PromptText,
		PromptImage: q.PromptImage,
		Choices:     q.Choices,
		Selected:    selected,
	}
}
