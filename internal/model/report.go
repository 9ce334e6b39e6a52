package model

// WeakestCategoryNone is the sentinel written when a completed session has
// no incorrect answers. Dashboard collaborators render it as a success
// state, not an error.
const WeakestCategoryNone = "no weakness detected"

// ScoreReport is the immutable result of a completed exam session.
type ScoreReport struct {
	Total           int    `json:"total"`
	Correct         int    `json:"correct"`
	Score           int    `json:"score"`
	Passed          bool   `json:"passed"`
	WeakestCategory string `json:"weakest_category"`
	ElapsedMinutes  int    `json:"elapsed_minutes"`
}

// AnswerLogEntry is one row of the raw answer log written for downstream
// dashboard consumption. SelectedIndex is nil for unanswered positions.
type AnswerLogEntry struct {
	ID            int      `json:"id"`
	Category      string   `json:"category"`
	IsCorrect     bool     `json:"isCorrect"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	Explanation   string   `json:"explanation"`
	SelectedIndex *int     `json:"selectedIndex"`
	CorrectIndex  int      `json:"correctIndex"`
}
