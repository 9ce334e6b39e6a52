package model

// DrillMode selects the behavior of a single-category practice session.
type DrillMode string

const (
	// DrillModeTimed runs against a fixed session clock.
	DrillModeTimed DrillMode = "drill"
	// DrillModeStudy is untimed with free grid navigation.
	DrillModeStudy DrillMode = "study"
)

// StartDrillRequest is the payload for opening a drill station.
type StartDrillRequest struct {
	Category string `json:"category" binding:"required,min=1,max=64"`
	Mode     string `json:"mode" binding:"required,oneof=drill study"`
}

// DrillAnswerRequest selects an option for the current drill question.
type DrillAnswerRequest struct {
	OptionIndex *int `json:"option_index" binding:"required,min=0,max=3"`
}

// DrillReveal is returned immediately after a drill answer is accepted.
type DrillReveal struct {
	Correct      bool   `json:"correct"`
	CorrectIndex int    `json:"correct_index"`
	Explanation  string `json:"explanation"`
	Streak       int    `json:"streak"`
}

// DrillSummary describes the state of a drill session for the summary
// screen and the completion gate.
type DrillSummary struct {
	Category    string `json:"category"`
	Mode        string `json:"mode"`
	PoolSize    int    `json:"pool_size"`
	Attempted   int    `json:"attempted"`
	Correct     int    `json:"correct"`
	AccuracyPct int    `json:"accuracy_pct"`
	BestStreak  int    `json:"best_streak"`
	Qualified   bool   `json:"qualified"`
	Complete    bool   `json:"complete"`
	// RemainingSeconds is only meaningful in timed mode.
	RemainingSeconds int `json:"remaining_seconds"`
}
