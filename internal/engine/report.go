package engine

import (
	"math"
	"time"

	"github.com/haulpass/cdl-backend/internal/model"
)

// BuildScoreReport grades a completed session. Pure: two calls with
// identical inputs produce identical reports.
//
// Unanswered positions count as incorrect. Score is round(correct/total*100);
// the pass threshold is boundary-inclusive. The weakest category is the
// category of the first incorrectly answered question in position order, or
// the sentinel when every position is correct.
func BuildScoreReport(questions []*model.Question, answers map[int]int, elapsed time.Duration, passThreshold int) (model.ScoreReport, []model.AnswerLogEntry) {
	total := len(questions)
	correct := 0
	weakest := model.WeakestCategoryNone
	log := make([]model.AnswerLogEntry, 0, total)

	for pos, q := range questions {
		entry := model.AnswerLogEntry{
			ID:           q.ID,
			Category:     q.Category,
			Text:         q.Text,
			Options:      q.Options,
			Explanation:  q.Explanation,
			CorrectIndex: q.CorrectIndex,
		}

		if sel, ok := answers[pos]; ok {
			selected := sel
			entry.SelectedIndex = &selected
			entry.IsCorrect = sel == q.CorrectIndex
		}

		if entry.IsCorrect {
			correct++
		} else if weakest == model.WeakestCategoryNone {
			weakest = q.Category
		}

		log = append(log, entry)
	}

	score := 0
	if total > 0 {
		score = int(math.Round(float64(correct) / float64(total) * 100))
	}

	return model.ScoreReport{
		Total:           total,
		Correct:         correct,
		Score:           score,
		Passed:          score >= passThreshold,
		WeakestCategory: weakest,
		ElapsedMinutes:  elapsedMinutes(elapsed),
	}, log
}

// elapsedMinutes rounds elapsed time up to whole minutes.
func elapsedMinutes(elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	return int(math.Ceil(elapsed.Minutes()))
}
