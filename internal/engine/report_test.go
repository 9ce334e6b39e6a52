package engine

import (
	"testing"
	"time"

	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportQuestions(n int) []*model.Question {
	out := make([]*model.Question, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, &model.Question{
			ID:           i,
			Category:     testCategories[i%len(testCategories)],
			Text:         "q",
			Options:      []string{"w", "x", "y", "z"},
			CorrectIndex: i % 4,
			Explanation:  "because",
		})
	}
	return out
}

func TestBuildScoreReportPure(t *testing.T) {
	questions := reportQuestions(10)
	answers := map[int]int{0: questions[0].CorrectIndex, 3: 0, 7: questions[7].CorrectIndex}

	first, firstLog := BuildScoreReport(questions, answers, 45*time.Minute, 80)
	second, secondLog := BuildScoreReport(questions, answers, 45*time.Minute, 80)

	assert.Equal(t, first, second, "scoring is a pure function of its inputs")
	assert.Equal(t, firstLog, secondLog)
}

func TestBuildScoreReportWeakestIsFirstIncorrect(t *testing.T) {
	questions := reportQuestions(6)
	answers := make(map[int]int)
	for pos, q := range questions {
		answers[pos] = q.CorrectIndex
	}
	// Make position 2 wrong; a later wrong answer must not win.
	answers[2] = (questions[2].CorrectIndex + 1) % 4
	answers[5] = (questions[5].CorrectIndex + 1) % 4

	report, log := BuildScoreReport(questions, answers, time.Minute, 80)
	assert.Equal(t, questions[2].Category, report.WeakestCategory)
	assert.Equal(t, 4, report.Correct)
	require.Len(t, log, 6)
	assert.False(t, log[2].IsCorrect)
	require.NotNil(t, log[2].SelectedIndex)
}

func TestBuildScoreReportNoWeaknessSentinel(t *testing.T) {
	questions := reportQuestions(4)
	answers := make(map[int]int)
	for pos, q := range questions {
		answers[pos] = q.CorrectIndex
	}

	report, _ := BuildScoreReport(questions, answers, time.Minute, 80)
	assert.Equal(t, model.WeakestCategoryNone, report.WeakestCategory)
	assert.Equal(t, 100, report.Score)
	assert.True(t, report.Passed)
}

func TestBuildScoreReportUnansweredIncorrect(t *testing.T) {
	questions := reportQuestions(4)

	report, log := BuildScoreReport(questions, nil, 0, 80)
	assert.Equal(t, 0, report.Correct)
	assert.Equal(t, 0, report.Score)
	assert.False(t, report.Passed)
	for _, entry := range log {
		assert.Nil(t, entry.SelectedIndex)
		assert.False(t, entry.IsCorrect)
	}
}

func TestBuildScoreReportEmptyInput(t *testing.T) {
	report, log := BuildScoreReport(nil, nil, 0, 80)
	assert.Equal(t, 0, report.Score)
	assert.Empty(t, log)
	assert.Equal(t, model.WeakestCategoryNone, report.WeakestCategory)
}

func TestElapsedMinutesCeil(t *testing.T) {
	assert.Equal(t, 0, elapsedMinutes(0))
	assert.Equal(t, 1, elapsedMinutes(30*time.Second))
	assert.Equal(t, 1, elapsedMinutes(time.Minute))
	assert.Equal(t, 2, elapsedMinutes(61*time.Second))
	assert.Equal(t, 0, elapsedMinutes(-time.Minute))
}
