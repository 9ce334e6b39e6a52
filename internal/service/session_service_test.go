package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulpass/cdl-backend/internal/bank"
	"github.com/haulpass/cdl-backend/internal/config"
	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/haulpass/cdl-backend/internal/store"
)

func testManagerConfig() *config.Config {
	return &config.Config{
		ExamLength:       10,
		ExamDuration:     2 * time.Hour,
		PassThreshold:    80,
		BootDelay:        time.Millisecond,
		SubmitDelay:      time.Millisecond,
		DrillDuration:    7 * time.Minute,
		DrillPaceSeconds: 45,
		DrillMinAttempts: 10,
		DrillQualifyPct:  80,
	}
}

func testManagerBank() *bank.Bank {
	questions := make([]model.Question, 40)
	for i := range questions {
		questions[i] = model.Question{
			ID:             i + 1,
			LicenseClasses: []string{"A", "B", "C", "D"},
			Category:       "general-knowledge",
			Text:           fmt.Sprintf("question %d", i+1),
			Options:        []string{"w", "x", "y", "z"},
			CorrectIndex:   i % 4,
		}
	}
	return bank.New(questions)
}

func newTestManager() *SessionManager {
	kv := store.NewMemoryStore()
	profiles := NewProfileService(kv, zerolog.Nop())
	return NewSessionManager(testManagerConfig(), testManagerBank(), kv, profiles, nil, zerolog.Nop())
}

func TestExamEngineReusedPerDevice(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	first, err := m.Exam(ctx, "dev-1")
	require.NoError(t, err)
	second, err := m.Exam(ctx, "dev-1")
	require.NoError(t, err)
	assert.Same(t, first, second)

	other, err := m.Exam(ctx, "dev-2")
	require.NoError(t, err)
	assert.NotSame(t, first, other)
}

func TestResetReplacesEngine(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	first, err := m.Exam(ctx, "dev-1")
	require.NoError(t, err)

	replaced, err := m.Reset(ctx, "dev-1")
	require.NoError(t, err)
	assert.NotSame(t, first, replaced)

	current, err := m.Exam(ctx, "dev-1")
	require.NoError(t, err)
	assert.Same(t, replaced, current)
}

func TestDrillLifecycle(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	_, ok := m.Drill("dev-1")
	assert.False(t, ok)

	d, err := m.StartDrill(ctx, "dev-1", "general-knowledge", model.DrillModeStudy)
	require.NoError(t, err)

	found, ok := m.Drill("dev-1")
	require.True(t, ok)
	assert.Same(t, d, found)

	summary, ok := m.EndDrill("dev-1")
	require.True(t, ok)
	assert.Equal(t, "general-knowledge", summary.Category)

	_, ok = m.Drill("dev-1")
	assert.False(t, ok)
}

func TestStartDrillUnknownCategory(t *testing.T) {
	m := newTestManager()

	_, err := m.StartDrill(context.Background(), "dev-1", "no-such-topic", model.DrillModeTimed)
	assert.Error(t, err)
}

func TestShutdownClearsEngines(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	first, err := m.Exam(ctx, "dev-1")
	require.NoError(t, err)
	_, err = m.StartDrill(ctx, "dev-1", "general-knowledge", model.DrillModeStudy)
	require.NoError(t, err)

	m.Shutdown()

	_, ok := m.Drill("dev-1")
	assert.False(t, ok)

	rebooted, err := m.Exam(ctx, "dev-1")
	require.NoError(t, err)
	assert.NotSame(t, first, rebooted)
}
