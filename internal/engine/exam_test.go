package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/haulpass/cdl-backend/internal/bank"
	"github.com/haulpass/cdl-backend/internal/config"
	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/haulpass/cdl-backend/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDevice = "dev-1"

var testCategories = []string{
	"general-knowledge", "air-brakes", "combination-vehicles", "cargo",
}

func testBank(n int) *bank.Bank {
	questions := make([]model.Question, 0, n)
	for i := 1; i <= n; i++ {
		questions = append(questions, model.Question{
			ID:             i,
			LicenseClasses: []string{"A", "B"},
			Category:       testCategories[i%len(testCategories)],
			Text:           fmt.Sprintf("Question %d", i),
			Options:        []string{"w", "x", "y", "z"},
			CorrectIndex:   i % 4,
			Explanation:    "because",
		})
	}
	return bank.New(questions)
}

func testConfig() ExamConfig {
	return ExamConfig{
		Length:        70,
		Duration:      2 * time.Hour,
		PassThreshold: 80,
		BootDelay:     900 * time.Millisecond,
		SubmitDelay:   1500 * time.Millisecond,
	}
}

type captureSink struct {
	mu      sync.Mutex
	reports []model.ScoreReport
}

func (s *captureSink) Archive(_ context.Context, _, _ string, report model.ScoreReport, _ []model.AnswerLogEntry) {
	s.mu.Lock()
	s.reports = append(s.reports, report)
	s.mu.Unlock()
}

type testRig struct {
	engine *ExamEngine
	bank   *bank.Bank
	kv     *store.MemoryStore
	clock  *manualClock
	sched  *manualScheduler
	sink   *captureSink
}

func newTestRig(t *testing.T, kv *store.MemoryStore) *testRig {
	t.Helper()

	b := testBank(200)
	clock := newManualClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	sched := newManualScheduler()
	sink := &captureSink{}

	e := NewExamEngine(
		testConfig(), testDevice, b, kv,
		clock, sched, rand.New(rand.NewSource(99)), sink, zerolog.Nop(),
	)
	return &testRig{engine: e, bank: b, kv: kv, clock: clock, sched: sched, sink: sink}
}

// boot runs Init and the boot → manifest delay.
func (r *testRig) boot(t *testing.T) {
	t.Helper()
	require.NoError(t, r.engine.Init(context.Background()))
	r.sched.FireOnce()
	require.Equal(t, StateManifest, r.engine.CurrentState())
}

func (r *testRig) start(t *testing.T) {
	t.Helper()
	r.boot(t)
	require.NoError(t, r.engine.Start(context.Background()))
	require.Equal(t, StateActive, r.engine.CurrentState())
}

func sessionSnapshot(t *testing.T, kv *store.MemoryStore) *model.ExamSession {
	t.Helper()
	raw, ok, err := kv.Get(context.Background(), config.StorageKey.DeviceSessionKey(testDevice))
	require.NoError(t, err)
	if !ok {
		return nil
	}
	var snap model.ExamSession
	require.NoError(t, json.Unmarshal(raw, &snap))
	return &snap
}

func TestFreshSessionAssembly(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)

	view, err := rig.engine.View()
	require.NoError(t, err)

	assert.Len(t, view.Questions, 70)
	assert.Equal(t, 0, view.CurrentPosition)
	assert.Empty(t, view.Answers)
	assert.Empty(t, view.Flags)
	assert.Equal(t, int(2*time.Hour/time.Second), view.RemainingSeconds)
	assert.Regexp(t, `^DMV-\d{3}-\d{4}-\d{2}$`, view.ExamID)

	snap := sessionSnapshot(t, rig.kv)
	require.NotNil(t, snap)
	assert.Len(t, snap.QuestionIDs, 70)
	assert.Equal(t, snap.StartedAt+int64(2*time.Hour/time.Millisecond), snap.EndAt)
}

func TestSelectRecordsAndOverwrites(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)
	ctx := context.Background()

	require.NoError(t, rig.engine.Select(ctx, 5, 2))
	require.NoError(t, rig.engine.Select(ctx, 5, 3)) // changing an answer is allowed

	snap := sessionSnapshot(t, rig.kv)
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.Answers[5])
	assert.Len(t, snap.Answers, 1)
}

func TestSelectValidation(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)
	ctx := context.Background()

	assert.ErrorIs(t, rig.engine.Select(ctx, -1, 0), ErrInvalidPosition)
	assert.ErrorIs(t, rig.engine.Select(ctx, 70, 0), ErrInvalidPosition)
	assert.ErrorIs(t, rig.engine.Select(ctx, 0, 4), ErrInvalidOption)
	assert.ErrorIs(t, rig.engine.Select(ctx, 0, -1), ErrInvalidOption)
}

func TestGoToClamps(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)
	ctx := context.Background()

	require.NoError(t, rig.engine.GoTo(ctx, 500))
	snap := sessionSnapshot(t, rig.kv)
	assert.Equal(t, 69, snap.CurrentPosition)

	require.NoError(t, rig.engine.GoTo(ctx, -3))
	snap = sessionSnapshot(t, rig.kv)
	assert.Equal(t, 0, snap.CurrentPosition)
}

func TestResumeFidelity(t *testing.T) {
	kv := store.NewMemoryStore()
	first := newTestRig(t, kv)
	first.start(t)
	ctx := context.Background()

	require.NoError(t, first.engine.Select(ctx, 0, 1))
	require.NoError(t, first.engine.Select(ctx, 12, 2))
	require.NoError(t, first.engine.ToggleFlag(ctx, 3))
	require.NoError(t, first.engine.GoTo(ctx, 12))
	before := sessionSnapshot(t, kv)
	first.engine.Teardown()

	// Simulate a reload: a new engine over the same store, later in time.
	second := newTestRig(t, kv)
	second.clock.Advance(30 * time.Minute)
	second.boot(t)

	info := second.engine.Manifest()
	assert.True(t, info.Resume)
	assert.Equal(t, before.ExamID, info.ExamID)
	assert.Equal(t, 2, info.AnsweredCount)

	require.NoError(t, second.engine.Start(ctx))
	after := sessionSnapshot(t, kv)

	assert.Equal(t, before.QuestionIDs, after.QuestionIDs)
	assert.Equal(t, before.Answers, after.Answers)
	assert.Equal(t, []int{3}, after.Flags)
	assert.Equal(t, 12, after.CurrentPosition)
	assert.Equal(t, before.EndAt, after.EndAt, "resume must not mint a new deadline")
}

func TestFlagSurvivesReload(t *testing.T) {
	kv := store.NewMemoryStore()
	first := newTestRig(t, kv)
	first.start(t)
	ctx := context.Background()

	require.NoError(t, first.engine.GoTo(ctx, 7))
	require.NoError(t, first.engine.ToggleFlag(ctx, 3))
	first.engine.Teardown()

	second := newTestRig(t, kv)
	second.boot(t)
	require.NoError(t, second.engine.Start(ctx))

	view, err := second.engine.View()
	require.NoError(t, err)
	assert.Contains(t, view.Flags, 3)
	assert.Equal(t, 7, view.CurrentPosition)
}

func TestExpiredSnapshotAssemblesFresh(t *testing.T) {
	kv := store.NewMemoryStore()
	first := newTestRig(t, kv)
	first.start(t)
	before := sessionSnapshot(t, kv)
	first.engine.Teardown()

	second := newTestRig(t, kv)
	second.clock.Advance(3 * time.Hour) // deadline already in the past at init
	second.boot(t)

	info := second.engine.Manifest()
	assert.False(t, info.Resume)

	require.NoError(t, second.engine.Start(context.Background()))
	after := sessionSnapshot(t, kv)
	assert.NotEqual(t, before.EndAt, after.EndAt)
	// The exam id is reused until a session actually completes.
	assert.Equal(t, before.ExamID, after.ExamID)
}

func TestCorruptSnapshotDiscardedSilently(t *testing.T) {
	kv := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, config.StorageKey.DeviceSessionKey(testDevice), []byte("{not json")))

	rig := newTestRig(t, kv)
	rig.boot(t)
	assert.False(t, rig.engine.Manifest().Resume)

	require.NoError(t, rig.engine.Start(ctx))
	view, err := rig.engine.View()
	require.NoError(t, err)
	assert.Len(t, view.Questions, 70)
}

func TestSnapshotWithUnknownQuestionIDRejected(t *testing.T) {
	kv := store.NewMemoryStore()
	ctx := context.Background()

	rig := newTestRig(t, kv)
	future := rig.clock.Now().Add(time.Hour).UnixMilli()
	bad := model.ExamSession{
		ExamID:      "DMV-123-4567-89",
		License:     "A",
		QuestionIDs: []int{1, 2, 99999},
		Answers:     map[int]int{},
		EndAt:       future,
		StartedAt:   future - int64(2*time.Hour/time.Millisecond),
	}
	raw, _ := json.Marshal(&bad)
	require.NoError(t, kv.Set(ctx, config.StorageKey.DeviceSessionKey(testDevice), raw))

	rig.boot(t)
	assert.False(t, rig.engine.Manifest().Resume)
}

func TestSubmitIdempotent(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)
	ctx := context.Background()

	require.NoError(t, rig.engine.Submit(ctx))
	require.Equal(t, StateSubmitting, rig.engine.CurrentState())
	require.NoError(t, rig.engine.Submit(ctx)) // no-op

	rig.sched.FireOnce() // submitting → results
	require.Equal(t, StateResults, rig.engine.CurrentState())
	require.NoError(t, rig.engine.Submit(ctx)) // still a no-op

	assert.Len(t, rig.sink.reports, 1, "exactly one score computation")
	assert.Nil(t, sessionSnapshot(t, rig.kv), "exactly one persistence clear")

	_, ok, err := rig.kv.Get(ctx, config.StorageKey.DeviceExamIDKey(testDevice))
	require.NoError(t, err)
	assert.False(t, ok, "exam id cleared on completion")
}

func TestTimeoutForcesSubmitOnce(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)
	ctx := context.Background()

	require.NoError(t, rig.engine.Select(ctx, 0, rig.mustCorrect(t, 0)))

	rig.clock.Advance(2*time.Hour + time.Second)
	rig.sched.Tick()
	require.Equal(t, StateSubmitting, rig.engine.CurrentState())

	// The timer may fire once more before teardown; must not double-submit.
	rig.sched.Tick()
	rig.sched.FireOnce()

	report, _, err := rig.engine.Result()
	require.NoError(t, err)
	assert.Len(t, rig.sink.reports, 1)
	assert.Equal(t, 1, report.Correct, "unanswered positions scored incorrect")
	assert.Equal(t, 70, report.Total)
	assert.Equal(t, 120, report.ElapsedMinutes)
}

func TestGradedEventCarriesForcedFlag(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)

	var events []Event
	var mu sync.Mutex
	unsubscribe := rig.engine.Subscribe(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	defer unsubscribe()

	rig.clock.Advance(2*time.Hour + time.Second)
	rig.sched.Tick()
	rig.sched.FireOnce()

	mu.Lock()
	defer mu.Unlock()
	var graded *Event
	for i := range events {
		if events[i].Type == EventGraded {
			graded = &events[i]
		}
	}
	require.NotNil(t, graded)
	assert.True(t, graded.Forced, "timeout submit must mark the graded event forced")
}

func TestGradedEventManualSubmitNotForced(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)

	var events []Event
	var mu sync.Mutex
	unsubscribe := rig.engine.Subscribe(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, rig.engine.Submit(context.Background()))
	rig.sched.FireOnce()

	mu.Lock()
	defer mu.Unlock()
	var graded *Event
	for i := range events {
		if events[i].Type == EventGraded {
			graded = &events[i]
		}
	}
	require.NotNil(t, graded)
	assert.False(t, graded.Forced)
}

func TestMutationsRejectedAfterExpiry(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)
	ctx := context.Background()

	rig.clock.Advance(3 * time.Hour)
	assert.ErrorIs(t, rig.engine.Select(ctx, 0, 0), ErrNotActive)
	assert.Equal(t, StateSubmitting, rig.engine.CurrentState())
}

// mustCorrect returns the correct option index for the question at a
// position of the active session.
func (r *testRig) mustCorrect(t *testing.T, position int) int {
	t.Helper()
	view, err := r.engine.View()
	require.NoError(t, err)
	q, ok := r.bank.Resolve(view.Questions[position].ID)
	require.True(t, ok)
	return q.CorrectIndex
}

func (r *testRig) answerCorrectly(t *testing.T, positions ...int) {
	t.Helper()
	ctx := context.Background()
	for _, pos := range positions {
		require.NoError(t, r.engine.Select(ctx, pos, r.mustCorrect(t, pos)))
	}
}

func TestPerfectScore(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)

	positions := make([]int, 70)
	for i := range positions {
		positions[i] = i
	}
	rig.answerCorrectly(t, positions...)

	require.NoError(t, rig.engine.Submit(context.Background()))
	rig.sched.FireOnce()

	report, _, err := rig.engine.Result()
	require.NoError(t, err)
	assert.Equal(t, 100, report.Score)
	assert.True(t, report.Passed)
	assert.Equal(t, model.WeakestCategoryNone, report.WeakestCategory)
}

func TestBoundaryPassAt56of70(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)

	positions := make([]int, 56)
	for i := range positions {
		positions[i] = i
	}
	rig.answerCorrectly(t, positions...)

	require.NoError(t, rig.engine.Submit(context.Background()))
	rig.sched.FireOnce()

	report, _, err := rig.engine.Result()
	require.NoError(t, err)
	assert.Equal(t, 80, report.Score)
	assert.True(t, report.Passed, "80 is a boundary-inclusive pass")
}

func TestFailAt55of70(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)

	positions := make([]int, 55)
	for i := range positions {
		positions[i] = i
	}
	rig.answerCorrectly(t, positions...)

	require.NoError(t, rig.engine.Submit(context.Background()))
	rig.sched.FireOnce()

	report, _, err := rig.engine.Result()
	require.NoError(t, err)
	assert.Equal(t, 79, report.Score)
	assert.False(t, report.Passed)
}

func TestReportKeysWrittenOnCompletion(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)
	ctx := context.Background()

	rig.answerCorrectly(t, 0, 1, 2)
	require.NoError(t, rig.engine.Submit(ctx))
	rig.sched.FireOnce()

	score, ok, err := rig.kv.Get(ctx, config.StorageKey.DeviceLastScoreKey(testDevice))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "4", string(score)) // round(3/70*100)

	weakest, ok, err := rig.kv.Get(ctx, config.StorageKey.DeviceWeakestDomainKey(testDevice))
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, weakest)

	rawLog, ok, err := rig.kv.Get(ctx, config.StorageKey.DeviceAnswerLogKey(testDevice))
	require.NoError(t, err)
	require.True(t, ok)
	var entries []model.AnswerLogEntry
	require.NoError(t, json.Unmarshal(rawLog, &entries))
	assert.Len(t, entries, 70)
}

func TestTeardownLeavesSnapshotResumable(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)
	require.NoError(t, rig.engine.Select(context.Background(), 4, 1))

	rig.engine.Teardown()
	assert.NotNil(t, sessionSnapshot(t, rig.kv), "navigating away must not discard the snapshot")
}

func TestCountdownEventsDerivedFromDeadline(t *testing.T) {
	rig := newTestRig(t, store.NewMemoryStore())
	rig.start(t)

	var events []Event
	var mu sync.Mutex
	unsubscribe := rig.engine.Subscribe(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	defer unsubscribe()

	// Simulate a long suspension: the next tick must reflect the deadline,
	// not an accumulated counter.
	rig.clock.Advance(90 * time.Minute)
	rig.sched.Tick()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventTick, last.Type)
	assert.Equal(t, int(30*time.Minute/time.Second), last.RemainingSeconds)
}
