package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/haulpass/cdl-backend/internal/bank"
	"github.com/haulpass/cdl-backend/internal/config"
	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/haulpass/cdl-backend/internal/store"
	"github.com/rs/zerolog"
)

var (
	// ErrDrillComplete is returned for operations on a finished drill.
	ErrDrillComplete = errors.New("drill session is complete")
	// ErrAlreadyRevealed guards against answering the same question twice.
	ErrAlreadyRevealed = errors.New("question already answered")
	// ErrNotRevealed is returned when advancing past an unanswered question
	// in timed mode.
	ErrNotRevealed = errors.New("current question not answered yet")
	// ErrEmptyCategory is returned when a category has no eligible questions.
	ErrEmptyCategory = errors.New("no eligible questions in category")
	// ErrStudyModeOnly guards grid navigation.
	ErrStudyModeOnly = errors.New("navigation only available in study mode")
)

// DrillConfig carries the drill station parameters.
type DrillConfig struct {
	Duration    time.Duration
	PaceSeconds int
	MinAttempts int
	QualifyPct  int
}

// DrillEngine runs a single-category practice loop with immediate
// per-question feedback. Unlike the exam it never persists a resume
// snapshot: a drill is rebuilt from scratch every time the station opens.
// Only the fire-and-forget per-category answer record and the mastery list
// are written.
type DrillEngine struct {
	mu       sync.Mutex
	cfg      DrillConfig
	mode     model.DrillMode
	category string
	deviceID string
	kv       store.KeyValueStore
	clock    Clock
	log      zerolog.Logger

	pool       []model.Question
	position   int
	revealed   map[int]bool
	chosen     map[int]int
	correct    int
	attempted  int
	streak     int
	bestStreak int

	// endAt is only set in timed mode. Expiry is evaluated lazily on every
	// operation; no ticker is needed because nothing happens server-side
	// between requests.
	endAt   time.Time
	expired bool
}

// NewDrillEngine samples the category pool and starts the session clock in
// timed mode.
func NewDrillEngine(
	cfg DrillConfig,
	deviceID string,
	category string,
	mode model.DrillMode,
	profile model.DriverProfile,
	b *bank.Bank,
	kv store.KeyValueStore,
	clock Clock,
	rng *rand.Rand,
	log zerolog.Logger,
) (*DrillEngine, error) {
	pool := b.CategorySample(profile, category, rng)
	if len(pool) == 0 {
		return nil, ErrEmptyCategory
	}

	d := &DrillEngine{
		cfg:      cfg,
		mode:     mode,
		category: category,
		deviceID: deviceID,
		kv:       kv,
		clock:    clock,
		log:      log.With().Str("component", "drill_engine").Str("category", category).Logger(),
		pool:     pool,
		revealed: make(map[int]bool),
		chosen:   make(map[int]int),
	}
	if mode == model.DrillModeTimed {
		d.endAt = clock.Now().Add(cfg.Duration)
	}
	return d, nil
}

// DrillView is the candidate-facing state of the current question.
type DrillView struct {
	Category    string                     `json:"category"`
	Mode        string                     `json:"mode"`
	Position    int                        `json:"position"`
	PoolSize    int                        `json:"pool_size"`
	Question    model.QuestionForCandidate `json:"question"`
	Revealed    bool                       `json:"revealed"`
	PaceSeconds int                        `json:"pace_seconds"`
	// Reveal is set once the question has been answered.
	Reveal           *model.DrillReveal `json:"reveal,omitempty"`
	RemainingSeconds int                `json:"remaining_seconds"`
	Complete         bool               `json:"complete"`
}

// Current returns the question at the current position. The pace timer
// value is cosmetic UI pressure only — it never blocks answering.
func (d *DrillEngine) Current() DrillView {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checkExpiryLocked()

	q := d.pool[d.position]
	view := DrillView{
		Category:         d.category,
		Mode:             string(d.mode),
		Position:         d.position,
		PoolSize:         len(d.pool),
		Question:         q.ForCandidate(),
		Revealed:         d.revealed[d.position],
		PaceSeconds:      d.cfg.PaceSeconds,
		RemainingSeconds: d.remainingSecondsLocked(),
		Complete:         d.completeLocked(),
	}
	if view.Revealed {
		sel := d.chosen[d.position]
		view.Reveal = &model.DrillReveal{
			Correct:      sel == q.CorrectIndex,
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
			Streak:       d.streak,
		}
	}
	return view
}

// Answer accepts exactly one selection for the current question and
// immediately reveals the correct option. Side effects: the per-category
// answer record and, on a correct answer, the mastery list.
func (d *DrillEngine) Answer(ctx context.Context, optionIndex int) (*model.DrillReveal, error) {
	d.mu.Lock()
	d.checkExpiryLocked()

	if d.completeLocked() {
		d.mu.Unlock()
		return nil, ErrDrillComplete
	}
	if d.revealed[d.position] {
		d.mu.Unlock()
		return nil, ErrAlreadyRevealed
	}

	q := d.pool[d.position]
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		d.mu.Unlock()
		return nil, ErrInvalidOption
	}

	d.revealed[d.position] = true
	d.chosen[d.position] = optionIndex
	d.attempted++

	correct := optionIndex == q.CorrectIndex
	if correct {
		d.correct++
		d.streak++
		if d.streak > d.bestStreak {
			d.bestStreak = d.streak
		}
	} else {
		d.streak = 0
	}

	reveal := &model.DrillReveal{
		Correct:      correct,
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
		Streak:       d.streak,
	}
	d.mu.Unlock()

	d.recordAnswer(ctx, q.ID, optionIndex)
	if correct {
		d.recordMastery(ctx, q.ID)
	}
	return reveal, nil
}

// Next advances to the next question. In timed mode the current question
// must have been revealed first.
func (d *DrillEngine) Next() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checkExpiryLocked()

	if d.completeLocked() {
		return ErrDrillComplete
	}
	if d.mode == model.DrillModeTimed && !d.revealed[d.position] {
		return ErrNotRevealed
	}
	if d.position < len(d.pool)-1 {
		d.position++
	}
	return nil
}

// GoTo jumps to a position via the grid navigator. Study mode only.
func (d *DrillEngine) GoTo(position int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != model.DrillModeStudy {
		return ErrStudyModeOnly
	}
	if position < 0 || position >= len(d.pool) {
		return ErrInvalidPosition
	}
	d.position = position
	return nil
}

// Summary reports counters, completion, and the qualification gate:
// accuracy ≥ the qualify percentage AND attempted ≥ min(minAttempts, pool),
// so one lucky answer can never qualify a session.
func (d *DrillEngine) Summary() model.DrillSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checkExpiryLocked()

	accuracy := 0
	if d.attempted > 0 {
		accuracy = d.correct * 100 / d.attempted
	}

	required := d.cfg.MinAttempts
	if len(d.pool) < required {
		required = len(d.pool)
	}

	return model.DrillSummary{
		Category:         d.category,
		Mode:             string(d.mode),
		PoolSize:         len(d.pool),
		Attempted:        d.attempted,
		Correct:          d.correct,
		AccuracyPct:      accuracy,
		BestStreak:       d.bestStreak,
		Qualified:        accuracy >= d.cfg.QualifyPct && d.attempted >= required,
		Complete:         d.completeLocked(),
		RemainingSeconds: d.remainingSecondsLocked(),
	}
}

// ─── Internals ─────────────────────────────────────────────────────

// completeLocked: every question revealed, or (timed mode) the clock ran
// out. Expiry keeps recorded answers; the unanswered remainder is never
// force-graded.
func (d *DrillEngine) completeLocked() bool {
	return d.expired || len(d.revealed) == len(d.pool)
}

func (d *DrillEngine) checkExpiryLocked() {
	if d.mode == model.DrillModeTimed && !d.expired && !d.clock.Now().Before(d.endAt) {
		d.expired = true
	}
}

func (d *DrillEngine) remainingSecondsLocked() int {
	if d.mode != model.DrillModeTimed {
		return 0
	}
	rem := d.endAt.Sub(d.clock.Now())
	if rem < 0 {
		rem = 0
	}
	return int(rem / time.Second)
}

// recordAnswer merges the selection into the per-category answer map.
// Fire and forget — a write failure never interrupts the drill.
func (d *DrillEngine) recordAnswer(ctx context.Context, questionID, optionIndex int) {
	key := config.StorageKey.DeviceDrillAnswersKey(d.deviceID, d.category)

	answers := make(map[int]int)
	if raw, ok, err := d.kv.Get(ctx, key); err == nil && ok {
		// A malformed record is replaced rather than recovered.
		_ = json.Unmarshal(raw, &answers)
	}
	answers[questionID] = optionIndex

	raw, err := json.Marshal(answers)
	if err != nil {
		return
	}
	if err := d.kv.Set(ctx, key, raw); err != nil {
		d.log.Warn().Err(err).Msg("Drill answer record failed")
	}
}

// recordMastery appends the question id to the global mastered list,
// deduplicated.
func (d *DrillEngine) recordMastery(ctx context.Context, questionID int) {
	key := config.StorageKey.DeviceMasteryKey(d.deviceID)

	var ids []int
	if raw, ok, err := d.kv.Get(ctx, key); err == nil && ok {
		_ = json.Unmarshal(raw, &ids)
	}
	for _, id := range ids {
		if id == questionID {
			return
		}
	}
	ids = append(ids, questionID)

	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := d.kv.Set(ctx, key, raw); err != nil {
		d.log.Warn().Err(err).Msg("Mastery record failed")
	}
}
