package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/haulpass/cdl-backend/internal/bank"
	"github.com/haulpass/cdl-backend/internal/config"
	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/haulpass/cdl-backend/internal/store"
	"github.com/rs/zerolog"
)

// State enumerates the exam engine lifecycle.
type State string

const (
	StateBoot       State = "boot"
	StateManifest   State = "manifest"
	StateActive     State = "active"
	StateSubmitting State = "submitting"
	StateResults    State = "results"
)

var (
	// ErrWrongState is returned when an operation is invoked outside the
	// state it is valid in.
	ErrWrongState = errors.New("operation not valid in current state")
	// ErrNotActive is returned for mutations outside the active state,
	// including the window where the deadline has already passed.
	ErrNotActive = errors.New("exam session is not active")
	// ErrInvalidPosition is returned for out-of-range question positions.
	ErrInvalidPosition = errors.New("question position out of range")
	// ErrInvalidOption is returned for out-of-range option indexes.
	ErrInvalidOption = errors.New("option index out of range")
	// ErrNoResult is returned when the result is requested before the
	// session is terminal.
	ErrNoResult = errors.New("no result available yet")
)

// EventType tags engine notifications delivered to subscribers.
type EventType string

const (
	// EventTick is emitted once per second while active.
	EventTick EventType = "tick"
	// EventState is emitted on every state transition.
	EventState EventType = "state"
	// EventGraded is emitted once when the session reaches results.
	EventGraded EventType = "graded"
)

// Event is a notification pushed to engine subscribers (the countdown
// WebSocket stream).
type Event struct {
	Type             EventType `json:"type"`
	State            State     `json:"state"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Forced           bool      `json:"forced,omitempty"`
}

// ReportSink receives the completed report for downstream archiving.
// Implementations must be fire-and-forget; the engine does not retry.
type ReportSink interface {
	Archive(ctx context.Context, deviceID, examID string, report model.ScoreReport, answerLog []model.AnswerLogEntry)
}

// ExamConfig carries the simulator parameters.
type ExamConfig struct {
	Length        int
	Duration      time.Duration
	PassThreshold int
	BootDelay     time.Duration
	SubmitDelay   time.Duration
}

// ExamEngine is the state machine governing a single timed exam attempt for
// one device: boot → manifest → active → submitting → results. There is at
// most one engine per device; starting a new exam replaces it.
//
// Every mutation persists a full session snapshot before the operation
// returns, so a reload resumes exactly where the candidate left off.
type ExamEngine struct {
	mu       sync.Mutex
	cfg      ExamConfig
	deviceID string
	bank     *bank.Bank
	kv       store.KeyValueStore
	clock    Clock
	sched    Scheduler
	rng      *rand.Rand
	sink     ReportSink
	log      zerolog.Logger

	state       State
	profile     model.DriverProfile
	examID      string
	sess        *model.ExamSession
	resumed     bool
	pendingPool []model.Question

	report    *model.ScoreReport
	answerLog []model.AnswerLogEntry
	forced    bool

	cancelBoot     CancelFunc
	cancelTick     CancelFunc
	cancelFinalize CancelFunc

	listeners  map[int]func(Event)
	nextListen int
}

// NewExamEngine constructs an engine in the boot state. Call Init next.
func NewExamEngine(
	cfg ExamConfig,
	deviceID string,
	b *bank.Bank,
	kv store.KeyValueStore,
	clock Clock,
	sched Scheduler,
	rng *rand.Rand,
	sink ReportSink,
	log zerolog.Logger,
) *ExamEngine {
	return &ExamEngine{
		cfg:       cfg,
		deviceID:  deviceID,
		bank:      b,
		kv:        kv,
		clock:     clock,
		sched:     sched,
		rng:       rng,
		sink:      sink,
		log:       log.With().Str("component", "exam_engine").Str("device_id", deviceID).Logger(),
		state:     StateBoot,
		listeners: make(map[int]func(Event)),
	}
}

// Init runs session initialization: profile read, exam-ID mint-or-reuse,
// silent resume attempt, and fresh pool assembly when not resuming. It then
// schedules the boot → manifest transition after the fixed boot delay.
func (e *ExamEngine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateBoot {
		return ErrWrongState
	}

	e.profile = e.loadProfile(ctx)
	e.examID = e.loadOrMintExamID(ctx)

	if snap := e.loadResumableSnapshot(ctx); snap != nil {
		e.sess = snap
		e.resumed = true
	} else {
		e.pendingPool = e.bank.EligibleSample(e.profile, e.cfg.Length, e.rng)
	}

	e.cancelBoot = e.sched.ScheduleOnce(e.cfg.BootDelay, e.enterManifest)
	return nil
}

func (e *ExamEngine) enterManifest() {
	e.mu.Lock()
	if e.state != StateBoot {
		e.mu.Unlock()
		return
	}
	e.state = StateManifest
	e.mu.Unlock()

	e.emit(Event{Type: EventState, State: StateManifest})
}

// ManifestInfo is the pre-start confirmation view: a fresh-vs-resume
// determination plus session dimensions.
type ManifestInfo struct {
	State            State  `json:"state"`
	ExamID           string `json:"exam_id"`
	Resume           bool   `json:"resume"`
	QuestionCount    int    `json:"question_count"`
	AnsweredCount    int    `json:"answered_count"`
	RemainingSeconds int    `json:"remaining_seconds"`
	DurationSeconds  int    `json:"duration_seconds"`
}

// Manifest returns the pre-start determination. Valid from manifest onward;
// during boot it reports the boot state so the caller can poll.
func (e *ExamEngine) Manifest() ManifestInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	info := ManifestInfo{
		State:           e.state,
		ExamID:          e.examID,
		Resume:          e.resumed,
		DurationSeconds: int(e.cfg.Duration / time.Second),
	}
	if e.resumed && e.sess != nil {
		info.QuestionCount = len(e.sess.QuestionIDs)
		info.AnsweredCount = len(e.sess.Answers)
		info.RemainingSeconds = e.remainingSecondsLocked()
	} else {
		info.QuestionCount = len(e.pendingPool)
		info.RemainingSeconds = info.DurationSeconds
	}
	return info
}

// Start transitions manifest → active. A valid unexpired snapshot is resumed
// verbatim (same endAt, questionIds, answers, flags, position, examId);
// otherwise a fresh session is built from the assembled pool with
// endAt = now + duration. Starts the one-second countdown.
func (e *ExamEngine) Start(ctx context.Context) error {
	e.mu.Lock()

	if e.state != StateManifest {
		e.mu.Unlock()
		return ErrWrongState
	}

	now := e.clock.Now()

	// The deadline may have passed while the manifest screen was open.
	if e.resumed && !e.sess.Active(now) {
		e.resumed = false
		e.sess = nil
		e.pendingPool = e.bank.EligibleSample(e.profile, e.cfg.Length, e.rng)
	}

	if !e.resumed {
		ids := make([]int, len(e.pendingPool))
		for i := range e.pendingPool {
			ids[i] = e.pendingPool[i].ID
		}
		endAt := now.Add(e.cfg.Duration)
		e.sess = &model.ExamSession{
			ExamID:          e.examID,
			License:         e.profile.License,
			Endorsements:    e.profile.Endorsements,
			Jurisdiction:    e.profile.Jurisdiction,
			QuestionIDs:     ids,
			Answers:         make(map[int]int),
			Flags:           []int{},
			CurrentPosition: 0,
			EndAt:           endAt.UnixMilli(),
			StartedAt:       endAt.Add(-e.cfg.Duration).UnixMilli(),
		}
		e.persistLocked(ctx)
	}
	e.pendingPool = nil

	e.state = StateActive
	e.cancelTick = e.sched.ScheduleRepeating(time.Second, e.tick)
	rem := e.remainingSecondsLocked()
	e.mu.Unlock()

	e.emit(Event{Type: EventState, State: StateActive, RemainingSeconds: rem})
	return nil
}

// Select records answers[position] = optionIndex, overwriting any prior
// answer. Changing an answer is always allowed before submission; there is
// no correctness feedback in exam mode.
func (e *ExamEngine) Select(ctx context.Context, position, optionIndex int) error {
	e.mu.Lock()
	if err := e.requireActiveLocked(ctx); err != nil {
		return err
	}
	if position < 0 || position >= len(e.sess.QuestionIDs) {
		e.mu.Unlock()
		return ErrInvalidPosition
	}
	q, ok := e.bank.Resolve(e.sess.QuestionIDs[position])
	if !ok || optionIndex < 0 || optionIndex >= len(q.Options) {
		e.mu.Unlock()
		return ErrInvalidOption
	}

	e.sess.Answers[position] = optionIndex
	e.persistLocked(ctx)
	e.mu.Unlock()
	return nil
}

// ToggleFlag adds or removes the review flag at a position, independent of
// whether that position is answered.
func (e *ExamEngine) ToggleFlag(ctx context.Context, position int) error {
	e.mu.Lock()
	if err := e.requireActiveLocked(ctx); err != nil {
		return err
	}
	if position < 0 || position >= len(e.sess.QuestionIDs) {
		e.mu.Unlock()
		return ErrInvalidPosition
	}

	e.sess.ToggleFlag(position)
	e.persistLocked(ctx)
	e.mu.Unlock()
	return nil
}

// GoTo moves the current position, clamped to the valid range. Position is
// part of the durable snapshot so a reload resumes at the same question.
func (e *ExamEngine) GoTo(ctx context.Context, position int) error {
	e.mu.Lock()
	if err := e.requireActiveLocked(ctx); err != nil {
		return err
	}

	if position < 0 {
		position = 0
	}
	if max := len(e.sess.QuestionIDs) - 1; position > max {
		position = max
	}

	e.sess.CurrentPosition = position
	e.persistLocked(ctx)
	e.mu.Unlock()
	return nil
}

// Submit transitions active → submitting and computes the score. Idempotent:
// a second call — including a timeout firing after a manual submit, or vice
// versa — is a no-op.
func (e *ExamEngine) Submit(ctx context.Context) error {
	return e.submit(ctx, false)
}

func (e *ExamEngine) submit(_ context.Context, forced bool) error {
	e.mu.Lock()
	if e.state != StateActive {
		e.mu.Unlock()
		return nil
	}

	remaining := e.remainingLocked()
	elapsed := e.cfg.Duration - remaining

	questions, ok := e.bank.ResolveAll(e.sess.QuestionIDs)
	if !ok {
		// Ids were validated at start/resume; a miss here means the bank
		// changed under us. Grade what still resolves.
		questions = make([]*model.Question, 0, len(e.sess.QuestionIDs))
		for _, id := range e.sess.QuestionIDs {
			if q, found := e.bank.Resolve(id); found {
				questions = append(questions, q)
			}
		}
	}

	report, answerLog := BuildScoreReport(questions, e.sess.Answers, elapsed, e.cfg.PassThreshold)
	e.report = &report
	e.answerLog = answerLog

	e.state = StateSubmitting
	e.forced = forced
	if e.cancelTick != nil {
		e.cancelTick()
		e.cancelTick = nil
	}
	e.cancelFinalize = e.sched.ScheduleOnce(e.cfg.SubmitDelay, e.finalize)
	e.mu.Unlock()

	e.emit(Event{Type: EventState, State: StateSubmitting, Forced: forced})

	e.log.Info().
		Bool("forced", forced).
		Int("score", report.Score).
		Bool("passed", report.Passed).
		Msg("Exam submitted")
	return nil
}

// finalize runs the submitting → results transition. This is the only point
// at which the persisted session snapshot and exam id are cleared. The
// report is written to the well-known keys the dashboard reads and handed
// to the archive sink.
func (e *ExamEngine) finalize() {
	ctx := context.Background()

	e.mu.Lock()
	if e.state != StateSubmitting {
		e.mu.Unlock()
		return
	}
	e.state = StateResults
	examID := e.examID
	report := *e.report
	answerLog := e.answerLog
	forced := e.forced
	e.mu.Unlock()

	sk := config.StorageKey
	e.removeKey(ctx, sk.DeviceSessionKey(e.deviceID))
	e.removeKey(ctx, sk.DeviceExamIDKey(e.deviceID))
	e.setKey(ctx, sk.DeviceLastScoreKey(e.deviceID), []byte(strconv.Itoa(report.Score)))
	e.setKey(ctx, sk.DeviceWeakestDomainKey(e.deviceID), []byte(report.WeakestCategory))
	if raw, err := json.Marshal(answerLog); err == nil {
		e.setKey(ctx, sk.DeviceAnswerLogKey(e.deviceID), raw)
	}

	if e.sink != nil {
		e.sink.Archive(ctx, e.deviceID, examID, report, answerLog)
	}

	e.emit(Event{Type: EventGraded, State: StateResults, Forced: forced})
}

// Result returns the score report once the session is terminal.
func (e *ExamEngine) Result() (model.ScoreReport, []model.AnswerLogEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateResults || e.report == nil {
		return model.ScoreReport{}, nil, ErrNoResult
	}
	return *e.report, e.answerLog, nil
}

// SessionView is the live state served to the candidate while active.
type SessionView struct {
	State            State                        `json:"state"`
	ExamID           string                       `json:"exam_id"`
	CurrentPosition  int                          `json:"current_position"`
	Answers          map[int]int                  `json:"answers"`
	Flags            []int                        `json:"flags"`
	RemainingSeconds int                          `json:"remaining_seconds"`
	Questions        []model.QuestionForCandidate `json:"questions"`
}

// View returns the candidate-facing session state. Valid while active.
func (e *ExamEngine) View() (SessionView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateActive {
		return SessionView{}, ErrWrongState
	}

	questions := make([]model.QuestionForCandidate, 0, len(e.sess.QuestionIDs))
	for _, id := range e.sess.QuestionIDs {
		if q, ok := e.bank.Resolve(id); ok {
			questions = append(questions, q.ForCandidate())
		}
	}

	answers := make(map[int]int, len(e.sess.Answers))
	for k, v := range e.sess.Answers {
		answers[k] = v
	}
	flags := append([]int(nil), e.sess.Flags...)

	return SessionView{
		State:            e.state,
		ExamID:           e.sess.ExamID,
		CurrentPosition:  e.sess.CurrentPosition,
		Answers:          answers,
		Flags:            flags,
		RemainingSeconds: e.remainingSecondsLocked(),
		Questions:        questions,
	}, nil
}

// CurrentState returns the engine state.
func (e *ExamEngine) CurrentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Subscribe registers an event listener and returns its cancel func.
func (e *ExamEngine) Subscribe(fn func(Event)) CancelFunc {
	e.mu.Lock()
	id := e.nextListen
	e.nextListen++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Teardown cancels every scheduled callback. It never touches the persisted
// snapshot — only submission clears it, so navigating away mid-session
// leaves the session resumable.
func (e *ExamEngine) Teardown() {
	e.mu.Lock()
	cancels := []CancelFunc{e.cancelBoot, e.cancelTick, e.cancelFinalize}
	e.cancelBoot, e.cancelTick, e.cancelFinalize = nil, nil, nil
	e.mu.Unlock()

	for _, c := range cancels {
		if c != nil {
			c()
		}
	}
}

// ─── Internals ─────────────────────────────────────────────────────

// tick recomputes remaining time from the fixed deadline once per second.
// The countdown is always derived from endAt, never decremented, so it
// stays correct across suspends. The forced submit is guarded by the state
// check in submit, not by cancelling the timer: the timer may fire once
// more before teardown completes.
func (e *ExamEngine) tick() {
	e.mu.Lock()
	if e.state != StateActive {
		e.mu.Unlock()
		return
	}
	rem := e.remainingSecondsLocked()
	e.mu.Unlock()

	e.emit(Event{Type: EventTick, State: StateActive, RemainingSeconds: rem})

	if rem <= 0 {
		_ = e.submit(context.Background(), true)
	}
}

// requireActiveLocked validates the active state under e.mu. On an expired
// deadline it releases the lock, forces submission, and reports ErrNotActive.
// Callers must hold e.mu and must not unlock on a nil return.
func (e *ExamEngine) requireActiveLocked(ctx context.Context) error {
	if e.state != StateActive {
		e.mu.Unlock()
		return ErrNotActive
	}
	if e.remainingLocked() <= 0 {
		e.mu.Unlock()
		_ = e.submit(ctx, true)
		return ErrNotActive
	}
	return nil
}

// remainingLocked returns the clamped time left on the deadline.
func (e *ExamEngine) remainingLocked() time.Duration {
	rem := time.Duration(e.sess.EndAt-e.clock.Now().UnixMilli()) * time.Millisecond
	if rem < 0 {
		rem = 0
	}
	return rem
}

func (e *ExamEngine) remainingSecondsLocked() int {
	if e.sess == nil {
		return 0
	}
	return int(e.remainingLocked() / time.Second)
}

// persistLocked writes the full session snapshot. Write failures are logged
// but never surface to the candidate.
func (e *ExamEngine) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(e.sess)
	if err != nil {
		e.log.Error().Err(err).Msg("Snapshot marshal failed")
		return
	}
	if err := e.kv.Set(ctx, config.StorageKey.DeviceSessionKey(e.deviceID), raw); err != nil {
		e.log.Warn().Err(err).Msg("Snapshot persist failed")
	}
}

// loadProfile reads the device profile with a strict decode-with-default:
// any failure yields the default profile, never a partial one.
func (e *ExamEngine) loadProfile(ctx context.Context) model.DriverProfile {
	raw, ok, err := e.kv.Get(ctx, config.StorageKey.DeviceProfileKey(e.deviceID))
	if err != nil || !ok {
		return model.DefaultDriverProfile()
	}

	var p model.DriverProfile
	if err := json.Unmarshal(raw, &p); err != nil || !p.Valid() {
		return model.DefaultDriverProfile()
	}
	if p.Endorsements == nil {
		p.Endorsements = []string{}
	}
	return p
}

// loadOrMintExamID reuses the persisted exam id — even across a fresh,
// non-resumed session — until a session actually completes. A missing or
// malformed id is minted and persisted immediately.
func (e *ExamEngine) loadOrMintExamID(ctx context.Context) string {
	key := config.StorageKey.DeviceExamIDKey(e.deviceID)

	raw, ok, err := e.kv.Get(ctx, key)
	if err == nil && ok && ValidExamID(string(raw)) {
		return string(raw)
	}

	id := NewExamID(e.rng)
	if err := e.kv.Set(ctx, key, []byte(id)); err != nil {
		e.log.Warn().Err(err).Msg("Exam id persist failed")
	}
	return id
}

// loadResumableSnapshot attempts the silent resume. Any decode or validation
// failure — malformed JSON, expired deadline, unresolvable question id,
// out-of-range answer or position — returns nil and the snapshot is ignored.
// No error is ever surfaced for a bad snapshot.
func (e *ExamEngine) loadResumableSnapshot(ctx context.Context) *model.ExamSession {
	raw, ok, err := e.kv.Get(ctx, config.StorageKey.DeviceSessionKey(e.deviceID))
	if err != nil || !ok {
		return nil
	}

	var snap model.ExamSession
	if err := json.Unmarshal(raw, &snap); err != nil {
		e.log.Debug().Err(err).Msg("Discarding malformed session snapshot")
		return nil
	}

	if len(snap.QuestionIDs) == 0 || !snap.Active(e.clock.Now()) {
		return nil
	}
	questions, resolved := e.bank.ResolveAll(snap.QuestionIDs)
	if !resolved {
		e.log.Debug().Msg("Discarding snapshot with unresolvable question ids")
		return nil
	}
	if snap.CurrentPosition < 0 || snap.CurrentPosition >= len(snap.QuestionIDs) {
		return nil
	}
	for pos, sel := range snap.Answers {
		if pos < 0 || pos >= len(snap.QuestionIDs) {
			return nil
		}
		if sel < 0 || sel >= len(questions[pos].Options) {
			return nil
		}
	}
	if snap.Answers == nil {
		snap.Answers = make(map[int]int)
	}
	if snap.Flags == nil {
		snap.Flags = []int{}
	}
	if snap.Endorsements == nil {
		snap.Endorsements = []string{}
	}
	if snap.ExamID != "" {
		e.examID = snap.ExamID
	}
	return &snap
}

func (e *ExamEngine) emit(ev Event) {
	e.mu.Lock()
	fns := make([]func(Event), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (e *ExamEngine) setKey(ctx context.Context, key string, value []byte) {
	if err := e.kv.Set(ctx, key, value); err != nil {
		e.log.Warn().Err(err).Str("key", key).Msg("Store write failed")
	}
}

func (e *ExamEngine) removeKey(ctx context.Context, key string) {
	if err := e.kv.Remove(ctx, key); err != nil {
		e.log.Warn().Err(err).Str("key", key).Msg("Store remove failed")
	}
}
