package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/haulpass/cdl-backend/internal/bank"
	"github.com/haulpass/cdl-backend/internal/config"
	"github.com/haulpass/cdl-backend/internal/engine"
	"github.com/haulpass/cdl-backend/internal/model"
	"github.com/haulpass/cdl-backend/internal/store"
)

// SessionManager owns the live exam and drill engines, one of each at most
// per device. Engines hold in-memory state; the manager is the only place
// they are created, looked up, and torn down.
type SessionManager struct {
	cfg      *config.Config
	bank     *bank.Bank
	kv       store.KeyValueStore
	profiles *ProfileService
	sink     engine.ReportSink
	clock    engine.Clock
	sched    engine.Scheduler
	log      zerolog.Logger

	mu     sync.Mutex
	exams  map[string]*engine.ExamEngine
	drills map[string]*engine.DrillEngine
	rng    *rand.Rand
}

// NewSessionManager creates a SessionManager backed by the real clock and
// timer scheduler.
func NewSessionManager(
	cfg *config.Config,
	b *bank.Bank,
	kv store.KeyValueStore,
	profiles *ProfileService,
	sink engine.ReportSink,
	log zerolog.Logger,
) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		bank:     b,
		kv:       kv,
		profiles: profiles,
		sink:     sink,
		clock:    engine.SystemClock{},
		sched:    engine.TimerScheduler{},
		log:      log.With().Str("component", "session_manager").Logger(),
		exams:    make(map[string]*engine.ExamEngine),
		drills:   make(map[string]*engine.DrillEngine),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// newRandLocked derives a fresh generator for one engine. Engines sample
// outside m.mu, so they cannot share the manager's source.
func (m *SessionManager) newRandLocked() *rand.Rand {
	return rand.New(rand.NewSource(m.rng.Int63()))
}

func (m *SessionManager) examConfig() engine.ExamConfig {
	return engine.ExamConfig{
		Length:        m.cfg.ExamLength,
		Duration:      m.cfg.ExamDuration,
		PassThreshold: m.cfg.PassThreshold,
		BootDelay:     m.cfg.BootDelay,
		SubmitDelay:   m.cfg.SubmitDelay,
	}
}

func (m *SessionManager) drillConfig() engine.DrillConfig {
	return engine.DrillConfig{
		Duration:    m.cfg.DrillDuration,
		PaceSeconds: m.cfg.DrillPaceSeconds,
		MinAttempts: m.cfg.DrillMinAttempts,
		QualifyPct:  m.cfg.DrillQualifyPct,
	}
}

// Exam returns the device's live exam engine, booting one when none exists.
// Booting replays the stored snapshot, so a device that reconnects lands
// back in the session it left.
func (m *SessionManager) Exam(ctx context.Context, deviceID string) (*engine.ExamEngine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.exams[deviceID]; ok {
		return e, nil
	}
	return m.bootLocked(ctx, deviceID)
}

// Reset tears the device's engine down and boots a fresh one. The stored
// snapshot is untouched, so resetting an active session resumes it; this is
// the server-side equivalent of a page reload.
func (m *SessionManager) Reset(ctx context.Context, deviceID string) (*engine.ExamEngine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.exams[deviceID]; ok {
		e.Teardown()
		delete(m.exams, deviceID)
	}
	return m.bootLocked(ctx, deviceID)
}

func (m *SessionManager) bootLocked(ctx context.Context, deviceID string) (*engine.ExamEngine, error) {
	e := engine.NewExamEngine(
		m.examConfig(), deviceID, m.bank, m.kv,
		m.clock, m.sched, m.newRandLocked(), m.sink, m.log,
	)
	if err := e.Init(ctx); err != nil {
		return nil, err
	}
	m.exams[deviceID] = e
	return e, nil
}

// StartDrill builds a new drill engine for the device, discarding any
// previous one. Drills are never resumed across requests to start.
func (m *SessionManager) StartDrill(ctx context.Context, deviceID, category string, mode model.DrillMode) (*engine.DrillEngine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile := m.profiles.Get(ctx, deviceID)
	d, err := engine.NewDrillEngine(
		m.drillConfig(), deviceID, category, mode, profile,
		m.bank, m.kv, m.clock, m.newRandLocked(), m.log,
	)
	if err != nil {
		return nil, err
	}
	m.drills[deviceID] = d
	return d, nil
}

// Drill returns the device's live drill engine, if any.
func (m *SessionManager) Drill(deviceID string) (*engine.DrillEngine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drills[deviceID]
	return d, ok
}

// EndDrill removes the device's drill engine and returns its closing summary.
func (m *SessionManager) EndDrill(deviceID string) (model.DrillSummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drills[deviceID]
	if !ok {
		return model.DrillSummary{}, false
	}
	delete(m.drills, deviceID)
	return d.Summary(), true
}

// Shutdown tears down every live engine. Snapshots stay in storage, so
// sessions survive a process restart.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.exams {
		e.Teardown()
		delete(m.exams, id)
	}
	for id := range m.drills {
		delete(m.drills, id)
	}
}
