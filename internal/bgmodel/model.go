package bgmodel

import (
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// State of the background model.
type State int

const (
	// StateIdle: no statistics, foreground queries fail.
	StateIdle State = iota
	// StateLearning: frames accumulate into the model.
	StateLearning
	// StateTrained: the model isolates foreground; detecting is this state
	// with frames still refining the statistics unless learning is frozen.
	StateTrained
)

func (s State) String() string {
	switch s {
	case StateLearning:
		return "learning"
	case StateTrained:
		return "trained"
	default:
		return "idle"
	}
}

// Status is a point-in-time snapshot of the model state machine.
type Status struct {
	State          State     `json:"state"`
	Algorithm      Algorithm `json:"algorithm"`
	ElapsedMs      int64     `json:"elapsed_ms"`
	TrainingTimeMs int       `json:"training_time_ms"`
}

// Model is the background-subtraction state machine. It is mutated only by
// calls on one logical video path; callers on multiple goroutines must
// serialize externally (the internal mutex protects invariants, not
// frame ordering).
type Model struct {
	mu      sync.Mutex
	cfg     Config
	state   State
	sub     subtractor
	started time.Time
	elapsed time.Duration
	frozen  bool
}

// NewModel creates an idle model for the validated config.
func NewModel(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg}, nil
}

// Config returns the current configuration.
func (m *Model) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Start transitions Idle -> Learning, creating a fresh subtractor. Starting
// while already learning is a no-op; starting while trained restarts the
// learning window with fresh statistics.
func (m *Model) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateLearning {
		return
	}
	m.resetLocked()
	m.sub = newSubtractor(m.cfg)
	m.state = StateLearning
	m.started = time.Now()
	m.elapsed = 0
	log.Printf("[bgmodel] learning started, algorithm=%s window=%dms", m.cfg.Algorithm, m.cfg.TrainingTimeMs)
}

// Stop ends learning early, keeping whatever statistics were accumulated.
// This is the documented degraded-quality path, not an error. Stopping a
// model that is not learning is a no-op.
func (m *Model) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateLearning {
		return
	}
	m.elapsed = time.Since(m.started)
	m.state = StateTrained
	log.Printf("[bgmodel] learning stopped after %v (window %dms)", m.elapsed, m.cfg.TrainingTimeMs)
}

// Toggle starts learning when idle or trained, stops it when learning.
// Returns true when the model is learning after the call.
func (m *Model) Toggle() bool {
	if m.StateNow() == StateLearning {
		m.Stop()
		return false
	}
	m.Start()
	return true
}

// Learn feeds a frame while learning. The produced mask is discarded.
// Fails with ErrNotLearning outside the learning state.
func (m *Model) Learn(frame *gocv.Mat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateLearning {
		return ErrNotLearning
	}
	scratch := gocv.NewMat()
	defer scratch.Close()
	m.sub.apply(*frame, &scratch, false)
	m.promoteIfElapsedLocked()
	return nil
}

// Apply returns the foreground mask for a frame. While Idle it fails with
// ErrModelNotTrained. While Learning the frame also trains the model, and
// the training window is checked. While Trained the statistics keep
// updating unless learning is frozen. The caller owns the returned Mat.
func (m *Model) Apply(frame *gocv.Mat) (gocv.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateIdle || m.sub == nil {
		return gocv.Mat{}, ErrModelNotTrained
	}

	dst := gocv.NewMat()
	m.sub.apply(*frame, &dst, m.frozen && m.state == StateTrained)
	if m.state == StateLearning {
		m.promoteIfElapsedLocked()
	}
	return dst, nil
}

// FreezeLearning stops a trained model from refining its statistics on new
// frames. Best effort: the MOG variant honors it exactly; the OpenCV MOG2
// and KNN subtractors always use their automatic learning rate.
func (m *Model) FreezeLearning(frozen bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frozen = frozen
}

// Reset discards all statistics and returns to Idle.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// SetConfig replaces the configuration. Any change resets training state
// to Idle; a subsequent Apply fails with ErrModelNotTrained until learning
// completes again.
func (m *Model) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	m.cfg = cfg
	return nil
}

// SetAlgorithm switches the algorithm, loading its default parameters but
// keeping the current training window. Resets to Idle.
func (m *Model) SetAlgorithm(alg Algorithm) error {
	m.mu.Lock()
	window := m.cfg.TrainingTimeMs
	m.mu.Unlock()

	cfg := DefaultConfig(alg)
	cfg.TrainingTimeMs = window
	return m.SetConfig(cfg)
}

// StateNow returns the current state.
func (m *Model) StateNow() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status reports the state, elapsed learning time and configured window.
// Elapsed time is monotonic: it grows while learning and is pinned at the
// promotion value once trained.
func (m *Model) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	elapsed := m.elapsed
	if m.state == StateLearning {
		elapsed = time.Since(m.started)
	}
	return Status{
		State:          m.state,
		Algorithm:      m.cfg.Algorithm,
		ElapsedMs:      elapsed.Milliseconds(),
		TrainingTimeMs: m.cfg.TrainingTimeMs,
	}
}

// Close releases the subtractor resources.
func (m *Model) Close() {
	m.Reset()
}

// promoteIfElapsedLocked moves Learning -> Trained once the training
// window has elapsed. Must be called with m.mu held.
func (m *Model) promoteIfElapsedLocked() {
	elapsed := time.Since(m.started)
	if elapsed >= time.Duration(m.cfg.TrainingTimeMs)*time.Millisecond {
		m.elapsed = elapsed
		m.state = StateTrained
		log.Printf("[bgmodel] training window elapsed, model trained (%s)", m.cfg.Algorithm)
	}
}

// resetLocked must be called with m.mu held.
func (m *Model) resetLocked() {
	if m.sub != nil {
		m.sub.close()
		m.sub = nil
	}
	m.state = StateIdle
	m.elapsed = 0
	m.frozen = false
}
