// Package service wires the detection engine together: camera, filter
// cascade, polygon region, background model, contour pipeline, autotuner
// and persistence. It owns the live configuration and is the only place
// that mutates it.
package service

import (
	"context"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/lucasloyola2015/newIllinoisEyes/internal/autotune"
	"github.com/lucasloyola2015/newIllinoisEyes/internal/bgmodel"
	"github.com/lucasloyola2015/newIllinoisEyes/internal/capture"
	"github.com/lucasloyola2015/newIllinoisEyes/internal/detect"
	"github.com/lucasloyola2015/newIllinoisEyes/internal/filter"
	"github.com/lucasloyola2015/newIllinoisEyes/internal/region"
	"github.com/lucasloyola2015/newIllinoisEyes/internal/store"
)

// Config holds configuration options for the service.
type Config struct {
	Camera  capture.Camera
	Store   *store.Store
	Profile string
}

// Service orchestrates detection. Frame processing snapshots the live
// cascade under a read lock; configuration commands mutate it under the
// write lock, so a frame always sees one coherent cascade, polygon and
// threshold set and never races a commit.
type Service struct {
	mu sync.RWMutex

	camera    capture.Camera
	db        *store.Store
	pipeline  *detect.Pipeline
	optimizer *autotune.Optimizer

	cascade    *filter.CascadeConfig
	polygon    *region.Polygon
	model      *bgmodel.Model
	thresholds detect.Thresholds
	profile    string

	latest *detect.Result
	stopCh chan struct{}
}

// New creates a Service with the given profile applied, falling back to
// the balanced profile when the name is unknown.
func New(cfg Config) (*Service, error) {
	profile, ok := detect.ProfileByName(cfg.Profile)
	if !ok {
		profile, _ = detect.ProfileByName("balanced")
	}
	if cfg.Store != nil {
		if stored, err := cfg.Store.Profiles().GetByName(profile.Name); err == nil {
			profile = stored
		}
	}

	model, err := bgmodel.NewModel(profile.ModelConfig())
	if err != nil {
		return nil, err
	}

	return &Service{
		camera:     cfg.Camera,
		db:         cfg.Store,
		pipeline:   detect.NewPipeline(),
		optimizer:  autotune.NewOptimizer(),
		cascade:    filter.DefaultCascade(),
		polygon:    region.NewPolygon(),
		model:      model,
		thresholds: profile.Thresholds,
		profile:    profile.Name,
	}, nil
}

// ProcessFrame runs the detection pipeline on one frame and records the
// result as the latest.
func (s *Service) ProcessFrame(frame *gocv.Mat) (*detect.Result, error) {
	s.mu.RLock()
	// The cascade is cloned so a concurrent filter command never mutates
	// the specs mid-frame; polygon and model carry their own locking.
	cascade := s.cascade.Clone()
	polygon, model, th := s.polygon, s.model, s.thresholds
	s.mu.RUnlock()

	result, err := s.pipeline.Process(frame, cascade, polygon, model, th)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.latest = result
	s.mu.Unlock()
	return result, nil
}

// Latest returns the most recent detection result, or nil.
func (s *Service) Latest() *detect.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Annotate draws the latest result onto a copy of frame for display.
// The caller owns the returned Mat.
func (s *Service) Annotate(frame *gocv.Mat) gocv.Mat {
	s.mu.RLock()
	result, polygon := s.latest, s.polygon
	s.mu.RUnlock()
	return detect.Render(frame, result, polygon)
}

// Cascade returns an independent copy of the live filter cascade.
func (s *Service) Cascade() *filter.CascadeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cascade.Clone()
}

// UpdateFilter changes the parameters of one cascade stage.
func (s *Service) UpdateFilter(id string, t filter.Type, params map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cascade.Update(id, t, params)
}

// EnableFilter toggles one cascade stage without losing its parameters.
func (s *Service) EnableFilter(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cascade.Enable(id, enabled)
}

// AppendFilter adds a stage at the end of the cascade.
func (s *Service) AppendFilter(sp filter.Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cascade.Append(sp)
}

// SetCascade replaces the whole live cascade.
func (s *Service) SetCascade(cfg *filter.CascadeConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cascade = cfg.Clone()
}

// PreviewFilter applies the cascade prefix up to and including the given
// stage, for inspecting an intermediate result. The caller owns the Mat.
func (s *Service) PreviewFilter(frame *gocv.Mat, id string) (gocv.Mat, error) {
	s.mu.RLock()
	cascade := s.cascade.Clone()
	s.mu.RUnlock()
	return filter.NewCascade().ApplyUpTo(frame, cascade, id)
}

// Polygon returns the live region polygon. It carries its own locking.
func (s *Service) Polygon() *region.Polygon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.polygon
}

// Model returns the live background model. It carries its own locking.
func (s *Service) Model() *bgmodel.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetAlgorithm swaps the background subtraction algorithm. The model
// resets and must relearn before detection resumes.
func (s *Service) SetAlgorithm(alg bgmodel.Algorithm) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model.SetAlgorithm(alg)
}

// Thresholds returns the active contour validation thresholds.
func (s *Service) Thresholds() detect.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds
}

// SetThresholds replaces the contour validation thresholds.
func (s *Service) SetThresholds(th detect.Thresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds = th
}

// ProfileName returns the name of the profile last applied.
func (s *Service) ProfileName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// ApplyProfile switches thresholds and model configuration to the named
// profile. Stored profiles take precedence over the built-in table. The
// model resets and must relearn.
func (s *Service) ApplyProfile(name string) error {
	profile, ok := detect.ProfileByName(name)
	if s.db != nil {
		if stored, err := s.db.Profiles().GetByName(name); err == nil {
			profile, ok = stored, true
		}
	}
	if !ok {
		return store.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.model.SetConfig(profile.ModelConfig()); err != nil {
		return err
	}
	s.thresholds = profile.Thresholds
	s.profile = profile.Name
	log.Printf("Applied profile %q (algorithm %s)", profile.Name, profile.Algorithm)
	return nil
}

// SetDetectionResolution sets the downscaled working resolution; zeros
// restore native resolution.
func (s *Service) SetDetectionResolution(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipeline.SetDetectionResolution(width, height)
}

// Tune runs an autotuning session for one filter type over the sample
// frames. The live cascade is untouched; commit the session separately.
// Completed sessions are persisted when a store is configured.
func (s *Service) Tune(ctx context.Context, filterType filter.Type, frames []gocv.Mat,
	targets map[string]float64, budget autotune.Budget) (*autotune.Session, error) {

	session, err := s.optimizer.Run(ctx, filterType, frames, targets, budget)
	if session != nil && s.db != nil && err == nil {
		if saveErr := s.db.Tuning().SaveSession(session); saveErr != nil {
			log.Printf("Failed to persist tuning session %s: %v", session.ID, saveErr)
		}
	}
	return session, err
}

// CommitTuning folds a session's best candidate into the live cascade:
// the parameters of an existing stage of the same filter type are
// replaced, otherwise the fragment is appended as a new stage.
func (s *Service) CommitTuning(session *autotune.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fragment := session.Fragment()
	for i := range s.cascade.Specs {
		if s.cascade.Specs[i].Type == fragment.Type {
			return s.cascade.Update(s.cascade.Specs[i].ID, fragment.Type, fragment.Params)
		}
	}
	return s.cascade.Append(fragment)
}

// SampleFrames reads n frames from the camera for use as a tuning burst.
// The caller owns the Mats.
func (s *Service) SampleFrames(n int) ([]gocv.Mat, error) {
	frames := make([]gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		frame, err := s.camera.ReadFrame()
		if err != nil {
			for fi := range frames {
				frames[fi].Close()
			}
			return nil, err
		}
		frames = append(frames, *frame)
	}
	return frames, nil
}

// Start opens the camera and begins the detection loop.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh != nil {
		return nil
	}
	if err := s.camera.Open(); err != nil {
		return err
	}

	s.stopCh = make(chan struct{})
	go s.run(s.stopCh)

	log.Println("Detection loop started")
	return nil
}

// Stop halts the detection loop and releases resources.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh != nil {
		close(s.stopCh)
		s.stopCh = nil
	}
	if err := s.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	s.model.Close()
	s.polygon.Release()

	log.Println("Detection loop stopped")
}

// run is the main loop: read a frame at the camera's rate, feed the
// model while it learns, run detection once trained. Frames read while
// the model is idle are dropped so stale statistics never leak into a
// fresh learning pass.
func (s *Service) run(stopCh chan struct{}) {
	interval := time.Second / time.Duration(s.camera.FPS())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			frame, err := s.camera.ReadFrame()
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			switch s.model.StateNow() {
			case bgmodel.StateIdle:
				// Nothing to do until learning starts.
			default:
				if _, err := s.ProcessFrame(frame); err != nil {
					log.Printf("Error processing frame: %v", err)
				}
			}
			frame.Close()
		}
	}
}
