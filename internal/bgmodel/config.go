// Package bgmodel wraps the background-subtraction algorithms behind a
// single state machine: a model learns a static scene for a training
// window, then isolates foreground objects in subsequent frames.
package bgmodel

import (
	"errors"
	"fmt"
)

// Algorithm selects the statistical background model.
type Algorithm string

// Supported algorithms. MOG2 and KNN are the OpenCV subtractors; MOG is a
// running-average differencer (see subtractor.go).
const (
	AlgorithmMOG2 Algorithm = "MOG2"
	AlgorithmKNN  Algorithm = "KNN"
	AlgorithmMOG  Algorithm = "MOG"
)

// ErrModelNotTrained is returned when a foreground mask is requested from
// a model that has not started learning.
var ErrModelNotTrained = errors.New("background model not trained")

// ErrNotLearning is returned when frames are fed to a model outside the
// learning state.
var ErrNotLearning = errors.New("background model is not learning")

// Config holds the algorithm selection and its parameters. Each algorithm
// reads only its own fields; Validate enforces the per-algorithm schema.
type Config struct {
	Algorithm Algorithm `json:"algorithm"`

	// History is the number of frames the statistical model spans (MOG2, KNN).
	History int `json:"history"`

	// VarThreshold is the squared Mahalanobis distance threshold (MOG2).
	VarThreshold float64 `json:"var_threshold"`

	// Dist2Threshold is the squared distance threshold (KNN).
	Dist2Threshold float64 `json:"dist2_threshold"`

	// LearningRate is the running-average update weight (MOG), in (0, 1].
	LearningRate float64 `json:"learning_rate"`

	// DiffThreshold is the binary foreground threshold (MOG), in [1, 255].
	DiffThreshold float64 `json:"diff_threshold"`

	DetectShadows bool `json:"detect_shadows"`

	// TrainingTimeMs is the learning window; once elapsed the model
	// transitions from Learning to Trained.
	TrainingTimeMs int `json:"training_time_ms"`
}

// DefaultConfig returns the stock parameters for an algorithm.
func DefaultConfig(alg Algorithm) Config {
	cfg := Config{
		Algorithm:      alg,
		History:        500,
		TrainingTimeMs: 5000,
	}
	switch alg {
	case AlgorithmMOG2:
		cfg.VarThreshold = 16
		cfg.DetectShadows = true
	case AlgorithmKNN:
		cfg.Dist2Threshold = 1000
	case AlgorithmMOG:
		cfg.LearningRate = 0.01
		cfg.DiffThreshold = 25
	}
	return cfg
}

// Validate checks the parameters against the selected algorithm's schema.
func (c Config) Validate() error {
	switch c.Algorithm {
	case AlgorithmMOG2:
		if c.History <= 0 {
			return fmt.Errorf("MOG2 history must be positive, got %d", c.History)
		}
		if c.VarThreshold <= 0 {
			return fmt.Errorf("MOG2 var_threshold must be positive, got %g", c.VarThreshold)
		}
	case AlgorithmKNN:
		if c.History <= 0 {
			return fmt.Errorf("KNN history must be positive, got %d", c.History)
		}
		if c.Dist2Threshold <= 0 {
			return fmt.Errorf("KNN dist2_threshold must be positive, got %g", c.Dist2Threshold)
		}
	case AlgorithmMOG:
		if c.LearningRate <= 0 || c.LearningRate > 1 {
			return fmt.Errorf("MOG learning_rate must be in (0, 1], got %g", c.LearningRate)
		}
		if c.DiffThreshold < 1 || c.DiffThreshold > 255 {
			return fmt.Errorf("MOG diff_threshold must be in [1, 255], got %g", c.DiffThreshold)
		}
	default:
		return fmt.Errorf("unknown background algorithm %q", c.Algorithm)
	}
	if c.TrainingTimeMs <= 0 {
		return fmt.Errorf("training_time_ms must be positive, got %d", c.TrainingTimeMs)
	}
	return nil
}
