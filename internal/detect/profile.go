package detect

import "github.com/lucasloyola2015/newIllinoisEyes/internal/bgmodel"

// Thresholds filter contour candidates. Boundary values are inclusive:
// a contour whose area equals exactly MinArea or MaxArea passes.
type Thresholds struct {
	MinArea        float64 `json:"min_area"`
	MaxArea        float64 `json:"max_area"`
	Solidity       float64 `json:"solidity_threshold"`
	AspectMin      float64 `json:"aspect_ratio_min"`
	AspectMax      float64 `json:"aspect_ratio_max"`
	// PolygonMargin rejects candidates whose bounding box comes within
	// this many pixels of the frame border. Zero disables the check.
	PolygonMargin int `json:"polygon_margin"`
}

// Profile is a named detection preset bundling the algorithm, thresholds
// and training window.
type Profile struct {
	Name           string             `json:"name"`
	Algorithm      bgmodel.Algorithm  `json:"algorithm"`
	Thresholds     Thresholds         `json:"thresholds"`
	TrainingTimeMs int                `json:"training_time_ms"`
}

// ModelConfig builds the background model configuration for the profile.
func (p Profile) ModelConfig() bgmodel.Config {
	cfg := bgmodel.DefaultConfig(p.Algorithm)
	cfg.TrainingTimeMs = p.TrainingTimeMs
	return cfg
}

// DefaultProfiles returns the three stock presets. These values are
// reference data consumed by tests and seeded into the profile store;
// do not change them without migrating persisted rows.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name:      "balanced",
			Algorithm: bgmodel.AlgorithmMOG2,
			Thresholds: Thresholds{
				MinArea:   500,
				MaxArea:   50000,
				Solidity:  0.7,
				AspectMin: 0.3,
				AspectMax: 3.0,
			},
			TrainingTimeMs: 5000,
		},
		{
			Name:      "sensitive",
			Algorithm: bgmodel.AlgorithmKNN,
			Thresholds: Thresholds{
				MinArea:   200,
				MaxArea:   30000,
				Solidity:  0.5,
				AspectMin: 0.5,
				AspectMax: 2.0,
			},
			TrainingTimeMs: 8000,
		},
		{
			Name:      "strict",
			Algorithm: bgmodel.AlgorithmMOG,
			Thresholds: Thresholds{
				MinArea:   1000,
				MaxArea:   100000,
				Solidity:  0.9,
				AspectMin: 0.7,
				AspectMax: 1.5,
			},
			TrainingTimeMs: 10000,
		},
	}
}

// ProfileByName returns the stock profile with the given name.
func ProfileByName(name string) (Profile, bool) {
	for _, p := range DefaultProfiles() {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}
