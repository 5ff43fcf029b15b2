package quality

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"

	"github.com/lucasloyola2015/newIllinoisEyes/internal/filter"
)

// contrastFrame renders a frame with both dark and bright regions so the
// metrics have structure to measure.
func contrastFrame() gocv.Mat {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 30, 30, 0), 120, 160, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&frame, image.Rect(40, 30, 120, 90), color.RGBA{R: 220, G: 220, B: 220}, -1)
	return frame
}

func TestEvaluate_ComputesRequestedMetrics(t *testing.T) {
	frame := contrastFrame()
	defer frame.Close()

	targets := map[string]float64{
		MetricNoiseReduction:     0.8,
		MetricDetailPreservation: 0.7,
		MetricSharpness:          0.5,
		MetricContrast:           0.8,
		MetricObjectSeparation:   0.7,
	}

	m := Evaluate(&frame, targets)
	for name := range targets {
		v, ok := m[name]
		if !ok {
			t.Errorf("expected metric %q to be computed", name)
			continue
		}
		if v < 0 || v > 1 {
			t.Errorf("metric %q out of [0,1]: %f", name, v)
		}
	}
}

func TestEvaluate_OnlyRequestedMetrics(t *testing.T) {
	frame := contrastFrame()
	defer frame.Close()

	m := Evaluate(&frame, map[string]float64{MetricContrast: 0.8})
	if len(m) != 1 {
		t.Errorf("expected exactly 1 metric, got %d: %v", len(m), m)
	}
	if _, ok := m[MetricContrast]; !ok {
		t.Error("expected contrast metric to be present")
	}
}

func TestEvaluate_EmptyFrame(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	m := Evaluate(&empty, map[string]float64{MetricContrast: 0.8})
	if len(m) != 0 {
		t.Errorf("expected no metrics for empty frame, got %v", m)
	}
}

func TestEvaluate_ContrastOrdering(t *testing.T) {
	flat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0), 120, 160, gocv.MatTypeCV8UC3)
	defer flat.Close()
	contrasty := contrastFrame()
	defer contrasty.Close()

	targets := map[string]float64{MetricContrast: 0.8}
	flatScore := Evaluate(&flat, targets)[MetricContrast]
	contrastScore := Evaluate(&contrasty, targets)[MetricContrast]

	if contrastScore <= flatScore {
		t.Errorf("expected contrasty frame to score higher: %f vs %f", contrastScore, flatScore)
	}
}

func TestStability(t *testing.T) {
	// A perfectly steady contour count scores 1
	if s := Stability([]int{3, 3, 3, 3}); s != 1 {
		t.Errorf("expected stability 1 for steady counts, got %f", s)
	}

	// Fewer than 2 samples defaults to 1
	if s := Stability([]int{5}); s != 1 {
		t.Errorf("expected stability 1 for single sample, got %f", s)
	}

	// Wildly varying counts score lower than steady ones
	steady := Stability([]int{3, 3, 4, 3})
	wild := Stability([]int{0, 12, 1, 9})
	if wild >= steady {
		t.Errorf("expected wild counts to score lower: %f vs %f", wild, steady)
	}
	if wild < 0 || wild > 1 {
		t.Errorf("stability out of [0,1]: %f", wild)
	}
}

func TestScore_PerfectMatch(t *testing.T) {
	targets := map[string]float64{MetricNoiseReduction: 0.6, MetricContrast: 0.4}
	m := Metrics{MetricNoiseReduction: 0.6, MetricContrast: 0.4}

	if s := Score(m, targets); s != 1 {
		t.Errorf("expected score 1 for exact match, got %f", s)
	}
}

func TestScore_Weighting(t *testing.T) {
	// A miss on a high-priority target (>0.8) hurts more than the same
	// miss on a mid-priority target.
	highMiss := Score(
		Metrics{MetricNoiseReduction: 0.5, MetricContrast: 0.5},
		map[string]float64{MetricNoiseReduction: 0.9, MetricContrast: 0.5},
	)
	midMiss := Score(
		Metrics{MetricNoiseReduction: 0.2, MetricContrast: 0.5},
		map[string]float64{MetricNoiseReduction: 0.6, MetricContrast: 0.5},
	)
	if highMiss >= midMiss {
		t.Errorf("expected high-priority miss to score lower: %f vs %f", highMiss, midMiss)
	}
}

func TestScore_NoComputedMetrics(t *testing.T) {
	if s := Score(Metrics{}, map[string]float64{MetricContrast: 0.8}); s != 0 {
		t.Errorf("expected score 0 with no metrics, got %f", s)
	}
}

func TestDefaultTargets(t *testing.T) {
	targets := DefaultTargets(filter.TypeBilateral)
	if targets[MetricNoiseReduction] != 0.8 || targets[MetricDetailPreservation] != 0.7 {
		t.Errorf("unexpected bilateral targets: %v", targets)
	}

	// Unknown types fall back to a balanced pair rather than failing
	fallback := DefaultTargets(filter.Type("sepia"))
	if len(fallback) == 0 {
		t.Error("expected fallback targets for unknown type")
	}
}

func TestMergeTargets(t *testing.T) {
	merged := MergeTargets(filter.TypeBilateral, map[string]float64{MetricNoiseReduction: 0.95})
	if merged[MetricNoiseReduction] != 0.95 {
		t.Errorf("expected operator override 0.95, got %f", merged[MetricNoiseReduction])
	}
	if merged[MetricDetailPreservation] != 0.7 {
		t.Errorf("expected default 0.7 for unspecified metric, got %f", merged[MetricDetailPreservation])
	}
}
