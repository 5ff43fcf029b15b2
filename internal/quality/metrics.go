// Package quality scores filtered frames against operator-specified target
// metrics. Each sub-metric is an independent numeric computation on the
// frame; Score folds them into a single [0,1] closeness value.
package quality

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"gocv.io/x/gocv"

	"github.com/lucasloyola2015/newIllinoisEyes/internal/filter"
)

// Sub-metric names understood by Evaluate and Score.
const (
	MetricNoiseReduction     = "noise_reduction"
	MetricDetailPreservation = "detail_preservation"
	MetricSharpness          = "sharpness"
	MetricContrast           = "contrast"
	MetricObjectSeparation   = "object_separation"
	MetricDetectionStability = "detection_stability"
)

// Metrics holds computed sub-metric values, each in [0,1].
type Metrics map[string]float64

// Evaluate computes the sub-metrics named in targets for one frame.
// Unknown names are ignored (detection_stability is computed over a frame
// burst, see Stability). Never fails: an empty frame yields empty metrics.
func Evaluate(frame *gocv.Mat, targets map[string]float64) Metrics {
	m := Metrics{}
	if frame == nil || frame.Empty() {
		return m
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	if _, ok := targets[MetricNoiseReduction]; ok {
		// Laplacian variance measures residual high-frequency noise;
		// lower variance scores closer to 1.
		m[MetricNoiseReduction] = clamp01(1 - laplacianVariance(gray)/200.0)
	}

	needDetail := hasTarget(targets, MetricDetailPreservation)
	needSharp := hasTarget(targets, MetricSharpness)
	if needDetail || needSharp {
		meanGrad, varGrad := gradientStats(gray)
		if needDetail {
			m[MetricDetailPreservation] = clamp01(meanGrad / 255.0)
		}
		if needSharp {
			m[MetricSharpness] = clamp01(varGrad / 1000.0)
		}
	}

	if _, ok := targets[MetricContrast]; ok {
		_, stddev := gray.MeanStdDev()
		m[MetricContrast] = clamp01(stddev.Val1 / 128.0)
	}

	if _, ok := targets[MetricObjectSeparation]; ok {
		m[MetricObjectSeparation] = clamp01(histogramEntropy(gray) / 8.0)
	}

	return m
}

// Stability converts per-frame contour counts from a short burst into a
// [0,1] score: 1 for a perfectly steady count, falling as the count
// variance grows relative to the mean.
func Stability(counts []int) float64 {
	if len(counts) < 2 {
		return 1
	}
	xs := make([]float64, len(counts))
	for i, c := range counts {
		xs[i] = float64(c)
	}
	mean := stat.Mean(xs, nil)
	variance := stat.Variance(xs, nil)
	return clamp01(1 - variance/(mean+1))
}

// Score folds computed metrics into a weighted closeness to the targets:
// 1 is a perfect match. Targets above 0.8 weigh 1.5, below 0.3 weigh 0.7.
// Target names with no computed metric contribute nothing.
func Score(m Metrics, targets map[string]float64) float64 {
	if len(m) == 0 {
		return 0
	}

	var total, weights float64
	for name, target := range targets {
		actual, ok := m[name]
		if !ok {
			continue
		}
		weight := 1.0
		switch {
		case target > 0.8:
			weight = 1.5
		case target < 0.3:
			weight = 0.7
		}
		total += clamp01(1-math.Abs(actual-target)) * weight
		weights += weight
	}
	if weights == 0 {
		return 0
	}
	return total / weights
}

// DefaultTargets returns the documented target metrics for a filter type.
// Unknown types fall back to a balanced noise/detail pair; this never fails.
func DefaultTargets(t filter.Type) map[string]float64 {
	switch t {
	case filter.TypeBilateral:
		return map[string]float64{MetricNoiseReduction: 0.8, MetricDetailPreservation: 0.7}
	case filter.TypeGaussian:
		return map[string]float64{MetricNoiseReduction: 0.9, MetricDetailPreservation: 0.5}
	case filter.TypeMedian:
		return map[string]float64{MetricNoiseReduction: 0.8, MetricDetailPreservation: 0.6}
	case filter.TypeMorphological:
		return map[string]float64{MetricNoiseReduction: 0.7, MetricObjectSeparation: 0.8}
	case filter.TypeNoiseReduction:
		return map[string]float64{MetricNoiseReduction: 0.9, MetricDetailPreservation: 0.8}
	case filter.TypeContrastEnhance:
		return map[string]float64{MetricContrast: 0.8, MetricObjectSeparation: 0.7}
	case filter.TypeEdgeEnhance:
		return map[string]float64{MetricSharpness: 0.8, MetricDetailPreservation: 0.6}
	case filter.TypeCLAHE:
		return map[string]float64{MetricContrast: 0.8, MetricDetailPreservation: 0.7}
	case filter.TypeSharpen:
		return map[string]float64{MetricSharpness: 0.9, MetricDetailPreservation: 0.8}
	default:
		return map[string]float64{MetricNoiseReduction: 0.7, MetricDetailPreservation: 0.7}
	}
}

// MergeTargets overlays operator targets onto the filter type's defaults,
// so missing metric names fall back rather than fail.
func MergeTargets(t filter.Type, targets map[string]float64) map[string]float64 {
	merged := DefaultTargets(t)
	for name, v := range targets {
		merged[name] = v
	}
	return merged
}

func laplacianVariance(gray gocv.Mat) float64 {
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)
	_, stddev := lap.MeanStdDev()
	return stddev.Val1 * stddev.Val1
}

func gradientStats(gray gocv.Mat) (mean, variance float64) {
	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Sobel(gray, &gx, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gy, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	mag := gocv.NewMat()
	defer mag.Close()
	gocv.Magnitude(gx, gy, &mag)

	m, stddev := mag.MeanStdDev()
	return m.Val1, stddev.Val1 * stddev.Val1
}

// histogramEntropy computes the Shannon entropy of the 256-bin intensity
// histogram, in bits (0..8 for 8-bit frames).
func histogramEntropy(gray gocv.Mat) float64 {
	data := gray.ToBytes()
	if len(data) == 0 {
		return 0
	}
	var hist [256]float64
	for _, b := range data {
		hist[b]++
	}
	total := float64(len(data))
	p := make([]float64, 0, 256)
	for _, c := range hist {
		if c > 0 {
			p = append(p, c/total)
		}
	}
	// gonum's entropy is in nats; histogram entropy is conventionally bits.
	return stat.Entropy(p) / math.Ln2
}

func hasTarget(targets map[string]float64, name string) bool {
	_, ok := targets[name]
	return ok
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
