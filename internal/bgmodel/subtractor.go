package bgmodel

import (
	"image"

	"gocv.io/x/gocv"
)

// subtractor is the capability shared by all algorithm variants. apply
// updates the model (unless frozen) and writes the foreground mask to dst.
type subtractor interface {
	apply(frame gocv.Mat, dst *gocv.Mat, frozen bool)
	close()
}

// newSubtractor builds the variant for cfg. cfg must be validated.
func newSubtractor(cfg Config) subtractor {
	switch cfg.Algorithm {
	case AlgorithmKNN:
		s := gocv.NewBackgroundSubtractorKNNWithParams(cfg.History, cfg.Dist2Threshold, cfg.DetectShadows)
		return &knnSubtractor{s: s}
	case AlgorithmMOG:
		return &mogSubtractor{rate: cfg.LearningRate, threshold: cfg.DiffThreshold}
	default:
		s := gocv.NewBackgroundSubtractorMOG2WithParams(cfg.History, cfg.VarThreshold, cfg.DetectShadows)
		return &mog2Subtractor{s: s}
	}
}

type mog2Subtractor struct {
	s gocv.BackgroundSubtractorMOG2
}

func (m *mog2Subtractor) apply(frame gocv.Mat, dst *gocv.Mat, frozen bool) {
	// gocv's Apply always uses the automatic learning rate, so a freeze
	// request cannot stop the statistics from updating here.
	m.s.Apply(frame, dst)
}

func (m *mog2Subtractor) close() { m.s.Close() }

type knnSubtractor struct {
	s gocv.BackgroundSubtractorKNN
}

func (k *knnSubtractor) apply(frame gocv.Mat, dst *gocv.Mat, frozen bool) {
	k.s.Apply(frame, dst)
}

func (k *knnSubtractor) close() { k.s.Close() }

// mogSubtractor keeps a single running-average Gaussian background and
// thresholds the absolute difference against it. Frames are blurred first
// to reduce sensor noise, the same way the per-frame motion check did in
// earlier revisions of this codebase.
type mogSubtractor struct {
	rate        float64
	threshold   float64
	background  gocv.Mat
	initialized bool
}

const mogBlurKernel = 21

func (m *mogSubtractor) apply(frame gocv.Mat, dst *gocv.Mat, frozen bool) {
	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(mogBlurKernel, mogBlurKernel), 0, 0, gocv.BorderDefault)

	grayF := gocv.NewMat()
	defer grayF.Close()
	blurred.ConvertTo(&grayF, gocv.MatTypeCV32F)

	if !m.initialized {
		m.background = grayF.Clone()
		m.initialized = true
		// First frame is pure baseline: empty foreground.
		empty := gocv.NewMatWithSize(frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC1)
		defer empty.Close()
		empty.CopyTo(dst)
		return
	}

	bg8 := gocv.NewMat()
	defer bg8.Close()
	m.background.ConvertTo(&bg8, gocv.MatTypeCV8U)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, bg8, &diff)
	gocv.Threshold(diff, dst, float32(m.threshold), 255, gocv.ThresholdBinary)

	if !frozen {
		updated := gocv.NewMat()
		defer updated.Close()
		gocv.AddWeighted(m.background, 1-m.rate, grayF, m.rate, 0, &updated)
		updated.CopyTo(&m.background)
	}
}

func (m *mogSubtractor) close() {
	if m.initialized {
		m.background.Close()
		m.initialized = false
	}
}
