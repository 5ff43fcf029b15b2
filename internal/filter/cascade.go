package filter

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Cascade applies a CascadeConfig to frames. It holds no state of its own,
// so a single Cascade may serve any number of configurations.
type Cascade struct{}

// NewCascade creates a Cascade.
func NewCascade() *Cascade {
	return &Cascade{}
}

// Apply runs every enabled spec in ascending order over a copy of frame and
// returns the filtered result. The input frame is never modified. Identical
// frame and config always produce identical output; nothing here is random.
// The caller owns the returned Mat.
func (c *Cascade) Apply(frame *gocv.Mat, cfg *CascadeConfig) (gocv.Mat, error) {
	return c.applyChain(frame, cfg, "")
}

// ApplyUpTo applies only the chain prefix up to and including the spec with
// the given ID. Used for preview: pure, no state is written back anywhere.
func (c *Cascade) ApplyUpTo(frame *gocv.Mat, cfg *CascadeConfig, id string) (gocv.Mat, error) {
	return c.applyChain(frame, cfg, id)
}

func (c *Cascade) applyChain(frame *gocv.Mat, cfg *CascadeConfig, stopAfter string) (gocv.Mat, error) {
	if frame == nil || frame.Empty() {
		return gocv.Mat{}, fmt.Errorf("empty input frame")
	}

	ordered := make([]Spec, len(cfg.Specs))
	copy(ordered, cfg.Specs)
	// CascadeConfig keeps Specs sorted by order; re-sorting here would hide
	// a broken invariant rather than surface it.

	result := frame.Clone()
	for i := range ordered {
		sp := &ordered[i]
		if !sp.Enabled {
			// Disabled specs are skipped but keep their order slot.
			if sp.ID == stopAfter {
				break
			}
			continue
		}

		dst := gocv.NewMat()
		if err := applyOne(result, &dst, sp); err != nil {
			dst.Close()
			result.Close()
			return gocv.Mat{}, fmt.Errorf("filter %q: %w", sp.ID, err)
		}
		result.Close()
		result = dst

		if sp.ID == stopAfter {
			break
		}
	}
	return result, nil
}

// applyOne dispatches a single filter stage. Every case must handle both
// color (3 channel) and grayscale (1 channel) input, since a grayscale
// stage earlier in the chain changes the channel count for later stages.
func applyOne(src gocv.Mat, dst *gocv.Mat, sp *Spec) error {
	switch sp.Type {
	case TypeGrayscale:
		if src.Channels() > 1 {
			gocv.CvtColor(src, dst, gocv.ColorBGRToGray)
		} else {
			src.CopyTo(dst)
		}

	case TypeBilateral:
		d := int(sp.Param("d"))
		gocv.BilateralFilter(src, dst, d, sp.Param("sigma_color"), sp.Param("sigma_space"))

	case TypeGaussian:
		k := oddKernel(int(sp.Param("kernel_size")))
		sigma := sp.Param("sigma")
		gocv.GaussianBlur(src, dst, image.Pt(k, k), sigma, sigma, gocv.BorderDefault)

	case TypeMedian:
		k := oddKernel(int(sp.Param("kernel_size")))
		gocv.MedianBlur(src, dst, k)

	case TypeMorphological:
		k := int(sp.Param("kernel_size"))
		kernel := gocv.GetStructuringElement(morphShape(int(sp.Param("kernel_type"))), image.Pt(k, k))
		defer kernel.Close()
		gocv.MorphologyEx(src, dst, morphOp(int(sp.Param("operation"))), kernel)

	case TypeNoiseReduction:
		h := float32(sp.Param("h"))
		if src.Channels() == 3 {
			gocv.FastNlMeansDenoisingColoredWithParams(src, dst, h, h, 7, 21)
		} else {
			gocv.FastNlMeansDenoisingWithParams(src, dst, h, 7, 21)
		}

	case TypeContrastEnhance:
		src.ConvertToWithParams(dst, src.Type(), float32(sp.Param("alpha")), float32(sp.Param("beta")))

	case TypeEdgeEnhance:
		strength := sp.Param("strength")
		kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3))
		defer kernel.Close()
		edges := gocv.NewMat()
		defer edges.Close()
		gocv.MorphologyEx(src, &edges, gocv.MorphGradient, kernel)
		gocv.AddWeighted(src, 1-strength, edges, strength, 0, dst)

	case TypeCLAHE:
		return applyCLAHE(src, dst, sp)

	case TypeSharpen:
		strength := sp.Param("strength")
		kernel := sharpenKernel()
		defer kernel.Close()
		sharp := gocv.NewMat()
		defer sharp.Close()
		gocv.Filter2D(src, &sharp, -1, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)
		gocv.AddWeighted(src, 1-strength, sharp, strength, 0, dst)

	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFilterType, sp.Type)
	}
	return nil
}

// applyCLAHE equalizes local contrast. Color frames are equalized on the
// lightness channel in Lab space so hue is preserved.
func applyCLAHE(src gocv.Mat, dst *gocv.Mat, sp *Spec) error {
	tile := int(sp.Param("tile_grid_size"))
	clahe := gocv.NewCLAHEWithParams(sp.Param("clip_limit"), image.Pt(tile, tile))
	defer clahe.Close()

	if src.Channels() == 1 {
		clahe.Apply(src, dst)
		return nil
	}

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(src, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	equalized := gocv.NewMat()
	defer equalized.Close()
	clahe.Apply(channels[0], &equalized)
	equalized.CopyTo(&channels[0])

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge(channels, &merged)
	gocv.CvtColor(merged, dst, gocv.ColorLabToBGR)
	return nil
}

// oddKernel coerces smoothing kernel sizes odd and at least 3.
func oddKernel(k int) int {
	if k < 3 {
		k = 3
	}
	if k%2 == 0 {
		k++
	}
	return k
}

func morphShape(code int) gocv.MorphShape {
	switch code {
	case KernelRect:
		return gocv.MorphRect
	case KernelCross:
		return gocv.MorphCross
	default:
		return gocv.MorphEllipse
	}
}

func morphOp(code int) gocv.MorphType {
	switch code {
	case MorphOpErode:
		return gocv.MorphErode
	case MorphOpDilate:
		return gocv.MorphDilate
	case MorphOpOpen:
		return gocv.MorphOpen
	case MorphOpGradient:
		return gocv.MorphGradient
	case MorphOpTophat:
		return gocv.MorphTophat
	case MorphOpBlackhat:
		return gocv.MorphBlackhat
	default:
		return gocv.MorphClose
	}
}

func sharpenKernel() gocv.Mat {
	k := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			k.SetFloatAt(row, col, -1)
		}
	}
	k.SetFloatAt(1, 1, 9)
	return k
}
