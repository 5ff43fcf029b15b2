package filter

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

// testFrame renders a color frame with a bright square so the filters
// have an edge to work on.
func testFrame() gocv.Mat {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 40, 40, 0), 120, 160, gocv.MatTypeCV8UC3)
	gocv.Rectangle(&frame, image.Rect(60, 40, 100, 80), color.RGBA{R: 220, G: 220, B: 220}, -1)
	return frame
}

func TestCascade_ApplyDefaultCascade(t *testing.T) {
	frame := testFrame()
	defer frame.Close()

	cascade := NewCascade()
	out, err := cascade.Apply(&frame, DefaultCascade())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer out.Close()

	if out.Empty() {
		t.Fatal("expected non-empty output")
	}
	// The default cascade starts with grayscale
	if out.Channels() != 1 {
		t.Errorf("expected 1 channel after grayscale cascade, got %d", out.Channels())
	}
	if out.Rows() != frame.Rows() || out.Cols() != frame.Cols() {
		t.Errorf("expected %dx%d output, got %dx%d", frame.Cols(), frame.Rows(), out.Cols(), out.Rows())
	}
}

func TestCascade_ApplyIsDeterministic(t *testing.T) {
	frame := testFrame()
	defer frame.Close()

	cascade := NewCascade()
	cfg := DefaultCascade()

	first, err := cascade.Apply(&frame, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer first.Close()

	second, err := cascade.Apply(&frame, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer second.Close()

	if !bytes.Equal(first.ToBytes(), second.ToBytes()) {
		t.Error("expected identical output for identical input and parameters")
	}
}

func TestCascade_DisabledStagesAreSkipped(t *testing.T) {
	frame := testFrame()
	defer frame.Close()

	blur, _ := NewSpec("blur", TypeGaussian, 1)
	blur.Enabled = false
	cfg, err := NewCascadeConfig(blur)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cascade := NewCascade()
	out, err := cascade.Apply(&frame, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer out.Close()

	// With every stage disabled the frame passes through untouched
	if !bytes.Equal(out.ToBytes(), frame.ToBytes()) {
		t.Error("expected output identical to input when all stages are disabled")
	}
}

func TestCascade_UnsupportedType(t *testing.T) {
	frame := testFrame()
	defer frame.Close()

	cfg := &CascadeConfig{Specs: []Spec{
		{ID: "bad", Type: Type("sepia"), Enabled: true, Order: 1},
	}}

	cascade := NewCascade()
	_, err := cascade.Apply(&frame, cfg)
	if !errors.Is(err, ErrUnsupportedFilterType) {
		t.Errorf("expected ErrUnsupportedFilterType, got %v", err)
	}
}

func TestCascade_ApplyUpTo(t *testing.T) {
	frame := testFrame()
	defer frame.Close()

	blur, _ := NewSpec("blur", TypeGaussian, 1)
	gray, _ := NewSpec("gray", TypeGrayscale, 2)
	cfg, err := NewCascadeConfig(blur, gray)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cascade := NewCascade()

	// Stopping after the blur stage keeps the color channels
	partial, err := cascade.ApplyUpTo(&frame, cfg, "blur")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer partial.Close()
	if partial.Channels() != 3 {
		t.Errorf("expected 3 channels before grayscale, got %d", partial.Channels())
	}

	// Stopping after the grayscale stage collapses to one channel
	full, err := cascade.ApplyUpTo(&frame, cfg, "gray")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer full.Close()
	if full.Channels() != 1 {
		t.Errorf("expected 1 channel after grayscale, got %d", full.Channels())
	}
}

func TestCascade_EveryFilterTypeRuns(t *testing.T) {
	types := []Type{
		TypeGrayscale, TypeBilateral, TypeGaussian, TypeMedian, TypeMorphological,
		TypeNoiseReduction, TypeContrastEnhance, TypeEdgeEnhance, TypeCLAHE, TypeSharpen,
	}

	cascade := NewCascade()
	for _, ft := range types {
		frame := testFrame()

		sp, err := NewSpec("only", ft, 1)
		if err != nil {
			t.Errorf("%s: %v", ft, err)
			frame.Close()
			continue
		}
		cfg, err := NewCascadeConfig(sp)
		if err != nil {
			t.Errorf("%s: %v", ft, err)
			frame.Close()
			continue
		}

		out, err := cascade.Apply(&frame, cfg)
		if err != nil {
			t.Errorf("%s: apply failed: %v", ft, err)
			frame.Close()
			continue
		}
		if out.Empty() {
			t.Errorf("%s: expected non-empty output", ft)
		}
		out.Close()
		frame.Close()
	}
}
