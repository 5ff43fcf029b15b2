package region

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestPolygon_CloseRequiresThreePoints(t *testing.T) {
	p := NewPolygon()
	p.StartDrawing()
	p.AddPoint(0.1, 0.1)
	p.AddPoint(0.9, 0.1)

	if err := p.Close(); !errors.Is(err, ErrIncompletePolygon) {
		t.Errorf("expected ErrIncompletePolygon with 2 points, got %v", err)
	}

	p.AddPoint(0.5, 0.9)
	if err := p.Close(); err != nil {
		t.Errorf("expected close to succeed with 3 points, got %v", err)
	}
	if !p.IsClosed() {
		t.Error("expected polygon to be closed")
	}
}

func TestPolygon_AddPointAfterClose(t *testing.T) {
	p := triangle()

	if err := p.AddPoint(0.5, 0.5); !errors.Is(err, ErrPolygonClosed) {
		t.Errorf("expected ErrPolygonClosed, got %v", err)
	}

	// Reopening makes the polygon editable again
	p.Reopen()
	if err := p.AddPoint(0.5, 0.5); err != nil {
		t.Errorf("expected add to succeed after reopen, got %v", err)
	}
	if p.IsClosed() {
		t.Error("expected polygon to be open after reopen")
	}
}

func TestPolygon_AddPointClampsCoordinates(t *testing.T) {
	p := NewPolygon()
	p.StartDrawing()
	p.AddPoint(-0.5, 1.5)

	pts := p.Points()
	if len(pts) != 1 {
		t.Fatalf("expected 1 point, got %d", len(pts))
	}
	if pts[0].X != 0 || pts[0].Y != 1 {
		t.Errorf("expected point clamped to (0, 1), got (%f, %f)", pts[0].X, pts[0].Y)
	}
}

func TestPolygon_MaskRequiresClosed(t *testing.T) {
	p := NewPolygon()
	p.StartDrawing()
	p.AddPoint(0.1, 0.1)
	p.AddPoint(0.9, 0.1)
	p.AddPoint(0.5, 0.9)

	if _, err := p.Mask(160, 120); !errors.Is(err, ErrIncompletePolygon) {
		t.Errorf("expected ErrIncompletePolygon for open polygon, got %v", err)
	}
}

func TestPolygon_MaskCoversInterior(t *testing.T) {
	p := triangle()
	defer p.Release()

	mask, err := p.Mask(160, 120)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	nonZero := gocv.CountNonZero(mask)
	if nonZero == 0 {
		t.Error("expected mask to have interior pixels")
	}
	if nonZero >= 160*120 {
		t.Errorf("expected mask smaller than the frame, got %d of %d pixels", nonZero, 160*120)
	}
	if mask.Rows() != 120 || mask.Cols() != 160 {
		t.Errorf("expected 160x120 mask, got %dx%d", mask.Cols(), mask.Rows())
	}
}

func TestPolygon_MaskRegeneratesOnResolutionChange(t *testing.T) {
	p := triangle()
	defer p.Release()

	small, err := p.Mask(160, 120)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if small.Cols() != 160 {
		t.Fatalf("expected 160 wide mask, got %d", small.Cols())
	}

	big, err := p.Mask(320, 240)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if big.Cols() != 320 || big.Rows() != 240 {
		t.Errorf("expected 320x240 mask after resolution change, got %dx%d", big.Cols(), big.Rows())
	}
}

func TestPolygon_Contains(t *testing.T) {
	p := triangle()

	if !p.Contains(0.5, 0.4) {
		t.Error("expected centroid area to be inside the triangle")
	}
	if p.Contains(0.05, 0.9) {
		t.Error("expected far corner to be outside the triangle")
	}
	if p.Contains(0.99, 0.99) {
		t.Error("expected opposite corner to be outside the triangle")
	}
}

func TestPolygon_ContainsNeedsThreePoints(t *testing.T) {
	p := NewPolygon()
	p.StartDrawing()
	p.AddPoint(0.1, 0.1)
	p.AddPoint(0.9, 0.9)

	if p.Contains(0.5, 0.5) {
		t.Error("expected Contains to be false with fewer than 3 points")
	}
}

func TestPolygon_Reset(t *testing.T) {
	p := triangle()
	p.Reset()

	if p.IsClosed() || p.IsDrawing() {
		t.Error("expected reset polygon to be neither closed nor drawing")
	}
	if len(p.Points()) != 0 {
		t.Errorf("expected no points after reset, got %d", len(p.Points()))
	}
}

func TestFullFrame(t *testing.T) {
	p := FullFrame()
	defer p.Release()

	if !p.IsClosed() {
		t.Fatal("expected full-frame polygon to be closed")
	}
	if !p.Contains(0.5, 0.5) {
		t.Error("expected frame center to be inside")
	}

	mask, err := p.Mask(160, 120)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gocv.CountNonZero(mask) != 160*120 {
		t.Errorf("expected full mask coverage, got %d of %d", gocv.CountNonZero(mask), 160*120)
	}
}

// triangle builds a closed triangular polygon used across tests.
func triangle() *Polygon {
	p := NewPolygon()
	p.StartDrawing()
	p.AddPoint(0.1, 0.1)
	p.AddPoint(0.9, 0.1)
	p.AddPoint(0.5, 0.8)
	if err := p.Close(); err != nil {
		panic(err)
	}
	return p
}
