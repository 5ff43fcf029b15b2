package detect

import (
	"image"
	"testing"
)

func TestConvexHullArea_Square(t *testing.T) {
	pts := []image.Point{
		image.Pt(0, 0), image.Pt(10, 0), image.Pt(10, 10), image.Pt(0, 10),
	}
	if area := convexHullArea(pts); area != 100 {
		t.Errorf("expected hull area 100, got %f", area)
	}
}

func TestConvexHullArea_ConcaveShape(t *testing.T) {
	// An L shape: the hull spans the full bounding square, so the hull
	// area exceeds the shape's own area.
	pts := []image.Point{
		image.Pt(0, 0), image.Pt(10, 0), image.Pt(10, 5),
		image.Pt(5, 5), image.Pt(5, 10), image.Pt(0, 10),
	}
	if area := convexHullArea(pts); area != 100 {
		t.Errorf("expected hull area 100 for L shape, got %f", area)
	}
	if area := polygonArea(pts); area != 75 {
		t.Errorf("expected polygon area 75 for L shape, got %f", area)
	}
}

func TestConvexHullArea_Degenerate(t *testing.T) {
	if area := convexHullArea([]image.Point{image.Pt(1, 1), image.Pt(5, 5)}); area != 0 {
		t.Errorf("expected zero area for 2 points, got %f", area)
	}
	// Collinear points have no interior
	collinear := []image.Point{image.Pt(0, 0), image.Pt(5, 0), image.Pt(10, 0)}
	if area := convexHullArea(collinear); area != 0 {
		t.Errorf("expected zero area for collinear points, got %f", area)
	}
}

func TestCentroid(t *testing.T) {
	pts := []image.Point{
		image.Pt(0, 0), image.Pt(10, 0), image.Pt(10, 10), image.Pt(0, 10),
	}
	c := centroid(pts)
	if c.X != 5 || c.Y != 5 {
		t.Errorf("expected centroid (5, 5), got %v", c)
	}

	if c := centroid(nil); c.X != 0 || c.Y != 0 {
		t.Errorf("expected zero centroid for no points, got %v", c)
	}
}
