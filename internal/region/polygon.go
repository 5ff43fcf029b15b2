// Package region implements the operator-drawn polygon that restricts
// detection to a sub-area of the frame, and its rasterized binary mask.
package region

import (
	"errors"
	"image"
	"image/color"
	"log"
	"sync"

	"gocv.io/x/gocv"
)

// ErrIncompletePolygon is returned for polygon operations that need at
// least 3 points, or for mask requests on an unclosed polygon.
var ErrIncompletePolygon = errors.New("incomplete polygon")

// ErrPolygonClosed is returned when points are added to a closed polygon.
// Reopen the polygon for editing first.
var ErrPolygonClosed = errors.New("polygon is closed")

// Point is a polygon vertex in normalized [0,1]x[0,1] coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polygon is a closed region drawn point by point in click order. Once
// closed it is immutable until explicitly reopened. The rasterized mask is
// cached per resolution and regenerated when the frame size changes.
type Polygon struct {
	mu      sync.Mutex
	points  []Point
	drawing bool
	closed  bool

	mask    gocv.Mat
	hasMask bool
	maskW   int
	maskH   int
}

// NewPolygon creates an empty, unclosed polygon.
func NewPolygon() *Polygon {
	return &Polygon{}
}

// StartDrawing begins a fresh polygon, discarding any previous points and
// the cached mask.
func (p *Polygon) StartDrawing() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.points = p.points[:0]
	p.drawing = true
	p.closed = false
	p.dropMask()
}

// AddPoint appends a vertex in click order. Coordinates are clamped into
// [0,1]. Fails with ErrPolygonClosed once the polygon has been closed.
func (p *Polygon) AddPoint(x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPolygonClosed
	}
	p.points = append(p.points, Point{X: clamp01(x), Y: clamp01(y)})
	return nil
}

// Close finalizes the polygon. Fails with ErrIncompletePolygon when fewer
// than 3 points have been added.
func (p *Polygon) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.points) < 3 {
		return ErrIncompletePolygon
	}
	p.closed = true
	p.drawing = false
	return nil
}

// Reopen makes a closed polygon editable again and discards the cached
// mask, since further edits invalidate it.
func (p *Polygon) Reopen() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = false
	p.drawing = true
	p.dropMask()
}

// Reset discards all points and the cached mask.
func (p *Polygon) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.points = p.points[:0]
	p.drawing = false
	p.closed = false
	p.dropMask()
}

// IsClosed reports whether the polygon is closed and usable as a mask.
func (p *Polygon) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// IsDrawing reports whether the polygon is in drawing mode.
func (p *Polygon) IsDrawing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drawing
}

// Points returns a copy of the vertices in click order.
func (p *Polygon) Points() []Point {
	p.mu.Lock()
	defer p.mu.Unlock()

	pts := make([]Point, len(p.points))
	copy(pts, p.points)
	return pts
}

// Mask rasterizes the polygon at the requested resolution. Pixels inside
// the polygon are 255, everything else 0. The mask is cached; asking for a
// different resolution regenerates it (a resolution change is logged, not
// an error). The returned Mat is owned by the polygon; do not Close it.
func (p *Polygon) Mask(width, height int) (gocv.Mat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed || len(p.points) < 3 {
		return gocv.Mat{}, ErrIncompletePolygon
	}

	if p.hasMask && p.maskW == width && p.maskH == height {
		return p.mask, nil
	}
	if p.hasMask {
		log.Printf("[region] resolution changed %dx%d -> %dx%d, regenerating mask",
			p.maskW, p.maskH, width, height)
	}
	p.dropMask()

	mask := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC1)
	pixels := make([]image.Point, len(p.points))
	for i, pt := range p.points {
		pixels[i] = image.Pt(int(pt.X*float64(width)), int(pt.Y*float64(height)))
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pixels})
	defer pv.Close()
	gocv.FillPoly(&mask, pv, color.RGBA{R: 255, G: 255, B: 255})

	p.mask = mask
	p.hasMask = true
	p.maskW = width
	p.maskH = height
	return p.mask, nil
}

// Contains reports whether the normalized point (x, y) lies inside the
// polygon, using ray casting over the vertex list. Works with 3 or more
// points regardless of the closed flag.
func (p *Polygon) Contains(x, y float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.points)
	if n < 3 {
		return false
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		pi, pj := p.points[i], p.points[j]
		if (pi.Y > y) != (pj.Y > y) &&
			x < (pj.X-pi.X)*(y-pi.Y)/(pj.Y-pi.Y)+pi.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// Release frees the cached mask. The polygon remains usable; the next Mask
// call rasterizes again.
func (p *Polygon) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropMask()
}

// dropMask must be called with p.mu held.
func (p *Polygon) dropMask() {
	if p.hasMask {
		p.mask.Close()
		p.hasMask = false
	}
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

// FullFrame returns a closed polygon covering the entire frame. Useful as
// a default region and in tests.
func FullFrame() *Polygon {
	p := NewPolygon()
	p.StartDrawing()
	p.AddPoint(0, 0)
	p.AddPoint(1, 0)
	p.AddPoint(1, 1)
	p.AddPoint(0, 1)
	if err := p.Close(); err != nil {
		// Four fixed points always close.
		panic(err)
	}
	return p
}
