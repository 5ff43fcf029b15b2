// Package detect orchestrates the per-frame detection pipeline: polygon
// mask, filter cascade, background subtraction, contour extraction and
// geometric validation.
package detect

import (
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/lucasloyola2015/newIllinoisEyes/internal/bgmodel"
	"github.com/lucasloyola2015/newIllinoisEyes/internal/filter"
	"github.com/lucasloyola2015/newIllinoisEyes/internal/region"
)

// Candidate is one contour that passed validation. Coordinates are in the
// source frame's pixel space. Candidates are produced per frame and never
// persisted.
type Candidate struct {
	Points      []image.Point
	Area        float64
	Solidity    float64
	AspectRatio float64
	Bounds      image.Rectangle
	Centroid    image.Point
}

// Result is the outcome of one Process call. It is owned by that call;
// callers keep at most the latest one for polling.
type Result struct {
	ID          string
	Timestamp   time.Time
	Contours    []Candidate
	MaskApplied bool
	FrameWidth  int
	FrameHeight int
}

// Count returns the number of validated contours.
func (r *Result) Count() int { return len(r.Contours) }

// Largest returns the candidate with the biggest area, or nil.
func (r *Result) Largest() *Candidate {
	var best *Candidate
	for i := range r.Contours {
		if best == nil || r.Contours[i].Area > best.Area {
			best = &r.Contours[i]
		}
	}
	return best
}

// Pipeline runs the unified detection flow. It is stateless per call apart
// from the side effect of the background model accumulating statistics.
type Pipeline struct {
	cascade *filter.Cascade

	// detectWidth/detectHeight downscale frames before filtering and
	// subtraction; results are scaled back to the source resolution.
	// Zero means process at native resolution.
	detectWidth  int
	detectHeight int
}

// NewPipeline creates a pipeline processing at native frame resolution.
func NewPipeline() *Pipeline {
	return &Pipeline{cascade: filter.NewCascade()}
}

// SetDetectionResolution enables downscaled processing. Pass zeros to
// return to native resolution.
func (p *Pipeline) SetDetectionResolution(width, height int) {
	p.detectWidth = width
	p.detectHeight = height
}

// Process runs the full pipeline on one frame:
//  1. resolve the polygon mask at the working resolution
//  2. apply the filter cascade
//  3. mask out pixels outside the polygon
//  4. background subtraction
//  5. contour extraction
//  6. area / solidity / aspect / containment computation
//  7. threshold validation (boundary values pass)
//  8. the caller renders separately via Render
func (p *Pipeline) Process(frame *gocv.Mat, cfg *filter.CascadeConfig, poly *region.Polygon,
	model *bgmodel.Model, th Thresholds) (*Result, error) {

	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty input frame")
	}

	srcW, srcH := frame.Cols(), frame.Rows()
	work := *frame
	var resized gocv.Mat
	if p.detectWidth > 0 && p.detectHeight > 0 && (p.detectWidth != srcW || p.detectHeight != srcH) {
		resized = gocv.NewMat()
		defer resized.Close()
		gocv.Resize(*frame, &resized, image.Pt(p.detectWidth, p.detectHeight), 0, 0, gocv.InterpolationLinear)
		work = resized
	}
	workW, workH := work.Cols(), work.Rows()
	scaleX := float64(srcW) / float64(workW)
	scaleY := float64(srcH) / float64(workH)

	filtered, err := p.cascade.Apply(&work, cfg)
	if err != nil {
		return nil, err
	}
	defer filtered.Close()

	maskApplied := false
	detection := filtered
	var masked gocv.Mat
	if poly != nil && poly.IsClosed() {
		mask, err := poly.Mask(workW, workH)
		if err != nil {
			return nil, err
		}
		masked = gocv.NewMat()
		defer masked.Close()
		gocv.BitwiseAndWithMask(filtered, filtered, &masked, mask)
		detection = masked
		maskApplied = true
	}

	fg, err := model.Apply(&detection)
	if err != nil {
		return nil, err
	}
	defer fg.Close()

	result := &Result{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		MaskApplied: maskApplied,
		FrameWidth:  srcW,
		FrameHeight: srcH,
	}

	contours := gocv.FindContours(fg, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		pv := contours.At(i)
		pts := pv.ToPoints()

		cand, ok := p.validate(pv, pts, poly, th, workW, workH)
		if !ok {
			continue
		}
		if scaleX != 1 || scaleY != 1 {
			cand = cand.scaled(scaleX, scaleY)
		}
		result.Contours = append(result.Contours, cand)
	}

	return result, nil
}

// validate computes the candidate geometry and applies the thresholds.
// All threshold comparisons are inclusive at the boundary.
func (p *Pipeline) validate(pv gocv.PointVector, pts []image.Point, poly *region.Polygon,
	th Thresholds, workW, workH int) (Candidate, bool) {

	area := gocv.ContourArea(pv)
	if area < th.MinArea {
		return Candidate{}, false
	}
	if th.MaxArea > 0 && area > th.MaxArea {
		return Candidate{}, false
	}

	hullArea := convexHullArea(pts)
	if hullArea <= 0 {
		return Candidate{}, false
	}
	solidity := area / hullArea
	if solidity > 1 {
		solidity = 1
	}
	if solidity < th.Solidity {
		return Candidate{}, false
	}

	bounds := gocv.BoundingRect(pv)
	if bounds.Dy() == 0 {
		return Candidate{}, false
	}
	aspect := float64(bounds.Dx()) / float64(bounds.Dy())
	if aspect < th.AspectMin || (th.AspectMax > 0 && aspect > th.AspectMax) {
		return Candidate{}, false
	}

	if th.PolygonMargin > 0 {
		m := th.PolygonMargin
		if bounds.Min.X < m || bounds.Min.Y < m || bounds.Max.X > workW-m || bounds.Max.Y > workH-m {
			return Candidate{}, false
		}
	}

	c := centroid(pts)
	if poly != nil && poly.IsClosed() {
		if !poly.Contains(float64(c.X)/float64(workW), float64(c.Y)/float64(workH)) {
			return Candidate{}, false
		}
	}

	return Candidate{
		Points:      pts,
		Area:        area,
		Solidity:    solidity,
		AspectRatio: aspect,
		Bounds:      bounds,
		Centroid:    c,
	}, true
}

// scaled maps a candidate from detection resolution back to the source
// frame. Area scales by both factors.
func (c Candidate) scaled(sx, sy float64) Candidate {
	pts := make([]image.Point, len(c.Points))
	for i, p := range c.Points {
		pts[i] = image.Pt(int(float64(p.X)*sx), int(float64(p.Y)*sy))
	}
	return Candidate{
		Points:      pts,
		Area:        c.Area * sx * sy,
		Solidity:    c.Solidity,
		AspectRatio: c.AspectRatio,
		Bounds: image.Rect(
			int(float64(c.Bounds.Min.X)*sx), int(float64(c.Bounds.Min.Y)*sy),
			int(float64(c.Bounds.Max.X)*sx), int(float64(c.Bounds.Max.Y)*sy),
		),
		Centroid: image.Pt(int(float64(c.Centroid.X)*sx), int(float64(c.Centroid.Y)*sy)),
	}
}
