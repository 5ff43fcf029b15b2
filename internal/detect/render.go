package detect

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/lucasloyola2015/newIllinoisEyes/internal/region"
)

var (
	colorPolygon = color.RGBA{G: 255}
	colorContour = color.RGBA{G: 255}
	colorBox     = color.RGBA{B: 255}
	colorLabel   = color.RGBA{R: 255, G: 255, B: 255}
)

// Render draws the detection overlay onto a copy of frame: the polygon
// outline, contour shapes, bounding boxes with area labels, and a status
// line with the detection count. Kept separate from Process so headless
// callers never pay for it. The caller owns the returned Mat.
func Render(frame *gocv.Mat, res *Result, poly *region.Polygon) gocv.Mat {
	out := frame.Clone()
	if res == nil {
		return out
	}

	w, h := out.Cols(), out.Rows()

	if poly != nil && poly.IsClosed() {
		pts := poly.Points()
		pixels := make([]image.Point, len(pts))
		for i, p := range pts {
			pixels[i] = image.Pt(int(p.X*float64(w)), int(p.Y*float64(h)))
		}
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{pixels})
		gocv.Polylines(&out, pv, true, colorPolygon, 2)
		pv.Close()
	}

	for i := range res.Contours {
		c := &res.Contours[i]
		if len(c.Points) > 0 {
			pv := gocv.NewPointsVectorFromPoints([][]image.Point{c.Points})
			gocv.DrawContours(&out, pv, 0, colorContour, 2)
			pv.Close()
		}
		gocv.Rectangle(&out, c.Bounds, colorBox, 2)
		label := fmt.Sprintf("Area: %d", int(c.Area))
		gocv.PutText(&out, label, image.Pt(c.Bounds.Min.X, c.Bounds.Min.Y-10),
			gocv.FontHersheySimplex, 0.5, colorLabel, 1)
	}

	if n := res.Count(); n > 0 {
		gocv.PutText(&out, fmt.Sprintf("DETECTION ACTIVE (%d)", n), image.Pt(10, 30),
			gocv.FontHersheySimplex, 0.7, colorContour, 2)
	}

	return out
}
