package video

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/zzzrenn/HeadCountGuard/internal/counting"
	"github.com/zzzrenn/HeadCountGuard/internal/geometry"
	"github.com/zzzrenn/HeadCountGuard/internal/track"
)

var (
	colorLine   = color.RGBA{R: 255, G: 255, A: 255} // yellow
	colorIn     = color.RGBA{G: 200, A: 255}
	colorOut    = color.RGBA{R: 220, A: 255}
	colorTrack  = color.RGBA{G: 255, A: 255}
	colorBanner = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// labelOffset is how far the IN/OUT labels sit from the line, in pixels.
const labelOffset = 30

// Annotator draws the counting overlay onto frames: the line, side labels,
// track boxes with ids and the running totals banner.
type Annotator struct {
	a, b       image.Point // line endpoints in pixels
	inLabelAt  image.Point
	outLabelAt image.Point
}

// NewAnnotator precomputes the pixel geometry of the overlay for the given
// frame size.
func NewAnnotator(line geometry.Line, width, height int) *Annotator {
	pa, pb := line.Endpoints()
	a := image.Pt(
		int(math.Round(pa.X*float64(width))),
		int(math.Round(pa.Y*float64(height))),
	)
	b := image.Pt(
		int(math.Round(pb.X*float64(width))),
		int(math.Round(pb.Y*float64(height))),
	)

	// Unit normal pointing to the viewer-left side of a->b.
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	length := math.Hypot(dx, dy)
	if length == 0 {
		length = 1
	}
	nx := -dy / length
	ny := dx / length

	mx := float64(a.X+b.X) / 2
	my := float64(a.Y+b.Y) / 2
	left := image.Pt(int(mx+nx*labelOffset), int(my+ny*labelOffset))
	right := image.Pt(int(mx-nx*labelOffset), int(my-ny*labelOffset))

	an := &Annotator{a: a, b: b}
	if line.InOnLeft() {
		an.inLabelAt, an.outLabelAt = left, right
	} else {
		an.inLabelAt, an.outLabelAt = right, left
	}
	return an
}

// Annotate draws the overlay onto the frame in place.
func (an *Annotator) Annotate(frame *gocv.Mat, tracks []track.Track, totals counting.Totals) {
	gocv.Line(frame, an.a, an.b, colorLine, 2)
	gocv.PutText(frame, "IN", an.inLabelAt, gocv.FontHersheySimplex, 0.6, colorIn, 2)
	gocv.PutText(frame, "OUT", an.outLabelAt, gocv.FontHersheySimplex, 0.6, colorOut, 2)

	for _, tr := range tracks {
		r := image.Rect(
			int(tr.Box.X), int(tr.Box.Y),
			int(tr.Box.X+tr.Box.W), int(tr.Box.Y+tr.Box.H),
		)
		gocv.Rectangle(frame, r, colorTrack, 2)
		gocv.PutText(frame, fmt.Sprintf("#%d", tr.ID), image.Pt(r.Min.X, r.Min.Y-6),
			gocv.FontHersheySimplex, 0.5, colorTrack, 1)
	}

	banner := fmt.Sprintf("In: %d  Out: %d  Net: %d", totals.Entries, totals.Exits, totals.Net)
	gocv.PutText(frame, banner, image.Pt(10, 28), gocv.FontHersheySimplex, 0.8, colorBanner, 2)
}
