package collage

import (
	"math"
	"sort"
)

// horizontalEdgeEpsilon is the Y-span threshold below which a polygon edge
// is treated as horizontal and skipped by the scanline fill. Horizontal
// edges contribute no crossings under the even-odd rule and would divide
// by a near-zero span.
const horizontalEdgeEpsilon = 1e-6

// FillPolygon rasterizes a closed polygon into a width x height coverage
// mask using the even-odd scanline rule. The polygon is an ordered list of
// points in normalized [-1,1]^2 object space; consecutive points form
// edges, with an implicit closing edge from the last point back to the
// first. Interior pixels are set to 255, all others to 0.
//
// Self-intersecting polygons fill under the even-odd rule; degenerate
// (zero-area) polygons produce an empty mask.
func FillPolygon(points []Point, width, height int) *Mask {
	mask := NewMask(width, height)
	FillPolygonInto(mask, points)
	return mask
}

// FillPolygonInto rasterizes a polygon into an existing mask, clearing it
// first. This is the regeneration path: the mask's backing store (and the
// GPU texture it uploads to) is reused instead of reallocated.
func FillPolygonInto(mask *Mask, points []Point) {
	mask.Clear()
	if len(points) == 0 {
		return
	}

	width, height := mask.Width(), mask.Height()

	// Bounding box in pixel rows, clamped to the mask.
	minClipY, maxClipY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		minClipY = math.Min(minClipY, p.Y)
		maxClipY = math.Max(maxClipY, p.Y)
	}
	// Clip Y is up, pixel Y is down: the clip-space maximum is the top row.
	minRow := clampInt(int(math.Floor(clipToPixelY(maxClipY, height))), 0, height)
	maxRow := clampInt(int(math.Ceil(clipToPixelY(minClipY, height))), 0, height)

	var xs []float64
	for y := minRow; y < maxRow; y++ {
		yClip := pixelToClipY(float64(y)+0.5, height)
		xs = xs[:0]

		for i := range points {
			a := points[i]
			b := points[(i+1)%len(points)]
			span := a.Y - b.Y
			if math.Abs(span) < horizontalEdgeEpsilon {
				continue
			}
			t := (yClip - b.Y) / span
			if t < 0 || t > 1 {
				continue
			}
			xClip := b.X + t*(a.X-b.X)
			xs = append(xs, (xClip+1)/2*float64(width))
		}

		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := clampInt(int(math.Round(xs[i])), 0, width)
			x1 := clampInt(int(math.Round(xs[i+1])), 0, width)
			for x := x0; x < x1; x++ {
				mask.Set(x, y, 255)
			}
		}
	}
}

// pixelToClipY converts a pixel row (Y down) to clip space (Y up).
func pixelToClipY(y float64, height int) float64 {
	return 1 - 2*y/float64(height)
}

// clipToPixelY converts a clip-space Y to a pixel row.
func clipToPixelY(y float64, height int) float64 {
	return (1 - y) / 2 * float64(height)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
