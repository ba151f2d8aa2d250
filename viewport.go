package collage

// Aspect returns the aspect ratio w/h as floating point division.
// Callers must guard against h == 0.
func Aspect(w, h float64) float64 {
	return w / h
}

// AspectFit produces a uniform, non-rotating scale that fits an
// innerW x innerH rectangle inside an outerW x outerH rectangle while
// preserving the inner aspect ratio ("letterbox/pillarbox" fit). If the
// outer container is relatively wider than the inner content, X is scaled
// down; otherwise Y is scaled down. When the aspect ratios match the result
// is the identity.
func AspectFit(innerW, innerH, outerW, outerH float64) Transform {
	inner := Aspect(innerW, innerH)
	outer := Aspect(outerW, outerH)
	if outer > inner {
		return Scale(inner/outer, 1)
	}
	return Scale(1, outer/inner)
}

// WindowToClip converts window pixel coordinates (origin top-left, Y down)
// to clip space [-1,1]^2 (origin center, Y up).
func WindowToClip(x, y, winW, winH float64) Point {
	return Point{
		X: 2*x/winW - 1,
		Y: 1 - 2*y/winH,
	}
}

// ClipToWindow converts clip space coordinates back to window pixels.
func ClipToWindow(p Point, winW, winH float64) Point {
	return Point{
		X: (p.X + 1) / 2 * winW,
		Y: (1 - p.Y) / 2 * winH,
	}
}

// ClipToLocal converts a clip-space point into the local [-1,1]^2 space of
// an object drawn with the given accumulated transform.
func ClipToLocal(p Point, accumulated Transform) Point {
	return accumulated.Invert().Apply(p)
}
