package record

import "math"

// BBox is an axis-aligned bounding box in pixel coordinates,
// stored as left/top/right/bottom corners.
type BBox struct {
	XMin, YMin, XMax, YMax float64
}

// Width returns the box width.
func (b BBox) Width() float64 {
	return b.XMax - b.XMin
}

// Height returns the box height.
func (b BBox) Height() float64 {
	return b.YMax - b.YMin
}

// Area returns the box area.
func (b BBox) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU returns the intersection-over-union overlap with another box.
func (b BBox) IoU(other BBox) float64 {
	ix := math.Min(b.XMax, other.XMax) - math.Max(b.XMin, other.XMin)
	iy := math.Min(b.YMax, other.YMax) - math.Max(b.YMin, other.YMin)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
