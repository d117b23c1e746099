package transforms

import (
	"image"
	"math/rand"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"github.com/visionkit/go-hybrid/record"
)

// DetectionTransform is a coordinated augmentation: geometric changes to
// the pixels must be applied to the bounding boxes as well.
type DetectionTransform interface {
	Apply(img *image.NRGBA, boxes []record.BBox) (*image.NRGBA, []record.BBox)
}

// DetectionCompose chains detection transforms in order.
type DetectionCompose struct {
	transforms []DetectionTransform
}

// NewDetectionCompose creates a detection transform pipeline.
func NewDetectionCompose(transforms ...DetectionTransform) *DetectionCompose {
	return &DetectionCompose{transforms: transforms}
}

// Apply runs the pipeline over image and boxes together.
func (c *DetectionCompose) Apply(img *image.NRGBA, boxes []record.BBox) (*image.NRGBA, []record.BBox) {
	for _, t := range c.transforms {
		img, boxes = t.Apply(img, boxes)
	}
	return img, boxes
}

// DetectionResize scales the image to Width x Height and the boxes by the
// same factors.
type DetectionResize struct {
	Width  int
	Height int
}

// Apply resizes pixels and boxes together.
func (t *DetectionResize) Apply(img *image.NRGBA, boxes []record.BBox) (*image.NRGBA, []record.BBox) {
	src := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	xdraw.BiLinear.Scale(out, out.Bounds(), img, src, xdraw.Over, nil)

	sx := float64(t.Width) / float64(src.Dx())
	sy := float64(t.Height) / float64(src.Dy())
	scaled := make([]record.BBox, len(boxes))
	for i, b := range boxes {
		scaled[i] = record.BBox{
			XMin: b.XMin * sx,
			YMin: b.YMin * sy,
			XMax: b.XMax * sx,
			YMax: b.YMax * sy,
		}
	}
	return out, scaled
}

// DetectionHFlip mirrors image and boxes left-right with probability P.
type DetectionHFlip struct {
	P    float64
	Rand *rand.Rand
}

// Apply flips pixels and mirrors box x-coordinates with probability P.
func (t *DetectionHFlip) Apply(img *image.NRGBA, boxes []record.BBox) (*image.NRGBA, []record.BBox) {
	if t.roll() >= t.P {
		return img, boxes
	}
	w := float64(img.Bounds().Dx())
	flipped := make([]record.BBox, len(boxes))
	for i, b := range boxes {
		flipped[i] = record.BBox{
			XMin: w - b.XMax,
			YMin: b.YMin,
			XMax: w - b.XMin,
			YMax: b.YMax,
		}
	}
	return imaging.FlipH(img), flipped
}

func (t *DetectionHFlip) roll() float64 {
	if t.Rand != nil {
		return t.Rand.Float64()
	}
	return rand.Float64()
}
