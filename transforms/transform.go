package transforms

import (
	"image"
	"math/rand"

	"github.com/disintegration/imaging"
)

// Transform is a classification-side image augmentation. Implementations
// return a new image and never mutate the input.
type Transform interface {
	Apply(img *image.NRGBA) *image.NRGBA
}

// Compose chains transforms in order.
type Compose struct {
	transforms []Transform
}

// NewCompose creates a transform pipeline that applies each transform in
// the given order.
func NewCompose(transforms ...Transform) *Compose {
	return &Compose{transforms: transforms}
}

// Apply runs the pipeline.
func (c *Compose) Apply(img *image.NRGBA) *image.NRGBA {
	out := img
	for _, t := range c.transforms {
		out = t.Apply(out)
	}
	return out
}

// Resize scales the image to Width x Height.
type Resize struct {
	Width  int
	Height int
}

// Apply resizes with bilinear filtering.
func (t *Resize) Apply(img *image.NRGBA) *image.NRGBA {
	return imaging.Resize(img, t.Width, t.Height, imaging.Linear)
}

// CenterCrop cuts a centered Size x Size square.
type CenterCrop struct {
	Size int
}

// Apply crops around the image center.
func (t *CenterCrop) Apply(img *image.NRGBA) *image.NRGBA {
	return imaging.CropCenter(img, t.Size, t.Size)
}

// HorizontalFlip mirrors the image left-right with probability P.
// Rand may be nil, in which case the global source is used.
type HorizontalFlip struct {
	P    float64
	Rand *rand.Rand
}

// Apply flips the image with probability P.
func (t *HorizontalFlip) Apply(img *image.NRGBA) *image.NRGBA {
	if t.roll() >= t.P {
		return imaging.Clone(img)
	}
	return imaging.FlipH(img)
}

func (t *HorizontalFlip) roll() float64 {
	if t.Rand != nil {
		return t.Rand.Float64()
	}
	return rand.Float64()
}

// AdjustBrightness shifts brightness by a percentage in [-100, 100].
type AdjustBrightness struct {
	Percentage float64
}

// Apply adjusts the image brightness.
func (t *AdjustBrightness) Apply(img *image.NRGBA) *image.NRGBA {
	return imaging.AdjustBrightness(img, t.Percentage)
}

// Grayscale drops color information while keeping three channels.
type Grayscale struct{}

// Apply converts the image to grayscale.
func (t *Grayscale) Apply(img *image.NRGBA) *image.NRGBA {
	return imaging.Grayscale(img)
}
