package transforms

import (
	"fmt"
	"image"

	"gonum.org/v1/gonum/floats"

	"github.com/visionkit/go-hybrid/tensor"
)

// ImageNet channel statistics, the usual defaults for pretrained backbones.
var (
	ImageNetMean = []float64{0.485, 0.456, 0.406}
	ImageNetStd  = []float64{0.229, 0.224, 0.225}
)

// Normalize converts an image into a CHW float32 tensor: pixels scaled to
// [0, 1], then (x - mean) / std per channel. Mean and std must each have
// three elements.
func Normalize(img *image.NRGBA, mean, std []float64) (*tensor.Tensor, error) {
	if len(mean) != 3 || len(std) != 3 {
		return nil, fmt.Errorf("normalization stats must have 3 channels, got mean=%d std=%d", len(mean), len(std))
	}
	for c, s := range std {
		if s == 0 {
			return nil, fmt.Errorf("zero std for channel %d", c)
		}
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := w * h
	data := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := img.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			idx := y*w + x
			data[idx] = float32(px.R) / 255.0
			data[plane+idx] = float32(px.G) / 255.0
			data[2*plane+idx] = float32(px.B) / 255.0
		}
	}

	// Channel-wise standardization on float64 planes for gonum.
	buf := make([]float64, plane)
	for c := 0; c < 3; c++ {
		ch := data[c*plane : (c+1)*plane]
		for i, v := range ch {
			buf[i] = float64(v)
		}
		floats.AddConst(-mean[c], buf)
		floats.Scale(1/std[c], buf)
		for i, v := range buf {
			ch[i] = float32(v)
		}
	}

	return tensor.New([]int{3, h, w}, data)
}
