package record

import (
	"image"

	"github.com/pkg/errors"

	"github.com/visionkit/go-hybrid/tensor"
)

// TaskDetection is the task name under which the detection image
// component is attached during a fetch.
const TaskDetection = "detection"

// ImageComponent holds one task's view of a record's image. During
// augmentation it carries a displayable image; normalization replaces it
// with a CHW float32 tensor unless the dataset runs in debug mode.
type ImageComponent struct {
	Img    *image.NRGBA
	Tensor *tensor.Tensor
}

// Normalized reports whether the component has been converted to a tensor.
func (c *ImageComponent) Normalized() bool {
	return c.Tensor != nil
}

// LabelsComponent holds the classification labels for one task.
// Multilabel tasks carry any number of label IDs and are encoded one-hot;
// single-label tasks carry class indices directly.
type LabelsComponent struct {
	Multilabel bool
	NumClasses int
	LabelIDs   []int
}

// OneHot returns the labels as a one-hot (multi-hot) float vector of
// length NumClasses.
func (c *LabelsComponent) OneHot() ([]float32, error) {
	if c.NumClasses <= 0 {
		return nil, errors.Errorf("labels component has no class count")
	}
	out := make([]float32, c.NumClasses)
	for _, id := range c.LabelIDs {
		if id < 0 || id >= c.NumClasses {
			return nil, errors.Errorf("label id %d out of range [0, %d)", id, c.NumClasses)
		}
		out[id] = 1
	}
	return out, nil
}

// DetectionComponent holds a record's ground-truth boxes and their class
// labels, in the pixel space of the current detection image.
type DetectionComponent struct {
	Boxes  []BBox
	Labels []int
}

// TargetRows encodes the boxes as a [n, 6] tensor of
// [batchIdx, class, cx, cy, w, h] rows with coordinates normalized by the
// image size. The leading column is left zero; batch assembly fills it in.
func (d *DetectionComponent) TargetRows(imgW, imgH int) (*tensor.Tensor, error) {
	if len(d.Boxes) != len(d.Labels) {
		return nil, errors.Errorf("detection component has %d boxes but %d labels", len(d.Boxes), len(d.Labels))
	}
	if imgW <= 0 || imgH <= 0 {
		return nil, errors.Errorf("invalid image size %dx%d", imgW, imgH)
	}
	data := make([]float32, 0, len(d.Boxes)*6)
	for i, b := range d.Boxes {
		cx := (b.XMin + b.XMax) / 2 / float64(imgW)
		cy := (b.YMin + b.YMax) / 2 / float64(imgH)
		w := b.Width() / float64(imgW)
		h := b.Height() / float64(imgH)
		data = append(data, 0, float32(d.Labels[i]), float32(cx), float32(cy), float32(w), float32(h))
	}
	return tensor.New([]int{len(d.Boxes), 6}, data)
}

// clone returns a deep copy so per-fetch mutation never touches the
// stored annotations.
func (d *DetectionComponent) clone() *DetectionComponent {
	if d == nil {
		return nil
	}
	out := &DetectionComponent{
		Boxes:  make([]BBox, len(d.Boxes)),
		Labels: make([]int, len(d.Labels)),
	}
	copy(out.Boxes, d.Boxes)
	copy(out.Labels, d.Labels)
	return out
}
