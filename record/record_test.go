package record

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func TestBBox(t *testing.T) {
	b := BBox{XMin: 10, YMin: 20, XMax: 30, YMax: 60}
	assert.Equal(t, 20.0, b.Width())
	assert.Equal(t, 40.0, b.Height())
	assert.Equal(t, 800.0, b.Area())

	assert.Equal(t, 1.0, b.IoU(b))
	assert.Equal(t, 0.0, b.IoU(BBox{XMin: 100, YMin: 100, XMax: 120, YMax: 120}))

	// Half overlap in x, full in y.
	other := BBox{XMin: 20, YMin: 20, XMax: 40, YMax: 60}
	assert.InDelta(t, 400.0/1200.0, b.IoU(other), 1e-9)
}

func TestOneHot(t *testing.T) {
	c := &LabelsComponent{Multilabel: true, NumClasses: 4, LabelIDs: []int{0, 2}}
	oh, err := c.OneHot()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 1, 0}, oh)

	bad := &LabelsComponent{Multilabel: true, NumClasses: 2, LabelIDs: []int{3}}
	_, err = bad.OneHot()
	assert.Error(t, err)
}

func TestTargetRows(t *testing.T) {
	d := &DetectionComponent{
		Boxes:  []BBox{{XMin: 0, YMin: 0, XMax: 50, YMax: 100}},
		Labels: []int{2},
	}
	rows, err := d.TargetRows(100, 200)
	require.NoError(t, err)
	require.Equal(t, []int{1, 6}, rows.Shape)

	row, err := rows.Row(0)
	require.NoError(t, err)
	assert.Equal(t, float32(0), row[0]) // batch index placeholder
	assert.Equal(t, float32(2), row[1])
	assert.InDelta(t, 0.25, row[2], 1e-6) // cx
	assert.InDelta(t, 0.25, row[3], 1e-6) // cy
	assert.InDelta(t, 0.5, row[4], 1e-6)  // w
	assert.InDelta(t, 0.5, row[5], 1e-6)  // h

	empty := &DetectionComponent{}
	rows, err = empty.TargetRows(100, 100)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 6}, rows.Shape)
}

func TestLoadCopies(t *testing.T) {
	rec := NewFromImage(7, testImage(8, 8))
	rec.SetDetection([]BBox{{XMin: 1, YMin: 1, XMax: 4, YMax: 4}}, []int{0})
	rec.SetClassification("color_tones", &LabelsComponent{NumClasses: 3, LabelIDs: []int{1}})

	loaded, err := rec.Load()
	require.NoError(t, err)

	// Mutating the loaded copy must not leak into the stored record.
	loaded.Detection.Boxes[0].XMax = 99
	loaded.Classification["color_tones"].LabelIDs[0] = 2
	loaded.SetTaskImage("color_tones", &ImageComponent{Img: testImage(2, 2)})

	assert.Equal(t, 4.0, rec.Detection.Boxes[0].XMax)
	assert.Equal(t, []int{1}, rec.Classification["color_tones"].LabelIDs)
	assert.Empty(t, rec.Images)

	// Loading twice yields identical annotations.
	again, err := rec.Load()
	require.NoError(t, err)
	assert.Equal(t, loaded.ID, again.ID)
	assert.Equal(t, rec.Detection.Boxes, again.Detection.Boxes)
}

func TestClassificationTasks(t *testing.T) {
	rec := NewFromImage(0, testImage(4, 4))
	rec.SetClassification("shot_framing", &LabelsComponent{NumClasses: 2})
	rec.SetClassification("color_tones", &LabelsComponent{NumClasses: 2})

	assert.Equal(t, []string{"color_tones", "shot_framing"}, rec.ClassificationTasks())
	assert.True(t, rec.HasTask("color_tones"))
	assert.False(t, rec.HasTask("exposure"))
}

func TestUnload(t *testing.T) {
	rec := NewFromImage(1, testImage(4, 4))
	loaded, err := rec.Load()
	require.NoError(t, err)

	loaded.SetTaskImage(TaskDetection, &ImageComponent{Img: testImage(4, 4)})
	loaded.Unload()

	_, err = loaded.BaseImage()
	assert.Error(t, err)
	_, ok := loaded.TaskImage(TaskDetection)
	assert.False(t, ok)
}
