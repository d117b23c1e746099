package dataloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionkit/go-hybrid/record"
	"github.com/visionkit/go-hybrid/tensor"
)

// collatedRecord builds a loaded-style record with a normalized detection
// image of the given size and nBoxes identical ground-truth boxes.
func collatedRecord(t *testing.T, id, w, h, nBoxes int) *record.Record {
	t.Helper()

	rec := record.New(id, "")
	img, err := tensor.Zeros([]int{3, h, w})
	require.NoError(t, err)
	rec.SetTaskImage(record.TaskDetection, &record.ImageComponent{Tensor: img})

	boxes := make([]record.BBox, nBoxes)
	labels := make([]int, nBoxes)
	for i := range boxes {
		boxes[i] = record.BBox{XMin: 2, YMin: 2, XMax: 10, YMax: 10}
		labels[i] = i % 2
	}
	rec.SetDetection(boxes, labels)

	rec.SetClassification("color_tones", &record.LabelsComponent{Multilabel: true, NumClasses: 4, LabelIDs: []int{id % 4}})
	rec.SetClassification("shot_framing", &record.LabelsComponent{NumClasses: 3, LabelIDs: []int{(id + 1) % 3}})
	return rec
}

func TestBuildSingleAugBatchShapes(t *testing.T) {
	records := []*record.Record{
		collatedRecord(t, 0, 16, 16, 2),
		collatedRecord(t, 1, 16, 16, 1),
	}

	batch, passthrough, err := BuildSingleAugBatch(records)
	require.NoError(t, err)
	assert.Equal(t, records, passthrough)

	assert.Equal(t, []int{2, 3, 16, 16}, batch.Images.Shape)
	assert.Equal(t, []int{3, 6}, batch.DetectionTargets.Shape)
	assert.Nil(t, batch.GroupImages)

	require.Contains(t, batch.ClassificationTargets, "color_tones")
	require.Contains(t, batch.ClassificationTargets, "shot_framing")
	assert.Equal(t, []int{2, 4}, batch.ClassificationTargets["color_tones"].Shape)
	assert.Equal(t, []int{2}, batch.ClassificationTargets["shot_framing"].Shape)
}

// TestBatchIndexColumn pins the batch-attribution property: every target
// row carries the index of the image it belongs to, and records without
// targets contribute no rows at all.
func TestBatchIndexColumn(t *testing.T) {
	records := []*record.Record{
		collatedRecord(t, 0, 8, 8, 2),
		collatedRecord(t, 1, 8, 8, 0), // empty-target record in the middle
		collatedRecord(t, 2, 8, 8, 1),
	}

	batch, _, err := BuildSingleAugBatch(records)
	require.NoError(t, err)

	require.Equal(t, []int{3, 6}, batch.DetectionTargets.Shape)

	// The empty record contributes no rows; a placeholder row with a stale
	// index here would misattribute targets during loss computation.
	wantIdx := []float32{0, 0, 2}
	for row := 0; row < 3; row++ {
		v, err := batch.DetectionTargets.At(row, 0)
		require.NoError(t, err)
		assert.Equal(t, wantIdx[row], v, "row %d", row)
		assert.NotEqual(t, float32(1), v, "row %d claims the empty record", row)
	}
}

func TestBuildSingleAugBatchLabels(t *testing.T) {
	records := []*record.Record{
		collatedRecord(t, 0, 8, 8, 1), // color_tones {0}, shot_framing 1
		collatedRecord(t, 3, 8, 8, 1), // color_tones {3}, shot_framing 1
	}

	batch, _, err := BuildSingleAugBatch(records)
	require.NoError(t, err)

	tones := batch.ClassificationTargets["color_tones"]
	row0, _ := tones.Row(0)
	row1, _ := tones.Row(1)
	assert.Equal(t, []float32{1, 0, 0, 0}, row0)
	assert.Equal(t, []float32{0, 0, 0, 1}, row1)

	framing := batch.ClassificationTargets["shot_framing"]
	assert.Equal(t, []float32{1, 1}, framing.Data)
}

func TestBuildSingleAugBatchErrors(t *testing.T) {
	_, _, err := BuildSingleAugBatch(nil)
	assert.Error(t, err)

	// Debug-style record carries a displayable image, not a tensor.
	rec := record.New(0, "")
	rec.SetTaskImage(record.TaskDetection, &record.ImageComponent{})
	_, _, err = BuildSingleAugBatch([]*record.Record{rec})
	assert.Error(t, err)

	// No detection component at all.
	_, _, err = BuildSingleAugBatch([]*record.Record{record.New(1, "")})
	assert.Error(t, err)
}

func TestBuildMultiAugBatch(t *testing.T) {
	records := []*record.Record{
		collatedRecord(t, 0, 8, 8, 1),
		collatedRecord(t, 1, 8, 8, 1),
	}
	for _, rec := range records {
		tones, err := tensor.Zeros([]int{3, 32, 32})
		require.NoError(t, err)
		framing, err := tensor.Zeros([]int{3, 16, 16})
		require.NoError(t, err)
		rec.SetTaskImage("color_tones", &record.ImageComponent{Tensor: tones})
		rec.SetTaskImage("shot_framing", &record.ImageComponent{Tensor: framing})
	}

	groups := map[string][]string{
		"tones":   {"color_tones"},
		"framing": {"shot_framing"},
	}
	batch, _, err := BuildMultiAugBatch(records, groups)
	require.NoError(t, err)

	require.NotNil(t, batch.GroupImages)
	assert.Equal(t, []int{2, 3, 32, 32}, batch.GroupImages["tones"].Shape)
	assert.Equal(t, []int{2, 3, 16, 16}, batch.GroupImages["framing"].Shape)

	_, _, err = BuildMultiAugBatch(records, nil)
	assert.Error(t, err)
	_, _, err = BuildMultiAugBatch(records, map[string][]string{"missing": {"exposure"}})
	assert.Error(t, err)
}
