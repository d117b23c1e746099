package dataloader

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/visionkit/go-hybrid/record"
	"github.com/visionkit/go-hybrid/tensor"
)

// Batch is the model-input bundle produced by the builders.
//
// DetectionTargets rows are [batchIdx, class, cx, cy, w, h] with the
// leading column tying every row back to its image in the stack.
// GroupImages is populated only by the multi-augmentation builder; its
// presence selects the forward mode downstream.
type Batch struct {
	Images                *tensor.Tensor
	DetectionTargets      *tensor.Tensor
	ClassificationTargets map[string]*tensor.Tensor
	GroupImages           map[string]*tensor.Tensor
}

// BuildSingleAugBatch collates fetched records into one batch: detection
// images stacked along a new leading axis, detection targets concatenated
// with their batch index filled in, and one label tensor per
// classification task. Records with no detection targets contribute zero
// target rows. The records are passed through for downstream evaluation.
//
// The result is deterministic; any randomness lives in the augmentation
// pipelines upstream.
func BuildSingleAugBatch(records []*record.Record) (*Batch, []*record.Record, error) {
	if len(records) == 0 {
		return nil, nil, errors.New("cannot build a batch from zero records")
	}

	images := make([]*tensor.Tensor, 0, len(records))
	targets := make([]*tensor.Tensor, 0, len(records))

	for i, rec := range records {
		img, target, err := buildDetectionSample(rec)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "record %d", rec.ID)
		}
		images = append(images, img)

		// Attribute every target row to this image in the stack. Empty
		// targets have no rows to annotate and add nothing to the
		// concatenation.
		for row := 0; row < target.Shape[0]; row++ {
			if err := target.Set(float32(i), row, 0); err != nil {
				return nil, nil, err
			}
		}
		targets = append(targets, target)
	}

	imageStack, err := tensor.Stack(images)
	if err != nil {
		return nil, nil, errors.Wrap(err, "stacking detection images")
	}
	targetCat, err := tensor.Cat(targets)
	if err != nil {
		return nil, nil, errors.Wrap(err, "concatenating detection targets")
	}

	classification, err := buildClassificationTargets(records)
	if err != nil {
		return nil, nil, err
	}

	return &Batch{
		Images:                imageStack,
		DetectionTargets:      targetCat,
		ClassificationTargets: classification,
	}, records, nil
}

// BuildMultiAugBatch collates like BuildSingleAugBatch and additionally
// stacks one image tensor per transform group, so each group gets its
// dedicated forward pass. Groups maps group name to the tasks sharing its
// pipeline; tasks in a group alias one image, so the first task's
// component represents the group.
func BuildMultiAugBatch(records []*record.Record, groups map[string][]string) (*Batch, []*record.Record, error) {
	batch, records, err := BuildSingleAugBatch(records)
	if err != nil {
		return nil, nil, err
	}
	if len(groups) == 0 {
		return nil, nil, errors.New("multi-augmentation batch needs at least one group")
	}

	batch.GroupImages = make(map[string]*tensor.Tensor, len(groups))
	for name, tasks := range groups {
		if len(tasks) == 0 {
			return nil, nil, errors.Errorf("group %q declares no tasks", name)
		}
		stacked := make([]*tensor.Tensor, 0, len(records))
		for _, rec := range records {
			comp, ok := rec.TaskImage(tasks[0])
			if !ok {
				return nil, nil, errors.Errorf("record %d has no image for task %q", rec.ID, tasks[0])
			}
			if !comp.Normalized() {
				return nil, nil, errors.Errorf("record %d task %q is not normalized; debug records cannot be batched", rec.ID, tasks[0])
			}
			stacked = append(stacked, comp.Tensor)
		}
		group, err := tensor.Stack(stacked)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "stacking group %q", name)
		}
		batch.GroupImages[name] = group
	}
	return batch, records, nil
}

// buildDetectionSample returns the record's detection image tensor and
// its [n, 6] target rows with the batch-index column left zero.
func buildDetectionSample(rec *record.Record) (*tensor.Tensor, *tensor.Tensor, error) {
	comp, ok := rec.TaskImage(record.TaskDetection)
	if !ok {
		return nil, nil, errors.New("record has no detection image component")
	}
	if !comp.Normalized() {
		return nil, nil, errors.New("detection image is not normalized; debug records cannot be batched")
	}
	img := comp.Tensor
	if len(img.Shape) != 3 {
		return nil, nil, errors.Errorf("detection image must be CHW, got shape %v", img.Shape)
	}
	h, w := img.Shape[1], img.Shape[2]

	det := rec.Detection
	if det == nil {
		det = &record.DetectionComponent{}
	}
	target, err := det.TargetRows(w, h)
	if err != nil {
		return nil, nil, err
	}
	return img, target, nil
}

// buildClassificationTargets accumulates per-task label tensors across
// the batch: one-hot rows for multilabel tasks, one scalar per label id
// otherwise.
func buildClassificationTargets(records []*record.Record) (map[string]*tensor.Tensor, error) {
	values := make(map[string][]float32)
	rows := make(map[string]int)
	multilabel := make(map[string]bool)
	classes := make(map[string]int)

	for _, rec := range records {
		for _, task := range rec.ClassificationTasks() {
			comp := rec.Classification[task]
			if comp.Multilabel {
				oh, err := comp.OneHot()
				if err != nil {
					return nil, errors.Wrapf(err, "record %d task %q", rec.ID, task)
				}
				values[task] = append(values[task], oh...)
				multilabel[task] = true
				classes[task] = comp.NumClasses
			} else {
				for _, id := range comp.LabelIDs {
					values[task] = append(values[task], float32(id))
				}
			}
			rows[task]++
		}
	}

	out := make(map[string]*tensor.Tensor, len(values))
	tasks := make([]string, 0, len(values))
	for task := range values {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)
	for _, task := range tasks {
		var shape []int
		if multilabel[task] {
			shape = []int{rows[task], classes[task]}
		} else {
			shape = []int{len(values[task])}
		}
		tn, err := tensor.New(shape, values[task])
		if err != nil {
			return nil, errors.Wrapf(err, "task %q", task)
		}
		out[task] = tn
	}
	return out, nil
}
