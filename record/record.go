package record

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Record is the per-sample container. Annotations are keyed by task name
// in explicit maps; image components are attached by the dataset during a
// fetch and freed once the sample has been collated into a batch.
type Record struct {
	ID   int
	Path string

	// img is the decoded base image. Set eagerly for in-memory records,
	// lazily from Path otherwise.
	img *image.NRGBA

	Detection      *DetectionComponent
	Classification map[string]*LabelsComponent

	// Images maps task name to the transformed image attached during a
	// fetch. Populated only on loaded copies.
	Images map[string]*ImageComponent
}

// New creates a record backed by an image file on disk.
func New(id int, path string) *Record {
	return &Record{
		ID:             id,
		Path:           path,
		Classification: make(map[string]*LabelsComponent),
	}
}

// NewFromImage creates a record backed by an in-memory image.
func NewFromImage(id int, img image.Image) *Record {
	return &Record{
		ID:             id,
		img:            imaging.Clone(img),
		Classification: make(map[string]*LabelsComponent),
	}
}

// SetDetection attaches ground-truth boxes and their class labels.
func (r *Record) SetDetection(boxes []BBox, labels []int) {
	r.Detection = &DetectionComponent{Boxes: boxes, Labels: labels}
}

// SetClassification attaches classification labels under a task name.
func (r *Record) SetClassification(task string, c *LabelsComponent) {
	if r.Classification == nil {
		r.Classification = make(map[string]*LabelsComponent)
	}
	r.Classification[task] = c
}

// ClassificationTasks returns the record's classification task names in
// sorted order.
func (r *Record) ClassificationTasks() []string {
	tasks := make([]string, 0, len(r.Classification))
	for task := range r.Classification {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)
	return tasks
}

// HasTask reports whether the record carries classification labels for
// the given task.
func (r *Record) HasTask(task string) bool {
	_, ok := r.Classification[task]
	return ok
}

// Load returns a loaded copy of the record: annotations deep-copied, base
// image decoded, and an empty image-component map ready for the dataset
// to populate. The stored record is never mutated by a fetch.
func (r *Record) Load() (*Record, error) {
	img := r.img
	if img == nil {
		if r.Path == "" {
			return nil, errors.Errorf("record %d has neither an image nor a path", r.ID)
		}
		f, err := os.Open(r.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", r.ID)
		}
		defer f.Close()
		decoded, _, err := image.Decode(f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", r.Path)
		}
		img = imaging.Clone(decoded)
	}

	loaded := &Record{
		ID:             r.ID,
		Path:           r.Path,
		img:            imaging.Clone(img),
		Detection:      r.Detection.clone(),
		Classification: make(map[string]*LabelsComponent, len(r.Classification)),
		Images:         make(map[string]*ImageComponent),
	}
	for task, c := range r.Classification {
		labels := make([]int, len(c.LabelIDs))
		copy(labels, c.LabelIDs)
		loaded.Classification[task] = &LabelsComponent{
			Multilabel: c.Multilabel,
			NumClasses: c.NumClasses,
			LabelIDs:   labels,
		}
	}
	return loaded, nil
}

// BaseImage returns the decoded base image of a loaded record.
func (r *Record) BaseImage() (*image.NRGBA, error) {
	if r.img == nil {
		return nil, errors.Errorf("record %d is not loaded", r.ID)
	}
	return r.img, nil
}

// SetTaskImage attaches an image component under a task name. Multiple
// tasks may share one component instance.
func (r *Record) SetTaskImage(task string, c *ImageComponent) {
	if r.Images == nil {
		r.Images = make(map[string]*ImageComponent)
	}
	r.Images[task] = c
}

// TaskImage returns the image component attached under a task name.
func (r *Record) TaskImage(task string) (*ImageComponent, bool) {
	c, ok := r.Images[task]
	return c, ok
}

// Unload frees the pixel data of a loaded record after batch assembly.
// Annotations are kept so evaluation can still read ground truth.
func (r *Record) Unload() {
	r.img = nil
	r.Images = nil
}
