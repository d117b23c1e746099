package dataset

import (
	"sort"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/visionkit/go-hybrid/record"
	"github.com/visionkit/go-hybrid/transforms"
)

// TransformGroup names a set of classification tasks that share one
// augmentation pipeline and one forward pass through the model.
type TransformGroup struct {
	Tasks    []string
	Pipeline transforms.Transform
}

// Config holds construction options for a HybridDataset.
type Config struct {
	// Groups maps group name to the tasks it covers and their shared
	// pipeline. The union of tasks across groups must exactly match the
	// classification tasks on the records.
	Groups map[string]TransformGroup

	// DetectionTransform is the coordinated image+box pipeline for the
	// detection task. Optional.
	DetectionTransform transforms.DetectionTransform

	// NormMean and NormStd are per-channel normalization stats, three
	// elements each. Default to the ImageNet statistics.
	NormMean []float64
	NormStd  []float64

	// Debug keeps fetched images displayable instead of normalizing them,
	// and traces fetches through the logger.
	Debug bool

	Logger *zap.Logger
}

// HybridDataset serves records carrying one detection image plus one
// transformed image per classification task, ready for multitask batch
// assembly. Fetches never share mutable state, so distinct indices may be
// fetched concurrently.
type HybridDataset struct {
	records []*record.Record
	groups  map[string]TransformGroup
	detTfms transforms.DetectionTransform
	mean    []float64
	std     []float64
	debug   bool
	log     *zap.Logger
}

// NewHybridDataset validates the transform-group configuration against the
// records and returns the dataset. Configuration errors are raised here,
// never at fetch time.
func NewHybridDataset(records []*record.Record, cfg Config) (*HybridDataset, error) {
	if len(records) == 0 {
		return nil, errors.New("dataset needs at least one record")
	}
	if cfg.NormMean == nil {
		cfg.NormMean = transforms.ImageNetMean
	}
	if cfg.NormStd == nil {
		cfg.NormStd = transforms.ImageNetStd
	}
	if len(cfg.NormMean) != 3 || len(cfg.NormStd) != 3 {
		return nil, errors.Errorf("normalization stats must have 3 channels, got mean=%d std=%d",
			len(cfg.NormMean), len(cfg.NormStd))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	if err := validateGroups(cfg.Groups, records[0]); err != nil {
		return nil, err
	}

	return &HybridDataset{
		records: records,
		groups:  cfg.Groups,
		detTfms: cfg.DetectionTransform,
		mean:    cfg.NormMean,
		std:     cfg.NormStd,
		debug:   cfg.Debug,
		log:     cfg.Logger,
	}, nil
}

// validateGroups checks every group against a representative record:
// each group must declare tasks and a pipeline, every declared task must
// exist on the record, and every classification task on the record must
// be covered by some group.
func validateGroups(groups map[string]TransformGroup, sample *record.Record) error {
	if len(groups) == 0 {
		return errors.New("no transform groups configured")
	}

	declared := make(map[string]bool)
	for name, group := range groups {
		if len(group.Tasks) == 0 {
			return errors.Errorf("transform group %q declares no tasks", name)
		}
		if group.Pipeline == nil {
			return errors.Errorf("transform group %q has no pipeline", name)
		}
		for _, task := range group.Tasks {
			declared[task] = true
		}
	}

	var missing []string
	for task := range declared {
		if !sample.HasTask(task) {
			missing = append(missing, task)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Errorf("transform groups declare tasks absent from the records; missing the following tasks: %v", missing)
	}

	var uncovered []string
	for _, task := range sample.ClassificationTasks() {
		if !declared[task] {
			uncovered = append(uncovered, task)
		}
	}
	if len(uncovered) > 0 {
		return errors.Errorf("record tasks not covered by any transform group: %v", uncovered)
	}
	return nil
}

// Len returns the number of records.
func (d *HybridDataset) Len() int {
	return len(d.records)
}

// Get fetches record i with all task images attached: the detection
// pipeline runs once over image and boxes together, then each group
// pipeline runs once over the untouched base image and its output is
// shared by every task in the group. All attached images are normalized
// into CHW tensors unless the dataset is in debug mode.
func (d *HybridDataset) Get(i int) (*record.Record, error) {
	if i < 0 || i >= len(d.records) {
		return nil, errors.Errorf("index %d out of range [0, %d)", i, len(d.records))
	}

	rec, err := d.records[i].Load()
	if err != nil {
		return nil, err
	}
	base, err := rec.BaseImage()
	if err != nil {
		return nil, err
	}

	if d.debug {
		d.log.Info("fetching item", zap.Int("index", i))
	}

	// Detection pipeline mutates its own copy; base stays untouched for
	// the classification groups.
	detImg := base
	if d.detTfms != nil {
		var boxes []record.BBox
		if rec.Detection != nil {
			boxes = rec.Detection.Boxes
		}
		detImg, boxes = d.detTfms.Apply(imaging.Clone(base), boxes)
		if rec.Detection != nil {
			rec.Detection.Boxes = boxes
		}
	}
	rec.SetTaskImage(record.TaskDetection, &record.ImageComponent{Img: detImg})

	for name, group := range d.groups {
		tfmd := group.Pipeline.Apply(base)
		comp := &record.ImageComponent{Img: tfmd}
		if d.debug {
			d.log.Info("applied group pipeline",
				zap.String("group", name),
				zap.Strings("tasks", group.Tasks))
		}
		// Tasks in a group share the transformed image instance; the
		// record is discarded after one batch, so aliasing is safe.
		for _, task := range group.Tasks {
			rec.SetTaskImage(task, comp)
		}
	}

	if d.debug {
		return rec, nil
	}
	for task, comp := range rec.Images {
		if comp.Normalized() {
			// Shared by an earlier task in the same group.
			continue
		}
		tn, err := transforms.Normalize(comp.Img, d.mean, d.std)
		if err != nil {
			return nil, errors.Wrapf(err, "normalizing task %q", task)
		}
		comp.Tensor = tn
		comp.Img = nil
	}
	return rec, nil
}
