package training

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/visionkit/go-hybrid/dataloader"
	"github.com/visionkit/go-hybrid/metrics"
	"github.com/visionkit/go-hybrid/predictions"
	"github.com/visionkit/go-hybrid/record"
	"github.com/visionkit/go-hybrid/tensor"
)

// Adapter is the callback contract an external training-loop driver
// invokes: the driver owns iteration, device placement and optimization;
// the adapter owns forwarding, loss logging and metric accumulation.
type Adapter interface {
	Forward(batch *dataloader.Batch) (*predictions.RawPredictions, error)
	TrainingStep(batch *dataloader.Batch, records []*record.Record, batchIdx int) (float64, error)
	ValidationStep(batch *dataloader.Batch, records []*record.Record, batchIdx int) error
	OnValidationEpochEnd() error
}

// AdapterConfig holds construction options for a HybridAdapter.
type AdapterConfig struct {
	// Metrics are external evaluation accumulators fed during validation.
	Metrics []metrics.Metric
	// Logger receives every scalar the adapter logs. Defaults to a
	// zap-backed logger.
	Logger MetricLogger
	// Debug traces step dispatch through Log.
	Debug bool
	Log   *zap.Logger
}

// HybridAdapter drives a hybrid detection+classification model through
// training and validation steps, logging losses under "train/" and
// "valid/" namespaces and per-task accuracy as "valid_accuracy__{task}".
// These name formats are consumed by downstream dashboards.
type HybridAdapter struct {
	model   Model
	metrics []metrics.Metric
	logger  MetricLogger
	debug   bool
	log     *zap.Logger

	// accuracy holds one accumulator per classification head, looked up
	// by task name.
	accuracy map[string]*Accuracy
}

// NewHybridAdapter builds the adapter and one accuracy metric per
// classifier head: subset-exact accuracy at the head threshold for
// multilabel heads, top-1 otherwise.
func NewHybridAdapter(model Model, cfg AdapterConfig) (*HybridAdapter, error) {
	if model == nil {
		return nil, errors.New("adapter needs a model")
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Logger == nil {
		cfg.Logger = NewZapMetricLogger(cfg.Log)
	}

	accuracy := make(map[string]*Accuracy)
	for name, head := range model.ClassifierHeads() {
		if head.Multilabel {
			thresh := 0.5
			if head.Threshold != nil {
				thresh = *head.Threshold
			}
			accuracy[name] = NewMultilabelAccuracy(thresh)
		} else {
			accuracy[name] = NewTopKAccuracy(0.01, 1)
		}
	}

	return &HybridAdapter{
		model:    model,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		debug:    cfg.Debug,
		log:      cfg.Log,
		accuracy: accuracy,
	}, nil
}

// Forward runs the model's inference pass.
func (a *HybridAdapter) Forward(batch *dataloader.Batch) (*predictions.RawPredictions, error) {
	return a.model.Predict(batch)
}

// TrainingStep runs one loss pass and returns the total loss for the
// driver to optimize. The forward mode follows the batch shape: batches
// carrying per-group image stacks take the multi-augmentation path.
func (a *HybridAdapter) TrainingStep(batch *dataloader.Batch, records []*record.Record, batchIdx int) (float64, error) {
	mode := ForwardTrain
	if batch.GroupImages != nil {
		mode = ForwardTrainMultiAug
	}

	if a.debug {
		a.log.Info("training step",
			zap.Int("batch_idx", batchIdx),
			zap.Stringer("mode", mode))
	}

	out, err := a.model.TrainStep(batch, mode)
	if err != nil {
		return 0, err
	}
	a.logVars(out.LogVars, "train")
	return out.Loss, nil
}

// ValidationStep runs the model in inference mode: a loss pass for
// comparable loss terms, then the prediction pass. Per-task accuracy is
// logged, raw predictions are converted and fed to every metric
// accumulator, and the model is returned to training mode.
func (a *HybridAdapter) ValidationStep(batch *dataloader.Batch, records []*record.Record, batchIdx int) error {
	if a.debug {
		a.log.Info("validation step", zap.Int("batch_idx", batchIdx))
	}

	a.model.Eval()
	defer a.model.Train()

	out, err := a.model.TrainStep(batch, ForwardTrain)
	if err != nil {
		return err
	}
	raw, err := a.model.Predict(batch)
	if err != nil {
		return err
	}

	if err := a.logClassificationMetrics(raw.Classification, batch.ClassificationTargets, "valid"); err != nil {
		return err
	}

	preds, err := predictions.ConvertRaw(raw, records, 0.0, a.model.ClassifierHeads())
	if err != nil {
		return err
	}
	for _, m := range a.metrics {
		m.Accumulate(preds)
	}

	a.logVars(out.LogVars, "valid")
	return nil
}

// OnValidationEpochEnd logs each head's epoch-aggregated accuracy and
// resets its accumulator, then finalizes every external metric and logs
// its sub-metrics under the metric's namespace.
func (a *HybridAdapter) OnValidationEpochEnd() error {
	tasks := make([]string, 0, len(a.accuracy))
	for task := range a.accuracy {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)
	for _, task := range tasks {
		acc := a.accuracy[task]
		if acc.Count() == 0 {
			continue
		}
		a.logger.Log(fmt.Sprintf("valid_accuracy__%s", task), acc.Compute())
		acc.Reset()
	}

	for _, m := range a.metrics {
		logs := m.Finalize()
		keys := make([]string, 0, len(logs))
		for k := range logs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			a.logger.Log(fmt.Sprintf("%s/%s", m.Name(), k), logs[k])
		}
	}
	return nil
}

// logClassificationMetrics updates each head's accuracy with the batch
// scores and logs it as "{prefix}accuracy__{task}".
func (a *HybridAdapter) logClassificationMetrics(preds, targets map[string]*tensor.Tensor, prefix string) error {
	if prefix != "" {
		prefix += "_"
	}

	tasks := make([]string, 0, len(a.accuracy))
	for task := range a.accuracy {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)

	for _, task := range tasks {
		p, ok := preds[task]
		if !ok {
			return errors.Errorf("no predictions for task %q", task)
		}
		y, ok := targets[task]
		if !ok {
			return errors.Errorf("no targets for task %q", task)
		}
		acc, err := a.accuracy[task].Update(p, y)
		if err != nil {
			return errors.Wrapf(err, "task %q", task)
		}
		a.logger.Log(fmt.Sprintf("%saccuracy__%s", prefix, task), acc)
	}
	return nil
}

// logVars logs every loss term under the mode's namespace.
func (a *HybridAdapter) logVars(logVars map[string]float64, mode string) {
	keys := make([]string, 0, len(logVars))
	for k := range logVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a.logger.Log(fmt.Sprintf("%s/%s", mode, k), logVars[k])
	}
}
