package predictions

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/visionkit/go-hybrid/record"
	"github.com/visionkit/go-hybrid/tensor"
)

// HeadConfig describes how one classification head's raw scores are
// decoded. Threshold defaults to 0.5 for multilabel heads; TopK defaults
// to 1 for single-label heads.
type HeadConfig struct {
	Multilabel bool
	Threshold  *float64
	TopK       int
}

// DecodeThreshold returns the effective score threshold for the head.
func (h HeadConfig) DecodeThreshold() float64 {
	if h.Threshold != nil {
		return *h.Threshold
	}
	return 0.5
}

// Detection is one predicted box.
type Detection struct {
	Box     record.BBox
	ClassID int
	Score   float64
}

// ClassificationResult is one head's decoded prediction for one sample.
type ClassificationResult struct {
	LabelIDs []int
	Scores   []float64
}

// Prediction is the standard per-sample prediction record consumed by
// evaluation metrics.
type Prediction struct {
	Record         *record.Record
	Detections     []Detection
	Classification map[string]ClassificationResult
}

// RawPredictions is the model's evaluation-mode output for one batch:
// per-sample detections and one [n, numClasses] score tensor per
// classification task.
type RawPredictions struct {
	Detections     [][]Detection
	Classification map[string]*tensor.Tensor
}

// ConvertRaw turns raw model outputs into prediction records. Detections
// below detectionThreshold are dropped; classification scores are decoded
// per head config: every score above the head threshold for multilabel
// heads, the top-k scores otherwise.
func ConvertRaw(raw *RawPredictions, records []*record.Record, detectionThreshold float64, heads map[string]HeadConfig) ([]*Prediction, error) {
	if len(raw.Detections) != len(records) {
		return nil, errors.Errorf("got detections for %d samples but %d records", len(raw.Detections), len(records))
	}

	preds := make([]*Prediction, len(records))
	for i, rec := range records {
		p := &Prediction{
			Record:         rec,
			Classification: make(map[string]ClassificationResult, len(heads)),
		}
		for _, det := range raw.Detections[i] {
			if det.Score >= detectionThreshold {
				p.Detections = append(p.Detections, det)
			}
		}
		for task, cfg := range heads {
			scores, ok := raw.Classification[task]
			if !ok {
				return nil, errors.Errorf("raw predictions carry no scores for task %q", task)
			}
			row, err := scores.Row(i)
			if err != nil {
				return nil, errors.Wrapf(err, "task %q", task)
			}
			p.Classification[task] = decodeHead(row, cfg)
		}
		preds[i] = p
	}
	return preds, nil
}

// decodeHead decodes one score row according to the head config.
func decodeHead(row []float32, cfg HeadConfig) ClassificationResult {
	if cfg.Multilabel {
		thresh := cfg.DecodeThreshold()
		var res ClassificationResult
		for id, s := range row {
			if float64(s) >= thresh {
				res.LabelIDs = append(res.LabelIDs, id)
				res.Scores = append(res.Scores, float64(s))
			}
		}
		return res
	}

	k := cfg.TopK
	if k <= 0 {
		k = 1
	}
	if k > len(row) {
		k = len(row)
	}
	order := make([]int, len(row))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return row[order[a]] > row[order[b]] })

	res := ClassificationResult{
		LabelIDs: make([]int, k),
		Scores:   make([]float64, k),
	}
	for i := 0; i < k; i++ {
		res.LabelIDs[i] = order[i]
		res.Scores[i] = float64(row[order[i]])
	}
	return res
}
