package training

import (
	"fmt"

	"github.com/visionkit/go-hybrid/tensor"
)

// Accuracy accumulates classification accuracy over a validation epoch.
// Multilabel heads use subset-exact matching at a score threshold;
// single-label heads use top-k matching.
type Accuracy struct {
	threshold float64
	topK      int
	subset    bool

	correct int
	total   int
}

// NewMultilabelAccuracy creates a subset-exact accuracy: a sample counts
// as correct only when the thresholded prediction set matches the target
// set exactly.
func NewMultilabelAccuracy(threshold float64) *Accuracy {
	return &Accuracy{threshold: threshold, subset: true}
}

// NewTopKAccuracy creates a top-k accuracy for single-label heads.
func NewTopKAccuracy(threshold float64, k int) *Accuracy {
	if k <= 0 {
		k = 1
	}
	return &Accuracy{threshold: threshold, topK: k}
}

// Update scores one batch and returns the batch accuracy. Predictions are
// [n, numClasses] scores; targets are [n, numClasses] one-hot rows for
// subset accuracy and [n] class indices otherwise.
func (a *Accuracy) Update(preds, targets *tensor.Tensor) (float64, error) {
	if len(preds.Shape) != 2 {
		return 0, fmt.Errorf("predictions must be 2D, got shape %v", preds.Shape)
	}
	n := preds.Shape[0]

	var batchCorrect int
	if a.subset {
		if len(targets.Shape) != 2 || targets.Shape[0] != n || targets.Shape[1] != preds.Shape[1] {
			return 0, fmt.Errorf("target shape %v doesn't match predictions %v", targets.Shape, preds.Shape)
		}
		for i := 0; i < n; i++ {
			predRow, _ := preds.Row(i)
			targetRow, _ := targets.Row(i)
			if subsetMatch(predRow, targetRow, a.threshold) {
				batchCorrect++
			}
		}
	} else {
		if len(targets.Shape) != 1 || targets.Shape[0] != n {
			return 0, fmt.Errorf("expected %d target indices, got shape %v", n, targets.Shape)
		}
		for i := 0; i < n; i++ {
			predRow, _ := preds.Row(i)
			if topKMatch(predRow, int(targets.Data[i]), a.topK, a.threshold) {
				batchCorrect++
			}
		}
	}

	a.correct += batchCorrect
	a.total += n
	if n == 0 {
		return 0, nil
	}
	return float64(batchCorrect) / float64(n), nil
}

// subsetMatch reports whether thresholding the scores reproduces the
// target set exactly.
func subsetMatch(scores, target []float32, threshold float64) bool {
	for c := range scores {
		predicted := float64(scores[c]) >= threshold
		wanted := target[c] >= 0.5
		if predicted != wanted {
			return false
		}
	}
	return true
}

// topKMatch reports whether the target class is among the k highest
// scores at or above the threshold.
func topKMatch(scores []float32, target, k int, threshold float64) bool {
	if target < 0 || target >= len(scores) {
		return false
	}
	ts := scores[target]
	if float64(ts) < threshold {
		return false
	}
	higher := 0
	for c, s := range scores {
		if c != target && s > ts {
			higher++
		}
	}
	return higher < k
}

// Count returns the number of samples accumulated since the last Reset.
func (a *Accuracy) Count() int {
	return a.total
}

// Compute returns the accumulated accuracy.
func (a *Accuracy) Compute() float64 {
	if a.total == 0 {
		return 0
	}
	return float64(a.correct) / float64(a.total)
}

// Reset clears the accumulated state.
func (a *Accuracy) Reset() {
	a.correct = 0
	a.total = 0
}
