package metrics

import (
	"github.com/visionkit/go-hybrid/predictions"
)

// Metric is an evaluation accumulator: fed prediction records batch by
// batch during validation, finalized once per epoch. Finalize returns the
// computed sub-metrics and resets the accumulator.
type Metric interface {
	Name() string
	Accumulate(preds []*predictions.Prediction)
	Finalize() map[string]float64
}
