package training

import (
	"github.com/visionkit/go-hybrid/dataloader"
	"github.com/visionkit/go-hybrid/predictions"
)

// TrainOutput is what a model returns from a loss pass: the scalar total
// loss for optimization and the individual loss terms for logging.
type TrainOutput struct {
	Loss    float64
	LogVars map[string]float64
}

// Model is the contract the adapter drives. The detection backbone, the
// classification heads and all gradient work live behind it.
type Model interface {
	// TrainStep runs a loss pass in the given forward mode.
	TrainStep(batch *dataloader.Batch, mode ForwardMode) (*TrainOutput, error)

	// Predict runs the inference pass and returns raw predictions.
	Predict(batch *dataloader.Batch) (*predictions.RawPredictions, error)

	// ClassifierHeads describes each classification head by task name.
	ClassifierHeads() map[string]predictions.HeadConfig

	// Train and Eval switch the model between training and inference mode.
	Train()
	Eval()
}
