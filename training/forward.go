package training

import "fmt"

// ForwardMode selects how the model consumes a batch.
type ForwardMode int

const (
	// ForwardTrain is the training loss pass over a single-augmentation batch.
	ForwardTrain ForwardMode = iota
	// ForwardTrainMultiAug is the training loss pass where each transform
	// group gets its own image stack and forward pass.
	ForwardTrainMultiAug
	// ForwardEval is the inference pass producing raw predictions.
	ForwardEval
)

func (m ForwardMode) String() string {
	switch m {
	case ForwardTrain:
		return "Train"
	case ForwardTrainMultiAug:
		return "TrainMultiAug"
	case ForwardEval:
		return "Eval"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}
