package metrics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/visionkit/go-hybrid/predictions"
	"github.com/visionkit/go-hybrid/record"
)

// scoredHit is one detection matched (or not) against ground truth.
type scoredHit struct {
	score float64
	tp    bool
}

// VOCmAP computes VOC-style average precision per class at a fixed IoU
// threshold, plus the mean over classes.
type VOCmAP struct {
	iouThreshold float64
	hits         map[int][]scoredHit
	gtCounts     map[int]int
}

// NewVOCmAP creates the metric. A non-positive threshold defaults to 0.5.
func NewVOCmAP(iouThreshold float64) *VOCmAP {
	if iouThreshold <= 0 {
		iouThreshold = 0.5
	}
	return &VOCmAP{
		iouThreshold: iouThreshold,
		hits:         make(map[int][]scoredHit),
		gtCounts:     make(map[int]int),
	}
}

// Name returns the namespace the finalized sub-metrics are logged under.
func (m *VOCmAP) Name() string {
	return "voc_map"
}

// Accumulate matches each prediction's detections against its record's
// ground truth, greedily by descending score.
func (m *VOCmAP) Accumulate(preds []*predictions.Prediction) {
	for _, pred := range preds {
		var gtBoxes []record.BBox
		var gtLabels []int
		if pred.Record != nil && pred.Record.Detection != nil {
			gtBoxes = pred.Record.Detection.Boxes
			gtLabels = pred.Record.Detection.Labels
		}
		for _, label := range gtLabels {
			m.gtCounts[label]++
		}

		dets := make([]predictions.Detection, len(pred.Detections))
		copy(dets, pred.Detections)
		sort.SliceStable(dets, func(a, b int) bool { return dets[a].Score > dets[b].Score })

		matched := make([]bool, len(gtBoxes))
		for _, det := range dets {
			best := -1
			bestIoU := m.iouThreshold
			for g, box := range gtBoxes {
				if matched[g] || gtLabels[g] != det.ClassID {
					continue
				}
				if iou := det.Box.IoU(box); iou >= bestIoU {
					bestIoU = iou
					best = g
				}
			}
			if best >= 0 {
				matched[best] = true
			}
			m.hits[det.ClassID] = append(m.hits[det.ClassID], scoredHit{score: det.Score, tp: best >= 0})
		}
	}
}

// Finalize computes per-class AP and the mean, then resets the
// accumulator for the next epoch.
func (m *VOCmAP) Finalize() map[string]float64 {
	classes := make([]int, 0, len(m.gtCounts))
	for c := range m.gtCounts {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	out := make(map[string]float64, len(classes)+1)
	aps := make([]float64, 0, len(classes))
	for _, c := range classes {
		ap := averagePrecision(m.hits[c], m.gtCounts[c])
		out[fmt.Sprintf("ap_class_%d", c)] = ap
		aps = append(aps, ap)
	}
	if len(aps) > 0 {
		out["mAP"] = stat.Mean(aps, nil)
	} else {
		out["mAP"] = 0
	}

	m.hits = make(map[int][]scoredHit)
	m.gtCounts = make(map[int]int)
	return out
}

// averagePrecision integrates the precision envelope over recall.
func averagePrecision(hits []scoredHit, gtCount int) float64 {
	if gtCount == 0 || len(hits) == 0 {
		return 0
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	precision := make([]float64, len(hits))
	recall := make([]float64, len(hits))
	tp := 0
	for i, h := range hits {
		if h.tp {
			tp++
		}
		precision[i] = float64(tp) / float64(i+1)
		recall[i] = float64(tp) / float64(gtCount)
	}

	// Monotone precision envelope, right to left.
	for i := len(precision) - 2; i >= 0; i-- {
		if precision[i+1] > precision[i] {
			precision[i] = precision[i+1]
		}
	}

	ap := 0.0
	prevRecall := 0.0
	for i := range recall {
		ap += (recall[i] - prevRecall) * precision[i]
		prevRecall = recall[i]
	}
	return ap
}
