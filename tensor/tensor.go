package tensor

import (
	"fmt"
)

// Tensor is a dense float32 tensor held in CPU memory.
// It is the exchange format between batch assembly and the model runtime;
// all heavy numerical work happens outside this package.
type Tensor struct {
	Shape []int
	Data  []float32
}

// New creates a tensor with the given shape backed by data.
// The data slice is used directly, not copied.
func New(shape []int, data []float32) (*Tensor, error) {
	n, err := checkShape(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("data size %d doesn't match shape %v (expected %d)", len(data), shape, n)
	}
	shapeCopy := make([]int, len(shape))
	copy(shapeCopy, shape)
	return &Tensor{Shape: shapeCopy, Data: data}, nil
}

// Zeros creates a zero-filled tensor with the given shape.
func Zeros(shape []int) (*Tensor, error) {
	n, err := checkShape(shape)
	if err != nil {
		return nil, err
	}
	shapeCopy := make([]int, len(shape))
	copy(shapeCopy, shape)
	return &Tensor{Shape: shapeCopy, Data: make([]float32, n)}, nil
}

// checkShape validates a shape and returns the number of elements it implies.
// Zero-sized dimensions are allowed so empty tensors can take part in Cat.
func checkShape(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("shape cannot be empty")
	}
	n := 1
	for _, dim := range shape {
		if dim < 0 {
			return 0, fmt.Errorf("invalid shape dimension: %d", dim)
		}
		n *= dim
	}
	return n, nil
}

// NumElems returns the total number of elements.
func (t *Tensor) NumElems() int {
	return len(t.Data)
}

// offset converts multi-dimensional indices into a flat data offset.
func (t *Tensor) offset(indices ...int) (int, error) {
	if len(indices) != len(t.Shape) {
		return 0, fmt.Errorf("got %d indices for a %d-dimensional tensor", len(indices), len(t.Shape))
	}
	off := 0
	for d, idx := range indices {
		if idx < 0 || idx >= t.Shape[d] {
			return 0, fmt.Errorf("index %d out of range [0, %d) in dimension %d", idx, t.Shape[d], d)
		}
		off = off*t.Shape[d] + idx
	}
	return off, nil
}

// At returns the element at the given indices.
func (t *Tensor) At(indices ...int) (float32, error) {
	off, err := t.offset(indices...)
	if err != nil {
		return 0, err
	}
	return t.Data[off], nil
}

// Set stores v at the given indices.
func (t *Tensor) Set(v float32, indices ...int) error {
	off, err := t.offset(indices...)
	if err != nil {
		return err
	}
	t.Data[off] = v
	return nil
}

// Row returns row i of a 2D tensor as a slice into the underlying data.
func (t *Tensor) Row(i int) ([]float32, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("Row expects a 2D tensor, got shape %v", t.Shape)
	}
	if i < 0 || i >= t.Shape[0] {
		return nil, fmt.Errorf("row %d out of range [0, %d)", i, t.Shape[0])
	}
	w := t.Shape[1]
	return t.Data[i*w : (i+1)*w], nil
}

// Stack combines tensors of identical shape into one tensor with a new
// leading batch axis.
func Stack(tensors []*Tensor) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("cannot stack zero tensors")
	}
	first := tensors[0]
	for i, t := range tensors[1:] {
		if !sameShape(first.Shape, t.Shape) {
			return nil, fmt.Errorf("shape mismatch at position %d: %v vs %v", i+1, t.Shape, first.Shape)
		}
	}
	n := first.NumElems()
	out := make([]float32, len(tensors)*n)
	for i, t := range tensors {
		copy(out[i*n:(i+1)*n], t.Data)
	}
	shape := append([]int{len(tensors)}, first.Shape...)
	return &Tensor{Shape: shape, Data: out}, nil
}

// Cat concatenates tensors along the first axis. All trailing dimensions
// must match; tensors with a zero-sized leading dimension contribute
// nothing.
func Cat(tensors []*Tensor) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("cannot concatenate zero tensors")
	}
	first := tensors[0]
	rows := 0
	for i, t := range tensors {
		if len(t.Shape) != len(first.Shape) || !sameShape(first.Shape[1:], t.Shape[1:]) {
			return nil, fmt.Errorf("trailing shape mismatch at position %d: %v vs %v", i, t.Shape, first.Shape)
		}
		rows += t.Shape[0]
	}
	out := make([]float32, 0, rows*rowSize(first.Shape))
	for _, t := range tensors {
		out = append(out, t.Data...)
	}
	shape := append([]int{rows}, first.Shape[1:]...)
	return &Tensor{Shape: shape, Data: out}, nil
}

// rowSize returns the number of elements in one leading-axis slice.
func rowSize(shape []int) int {
	n := 1
	for _, dim := range shape[1:] {
		n *= dim
	}
	return n
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String returns a short human-readable description.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, elems=%d)", t.Shape, len(t.Data))
}
