package tensor

import (
	"testing"
)

// TestNew tests creation and shape validation
func TestNew(t *testing.T) {
	t.Run("ValidCreation", func(t *testing.T) {
		tn, err := New([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if tn.NumElems() != 6 {
			t.Errorf("Expected 6 elements, got %d", tn.NumElems())
		}
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		_, err := New([]int{2, 3}, []float32{1, 2})
		if err == nil {
			t.Error("Expected error for mismatched data size")
		}
	})

	t.Run("EmptyShape", func(t *testing.T) {
		_, err := New([]int{}, []float32{})
		if err == nil {
			t.Error("Expected error for empty shape")
		}
	})

	t.Run("ZeroDimension", func(t *testing.T) {
		tn, err := New([]int{0, 6}, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if tn.NumElems() != 0 {
			t.Errorf("Expected empty tensor, got %d elements", tn.NumElems())
		}
	})
}

// TestAtSet tests indexed element access
func TestAtSet(t *testing.T) {
	tn, err := Zeros([]int{2, 3})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := tn.Set(7.5, 1, 2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	v, err := tn.At(1, 2)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if v != 7.5 {
		t.Errorf("Expected 7.5, got %f", v)
	}

	if _, err := tn.At(2, 0); err == nil {
		t.Error("Expected out of range error")
	}
	if _, err := tn.At(0); err == nil {
		t.Error("Expected index count error")
	}
}

// TestStack tests stacking along a new leading axis
func TestStack(t *testing.T) {
	a, _ := New([]int{2, 2}, []float32{1, 2, 3, 4})
	b, _ := New([]int{2, 2}, []float32{5, 6, 7, 8})

	stacked, err := Stack([]*Tensor{a, b})
	if err != nil {
		t.Fatalf("Stack failed: %v", err)
	}

	if len(stacked.Shape) != 3 || stacked.Shape[0] != 2 || stacked.Shape[1] != 2 || stacked.Shape[2] != 2 {
		t.Errorf("Expected shape [2 2 2], got %v", stacked.Shape)
	}

	v, _ := stacked.At(1, 0, 1)
	if v != 6 {
		t.Errorf("Expected 6 at [1 0 1], got %f", v)
	}

	c, _ := New([]int{3}, []float32{1, 2, 3})
	if _, err := Stack([]*Tensor{a, c}); err == nil {
		t.Error("Expected shape mismatch error")
	}
}

// TestCat tests concatenation along the first axis, including empty inputs
func TestCat(t *testing.T) {
	a, _ := New([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	empty, _ := New([]int{0, 3}, nil)
	b, _ := New([]int{1, 3}, []float32{7, 8, 9})

	cat, err := Cat([]*Tensor{a, empty, b})
	if err != nil {
		t.Fatalf("Cat failed: %v", err)
	}

	if cat.Shape[0] != 3 || cat.Shape[1] != 3 {
		t.Errorf("Expected shape [3 3], got %v", cat.Shape)
	}

	row, err := cat.Row(2)
	if err != nil {
		t.Fatalf("Row failed: %v", err)
	}
	if row[0] != 7 || row[1] != 8 || row[2] != 9 {
		t.Errorf("Unexpected final row: %v", row)
	}

	mismatched, _ := New([]int{1, 4}, []float32{0, 0, 0, 0})
	if _, err := Cat([]*Tensor{a, mismatched}); err == nil {
		t.Error("Expected trailing shape mismatch error")
	}
}
