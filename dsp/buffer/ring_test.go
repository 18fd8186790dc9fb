package buffer

import "testing"

func TestNewRing_RoundsToPowerOfTwo(t *testing.T) {
	tests := []struct {
		min, want int
	}{
		{1, 1}, {2, 2}, {3, 4}, {1000, 1024}, {4096, 4096}, {4097, 8192},
	}

	for _, tt := range tests {
		r, err := NewRing(tt.min)
		if err != nil {
			t.Fatalf("NewRing(%d): unexpected error: %v", tt.min, err)
		}
		if r.Len() != tt.want {
			t.Fatalf("NewRing(%d).Len(): got %d, want %d", tt.min, r.Len(), tt.want)
		}
		if r.Len()&(r.Len()-1) != 0 {
			t.Fatalf("NewRing(%d).Len() = %d is not a power of two", tt.min, r.Len())
		}
	}
}

func TestNewRing_RejectsNonPositiveCapacity(t *testing.T) {
	if _, err := NewRing(0); err == nil {
		t.Fatal("NewRing(0): expected error, got nil")
	}
	if _, err := NewRing(-8); err == nil {
		t.Fatal("NewRing(-8): expected error, got nil")
	}
}

func TestRing_WriteWraps(t *testing.T) {
	r, err := NewRing(4)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	for i := range 6 {
		r.Write(float64(i))
	}

	// Slots 0 and 1 were overwritten by samples 4 and 5.
	if got := r.At(4); got != 4 {
		t.Fatalf("At(4): got %v, want 4", got)
	}
	if got := r.At(0); got != 4 {
		t.Fatalf("At(0) after wrap: got %v, want 4", got)
	}
	if got := r.At(5); got != 5 {
		t.Fatalf("At(5): got %v, want 5", got)
	}
	if got := r.WritePos(); got != 6 {
		t.Fatalf("WritePos: got %d, want 6", got)
	}
}

func TestRing_NegativeIndexWraps(t *testing.T) {
	r, err := NewRing(8)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	r.SetAt(7, 1.5)
	if got := r.At(-1); got != 1.5 {
		t.Fatalf("At(-1): got %v, want 1.5", got)
	}
}

func TestRing_ReadBlock(t *testing.T) {
	r, err := NewRing(8)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	for i := range 10 {
		r.Write(float64(i))
	}

	dst := make([]float64, 4)
	r.ReadBlock(dst, r.WritePos()-4)

	want := []float64{6, 7, 8, 9}
	for i := range dst {
		if dst[i] != want[i] {
			t.Fatalf("ReadBlock[%d]: got %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestRing_AddAtAccumulates(t *testing.T) {
	r, err := NewRing(4)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	r.AddAt(2, 0.5)
	r.AddAt(2, 0.25)
	if got := r.At(2); got != 0.75 {
		t.Fatalf("At(2) after two AddAt: got %v, want 0.75", got)
	}
}

func TestRing_Reset(t *testing.T) {
	r, err := NewRing(4)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	for i := range 3 {
		r.Write(float64(i + 1))
	}
	r.Reset()

	if got := r.WritePos(); got != 0 {
		t.Fatalf("WritePos after Reset: got %d, want 0", got)
	}
	for i := range r.Len() {
		if got := r.At(i); got != 0 {
			t.Fatalf("At(%d) after Reset: got %v, want 0", i, got)
		}
	}
}
