package collage

import (
	"image"
	"testing"
)

func TestNewMask(t *testing.T) {
	mask := NewMask(100, 50)
	if mask.Width() != 100 || mask.Height() != 50 {
		t.Errorf("expected 100x50, got %dx%d", mask.Width(), mask.Height())
	}
	if got, want := mask.Bounds(), image.Rect(0, 0, 100, 50); got != want {
		t.Errorf("Bounds() = %v, want %v", got, want)
	}

	// All values start at 0.
	if mask.At(50, 25) != 0 {
		t.Errorf("expected 0, got %d", mask.At(50, 25))
	}
}

func TestMaskSetAt(t *testing.T) {
	mask := NewMask(10, 10)
	mask.Set(3, 4, 255)

	if mask.At(3, 4) != 255 {
		t.Errorf("At(3,4) = %d, want 255", mask.At(3, 4))
	}
	if mask.At(4, 3) != 0 {
		t.Errorf("At(4,3) = %d, want 0", mask.At(4, 3))
	}
}

func TestMaskOutOfBounds(t *testing.T) {
	mask := NewMask(10, 10)

	// Out-of-bounds writes are ignored, reads return 0.
	mask.Set(-1, 0, 255)
	mask.Set(0, -1, 255)
	mask.Set(10, 0, 255)
	mask.Set(0, 10, 255)

	for _, v := range mask.Data() {
		if v != 0 {
			t.Fatal("out-of-bounds Set modified the mask")
		}
	}
	if mask.At(-1, -1) != 0 || mask.At(10, 10) != 0 {
		t.Error("out-of-bounds At returned non-zero")
	}
}

func TestMaskClear(t *testing.T) {
	mask := NewMask(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			mask.Set(x, y, 200)
		}
	}
	mask.Clear()

	for _, v := range mask.Data() {
		if v != 0 {
			t.Fatal("Clear left non-zero values")
		}
	}
}

func TestMaskDataLayout(t *testing.T) {
	mask := NewMask(4, 3)
	mask.Set(1, 2, 7)

	if got := mask.Data()[2*4+1]; got != 7 {
		t.Errorf("row-major layout broken: data[9] = %d, want 7", got)
	}
	if len(mask.Data()) != 12 {
		t.Errorf("Data() length = %d, want 12", len(mask.Data()))
	}
}
