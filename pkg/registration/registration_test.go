package registration

import (
	"math"
	"testing"

	"wfield/internal/models"
)

// testPattern builds a frame with an off-center bright blob over a
// gradient background, so the phase-correlation surface has a single
// sharp peak
func testPattern(width, height int) []float64 {
	data := make([]float64, width*height)
	cx, cy := width/3, height/3

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := float64(x - cx)
			dy := float64(y - cy)
			data[y*width+x] = 20*math.Exp(-(dx*dx+dy*dy)/8) + float64(x+y)*0.1
		}
	}
	return data
}

// circularShift shifts a frame by (dy, dx) with wraparound
func circularShift(data []float64, width, height, dy, dx int) []float64 {
	out := make([]float64, len(data))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			srcY := ((y-dy)%height + height) % height
			srcX := ((x-dx)%width + width) % width
			out[y*width+x] = data[srcY*width+srcX]
		}
	}
	return out
}

// TestFFT2RoundTrip verifies forward and inverse transforms invert each
// other on a rectangular frame
func TestFFT2RoundTrip(t *testing.T) {
	width, height := 8, 4
	data := make([]float64, width*height)
	for i := range data {
		data[i] = math.Sin(float64(i)*0.7) + float64(i%5)
	}

	fft := NewFFT2(width, height)
	inv := fft.Inverse(fft.Forward(data))

	for i := range data {
		if math.Abs(real(inv[i])-data[i]) > 1e-9 {
			t.Errorf("pixel %d: expected %.6f, got %.6f", i, data[i], real(inv[i]))
		}
		if math.Abs(imag(inv[i])) > 1e-9 {
			t.Errorf("pixel %d: expected zero imaginary part, got %.2e", i, imag(inv[i]))
		}
	}
}

// TestRegisterRecoversKnownShift verifies phase correlation finds the
// displacement of a shifted frame and undoes it
func TestRegisterRecoversKnownShift(t *testing.T) {
	width, height := 32, 32
	ref := testPattern(width, height)

	// The reference stack holds identical frames, so its median frame
	// equals the pattern itself
	stack := models.NewStack(3, height, width)
	for f := 0; f < 3; f++ {
		copy(stack.Frame(f), ref)
	}

	fft := NewFFT2(width, height)
	reference := NewReference(fft, stack)

	testCases := []struct{ dy, dx int }{
		{0, 0},
		{2, 3},
		{-4, 1},
		{5, -5},
		{10, 10},
	}

	for _, tc := range testCases {
		shifted := circularShift(ref, width, height, tc.dy, tc.dx)

		spec, dy, dx := fft.Register(reference, shifted, 10)

		if dy != tc.dy || dx != tc.dx {
			t.Errorf("shift (%d,%d): estimated (%d,%d)", tc.dy, tc.dx, dy, dx)
		}

		// The registered frame must overlay the reference
		registered := fft.Magnitude(spec)
		for i := range ref {
			if math.Abs(registered[i]-ref[i]) > 1e-6 {
				t.Errorf("shift (%d,%d) pixel %d: expected %.4f, got %.4f",
					tc.dy, tc.dx, i, ref[i], registered[i])
				break
			}
		}
	}
}

// TestRegisterRectangularFrame verifies registration on non-square frames
func TestRegisterRectangularFrame(t *testing.T) {
	width, height := 32, 16
	ref := testPattern(width, height)

	stack := models.NewStack(1, height, width)
	copy(stack.Frame(0), ref)

	fft := NewFFT2(width, height)
	reference := NewReference(fft, stack)

	shifted := circularShift(ref, width, height, 3, -2)
	_, dy, dx := fft.Register(reference, shifted, 5)

	if dy != 3 || dx != -2 {
		t.Errorf("expected shift (3,-2), estimated (%d,%d)", dy, dx)
	}
}

// TestRegisterZeroRadius verifies a zero search radius disables shifting
func TestRegisterZeroRadius(t *testing.T) {
	width, height := 16, 16
	ref := testPattern(width, height)

	stack := models.NewStack(1, height, width)
	copy(stack.Frame(0), ref)

	fft := NewFFT2(width, height)
	reference := NewReference(fft, stack)

	shifted := circularShift(ref, width, height, 2, 2)
	_, dy, dx := fft.Register(reference, shifted, 0)

	if dy != 0 || dx != 0 {
		t.Errorf("expected no shift with zero radius, got (%d,%d)", dy, dx)
	}
}

// TestReferenceUsesMedianFrame verifies the reference comes from the
// per-pixel median of the stack
func TestReferenceUsesMedianFrame(t *testing.T) {
	width, height := 8, 8
	stack := models.NewStack(3, height, width)

	base := testPattern(width, height)
	copy(stack.Frame(0), base)
	copy(stack.Frame(1), base)

	// One outlier frame must not influence the median
	outlier := stack.Frame(2)
	for i := range outlier {
		outlier[i] = 9999
	}

	fft := NewFFT2(width, height)
	reference := NewReference(fft, stack)

	want := fft.Forward(base)
	for i := range want {
		if math.Abs(real(reference.Spec[i])-real(want[i])) > 1e-9 ||
			math.Abs(imag(reference.Spec[i])-imag(want[i])) > 1e-9 {
			t.Errorf("reference spectrum differs from median frame spectrum at bin %d", i)
			break
		}
	}
}
