// Package registration aligns widefield imaging frames to a per-channel
// reference using phase correlation in the frequency domain. The
// reference is the spectrum of the median frame of the session's first
// trial and is computed once; every later frame is registered against
// it without recomputation.
package registration

import (
	"math"
	"math/cmplx"

	"wfield/internal/models"
)

// Reference is the frequency-domain representation of a channel's
// registration target. It is created once per channel from the first
// trial and read-only afterwards.
type Reference struct {
	// Spec is the 2D FFT of the per-pixel median frame
	Spec []complex128

	// Width and Height are the frame dimensions
	Width  int
	Height int
}

// NewReference builds the registration reference for one channel: the
// 2D FFT of the per-pixel median frame across the stack.
func NewReference(f *FFT2, stack *models.Stack) *Reference {
	return &Reference{
		Spec:   f.Forward(stack.MedianFrame()),
		Width:  stack.Width,
		Height: stack.Height,
	}
}

// Register aligns a spatial-domain frame against the reference. It
// transforms the frame, estimates its integer pixel displacement by
// phase correlation with the search limited to +-maxShift pixels on
// either axis, and returns the shifted frequency-domain frame together
// with the estimated (dy, dx). The caller recovers the corrected
// spatial frame as the magnitude of the inverse transform.
func (f *FFT2) Register(ref *Reference, frame []float64, maxShift int) ([]complex128, int, int) {
	spec := f.Forward(frame)
	dy, dx := f.findShift(ref.Spec, spec, maxShift)
	applyShift(spec, f.width, f.height, dy, dx)
	return spec, dy, dx
}

// findShift estimates the displacement of frame relative to ref by
// locating the peak of the phase-correlation surface within the search
// radius.
func (f *FFT2) findShift(ref, frame []complex128, maxShift int) (int, int) {
	if maxShift <= 0 {
		return 0, 0
	}

	// Cross-power spectrum, whitened so only phase information remains.
	// Bins with negligible energy contribute nothing rather than noise.
	const eps = 1e-12
	r := make([]complex128, len(frame))
	for i := range frame {
		v := frame[i] * cmplx.Conj(ref[i])
		mag := cmplx.Abs(v)
		if mag > eps {
			r[i] = v / complex(mag, 0)
		}
	}

	surface := f.Inverse(r)

	// The correlation peak sits at the displacement, with negative
	// shifts wrapped to the far end of each axis
	bestDy, bestDx := 0, 0
	bestVal := math.Inf(-1)
	for dy := -maxShift; dy <= maxShift; dy++ {
		y := ((dy % f.height) + f.height) % f.height
		for dx := -maxShift; dx <= maxShift; dx++ {
			x := ((dx % f.width) + f.width) % f.width
			v := cmplx.Abs(surface[y*f.width+x])
			if v > bestVal {
				bestVal = v
				bestDy, bestDx = dy, dx
			}
		}
	}

	return bestDy, bestDx
}

// applyShift translates a frame by (-dy, -dx) in the frequency domain,
// multiplying the spectrum by the matching linear phase ramp. After the
// shift the frame overlays the reference.
func applyShift(spec []complex128, width, height, dy, dx int) {
	if dy == 0 && dx == 0 {
		return
	}

	for v := 0; v < height; v++ {
		rowPhase := 2 * math.Pi * float64(v*dy) / float64(height)
		for u := 0; u < width; u++ {
			phase := 2*math.Pi*float64(u*dx)/float64(width) + rowPhase
			spec[v*width+u] *= cmplx.Exp(complex(0, phase))
		}
	}
}
