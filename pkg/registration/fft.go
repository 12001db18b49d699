package registration

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT2 performs 2D Fourier transforms on frames of a fixed geometry.
// Registration works in the frequency domain: the reference and every
// frame are transformed once, compared by phase correlation, and the
// aligned frame is recovered through the inverse transform.
//
// An FFT2 instance reuses its Gonum plans and scratch buffers, so it is
// not safe for concurrent use; workers registering frames in parallel
// each hold their own instance.
type FFT2 struct {
	width  int
	height int

	rowFFT *fourier.CmplxFFT
	colFFT *fourier.CmplxFFT

	rowBuf []complex128
	colBuf []complex128
	colOut []complex128
}

// NewFFT2 creates a transform for frames of the given dimensions.
func NewFFT2(width, height int) *FFT2 {
	return &FFT2{
		width:  width,
		height: height,
		rowFFT: fourier.NewCmplxFFT(width),
		colFFT: fourier.NewCmplxFFT(height),
		rowBuf: make([]complex128, width),
		colBuf: make([]complex128, height),
		colOut: make([]complex128, height),
	}
}

// Forward computes the 2D FFT of a row-major spatial frame.
func (f *FFT2) Forward(data []float64) []complex128 {
	spec := make([]complex128, f.width*f.height)

	// Row-wise FFT
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			f.rowBuf[x] = complex(data[y*f.width+x], 0)
		}
		f.rowFFT.Coefficients(spec[y*f.width:(y+1)*f.width], f.rowBuf)
	}

	// Column-wise FFT on the row results
	for x := 0; x < f.width; x++ {
		for y := 0; y < f.height; y++ {
			f.colBuf[y] = spec[y*f.width+x]
		}
		f.colFFT.Coefficients(f.colOut, f.colBuf)
		for y := 0; y < f.height; y++ {
			spec[y*f.width+x] = f.colOut[y]
		}
	}

	return spec
}

// Inverse computes the normalized 2D inverse FFT of a spectrum. The
// input is not modified.
func (f *FFT2) Inverse(spec []complex128) []complex128 {
	result := make([]complex128, f.width*f.height)

	// Column-wise inverse first, undoing the forward order
	for x := 0; x < f.width; x++ {
		for y := 0; y < f.height; y++ {
			f.colBuf[y] = spec[y*f.width+x]
		}
		f.colFFT.Sequence(f.colOut, f.colBuf)
		for y := 0; y < f.height; y++ {
			result[y*f.width+x] = f.colOut[y]
		}
	}

	// Row-wise inverse
	for y := 0; y < f.height; y++ {
		copy(f.rowBuf, result[y*f.width:(y+1)*f.width])
		f.rowFFT.Sequence(result[y*f.width:(y+1)*f.width], f.rowBuf)
	}

	// Gonum's transforms are unnormalized; a forward/inverse round
	// trip scales by width*height
	scale := complex(float64(f.width*f.height), 0)
	for i := range result {
		result[i] /= scale
	}

	return result
}

// Magnitude computes the per-pixel magnitude of the inverse transform
// of a spectrum, returning the spatial-domain frame.
func (f *FFT2) Magnitude(spec []complex128) []float64 {
	inv := f.Inverse(spec)
	result := make([]float64, len(inv))
	for i, v := range inv {
		result[i] = cmplx.Abs(v)
	}
	return result
}
