package models

import (
	"math"
	"sort"
)

// Stack holds the frames of a single trial for one illumination channel.
// Frames are stored row-major, one after another, in a flat float64 slice.
type Stack struct {
	// Data is the pixel data as a 1D array: frame, then row, then column
	Data []float64

	// Frames is the number of frames in the stack
	Frames int

	// Height and Width are the frame dimensions in pixels
	Height int
	Width  int
}

// NewStack allocates a zero-filled stack with the given dimensions.
func NewStack(frames, height, width int) *Stack {
	return &Stack{
		Data:   make([]float64, frames*height*width),
		Frames: frames,
		Height: height,
		Width:  width,
	}
}

// FrameSize returns the number of pixels in a single frame.
func (s *Stack) FrameSize() int {
	return s.Height * s.Width
}

// Frame returns the pixel data of frame i as a sub-slice of the stack.
// The returned slice shares memory with the stack, so writes to it
// modify the stack in place.
func (s *Stack) Frame(i int) []float64 {
	size := s.FrameSize()
	return s.Data[i*size : (i+1)*size]
}

// MedianFrame computes the per-pixel median across all frames of the stack.
// The median frame is used as the registration reference for the session,
// since it is robust against frames with transient motion artifacts.
func (s *Stack) MedianFrame() []float64 {
	size := s.FrameSize()
	result := make([]float64, size)
	column := make([]float64, s.Frames)

	for p := 0; p < size; p++ {
		for f := 0; f < s.Frames; f++ {
			column[f] = s.Data[f*size+p]
		}
		result[p] = median(column)
	}

	return result
}

// Downsample reduces the spatial resolution of every frame by the given
// integer factor using block averaging. Output dimensions are the floor
// of the input dimensions divided by the factor; trailing rows and
// columns that do not fill a complete block are discarded. NaN pixels
// are excluded from the block mean; a block with no finite pixels
// yields NaN.
func (s *Stack) Downsample(factor int) *Stack {
	if factor <= 1 {
		return s
	}

	outHeight := s.Height / factor
	outWidth := s.Width / factor
	out := NewStack(s.Frames, outHeight, outWidth)

	for f := 0; f < s.Frames; f++ {
		src := s.Frame(f)
		dst := out.Frame(f)

		for y := 0; y < outHeight; y++ {
			for x := 0; x < outWidth; x++ {
				sum := 0.0
				count := 0

				// Average the factor x factor block
				for by := 0; by < factor; by++ {
					for bx := 0; bx < factor; bx++ {
						v := src[(y*factor+by)*s.Width+(x*factor+bx)]
						if !math.IsNaN(v) {
							sum += v
							count++
						}
					}
				}

				if count > 0 {
					dst[y*outWidth+x] = sum / float64(count)
				} else {
					dst[y*outWidth+x] = math.NaN()
				}
			}
		}
	}

	return out
}

// median calculates the median value of a slice of float64 values
func median(values []float64) float64 {
	valuesCopy := make([]float64, len(values))
	copy(valuesCopy, values)

	sort.Float64s(valuesCopy)

	n := len(valuesCopy)
	if n == 0 {
		return 0
	}

	if n%2 == 0 {
		return (valuesCopy[n/2-1] + valuesCopy[n/2]) / 2
	}

	return valuesCopy[n/2]
}
