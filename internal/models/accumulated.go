package models

import (
	"math"
)

// AccumulatedStack is the 4D array holding the full session's data after
// per-trial correction and downsampling. It is indexed by (row, column,
// frame-within-trial, trial) and allocated once, sized from the
// downsampled image dimensions and the fixed per-trial frame count.
//
// The array is pre-filled with NaN as the missing-value sentinel so that
// trials shorter than the target frame count leave their trailing frames
// marked absent rather than zero. All reductions over the array skip NaN
// entries.
type AccumulatedStack struct {
	// Data is the pixel data as a 1D array ordered trial, frame, row, column
	Data []float64

	// Height and Width are the downsampled frame dimensions
	Height int
	Width  int

	// Frames is the fixed per-trial frame count
	Frames int

	// Trials is the number of trials in the session
	Trials int
}

// NewAccumulatedStack allocates an accumulated stack with every cell set
// to the missing-value sentinel.
func NewAccumulatedStack(height, width, frames, trials int) *AccumulatedStack {
	data := make([]float64, height*width*frames*trials)
	for i := range data {
		data[i] = math.NaN()
	}

	return &AccumulatedStack{
		Data:   data,
		Height: height,
		Width:  width,
		Frames: frames,
		Trials: trials,
	}
}

// index returns the flat offset for (row y, column x, frame f, trial t).
func (a *AccumulatedStack) index(y, x, f, t int) int {
	return ((t*a.Frames+f)*a.Height+y)*a.Width + x
}

// At returns the value at (row y, column x, frame f, trial t).
func (a *AccumulatedStack) At(y, x, f, t int) float64 {
	return a.Data[a.index(y, x, f, t)]
}

// Set writes the value at (row y, column x, frame f, trial t).
func (a *AccumulatedStack) Set(y, x, f, t int, v float64) {
	a.Data[a.index(y, x, f, t)] = v
}

// SetTrial copies a corrected, downsampled trial stack into trial slot t.
// If the stack has fewer frames than the target count, only the available
// frames are copied and the remainder stays at the missing sentinel. If
// it has more, exactly the first target-count frames are copied and the
// excess is dropped.
func (a *AccumulatedStack) SetTrial(t int, s *Stack) {
	frames := s.Frames
	if frames > a.Frames {
		frames = a.Frames
	}

	size := a.Height * a.Width
	for f := 0; f < frames; f++ {
		dst := a.Data[a.index(0, 0, f, t) : a.index(0, 0, f, t)+size]
		copy(dst, s.Frame(f))
	}
}

// TrialFrame returns a copy of one frame of one trial as a flat row-major
// slice.
func (a *AccumulatedStack) TrialFrame(f, t int) []float64 {
	size := a.Height * a.Width
	out := make([]float64, size)
	copy(out, a.Data[a.index(0, 0, f, t):a.index(0, 0, f, t)+size])
	return out
}

// BaselineMap holds the per-pixel mean over the baseline window and over
// all trials. Pixels with no finite samples in the window are NaN.
type BaselineMap struct {
	// Data is the per-pixel baseline mean, row-major
	Data []float64

	// Height and Width are the map dimensions
	Height int
	Width  int
}

// BaselineMean computes the baseline map from the first baselineFrames
// frames of every trial. Missing cells are excluded from the mean, not
// treated as zero.
func (a *AccumulatedStack) BaselineMean(baselineFrames int) *BaselineMap {
	if baselineFrames > a.Frames {
		baselineFrames = a.Frames
	}

	size := a.Height * a.Width
	sums := make([]float64, size)
	counts := make([]int, size)

	for t := 0; t < a.Trials; t++ {
		for f := 0; f < baselineFrames; f++ {
			base := a.index(0, 0, f, t)
			for p := 0; p < size; p++ {
				v := a.Data[base+p]
				if !math.IsNaN(v) {
					sums[p] += v
					counts[p]++
				}
			}
		}
	}

	result := make([]float64, size)
	for p := 0; p < size; p++ {
		if counts[p] > 0 {
			result[p] = sums[p] / float64(counts[p])
		} else {
			result[p] = math.NaN()
		}
	}

	return &BaselineMap{Data: result, Height: a.Height, Width: a.Width}
}

// Normalize converts the stack to fractional change from baseline in
// place: every cell becomes (value - baseline) / baseline for its pixel.
// Pixels whose baseline is zero or missing yield NaN rather than an
// error or infinity.
func (a *AccumulatedStack) Normalize(b *BaselineMap) {
	size := a.Height * a.Width

	for t := 0; t < a.Trials; t++ {
		for f := 0; f < a.Frames; f++ {
			base := a.index(0, 0, f, t)
			for p := 0; p < size; p++ {
				bl := b.Data[p]
				if bl == 0 || math.IsNaN(bl) {
					a.Data[base+p] = math.NaN()
					continue
				}
				a.Data[base+p] = (a.Data[base+p] - bl) / bl
			}
		}
	}
}

// MeanFrames computes the per-pixel mean over the frame range [from, to)
// and over all trials, skipping missing cells. It is used for the
// post-stimulus activity map.
func (a *AccumulatedStack) MeanFrames(from, to int) []float64 {
	if from < 0 {
		from = 0
	}
	if to > a.Frames {
		to = a.Frames
	}

	size := a.Height * a.Width
	sums := make([]float64, size)
	counts := make([]int, size)

	for t := 0; t < a.Trials; t++ {
		for f := from; f < to; f++ {
			base := a.index(0, 0, f, t)
			for p := 0; p < size; p++ {
				v := a.Data[base+p]
				if !math.IsNaN(v) {
					sums[p] += v
					counts[p]++
				}
			}
		}
	}

	result := make([]float64, size)
	for p := 0; p < size; p++ {
		if counts[p] > 0 {
			result[p] = sums[p] / float64(counts[p])
		} else {
			result[p] = math.NaN()
		}
	}

	return result
}

// PixelTrace returns the trial-averaged time course of a single pixel,
// one value per frame, skipping missing cells.
func (a *AccumulatedStack) PixelTrace(y, x int) []float64 {
	trace := make([]float64, a.Frames)

	for f := 0; f < a.Frames; f++ {
		sum := 0.0
		count := 0
		for t := 0; t < a.Trials; t++ {
			v := a.At(y, x, f, t)
			if !math.IsNaN(v) {
				sum += v
				count++
			}
		}
		if count > 0 {
			trace[f] = sum / float64(count)
		} else {
			trace[f] = math.NaN()
		}
	}

	return trace
}

// GlobalTrace returns the time course of the mean over all pixels and
// trials, one value per frame, skipping missing cells.
func (a *AccumulatedStack) GlobalTrace() []float64 {
	size := a.Height * a.Width
	trace := make([]float64, a.Frames)

	for f := 0; f < a.Frames; f++ {
		sum := 0.0
		count := 0
		for t := 0; t < a.Trials; t++ {
			base := a.index(0, 0, f, t)
			for p := 0; p < size; p++ {
				v := a.Data[base+p]
				if !math.IsNaN(v) {
					sum += v
					count++
				}
			}
		}
		if count > 0 {
			trace[f] = sum / float64(count)
		} else {
			trace[f] = math.NaN()
		}
	}

	return trace
}
