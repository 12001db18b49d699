// Package hemo implements dual-wavelength hemodynamic correction for
// widefield calcium imaging. Blood flow modulates the fluorescence seen
// in the calcium-sensitive channel; the hemodynamic channel records the
// same modulation without the calcium signal, so regressing it out of
// the signal channel per pixel leaves the neural component.
package hemo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"wfield/internal/models"
)

// Correct combines two aligned channel stacks into a single corrected
// stack already expressed as fractional change from baseline.
//
// Per pixel, both channels are first normalized to fractional change
// over the baseline window (the first baselineFrames frames). The
// hemodynamic trace is then regressed onto the signal trace and the
// fitted component subtracted. Pixels whose baseline mean is zero in
// either channel yield NaN rather than an error.
//
// The two stacks must match spatially; when their frame counts differ
// the trailing frames of the longer stack are ignored.
func Correct(signal, hemodyn *models.Stack, baselineFrames int) (*models.Stack, error) {
	if signal.Height != hemodyn.Height || signal.Width != hemodyn.Width {
		return nil, fmt.Errorf("channel dimensions differ: %dx%d vs %dx%d",
			signal.Width, signal.Height, hemodyn.Width, hemodyn.Height)
	}

	frames := signal.Frames
	if hemodyn.Frames < frames {
		frames = hemodyn.Frames
	}
	if baselineFrames > frames {
		baselineFrames = frames
	}
	if baselineFrames < 1 {
		return nil, fmt.Errorf("baseline window is empty")
	}

	size := signal.FrameSize()
	out := models.NewStack(frames, signal.Height, signal.Width)

	sigTrace := make([]float64, frames)
	hemTrace := make([]float64, frames)

	for p := 0; p < size; p++ {
		// Extract the pixel's time course in both channels
		for f := 0; f < frames; f++ {
			sigTrace[f] = signal.Data[f*size+p]
			hemTrace[f] = hemodyn.Data[f*size+p]
		}

		sigBase := stat.Mean(sigTrace[:baselineFrames], nil)
		hemBase := stat.Mean(hemTrace[:baselineFrames], nil)

		if sigBase == 0 || hemBase == 0 || math.IsNaN(sigBase) || math.IsNaN(hemBase) {
			for f := 0; f < frames; f++ {
				out.Data[f*size+p] = math.NaN()
			}
			continue
		}

		// Fractional change from baseline in each channel
		for f := 0; f < frames; f++ {
			sigTrace[f] = (sigTrace[f] - sigBase) / sigBase
			hemTrace[f] = (hemTrace[f] - hemBase) / hemBase
		}

		// Least-squares coefficient of the hemodynamic component in
		// the signal trace
		beta := 0.0
		hemVar := stat.Variance(hemTrace, nil)
		if hemVar > 0 {
			beta = stat.Covariance(sigTrace, hemTrace, nil) / hemVar
		}

		for f := 0; f < frames; f++ {
			out.Data[f*size+p] = sigTrace[f] - beta*hemTrace[f]
		}
	}

	return out, nil
}
