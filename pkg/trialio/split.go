package trialio

import (
	"fmt"

	"wfield/internal/models"
)

// SplitChannels separates a raw dual-wavelength frame stack into its
// signal and hemodynamic channel stacks. Each raw frame belongs to the
// channel whose illumination trigger line was active during that
// frame's exposure, read from the trial's analog sidecar.
//
// triggerLines names the analog lines of the two illumination channels,
// signal channel first. A configuration with any other channel count,
// or a frame whose channel cannot be resolved from the triggers, fails
// with ErrUnsupportedChannels; nothing is returned for such a trial.
func SplitChannels(raw *models.Stack, analog *AnalogTrace, triggerLines []int) (*models.Stack, *models.Stack, error) {
	if len(triggerLines) != 2 {
		return nil, nil, fmt.Errorf("%w: %d illumination trigger lines configured", ErrUnsupportedChannels, len(triggerLines))
	}
	for _, l := range triggerLines {
		if l < 0 || l >= len(analog.Lines) {
			return nil, nil, fmt.Errorf("%w: trigger line %d outside analog record with %d lines",
				ErrUnsupportedChannels, l, len(analog.Lines))
		}
	}

	samplesPerFrame := analog.Samples / raw.Frames
	if samplesPerFrame == 0 {
		return nil, nil, fmt.Errorf("%w: %d analog samples for %d frames",
			ErrUnsupportedChannels, analog.Samples, raw.Frames)
	}

	// Classify each raw frame by comparing the mean trigger activity
	// of the two lines over the frame's sample window
	channelOf := make([]int, raw.Frames)
	counts := [2]int{}
	for f := 0; f < raw.Frames; f++ {
		start := f * samplesPerFrame
		end := start + samplesPerFrame

		var activity [2]float64
		for c, l := range triggerLines {
			sum := 0.0
			for s := start; s < end; s++ {
				sum += analog.Lines[l][s]
			}
			activity[c] = sum / float64(samplesPerFrame)
		}

		switch {
		case activity[0] > activity[1]:
			channelOf[f] = 0
		case activity[1] > activity[0]:
			channelOf[f] = 1
		default:
			return nil, nil, fmt.Errorf("%w: frame %d has equal trigger activity on both lines",
				ErrUnsupportedChannels, f)
		}
		counts[channelOf[f]]++
	}

	if counts[0] == 0 || counts[1] == 0 {
		return nil, nil, fmt.Errorf("%w: all frames classified to one channel (%d/%d)",
			ErrUnsupportedChannels, counts[0], counts[1])
	}

	signal := models.NewStack(counts[0], raw.Height, raw.Width)
	hemo := models.NewStack(counts[1], raw.Height, raw.Width)

	next := [2]int{}
	for f := 0; f < raw.Frames; f++ {
		c := channelOf[f]
		var dst *models.Stack
		if c == 0 {
			dst = signal
		} else {
			dst = hemo
		}
		copy(dst.Frame(next[c]), raw.Frame(f))
		next[c]++
	}

	return signal, hemo, nil
}
