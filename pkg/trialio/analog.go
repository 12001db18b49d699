package trialio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// AnalogTrace holds the decoded analog sidecar of one trial: the
// acquisition system's auxiliary lines (stimulus trigger, illumination
// triggers) sampled alongside the camera frames.
type AnalogTrace struct {
	// Lines holds one trace per analog line
	Lines [][]float64

	// Samples is the number of samples per line
	Samples int
}

// ReadAnalog decodes a trial's analog sidecar file. The format is a
// little-endian header of line count (uint16) and sample count (uint32)
// followed by int16 samples interleaved across lines, one record per
// sample instant.
func ReadAnalog(path string) (*AnalogTrace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading analog file: %w", err)
	}

	if len(data) < 6 {
		return nil, fmt.Errorf("analog file %s too short for header", path)
	}

	lineCount := int(binary.LittleEndian.Uint16(data[0:2]))
	sampleCount := int(binary.LittleEndian.Uint32(data[2:6]))
	if lineCount == 0 || sampleCount == 0 {
		return nil, fmt.Errorf("analog file %s declares %d lines x %d samples", path, lineCount, sampleCount)
	}

	need := 6 + 2*lineCount*sampleCount
	if len(data) < need {
		return nil, fmt.Errorf("analog file %s truncated: need %d bytes, have %d", path, need, len(data))
	}

	trace := &AnalogTrace{
		Lines:   make([][]float64, lineCount),
		Samples: sampleCount,
	}
	for l := range trace.Lines {
		trace.Lines[l] = make([]float64, sampleCount)
	}

	offset := 6
	for s := 0; s < sampleCount; s++ {
		for l := 0; l < lineCount; l++ {
			v := int16(binary.LittleEndian.Uint16(data[offset:]))
			trace.Lines[l][s] = float64(v)
			offset += 2
		}
	}

	return trace, nil
}

// StimOnsetFrame locates the stimulus onset from the trigger line:
// the frame during which the line first rises above half of its peak.
// It returns -1 when the line stays flat, in which case the caller
// falls back to the configured pre-stimulus duration.
func (a *AnalogTrace) StimOnsetFrame(stimLine, totalFrames int) int {
	if stimLine < 0 || stimLine >= len(a.Lines) || totalFrames <= 0 {
		return -1
	}

	line := a.Lines[stimLine]
	if len(line) == 0 {
		return -1
	}
	lo, hi := line[0], line[0]
	for _, v := range line {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		// A line with no rise carries no trigger
		return -1
	}

	samplesPerFrame := a.Samples / totalFrames
	if samplesPerFrame == 0 {
		return -1
	}

	threshold := (lo + hi) / 2
	for s, v := range line {
		if v >= threshold {
			frame := s / samplesPerFrame
			if frame >= totalFrames {
				frame = totalFrames - 1
			}
			return frame
		}
	}

	return -1
}
