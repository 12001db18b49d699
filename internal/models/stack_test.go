package models

import (
	"math"
	"testing"
)

// TestMedianFrame verifies the per-pixel median across frames
func TestMedianFrame(t *testing.T) {
	stack := NewStack(3, 2, 2)

	// Pixel (0,0): 1, 5, 3 -> median 3
	// Pixel (0,1): 2, 2, 8 -> median 2
	// Pixel (1,0): 0, 4, 4 -> median 4
	// Pixel (1,1): 7, 1, 1 -> median 1
	copy(stack.Frame(0), []float64{1, 2, 0, 7})
	copy(stack.Frame(1), []float64{5, 2, 4, 1})
	copy(stack.Frame(2), []float64{3, 8, 4, 1})

	median := stack.MedianFrame()
	expected := []float64{3, 2, 4, 1}

	for i, want := range expected {
		if median[i] != want {
			t.Errorf("median[%d]: expected %.1f, got %.1f", i, want, median[i])
		}
	}
}

// TestMedianFrameEvenCount verifies the median with an even frame count
func TestMedianFrameEvenCount(t *testing.T) {
	stack := NewStack(4, 1, 1)
	stack.Data = []float64{1, 3, 5, 7}

	median := stack.MedianFrame()
	if median[0] != 4 {
		t.Errorf("expected median 4 for even count, got %.1f", median[0])
	}
}

// TestDownsampleDimensions verifies floor semantics for the output dimensions
func TestDownsampleDimensions(t *testing.T) {
	testCases := []struct {
		height, width, factor     int
		wantHeight, wantWidth int
	}{
		{8, 8, 2, 4, 4},
		{9, 9, 2, 4, 4},
		{512, 512, 4, 128, 128},
		{10, 7, 3, 3, 2},
		{6, 6, 1, 6, 6},
	}

	for _, tc := range testCases {
		stack := NewStack(2, tc.height, tc.width)
		out := stack.Downsample(tc.factor)

		if out.Height != tc.wantHeight || out.Width != tc.wantWidth {
			t.Errorf("downsample %dx%d by %d: expected %dx%d, got %dx%d",
				tc.width, tc.height, tc.factor, tc.wantWidth, tc.wantHeight, out.Width, out.Height)
		}
		if out.Frames != stack.Frames {
			t.Errorf("downsample must preserve frame count: expected %d, got %d", stack.Frames, out.Frames)
		}
	}
}

// TestDownsampleBlockMean verifies the local averaging rule
func TestDownsampleBlockMean(t *testing.T) {
	stack := NewStack(1, 4, 4)
	copy(stack.Frame(0), []float64{
		1, 2, 10, 20,
		3, 4, 30, 40,
		5, 5, 0, 0,
		5, 5, 0, 4,
	})

	out := stack.Downsample(2)
	expected := []float64{2.5, 25, 5, 1}

	for i, want := range expected {
		if math.Abs(out.Frame(0)[i]-want) > 1e-12 {
			t.Errorf("block %d: expected %.2f, got %.2f", i, want, out.Frame(0)[i])
		}
	}
}

// TestDownsampleMissingValues verifies NaN handling in block means
func TestDownsampleMissingValues(t *testing.T) {
	nan := math.NaN()
	stack := NewStack(1, 2, 4)
	copy(stack.Frame(0), []float64{
		2, nan, nan, nan,
		4, nan, nan, nan,
	})

	out := stack.Downsample(2)

	// Left block averages only the finite pixels
	if math.Abs(out.Frame(0)[0]-3) > 1e-12 {
		t.Errorf("partial block: expected 3, got %v", out.Frame(0)[0])
	}

	// Right block has no finite pixels and stays missing
	if !math.IsNaN(out.Frame(0)[1]) {
		t.Errorf("all-missing block: expected NaN, got %v", out.Frame(0)[1])
	}
}

// TestAccumulatedStackSentinel verifies the stack starts fully missing
func TestAccumulatedStackSentinel(t *testing.T) {
	a := NewAccumulatedStack(2, 2, 3, 2)
	for i, v := range a.Data {
		if !math.IsNaN(v) {
			t.Fatalf("cell %d: expected NaN sentinel, got %v", i, v)
		}
	}
}

// TestSetTrialShort verifies that short trials leave trailing frames missing
func TestSetTrialShort(t *testing.T) {
	a := NewAccumulatedStack(2, 2, 5, 1)

	trial := NewStack(3, 2, 2)
	for f := 0; f < 3; f++ {
		for p := 0; p < 4; p++ {
			trial.Frame(f)[p] = float64(f + 1)
		}
	}

	a.SetTrial(0, trial)

	for f := 0; f < 3; f++ {
		if a.At(0, 0, f, 0) != float64(f+1) {
			t.Errorf("frame %d: expected %d, got %v", f, f+1, a.At(0, 0, f, 0))
		}
	}
	for f := 3; f < 5; f++ {
		if !math.IsNaN(a.At(0, 0, f, 0)) {
			t.Errorf("frame %d: expected missing sentinel, got %v", f, a.At(0, 0, f, 0))
		}
	}
}

// TestSetTrialLong verifies that excess frames are dropped, not an error
func TestSetTrialLong(t *testing.T) {
	a := NewAccumulatedStack(1, 1, 3, 1)

	trial := NewStack(5, 1, 1)
	trial.Data = []float64{10, 11, 12, 13, 14}

	a.SetTrial(0, trial)

	for f := 0; f < 3; f++ {
		if a.At(0, 0, f, 0) != float64(10+f) {
			t.Errorf("frame %d: expected %d, got %v", f, 10+f, a.At(0, 0, f, 0))
		}
	}
}

// TestBaselineMeanAndNormalize verifies the dF/F conversion formula
func TestBaselineMeanAndNormalize(t *testing.T) {
	a := NewAccumulatedStack(1, 1, 4, 2)

	// Trial 0 baseline frames: 10, 20; trial 1 baseline frames: 30, 40
	// Baseline map value: mean(10, 20, 30, 40) = 25
	values := [][]float64{
		{10, 20, 50, 100},
		{30, 40, 75, 0},
	}
	for trial, frames := range values {
		for f, v := range frames {
			a.Set(0, 0, f, trial, v)
		}
	}

	baseline := a.BaselineMean(2)
	if baseline.Data[0] != 25 {
		t.Fatalf("baseline: expected 25, got %v", baseline.Data[0])
	}

	a.Normalize(baseline)

	for trial, frames := range values {
		for f, raw := range frames {
			want := (raw - 25) / 25
			got := a.At(0, 0, f, trial)
			if math.Abs(got-want) > 1e-12 {
				t.Errorf("trial %d frame %d: expected %.4f, got %.4f", trial, f, want, got)
			}
		}
	}
}

// TestBaselineMeanSkipsMissing verifies that missing cells are excluded
// from the mean rather than treated as zero
func TestBaselineMeanSkipsMissing(t *testing.T) {
	a := NewAccumulatedStack(1, 1, 2, 2)

	a.Set(0, 0, 0, 0, 10)
	a.Set(0, 0, 1, 0, 20)
	// Trial 1 left entirely missing

	baseline := a.BaselineMean(2)
	if baseline.Data[0] != 15 {
		t.Errorf("baseline over partial data: expected 15, got %v", baseline.Data[0])
	}
}

// TestNormalizeZeroBaseline verifies the division-by-zero policy
func TestNormalizeZeroBaseline(t *testing.T) {
	a := NewAccumulatedStack(1, 2, 2, 1)

	// Pixel 0 has a zero baseline, pixel 1 has no data at all
	a.Set(0, 0, 0, 0, 0)
	a.Set(0, 0, 1, 0, 0)

	baseline := a.BaselineMean(2)
	a.Normalize(baseline)

	for f := 0; f < 2; f++ {
		if !math.IsNaN(a.At(0, 0, f, 0)) {
			t.Errorf("zero baseline frame %d: expected NaN, got %v", f, a.At(0, 0, f, 0))
		}
		if !math.IsNaN(a.At(0, 1, f, 0)) {
			t.Errorf("missing baseline frame %d: expected NaN, got %v", f, a.At(0, 1, f, 0))
		}
	}
}

// TestPixelTrace verifies trial-averaged traces skip missing trials
func TestPixelTrace(t *testing.T) {
	a := NewAccumulatedStack(1, 1, 2, 3)

	a.Set(0, 0, 0, 0, 1)
	a.Set(0, 0, 0, 1, 3)
	// Trial 2 missing at frame 0
	a.Set(0, 0, 1, 0, 5)
	a.Set(0, 0, 1, 1, 5)
	a.Set(0, 0, 1, 2, 5)

	trace := a.PixelTrace(0, 0)

	if trace[0] != 2 {
		t.Errorf("frame 0: expected mean 2 over present trials, got %v", trace[0])
	}
	if trace[1] != 5 {
		t.Errorf("frame 1: expected 5, got %v", trace[1])
	}
}

// TestMeanFrames verifies the post-stimulus activity reduction
func TestMeanFrames(t *testing.T) {
	a := NewAccumulatedStack(1, 1, 4, 1)
	for f := 0; f < 4; f++ {
		a.Set(0, 0, f, 0, float64(f))
	}

	// Frames 2..3: mean(2, 3) = 2.5
	mean := a.MeanFrames(2, 4)
	if mean[0] != 2.5 {
		t.Errorf("expected 2.5, got %v", mean[0])
	}
}
