package trialio

import (
	"fmt"

	"github.com/kshedden/gonpy"

	"wfield/internal/models"
)

// ReadNpyStack loads a preprocessed single-channel trial stack from a
// NumPy .npy file. The array must be 3D with shape (frames, height,
// width) and a float64 dtype. The npy header supplies the trial's
// native frame count and dimensions, so no session metadata is needed
// on this path.
func ReadNpyStack(path string) (*models.Stack, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening npy stack: %w", err)
	}

	if len(r.Shape) != 3 {
		return nil, fmt.Errorf("npy stack %s has %d dimensions, want 3 (frames, height, width)", path, len(r.Shape))
	}

	data, err := r.GetFloat64()
	if err != nil {
		return nil, fmt.Errorf("reading npy stack %s: %w", path, err)
	}

	stack := &models.Stack{
		Data:   data,
		Frames: r.Shape[0],
		Height: r.Shape[1],
		Width:  r.Shape[2],
	}

	if len(data) != stack.Frames*stack.Height*stack.Width {
		return nil, fmt.Errorf("npy stack %s: %d values for shape %v", path, len(data), r.Shape)
	}

	return stack, nil
}

// WriteNpyStack writes a frame stack as a 3D float64 .npy file with
// shape (frames, height, width). Used both for preparing preprocessed
// inputs and in tests.
func WriteNpyStack(path string, stack *models.Stack) error {
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("creating npy stack: %w", err)
	}
	w.Shape = []int{stack.Frames, stack.Height, stack.Width}
	w.Version = 2

	if err := w.WriteFloat64(stack.Data); err != nil {
		return fmt.Errorf("writing npy stack: %w", err)
	}
	return nil
}

// ExportAccumulated writes the accumulated session stack as a 4D
// float64 .npy file with shape (trials, frames, height, width), suitable
// for downstream analysis in NumPy.
func ExportAccumulated(path string, a *models.AccumulatedStack) error {
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	w.Shape = []int{a.Trials, a.Frames, a.Height, a.Width}
	w.Version = 2

	if err := w.WriteFloat64(a.Data); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	return nil
}

// ExportBaseline writes the baseline map as a 2D float64 .npy file.
func ExportBaseline(path string, b *models.BaselineMap) error {
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	w.Shape = []int{b.Height, b.Width}
	w.Version = 2

	if err := w.WriteFloat64(b.Data); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	return nil
}
