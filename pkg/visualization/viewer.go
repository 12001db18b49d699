// Package visualization renders the outputs of a processed session: a
// spatial map of mean post-stimulus activity across trials, and a time
// trace of a chosen pixel's or the global mean's activity with the
// stimulus onset marked.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"wfield/internal/models"
)

// Viewer renders activity maps and traces from an accumulated session
// stack.
type Viewer struct {
	// stack holds the processed session data in dF/F units
	stack *models.AccumulatedStack

	// onsetFrame is the stimulus onset frame index within a trial
	onsetFrame int

	// samplingRate is the per-channel frame rate in Hz
	samplingRate float64
}

// NewViewer creates a viewer for a processed session.
func NewViewer(stack *models.AccumulatedStack, onsetFrame int, samplingRate float64) *Viewer {
	return &Viewer{
		stack:        stack,
		onsetFrame:   onsetFrame,
		samplingRate: samplingRate,
	}
}

// ActivityMap computes the per-pixel mean activity over all
// post-stimulus frames and all trials, skipping missing cells.
func (v *Viewer) ActivityMap() []float64 {
	return v.stack.MeanFrames(v.onsetFrame, v.stack.Frames)
}

// SaveActivityMap renders the post-stimulus activity map to a grayscale
// PNG, upscaled by the given integer factor for viewing. Pixel values
// are normalized to the finite range of the map; missing pixels render
// black.
func (v *Viewer) SaveActivityMap(path string, scale int) error {
	if scale < 1 {
		scale = 1
	}

	data := v.ActivityMap()
	lo, hi := finiteRange(data)

	src := image.NewGray16(image.Rect(0, 0, v.stack.Width, v.stack.Height))
	for y := 0; y < v.stack.Height; y++ {
		for x := 0; x < v.stack.Width; x++ {
			val := data[y*v.stack.Width+x]
			if math.IsNaN(val) || hi <= lo {
				src.SetGray16(x, y, color.Gray16{Y: 0})
				continue
			}
			norm := (val - lo) / (hi - lo)
			src.SetGray16(x, y, color.Gray16{Y: uint16(norm * 65535)})
		}
	}

	dst := image.NewGray16(image.Rect(0, 0, v.stack.Width*scale, v.stack.Height*scale))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	return saveImage(path, dst)
}

// PixelTrace returns the trial-averaged dF/F time course of one pixel.
func (v *Viewer) PixelTrace(y, x int) []float64 {
	return v.stack.PixelTrace(y, x)
}

// GlobalTrace returns the dF/F time course of the mean over all pixels
// and trials.
func (v *Viewer) GlobalTrace() []float64 {
	return v.stack.GlobalTrace()
}

// SaveTraceCSV writes a trace as CSV with one row per frame holding the
// time relative to stimulus onset in seconds and the dF/F value.
func (v *Viewer) SaveTraceCSV(path string, trace []float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "time_s,dff")
	for f, val := range trace {
		t := float64(f-v.onsetFrame) / v.samplingRate
		fmt.Fprintf(file, "%.4f,%.6f\n", t, val)
	}

	return nil
}

// SaveTraceImage renders a trace as a PNG line plot with the stimulus
// onset and the zero-change level marked.
func (v *Viewer) SaveTraceImage(path string, trace []float64) error {
	const width, height, margin = 640, 320, 10

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}

	lo, hi := finiteRange(trace)
	if hi <= lo {
		hi = lo + 1
	}
	// Keep the zero line inside the plot
	if lo > 0 {
		lo = 0
	}
	if hi < 0 {
		hi = 0
	}

	toX := func(f int) int {
		if len(trace) <= 1 {
			return margin
		}
		return margin + f*(width-2*margin)/(len(trace)-1)
	}
	toY := func(val float64) int {
		norm := (val - lo) / (hi - lo)
		return height - margin - int(norm*float64(height-2*margin))
	}

	// Zero-change line
	zeroY := toY(0)
	for x := margin; x < width-margin; x++ {
		img.Set(x, zeroY, color.RGBA{R: 160, G: 160, B: 160, A: 255})
	}

	// Stimulus onset line
	if v.onsetFrame >= 0 && v.onsetFrame < len(trace) {
		onsetX := toX(v.onsetFrame)
		for y := margin; y < height-margin; y++ {
			img.Set(onsetX, y, color.RGBA{R: 220, G: 60, B: 60, A: 255})
		}
	}

	// Trace polyline
	prevSet := false
	prevX, prevY := 0, 0
	for f, val := range trace {
		if math.IsNaN(val) {
			prevSet = false
			continue
		}
		x, y := toX(f), toY(val)
		if prevSet {
			drawLine(img, prevX, prevY, x, y, color.RGBA{A: 255})
		}
		prevX, prevY = x, y
		prevSet = true
	}

	return saveImage(path, img)
}

// drawLine draws a straight line segment between two points
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := x1 - x0
	dy := y1 - y0
	steps := dx
	if steps < 0 {
		steps = -steps
	}
	if dy > steps {
		steps = dy
	}
	if -dy > steps {
		steps = -dy
	}
	if steps == 0 {
		img.Set(x0, y0, c)
		return
	}

	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := x0 + int(t*float64(dx)+0.5)
		y := y0 + int(t*float64(dy)+0.5)
		img.Set(x, y, c)
	}
}

// finiteRange returns the minimum and maximum finite values in data
func finiteRange(data []float64) (float64, float64) {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

// saveImage writes an image as PNG, creating the output directory if
// needed
func saveImage(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating image file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}

	return nil
}
