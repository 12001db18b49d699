package trialio

import (
	"encoding/binary"
	"fmt"
	"os"

	"wfield/internal/models"
)

// ReadRawStack decodes a raw binary trial file into a frame stack. The
// file holds row-major frames of unsigned 8-bit or 16-bit little-endian
// pixels, one frame after another, with no header. The native frame
// count follows from the file size; a trailing partial frame is
// discarded.
func ReadRawStack(path string, meta *models.SessionMeta) (*models.Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trial file: %w", err)
	}

	bytesPerPixel := meta.BitDepth / 8
	frameBytes := meta.Height * meta.Width * bytesPerPixel
	if frameBytes == 0 {
		return nil, fmt.Errorf("invalid frame geometry %dx%d at %d bits", meta.Width, meta.Height, meta.BitDepth)
	}

	frames := len(data) / frameBytes
	if frames == 0 {
		return nil, fmt.Errorf("trial file %s holds no complete frame (%d bytes, %d per frame)",
			path, len(data), frameBytes)
	}

	stack := models.NewStack(frames, meta.Height, meta.Width)

	switch meta.BitDepth {
	case 8:
		for i := 0; i < frames*meta.Height*meta.Width; i++ {
			stack.Data[i] = float64(data[i])
		}
	case 16:
		for i := 0; i < frames*meta.Height*meta.Width; i++ {
			stack.Data[i] = float64(binary.LittleEndian.Uint16(data[2*i:]))
		}
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", meta.BitDepth)
	}

	return stack, nil
}
