package models

// TrialFile describes a single raw acquisition file discovered by
// enumeration.
type TrialFile struct {
	// Path is the absolute or folder-relative path to the frame data file
	Path string

	// AnalogPath is the path to the trial's analog sidecar file, if any
	AnalogPath string

	// Index is the position of this trial in the session sequence
	Index int

	// Number is the numeric suffix extracted from the filename,
	// used to keep trials in acquisition order
	Number int
}

// SessionMeta holds the per-session acquisition metadata read from the
// metadata sidecar file.
type SessionMeta struct {
	// Height and Width are the native frame dimensions in pixels
	Height int `yaml:"height"`
	Width  int `yaml:"width"`

	// BitDepth is the per-pixel data width of the raw files, 8 or 16
	BitDepth int `yaml:"bitDepth"`
}
