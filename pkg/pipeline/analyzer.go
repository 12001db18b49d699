package pipeline

import (
	"fmt"
	"math"
	"sync"

	"wfield/internal/models"
	"wfield/pkg/config"
	"wfield/pkg/hemo"
	"wfield/pkg/registration"
	"wfield/pkg/trialio"
)

// Analyzer runs the per-session analysis pipeline for widefield calcium
// imaging data.
//
// The pipeline consists of several steps:
// 1. Reading session metadata and enumerating the per-trial files
// 2. Allocating the accumulated stack for the whole session
// 3. For each trial: channel splitting, motion correction against the
//    first trial's reference, optional hemodynamic correction, spatial
//    downsampling, and accumulation into the trial's slot
// 4. Baseline normalization to dF/F when hemodynamic correction was
//    not applied
type Analyzer struct {
	// cfg stores the analysis configuration
	cfg *config.Config

	// meta holds the native frame geometry for the session
	meta *models.SessionMeta

	// trials holds the enumerated per-trial file descriptors
	trials []models.TrialFile

	// signalRef and hemoRef are the per-channel registration references,
	// built once from the first trial and read-only afterwards
	signalRef *registration.Reference
	hemoRef   *registration.Reference

	// stack is the accumulated 4D session data
	stack *models.AccumulatedStack

	// baseline is the per-pixel baseline map; nil when hemodynamic
	// correction produced already-normalized data
	baseline *models.BaselineMap

	// onsetFrame is the stimulus onset frame index within a trial
	onsetFrame int
}

// NewAnalyzer creates a new analyzer instance with the provided
// configuration.
func NewAnalyzer(cfg *config.Config) *Analyzer {
	return &Analyzer{
		cfg:        cfg,
		onsetFrame: cfg.PreStimFrames(),
	}
}

// Process runs the complete analysis pipeline over every enumerated
// trial. A missing metadata file aborts before any trial is processed;
// an unresolvable channel layout aborts mid-run. Short trials leave
// their trailing frames at the missing sentinel and long trials are
// truncated, neither is an error.
func (a *Analyzer) Process() error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Step 1: Locate trial files and determine the frame geometry
	a.logf("Step 1: Enumerating trial files...")
	trials, err := trialio.Enumerate(a.cfg.Data.Folder, a.cfg.Data.BaseName, a.cfg.Data.FileType)
	if err != nil {
		return fmt.Errorf("failed to enumerate trials: %w", err)
	}
	a.trials = trials

	if err := a.resolveGeometry(); err != nil {
		return err
	}
	a.logf("Found %d trials with native dimensions %dx%d", len(a.trials), a.meta.Width, a.meta.Height)

	// Step 2: Allocate the accumulated stack, pre-filled with the
	// missing sentinel so short trials leave absent frames marked
	a.logf("Step 2: Allocating session stack...")
	factor := a.cfg.Processing.Downsample
	a.stack = models.NewAccumulatedStack(
		a.meta.Height/factor,
		a.meta.Width/factor,
		a.cfg.TargetFrames(),
		len(a.trials),
	)
	a.logf("Session stack is %dx%dx%dx%d (row, column, frame, trial)",
		a.stack.Height, a.stack.Width, a.stack.Frames, a.stack.Trials)

	// Step 3: Process each trial in acquisition order
	a.logf("Step 3: Processing trials...")
	progressStep := len(a.trials) / 5
	for i, trial := range a.trials {
		corrected, err := a.processTrial(trial)
		if err != nil {
			return fmt.Errorf("trial %d (%s): %w", i, trial.Path, err)
		}

		a.stack.SetTrial(i, corrected.Downsample(factor))

		if progressStep > 0 && (i+1)%progressStep == 0 {
			a.logf("Processed %d of %d trials", i+1, len(a.trials))
		}
	}

	// Step 4: Baseline normalization. Hemodynamic correction already
	// yields fractional change, so only the uncorrected path converts
	// raw units to dF/F here.
	if a.cfg.Processing.HemoCorrect && !a.cfg.Data.Preprocessed {
		a.logf("Step 4: Skipping baseline normalization (hemodynamic correction already normalized)")
	} else {
		a.logf("Step 4: Computing baseline and normalizing to dF/F...")
		a.baseline = a.stack.BaselineMean(a.cfg.BaselineFrames())
		a.stack.Normalize(a.baseline)
	}

	return nil
}

// resolveGeometry determines the native frame dimensions: from the
// session metadata sidecar in raw mode, or from the first trial's npy
// header in preprocessed mode.
func (a *Analyzer) resolveGeometry() error {
	if a.cfg.Data.Preprocessed {
		first, err := trialio.ReadNpyStack(a.trials[0].Path)
		if err != nil {
			return fmt.Errorf("%w: %v", trialio.ErrMissingMetadata, err)
		}
		a.meta = &models.SessionMeta{Height: first.Height, Width: first.Width, BitDepth: 16}
		return nil
	}

	meta, err := trialio.ReadSessionMeta(trialio.MetaPath(a.cfg.Data.Folder, a.cfg.Data.BaseName))
	if err != nil {
		return err
	}
	a.meta = meta
	return nil
}

// processTrial loads one trial and produces its corrected,
// full-resolution stack: split into channels, motion corrected against
// the session reference, and hemodynamically corrected when enabled. In
// preprocessed mode the stack is loaded as-is.
func (a *Analyzer) processTrial(trial models.TrialFile) (*models.Stack, error) {
	if a.cfg.Data.Preprocessed {
		stack, err := trialio.ReadNpyStack(trial.Path)
		if err != nil {
			return nil, err
		}
		if stack.Height != a.meta.Height || stack.Width != a.meta.Width {
			return nil, fmt.Errorf("trial dimensions %dx%d differ from session %dx%d",
				stack.Width, stack.Height, a.meta.Width, a.meta.Height)
		}
		return stack, nil
	}

	raw, err := trialio.ReadRawStack(trial.Path, a.meta)
	if err != nil {
		return nil, err
	}

	if trial.AnalogPath == "" {
		return nil, fmt.Errorf("%w: no analog sidecar to resolve channels", trialio.ErrUnsupportedChannels)
	}
	analog, err := trialio.ReadAnalog(trial.AnalogPath)
	if err != nil {
		return nil, err
	}

	signal, hemodyn, err := trialio.SplitChannels(raw, analog, a.cfg.Analog.TriggerLines)
	if err != nil {
		return nil, err
	}

	// The first trial defines the registration references for the whole
	// session: the spectrum of each channel's median frame. They must
	// exist before any frame is registered, including this trial's own.
	if a.signalRef == nil {
		fft := registration.NewFFT2(a.meta.Width, a.meta.Height)
		a.signalRef = registration.NewReference(fft, signal)
		a.hemoRef = registration.NewReference(fft, hemodyn)

		if onset := analog.StimOnsetFrame(a.cfg.Analog.StimLine, raw.Frames); onset >= 0 {
			// The raw file interleaves both channels, so the
			// per-channel onset is at half the raw frame index
			a.onsetFrame = onset / 2
		}
	}

	a.registerStack(signal, a.signalRef)
	a.registerStack(hemodyn, a.hemoRef)

	if a.cfg.Processing.HemoCorrect {
		corrected, err := hemo.Correct(signal, hemodyn, a.cfg.BaselineFrames())
		if err != nil {
			return nil, fmt.Errorf("hemodynamic correction: %w", err)
		}
		return corrected, nil
	}

	// Without hemodynamic correction the working stack is the
	// registered signal channel, left in raw units until the session
	// baseline normalization
	return signal, nil
}

// registerStack motion-corrects every frame of a channel stack in
// place: frame spectrum, phase-correlation registration against the
// channel reference, inverse transform, magnitude. Frames are
// independent once the reference exists, so they are distributed over a
// bounded pool of workers, each with its own transform instance.
func (a *Analyzer) registerStack(stack *models.Stack, ref *registration.Reference) {
	workers := a.cfg.Processing.NumWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > stack.Frames {
		workers = stack.Frames
	}

	maxShift := a.cfg.Processing.MaxShift
	frameCh := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fft := registration.NewFFT2(stack.Width, stack.Height)

			for f := range frameCh {
				spec, _, _ := fft.Register(ref, stack.Frame(f), maxShift)
				registered := fft.Magnitude(spec)

				// Numerically bad registration output propagates as
				// missing values rather than failing the trial
				for i, v := range registered {
					if math.IsInf(v, 0) {
						registered[i] = math.NaN()
					}
				}
				copy(stack.Frame(f), registered)
			}
		}()
	}

	for f := 0; f < stack.Frames; f++ {
		frameCh <- f
	}
	close(frameCh)
	wg.Wait()
}

// GetStack returns the accumulated session stack after processing.
func (a *Analyzer) GetStack() *models.AccumulatedStack {
	return a.stack
}

// GetBaselineMap returns the per-pixel baseline map, or nil when
// hemodynamic correction produced already-normalized data.
func (a *Analyzer) GetBaselineMap() *models.BaselineMap {
	return a.baseline
}

// OnsetFrame returns the stimulus onset frame index within a trial,
// detected from the first trial's stimulus line or falling back to the
// configured pre-stimulus duration.
func (a *Analyzer) OnsetFrame() int {
	return a.onsetFrame
}

// TrialCount returns the number of enumerated trials.
func (a *Analyzer) TrialCount() int {
	return len(a.trials)
}

func (a *Analyzer) logf(format string, args ...interface{}) {
	if a.cfg.Output.Verbose {
		fmt.Printf(format+"\n", args...)
	}
}
