package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/lexiqai/narrator/internal/audio"
	"github.com/lexiqai/narrator/internal/codec"
	"github.com/lexiqai/narrator/internal/observability"
	"github.com/lexiqai/narrator/internal/tts"
)

// DefaultLanguage is spoken when neither the request nor the engine names one
const DefaultLanguage = "en"

// Request is the input of one run
type Request struct {
	Text     string
	PauseMS  int          // silence between consecutive lines, >= 0
	Language string       // BCP 47 tag; empty uses the engine default
	Format   codec.Format // empty means mp3
}

// Progress is reported after each unit has been synthesized
type Progress struct {
	Completed int
	Total     int
}

// Fraction returns Completed/Total in [0, 1]
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

// Result is the terminal outcome of a run. Audio is only set when Err is nil.
type Result struct {
	RunID    string
	Audio    []byte
	Format   codec.Format
	Duration time.Duration // length of the combined audio
	Units    int
	Err      error
}

// OK reports whether the run produced audio
func (r Result) OK() bool {
	return r.Err == nil
}

// Options configures an Engine
type Options struct {
	Format          audio.Format  // working PCM format every unit is converted to
	UnitTimeout     time.Duration // deadline for one synthesize+decode step, 0 for none
	DefaultLanguage string
	OutputFormat    codec.Format // used when a request names none; MP3 if the codec can write it, else WAV
}

// Engine holds the backends shared by runs. Runs never share state with
// each other; the Engine itself is safe for concurrent use.
type Engine struct {
	synth tts.Synthesizer
	codec codec.Codec
	opts  Options
}

// NewEngine creates an engine over a speech backend and a codec
func NewEngine(synth tts.Synthesizer, c codec.Codec, opts Options) (*Engine, error) {
	if synth == nil {
		return nil, errors.New("speech backend is required")
	}
	if c == nil {
		return nil, errors.New("codec is required")
	}
	if err := opts.Format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid working format: %w", err)
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = DefaultLanguage
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = codec.FormatMP3
		if !c.Supports(codec.FormatMP3) {
			opts.OutputFormat = codec.FormatWAV
		}
	}
	if !c.Supports(opts.OutputFormat) {
		return nil, fmt.Errorf("%w: codec cannot write %s", codec.ErrUnsupportedFormat, opts.OutputFormat)
	}
	return &Engine{synth: synth, codec: c, opts: opts}, nil
}

// NewRun prepares a single-use run for req
func (e *Engine) NewRun(req Request) *Run {
	id := observability.NewRunID()
	return &Run{
		ID:      id,
		engine:  e,
		req:     req,
		logger:  observability.WithRunID(id),
		metrics: observability.NewRunMetrics(),
	}
}

// Execute runs req to completion on a fresh Run
func (e *Engine) Execute(ctx context.Context, req Request, onProgress func(Progress)) Result {
	return e.NewRun(req).Execute(ctx, onProgress)
}

// Run is one invocation of the pipeline. It owns its accumulator and can be
// executed once.
type Run struct {
	ID string

	engine  *Engine
	req     Request
	logger  zerolog.Logger
	metrics *observability.RunMetrics

	mu      sync.Mutex
	state   State
	started bool
}

// State returns the current lifecycle state
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Execute blocks until the run reaches a terminal state. onProgress, when not
// nil, is called synchronously after every unit with i/N.
//
// ctx bounds the backend calls; a run has no abort of its own, so a cancelled
// ctx surfaces as the failure of whichever step was in flight.
func (r *Run) Execute(ctx context.Context, onProgress func(Progress)) Result {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return Result{RunID: r.ID, Err: &Error{Kind: KindInvalidRequest, Err: ErrRunConsumed}}
	}
	r.started = true
	r.mu.Unlock()

	r.metrics.RecordRunStart()
	res := r.execute(ctx, onProgress)
	res.RunID = r.ID

	if res.Err != nil {
		kind := KindOf(res.Err)
		r.metrics.RecordRunEnd(string(kind))
		switch kind {
		case KindEmptyInput:
			// Blank input is an outcome, not a fault
			r.logger.Info().Str("kind", string(kind)).Msg("Run produced no audio")
		case KindAssemblyFailure:
			r.logger.Error().Err(res.Err).Str("kind", string(kind)).Msg("Run failed")
		default:
			r.logger.Warn().Err(res.Err).Str("kind", string(kind)).Msg("Run failed")
		}
	} else {
		r.metrics.RecordRunEnd("done")
		r.logger.Info().
			Int("units", res.Units).
			Dur("duration", res.Duration).
			Int("bytes", len(res.Audio)).
			Str("format", string(res.Format)).
			Msg("Run completed")
	}
	return res
}

// Stream executes the run in the background. Progress events arrive on the
// first channel, which is closed when the run ends; the Result is then sent
// on the second. The progress channel must be drained.
func (r *Run) Stream(ctx context.Context) (<-chan Progress, <-chan Result) {
	progress := make(chan Progress, 16)
	results := make(chan Result, 1)

	go func() {
		res := r.Execute(ctx, func(p Progress) {
			progress <- p
		})
		close(progress)
		results <- res
		close(results)
	}()

	return progress, results
}

func (r *Run) execute(ctx context.Context, onProgress func(Progress)) Result {
	req, err := r.engine.normalize(r.req)
	if err != nil {
		return r.fail(&Error{Kind: KindInvalidRequest, Err: err})
	}
	format := r.engine.opts.Format

	r.setState(StateSplitting)
	units := Split(req.Text)
	if len(units) == 0 {
		r.setState(StateEmptyInput)
		return Result{Err: &Error{Kind: KindEmptyInput, Err: errors.New("text has no non-empty lines")}}
	}

	pause, err := Silence(format, req.PauseMS)
	if err != nil {
		return r.fail(&Error{Kind: KindInvalidRequest, Err: err})
	}

	r.setState(StateSynthesizing)
	asm := NewAssembler(pause)
	for _, unit := range units {
		seg, err := r.synthesize(ctx, unit, req.Language)
		if err != nil {
			return r.fail(&Error{Kind: KindSynthesisFailure, Unit: unit.Index + 1, Text: unit.Text, Err: err})
		}
		if err := asm.Add(seg); err != nil {
			return r.fail(&Error{Kind: KindAssemblyFailure, Err: err})
		}
		if onProgress != nil {
			onProgress(Progress{Completed: unit.Index + 1, Total: len(units)})
		}
	}

	r.setState(StateAssembling)
	combined, err := asm.Finish()
	if err != nil {
		return r.fail(&Error{Kind: KindAssemblyFailure, Err: err})
	}

	r.setState(StateEncoding)
	r.metrics.RecordEncodeStart()
	data, err := r.engine.codec.Encode(ctx, combined, req.Format)
	if err == nil && len(data) == 0 {
		err = errors.New("codec produced no bytes")
	}
	if err != nil {
		r.metrics.RecordEncodeEnd(0, 0)
		return r.fail(&Error{Kind: KindEncodingFailure, Err: err})
	}
	r.metrics.RecordEncodeEnd(len(data), combined.Duration())

	r.setState(StateDone)
	return Result{
		Audio:    data,
		Format:   req.Format,
		Duration: combined.Duration(),
		Units:    len(units),
	}
}

// synthesize speaks one unit and decodes it into the working format
func (r *Run) synthesize(ctx context.Context, unit TextUnit, lang string) (*audio.Segment, error) {
	if timeout := r.engine.opts.UnitTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.metrics.RecordSynthesisStart()
	data, err := r.engine.synth.Synthesize(ctx, unit.Text, lang)
	if err != nil {
		r.metrics.RecordSynthesisEnd(false, 0)
		return nil, err
	}

	seg, err := r.engine.codec.Decode(ctx, data)
	if err != nil {
		r.metrics.RecordSynthesisEnd(false, len(data))
		return nil, fmt.Errorf("decode speech: %w", err)
	}
	seg, err = audio.Convert(seg, r.engine.opts.Format)
	if err != nil {
		r.metrics.RecordSynthesisEnd(false, len(data))
		return nil, fmt.Errorf("convert speech: %w", err)
	}
	if seg.IsEmpty() {
		r.metrics.RecordSynthesisEnd(false, len(data))
		return nil, errors.New("speech backend returned no audio")
	}
	r.metrics.RecordSynthesisEnd(true, len(data))

	r.logger.Debug().
		Int("unit", unit.Index+1).
		Int("line", unit.SourceLine).
		Dur("duration", seg.Duration()).
		Msg("Unit synthesized")

	return seg, nil
}

func (r *Run) fail(err *Error) Result {
	r.setState(StateFailed)
	return Result{Err: err}
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	from := r.state
	r.state = s
	r.mu.Unlock()

	r.logger.Debug().Str("from", from.String()).Str("to", s.String()).Msg("Run state changed")
}

// normalize fills defaults and rejects requests no run could satisfy
func (e *Engine) normalize(req Request) (Request, error) {
	if !utf8.ValidString(req.Text) {
		return req, errors.New("text is not valid UTF-8")
	}
	if req.PauseMS < 0 {
		return req, fmt.Errorf("pause must not be negative, got %dms", req.PauseMS)
	}

	lang, err := NormalizeLanguage(req.Language, e.opts.DefaultLanguage)
	if err != nil {
		return req, err
	}
	req.Language = lang

	if req.Format == "" {
		req.Format = e.opts.OutputFormat
	}
	format, err := e.CheckFormat(string(req.Format))
	if err != nil {
		return req, err
	}
	req.Format = format

	return req, nil
}

// OutputFormat is the format used when a request names none
func (e *Engine) OutputFormat() codec.Format {
	return e.opts.OutputFormat
}

// CheckFormat parses an output format tag and rejects formats the codec
// cannot write
func (e *Engine) CheckFormat(tag string) (codec.Format, error) {
	format, err := codec.ParseFormat(tag)
	if err != nil {
		return "", err
	}
	if !e.codec.Supports(format) {
		return "", fmt.Errorf("%w: %s is not available with this codec", codec.ErrUnsupportedFormat, format)
	}
	return format, nil
}

// NormalizeLanguage canonicalises a BCP 47 tag such as "EN_us" to "en-US".
// An empty tag yields fallback.
func NormalizeLanguage(tag, fallback string) (string, error) {
	if tag == "" {
		tag = fallback
	}
	if tag == "" {
		tag = DefaultLanguage
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", tag, err)
	}
	return parsed.String(), nil
}
