package batch

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mediatools/internal/compose"
	"mediatools/internal/raster"
	"mediatools/pkg/zip"
)

// Orchestrator drives one run at a time. It is safe to share between
// goroutines; a second concurrent Run is rejected with ErrBusy.
type Orchestrator struct {
	logger  zerolog.Logger
	workers int

	busy  atomic.Bool
	mu    sync.Mutex
	state State
}

type Option func(*Orchestrator)

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithWorkers caps the number of files of a chunk processed at once.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:  zerolog.Nop(),
		workers: runtime.NumCPU(),
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers > ChunkSize {
		o.workers = ChunkSize
	}
	return o
}

// State returns the state of the current or most recent run.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run composites every file onto the configured background. Configuration
// problems are reported before any file is touched. A run where every file
// fails returns the result together with ErrAllFailed and no archive.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}
	if req.RequireBackground && req.Background == nil && req.BackgroundImage == nil {
		return nil, ErrBackgroundRequired
	}
	composer, err := compose.NewComposer(req.Settings, req.Background, req.BackgroundImage)
	if err != nil {
		return nil, err
	}
	s := composer.Settings()
	format := s.OutputFormat()
	return o.execute(ctx, job{
		files:            req.Files,
		archive:          s.Archive,
		includeOriginals: s.IncludeOriginals,
		onProgress:       req.OnProgress,
		process: func(src raster.Source, index int) (Output, error) {
			data, err := composer.Render(src)
			if err != nil {
				return Output{}, err
			}
			return Output{
				Name: s.Naming.Resolve(src.Name, index, format.Extension()),
				MIME: format.MIME(),
				Data: data,
			}, nil
		},
	})
}

// Convert re-encodes every file in the requested format, keeping its size.
func (o *Orchestrator) Convert(ctx context.Context, req ConvertRequest) (*Result, error) {
	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}
	format, err := raster.ParseFormat(string(req.Format))
	if err != nil {
		return nil, &compose.ValidationError{Field: "format", Reason: err.Error()}
	}
	if req.Quality < 0 || req.Quality > 100 {
		return nil, &compose.ValidationError{Field: "quality", Reason: "must be within 1..100"}
	}
	if err := req.Naming.Validate(); err != nil {
		return nil, &compose.ValidationError{Field: "naming", Reason: err.Error()}
	}
	return o.execute(ctx, job{
		files:      req.Files,
		archive:    req.Archive,
		onProgress: req.OnProgress,
		process: func(src raster.Source, index int) (Output, error) {
			handle, err := raster.Load(src)
			if err != nil {
				return Output{}, err
			}
			defer handle.Release()
			data, err := compose.EncodeImage(handle.Image(), format, req.Quality, src.Name)
			if err != nil {
				return Output{}, err
			}
			return Output{
				Name: req.Naming.Resolve(src.Name, index, format.Extension()),
				MIME: format.MIME(),
				Data: data,
			}, nil
		},
	})
}

type job struct {
	files            []raster.Source
	archive          bool
	includeOriginals bool
	onProgress       ProgressFunc
	process          func(src raster.Source, index int) (Output, error)
}

type outcome struct {
	index int
	name  string
	out   Output
	err   error
}

func (o *Orchestrator) execute(ctx context.Context, j job) (*Result, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer o.busy.Store(false)

	res := &Result{RunID: uuid.NewString(), Total: len(j.files)}
	logger := o.logger.With().Str("run_id", res.RunID).Logger()
	o.setState(StateRunning)
	logger.Info().Int("total", res.Total).Msg("batch: run started")

	var cancelErr error
	for start := 0; start < res.Total && cancelErr == nil; start += ChunkSize {
		end := min(start+ChunkSize, res.Total)
		results := make(chan outcome, end-start)
		var stopped error
		go func() {
			defer close(results)
			g := new(errgroup.Group)
			g.SetLimit(o.workers)
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					stopped = err
					break
				}
				src := j.files[i].Clone()
				g.Go(func() error {
					results <- runOne(j.process, src, i)
					return nil
				})
			}
			_ = g.Wait()
		}()
		for oc := range results {
			res.Processed++
			if oc.err != nil {
				res.Failures = append(res.Failures, Failure{Name: oc.name, Err: oc.err, index: oc.index})
				logger.Warn().Err(oc.err).Str("file", oc.name).Msg("batch: file failed")
			} else {
				res.Outputs = append(res.Outputs, oc.out)
			}
			logger.Debug().Str("file", oc.name).Int("processed", res.Processed).Int("total", res.Total).Msg("batch: progress")
			if j.onProgress != nil {
				j.onProgress(Progress{Percent: percent(res.Processed, res.Total), Processed: res.Processed, Total: res.Total})
			}
		}
		cancelErr = stopped
	}

	sort.Slice(res.Outputs, func(a, b int) bool { return res.Outputs[a].index < res.Outputs[b].index })
	sort.Slice(res.Failures, func(a, b int) bool { return res.Failures[a].index < res.Failures[b].index })
	claimNames(res.Outputs)

	err := o.finish(res, j, cancelErr)
	o.setState(res.State)
	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.Str("state", string(res.State)).
		Int("processed", res.Processed).
		Int("total", res.Total).
		Int("failed", len(res.Failures)).
		Msg("batch: run finished")
	return res, err
}

func (o *Orchestrator) finish(res *Result, j job, cancelErr error) error {
	switch {
	case cancelErr != nil:
		res.State = StateCancelled
		return cancelErr
	case len(res.Outputs) == 0:
		res.State = StateAllFailed
		return fmt.Errorf("%w (%d of %d)", ErrAllFailed, len(res.Failures), res.Total)
	case len(res.Failures) > 0:
		res.State = StatePartiallyFailed
	default:
		res.State = StateCompleted
	}

	if j.includeOriginals {
		names := zip.NewNameSet()
		for _, out := range res.Outputs {
			src := j.files[out.index]
			res.Originals = append(res.Originals, Output{
				Name:   originalsDir + names.Claim(src.Name),
				MIME:   originalMIME(src.Name),
				Data:   src.Data,
				Source: src.Name,
				index:  out.index,
			})
		}
	}
	if res.Total == 1 && !j.archive && !j.includeOriginals {
		out := res.Outputs[0]
		res.Blob, res.BlobName, res.MIME = out.Data, out.Name, out.MIME
		return nil
	}
	assets := make([]zip.Asset, 0, len(res.Outputs)+len(res.Originals))
	for _, group := range [][]Output{res.Outputs, res.Originals} {
		for _, out := range group {
			assets = append(assets, zip.Asset{Filename: out.Name, MIME: out.MIME, Data: out.Data})
		}
	}
	blob, err := zip.ArchiveAssets(assets)
	if err != nil {
		return fmt.Errorf("batch: package archive: %w", err)
	}
	res.Blob, res.BlobName, res.MIME = blob, "mediatools-"+res.RunID[:8]+".zip", zip.MIME
	return nil
}

func runOne(process func(raster.Source, int) (Output, error), src raster.Source, index int) (oc outcome) {
	oc.index, oc.name = index, src.Name
	defer func() {
		if r := recover(); r != nil {
			oc.err = fmt.Errorf("batch: %s: panic: %v", src.Name, r)
		}
	}()
	out, err := process(src, index)
	if err != nil {
		oc.err = err
		return oc
	}
	out.Source, out.index = src.Name, index
	oc.out = out
	return oc
}

// claimNames gives colliding outputs a numeric suffix, in input order.
func claimNames(outputs []Output) {
	names := zip.NewNameSet()
	for i := range outputs {
		outputs[i].Name = names.Claim(outputs[i].Name)
	}
}

func originalMIME(name string) string {
	if f, err := raster.FormatFromName(name); err == nil {
		return f.MIME()
	}
	return "application/octet-stream"
}
