// Package batch runs a composition or conversion over a set of files in
// fixed-size chunks, collecting per-file failures and packaging the results.
package batch

import (
	"errors"
	"fmt"

	"mediatools/internal/compose"
	"mediatools/internal/raster"
)

// ChunkSize is the number of files processed concurrently before the next
// chunk is scheduled.
const ChunkSize = 5

// State is the lifecycle of one orchestrator run.
type State string

const (
	StateIdle            State = "idle"
	StateRunning         State = "running"
	StateCompleted       State = "completed"
	StatePartiallyFailed State = "partially_failed"
	StateAllFailed       State = "all_failed"
	StateCancelled       State = "cancelled"
)

const originalsDir = "originals/"

var (
	// ErrNoFiles is returned when a run is started without input.
	ErrNoFiles = fmt.Errorf("batch: no files selected: %w", compose.ErrConfig)
	// ErrBackgroundRequired is returned when the caller requires a background
	// but supplied none.
	ErrBackgroundRequired = fmt.Errorf("batch: background required: %w", compose.ErrConfig)
	// ErrAllFailed is returned when every file failed; no archive is produced.
	ErrAllFailed = errors.New("batch: all files failed")
	// ErrBusy is returned when Run is called while another run is in flight.
	ErrBusy = errors.New("batch: a run is already in progress")
)

// Progress is reported after every finished file.
type Progress struct {
	Percent   int
	Processed int
	Total     int
}

// ProgressFunc receives progress updates from a single goroutine, in order.
type ProgressFunc func(Progress)

// Request describes a compositing run.
type Request struct {
	Files           []raster.Source
	Settings        compose.Settings
	Background      raster.Background
	BackgroundImage *raster.Source
	// RequireBackground rejects the run when neither Background nor
	// BackgroundImage is set.
	RequireBackground bool
	OnProgress        ProgressFunc
}

// ConvertRequest describes a format conversion run: every file is decoded and
// re-encoded at its own size.
type ConvertRequest struct {
	Files      []raster.Source
	Format     raster.Format
	Quality    int
	Archive    bool
	Naming     compose.NamingPolicy
	OnProgress ProgressFunc
}

// Output is one successfully processed file.
type Output struct {
	Name   string
	MIME   string
	Data   []byte
	Source string
	index  int
}

// Failure records a file that could not be processed, by its original name.
type Failure struct {
	Name  string
	Err   error
	index int
}

func (f Failure) Error() string {
	return f.Name + ": " + f.Err.Error()
}

// Result is the outcome of a finished run. Blob holds either the zip archive
// or, for a single input without archive output, the encoded file itself.
type Result struct {
	RunID     string
	State     State
	Processed int
	Total     int
	Outputs   []Output
	// Originals holds the source files of the successful outputs, named
	// under "originals/", when the run asked for them.
	Originals []Output
	Failures  []Failure
	Blob      []byte
	BlobName  string
	MIME      string
}

// FailedNames lists the original filenames that failed, in input order.
func (r *Result) FailedNames() []string {
	names := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		names = append(names, f.Name)
	}
	return names
}

func percent(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}
