// Package batch analyzes every note of a source with a bounded pool of workers
// and hands the results to a writer in source order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/giygas/finddrugs/analyzer"
	"github.com/giygas/finddrugs/lexicon"
	"github.com/giygas/finddrugs/logging"
	"github.com/giygas/finddrugs/metrics"
	"github.com/giygas/finddrugs/notes"
)

// DefaultProgressEvery is how often, in notes, progress is logged
const DefaultProgressEvery = 100

// ResultWriter receives results in source order
type ResultWriter interface {
	Write(r analyzer.Result) error
}

// Options configures a Runner
type Options struct {
	Workers       int  // defaults to GOMAXPROCS
	FailFast      bool // abort on the first unusable note instead of skipping it
	Verbose       bool // log ambiguous lines at info instead of debug
	ProgressEvery int  // defaults to DefaultProgressEvery
}

// Summary describes a finished (or aborted) run
type Summary struct {
	RunID          string         `json:"run_id"`
	Notes          int            `json:"notes"`
	Written        int            `json:"written"`
	Skipped        int            `json:"skipped"`
	Uncertain      int            `json:"uncertain"`
	AmbiguousLines int64          `json:"ambiguous_lines"`
	Groups         map[string]int `json:"groups"`
	Duration       time.Duration  `json:"duration"`
}

// NotesPerSecond returns the processing rate
func (s Summary) NotesPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Notes) / s.Duration.Seconds()
}

// Runner drives one analyzer over note sources
type Runner struct {
	analyzer       *analyzer.Analyzer
	opts           Options
	ambiguousLines atomic.Int64
}

// NewRunner builds the analyzer for lex with a diagnostics hook that logs and
// counts ambiguous lines
func NewRunner(lex *lexicon.Lexicon, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}

	r := &Runner{opts: opts}
	r.analyzer = analyzer.New(lex, analyzer.WithDiagnostics(r.diagnostic))
	return r
}

// Analyzer returns the runner's analyzer
func (r *Runner) Analyzer() *analyzer.Analyzer {
	return r.analyzer
}

func (r *Runner) diagnostic(d analyzer.Diagnostic) {
	r.ambiguousLines.Add(1)
	metrics.AmbiguousLinesTotal.Inc()

	level := slog.LevelDebug
	if r.opts.Verbose {
		level = slog.LevelInfo
	}
	logging.Logger().Log(context.Background(), level, "Medication line outside any tracked section",
		"row_id", d.RowID,
		"subject_id", d.SubjectID,
		"line_number", d.LineNumber,
		"line", d.Line,
	)
}

// job is one note in source order
type job struct {
	seq    int
	note   notes.Note
	recErr error
}

// outcome is the analysis of one job
type outcome struct {
	seq    int
	result analyzer.Result
	err    error
}

// Run analyzes every note from src and writes results in source order.
// The summary reflects the notes handled so far even when an error is returned.
func (r *Runner) Run(ctx context.Context, src notes.Source, w ResultWriter) (Summary, error) {
	start := time.Now()
	summary := Summary{
		RunID:  uuid.NewString(),
		Groups: make(map[string]int),
	}
	for _, g := range analyzer.Groups() {
		summary.Groups[g.String()] = 0
	}
	ambiguousBefore := r.ambiguousLines.Load()

	logger := logging.Logger().With("run_id", summary.RunID)
	logger.Info("Starting note analysis", "workers", r.opts.Workers, "fail_fast", r.opts.FailFast)

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job, r.opts.Workers*2)
	results := make(chan outcome, r.opts.Workers*2)

	// Producer
	g.Go(func() error {
		defer close(jobs)
		seq := 0
		return src.Each(gctx, func(n notes.Note, recErr error) error {
			select {
			case jobs <- job{seq: seq, note: n, recErr: recErr}:
				seq++
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	// Workers
	var workers sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for j := range jobs {
				o := outcome{seq: j.seq, err: j.recErr}
				if o.err == nil {
					o.result, o.err = r.analyzer.AnalyzeNote(j.note)
				}
				select {
				case results <- o:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	// Writer, restoring source order
	g.Go(func() error {
		pending := make(map[int]outcome)
		next := 0
		for o := range results {
			pending[o.seq] = o
			for {
				ready, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				if err := r.handle(logger, &summary, ready, w); err != nil {
					return err
				}
			}
		}
		return nil
	})

	err := g.Wait()

	summary.Duration = time.Since(start)
	summary.AmbiguousLines = r.ambiguousLines.Load() - ambiguousBefore

	logger.Info("Note analysis finished",
		"notes", summary.Notes,
		"written", summary.Written,
		"skipped", summary.Skipped,
		"uncertain", summary.Uncertain,
		"ambiguous_lines", summary.AmbiguousLines,
		"groups", summary.Groups,
		"duration", summary.Duration.String(),
		"notes_per_second", fmt.Sprintf("%.1f", summary.NotesPerSecond()),
	)

	return summary, err
}

// handle writes one outcome and updates the summary; it runs on a single goroutine
func (r *Runner) handle(logger *slog.Logger, summary *Summary, o outcome, w ResultWriter) error {
	summary.Notes++
	if summary.Notes%r.opts.ProgressEvery == 0 {
		logger.Info("Processed notes", "count", summary.Notes)
	}

	if o.err != nil {
		summary.Skipped++
		metrics.RecordErrorsTotal.Inc()

		var recErr *notes.RecordError
		if !errors.As(o.err, &recErr) {
			return o.err
		}
		if r.opts.FailFast {
			return fmt.Errorf("aborting on unusable note: %w", o.err)
		}
		logger.Warn("Skipping unusable note", "row_id", recErr.RowID, "source", recErr.Source, "error", o.err)
		return nil
	}

	res := o.result
	group := res.Group.String()
	summary.Groups[group]++
	metrics.ObserveGroup(group)

	if res.Group == analyzer.GroupUncertain {
		summary.Uncertain++
		logger.Warn("Note matches no exposure group",
			"row_id", res.RowID,
			"subject_id", res.SubjectID,
			"hadm_id", res.HadmID,
		)
	}

	if err := w.Write(res); err != nil {
		return fmt.Errorf("failed to write result for row %d: %w", res.RowID, err)
	}
	summary.Written++
	return nil
}
