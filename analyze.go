package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/giygas/finddrugs/batch"
	"github.com/giygas/finddrugs/logging"
	"github.com/giygas/finddrugs/notes"
	"github.com/giygas/finddrugs/report"
)

type analyzeOptions struct {
	notesDir    string
	notesCSV    string
	databaseURL string
	output      string
	force       bool
	workers     int
	limit       int
	delimiter   string
	failFast    bool
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a batch of notes into a CSV report",
		Long: `Analyze reads discharge notes from exactly one source and writes one CSV row
per note, in source order.

Sources:
  --notes-dir     directory of NOTE-EVENTS-<subject>.txt files
  --notes-csv     noteevents CSV export with a header row
  --database-url  Postgres database with a noteevents table (or DATABASE_URL)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.notesDir, "notes-dir", "", "directory of NOTE-EVENTS files")
	flags.StringVar(&opts.notesCSV, "notes-csv", "", "noteevents CSV export")
	flags.StringVar(&opts.databaseURL, "database-url", "", "Postgres URL (overrides DATABASE_URL)")
	flags.StringVarP(&opts.output, "output", "o", "output.csv", "report file")
	flags.BoolVar(&opts.force, "force", false, "overwrite an existing report")
	flags.IntVar(&opts.workers, "workers", 0, "analysis workers (overrides WORKERS, 0 means one per CPU)")
	flags.IntVar(&opts.limit, "limit", 0, "stop after this many notes (overrides NOTES_LIMIT, 0 means all)")
	flags.StringVar(&opts.delimiter, "delimiter", ",", "report field delimiter")
	flags.BoolVar(&opts.failFast, "fail-fast", false, "abort on the first unusable note instead of skipping it")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions) error {
	if !cmd.Flags().Changed("workers") {
		opts.workers = cfg.Workers
	}
	if !cmd.Flags().Changed("limit") {
		opts.limit = cfg.NotesLimit
	}
	if opts.databaseURL == "" && opts.notesDir == "" && opts.notesCSV == "" {
		opts.databaseURL = cfg.DatabaseURL
	}

	delim, err := parseDelimiter(opts.delimiter)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lex, _, err := loadLexicon()
	if err != nil {
		return err
	}

	src, closeSource, err := openSource(ctx, opts)
	if err != nil {
		return err
	}
	defer closeSource()

	f, err := report.Create(opts.output, opts.force)
	if err != nil {
		return err
	}

	w := report.NewWriter(f, lex, report.WithDelimiter(delim))
	runner := batch.NewRunner(lex, batch.Options{
		Workers:  opts.workers,
		FailFast: opts.failFast,
		Verbose:  cfg.Verbose,
	})

	var summary batch.Summary
	runErr := w.WriteHeader()
	if runErr == nil {
		summary, runErr = runner.Run(ctx, src, w)
	}

	err = errors.Join(runErr, w.Flush(), f.Close())
	if err != nil {
		return fmt.Errorf("analysis of %s failed: %w", opts.output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d notes analyzed, %d written to %s, %d skipped (%.1f notes/sec)\n",
		summary.Notes, summary.Written, opts.output, summary.Skipped, summary.NotesPerSecond())
	return nil
}

// openSource opens the single note source named by opts
func openSource(ctx context.Context, opts *analyzeOptions) (notes.Source, func(), error) {
	set := 0
	for _, s := range []string{opts.notesDir, opts.notesCSV, opts.databaseURL} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return nil, nil, errors.New("exactly one of --notes-dir, --notes-csv or --database-url is required")
	}

	switch {
	case opts.notesDir != "":
		info, err := os.Stat(opts.notesDir)
		if err != nil {
			return nil, nil, fmt.Errorf("notes directory: %w", err)
		}
		if !info.IsDir() {
			return nil, nil, fmt.Errorf("notes directory: %s is not a directory", opts.notesDir)
		}
		logging.Info("Reading notes from directory", "dir", opts.notesDir, "limit", opts.limit)
		return notes.NewFileSource(opts.notesDir, opts.limit), func() {}, nil

	case opts.notesCSV != "":
		src := notes.NewCSVSource(opts.notesCSV, opts.limit)
		src.Category = notes.DischargeSummaryCategory
		logging.Info("Reading notes from CSV", "path", opts.notesCSV, "limit", opts.limit)
		return src, func() {}, nil

	default:
		pool, err := notes.NewPool(ctx, opts.databaseURL, int32(max(opts.workers, 4)))
		if err != nil {
			return nil, nil, err
		}
		logging.Info("Reading notes from database", "limit", opts.limit)
		return notes.NewPostgresSource(pool, opts.limit), pool.Close, nil
	}
}

// parseDelimiter accepts a single character; "\t" and "tab" mean a tab
func parseDelimiter(s string) (rune, error) {
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, nil
}
