// Command finddrugs extracts drug-exposure groups from clinical discharge notes.
// It analyzes note batches into a CSV report or serves the analysis over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giygas/finddrugs/config"
	"github.com/giygas/finddrugs/lexicon"
	"github.com/giygas/finddrugs/logging"
)

var version = "dev"

// Persistent flags shared by every command
var (
	envFile   string
	drugLists string
	logLevel  string
	verbose   bool
)

// cfg is loaded once before any command runs
var cfg *config.Config

func main() {
	err := newRootCmd().Execute()
	if closeErr := logging.Close(); closeErr != nil {
		fmt.Fprintln(os.Stderr, "failed to close log file:", closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "finddrugs",
		Short: "Find antidepressant exposure in discharge notes",
		Long: `finddrugs reads clinical discharge notes, tracks the history, admission and
discharge sections of each note and classifies the patient into an exposure group
from the drug lists it is given.

Examples:
  # Analyze a directory of NOTE-EVENTS files
  finddrugs analyze --notes-dir notes/ --output output.csv

  # Analyze discharge summaries straight from a MIMIC database
  finddrugs analyze --database-url postgres://mimic@localhost/mimic --limit 1000

  # Serve the analysis over HTTP
  finddrugs serve`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "file with environment variables, ignored when missing")
	flags.StringVar(&drugLists, "drug-lists", "", "drug lists as CLASS=path[,CLASS=path?] (overrides DRUG_LISTS)")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log ambiguous medication lines at info level")

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newLexiconCmd())

	return root
}

// setup loads the configuration, applies flag overrides and starts logging
func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	loaded, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("drug-lists") {
		loaded.DrugLists = drugLists
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = logLevel
	}
	if flags.Changed("verbose") {
		loaded.Verbose = verbose
	}
	cfg = loaded

	logging.InitLogger(logging.Options{
		Dir:            cfg.LogDir,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
		ConsoleLevel:   logging.ParseLevel(cfg.LogLevel),
		FileLevel:      logging.ParseLevel(cfg.LogLevel),
	})

	return nil
}

// loadLexicon loads the configured drug lists
func loadLexicon() (*lexicon.Lexicon, []lexicon.ClassFile, error) {
	files, err := lexicon.ParseClassFiles(cfg.DrugLists)
	if err != nil {
		return nil, nil, err
	}

	lex, err := lexicon.Load(files)
	if err != nil {
		return nil, nil, err
	}

	return lex, files, nil
}
