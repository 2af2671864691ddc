package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/giygas/finddrugs/analyzer"
	"github.com/giygas/finddrugs/data"
	"github.com/giygas/finddrugs/handlers"
	"github.com/giygas/finddrugs/health"
	"github.com/giygas/finddrugs/lexicon"
	"github.com/giygas/finddrugs/logging"
	"github.com/giygas/finddrugs/metrics"
	"github.com/giygas/finddrugs/scheduler"
	"github.com/giygas/finddrugs/server"
	"github.com/giygas/finddrugs/validation"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve note analysis over HTTP",
		Long: `Serve loads the drug lists, reloads them on RELOAD_SCHEDULE and answers
POST /v1/analyze, POST /v1/analyze/batch, GET /v1/lexicon, GET /health and GET /metrics.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	files, err := lexicon.ParseClassFiles(cfg.DrugLists)
	if err != nil {
		return err
	}

	store := data.NewLexiconContainer()
	store.SetServerStartTime(time.Now())

	sched := scheduler.NewScheduler(store, lexicon.NewFileLoader(files), cfg.ReloadInterval,
		analyzer.WithDiagnostics(logAmbiguousLine))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to load drug lists: %w", err)
	}
	defer sched.Stop()

	validator := validation.NewDataValidator()
	healthChecker := health.NewHealthChecker(store, cfg.ReloadInterval)
	httpHandler := handlers.NewHTTPHandler(store, validator, healthChecker)
	srv := server.NewServer(cfg, httpHandler)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logging.Info("Received signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}

// logAmbiguousLine reports medication lines found outside any section of an API note
func logAmbiguousLine(d analyzer.Diagnostic) {
	metrics.AmbiguousLinesTotal.Inc()
	logging.Debug("Medication line outside any tracked section",
		"row_id", d.RowID,
		"subject_id", d.SubjectID,
		"line_number", d.LineNumber,
		"line", d.Line,
	)
}
