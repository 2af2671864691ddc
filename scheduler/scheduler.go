// Package scheduler loads the drug lexicon at startup and reloads it on a fixed
// interval, so edits to the drug lists reach a running server without a restart.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/giygas/finddrugs/analyzer"
	"github.com/giygas/finddrugs/interfaces"
	"github.com/giygas/finddrugs/logging"
	"github.com/giygas/finddrugs/validation"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// reloadTimeout bounds one lexicon load
const reloadTimeout = time.Minute

// Scheduler handles lexicon reloads and staleness monitoring using dependency injection
type Scheduler struct {
	store        interfaces.LexiconStore
	loader       interfaces.LexiconLoader
	validator    interfaces.DataValidator
	scheduler    *gocron.Scheduler
	interval     time.Duration
	analyzerOpts []analyzer.Option

	stopOnce sync.Once
	stop     chan struct{}
}

// NewScheduler creates a scheduler that reloads every interval. A zero interval
// only performs the initial load.
func NewScheduler(store interfaces.LexiconStore, loader interfaces.LexiconLoader, interval time.Duration, opts ...analyzer.Option) *Scheduler {
	return &Scheduler{
		store:        store,
		loader:       loader,
		validator:    validation.NewDataValidator(),
		scheduler:    gocron.NewScheduler(time.Local),
		interval:     interval,
		analyzerOpts: opts,
		stop:         make(chan struct{}),
	}
}

// Start performs the initial load, then schedules reloads and the staleness monitor
func (s *Scheduler) Start() error {
	if err := s.reload(); err != nil {
		logging.Error("Failed to perform initial lexicon load", "error", err)
		return fmt.Errorf("initial lexicon load failed: %w", err)
	}

	if s.interval <= 0 {
		logging.Info("Lexicon reload disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(func() {
		if err := s.reload(); err != nil {
			// Keep serving the previous lexicon
			logging.Error("Failed to reload lexicon", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule lexicon reloads", "error", err)
		return fmt.Errorf("failed to schedule lexicon reloads: %w", err)
	}

	s.scheduler.StartAsync()

	s.startStalenessMonitoring()

	return nil
}

// Stop stops scheduled reloads and the monitor
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.stopOnce.Do(func() { close(s.stop) })
}

// Interval returns the reload interval
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// reload loads a fresh lexicon and installs it with its analyzer
func (s *Scheduler) reload() error {
	// Prevent concurrent reloads
	if !s.store.BeginUpdate() {
		logging.Info("Lexicon reload already in progress, skipping...")
		return nil
	}
	defer s.store.EndUpdate()

	start := time.Now()
	logging.Info("Starting lexicon load", "at", start.Format(time.RFC3339))

	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()

	lex, err := s.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load lexicon: %w", err)
	}

	report := s.validator.ReportLexiconQuality(lex)
	validation.LogQualityReport(report)

	s.store.UpdateLexicon(lex, analyzer.New(lex, s.analyzerOpts...), report)

	logging.Info("Lexicon load completed",
		"duration", time.Since(start).String(),
		"classes", report.Classes,
		"generics", lex.Len(),
	)

	return nil
}

// startStalenessMonitoring warns when reloads have stopped succeeding
func (s *Scheduler) startStalenessMonitoring() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if s.isStale(time.Now()) {
					logging.Warn("Lexicon hasn't been reloaded in over two intervals",
						"last_update", s.store.GetLastUpdated().Format(time.RFC3339))
				}
			}
		}
	}()
}

func (s *Scheduler) isStale(now time.Time) bool {
	return now.Sub(s.store.GetLastUpdated()) > 2*s.interval
}
