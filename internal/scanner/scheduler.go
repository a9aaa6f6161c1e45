package scanner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs sweeps on a cron schedule through a Runner.
type Scheduler struct {
	spec   string
	cron   *cron.Cron
	runner *Runner
	logger *slog.Logger
}

// NewScheduler validates spec ("@hourly", "*/30 * * * *", ...) and returns
// an idle scheduler.
func NewScheduler(spec string, runner *Runner, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid SCAN_SCHEDULE %q: %w", spec, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		spec:   spec,
		cron:   cron.New(),
		runner: runner,
		logger: logger,
	}, nil
}

// Add registers a job to run on every tick.
func (s *Scheduler) Add(name string, fn func(context.Context) error) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		_ = s.runner.RunNow(context.Background(), name, fn)
	})
	return err
}

// Jobs reports the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start begins ticking in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scan schedule started", slog.String("spec", s.spec), slog.Int("jobs", s.Jobs()))
}

// Stop halts ticking and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scan schedule stopped")
}
