package jobs

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper is implemented by in-process state that needs periodic pruning.
type Sweeper interface {
	Sweep(now time.Time) int
}

type Scheduler struct {
	cron     *cron.Cron
	sweepers map[string]Sweeper
	log      zerolog.Logger
	now      func() time.Time
}

func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		sweepers: make(map[string]Sweeper),
		log:      log,
		now:      time.Now,
	}
}

// AddSweeper registers s to run on spec (cron syntax with seconds).
func (s *Scheduler) AddSweeper(name string, spec string, sweeper Sweeper) error {
	if _, err := s.cron.AddFunc(spec, func() { s.runSweep(name) }); err != nil {
		return err
	}
	s.sweepers[name] = sweeper
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits up to five seconds for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runSweep(name string) {
	sweeper, ok := s.sweepers[name]
	if !ok {
		return
	}
	removed := sweeper.Sweep(s.now())
	s.log.Debug().
		Str("job", name).
		Int("removed", removed).
		Msg("sweep finished")
}
