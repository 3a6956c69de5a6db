package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "meetlens/internal/log"
)

// Scheduler triggers the job's refresh and digest on cron specs.
type Scheduler struct {
	cron      *cron.Cron
	job       *Job
	refreshID cron.EntryID
}

// jobTimeout bounds one scheduled run.
const jobTimeout = 2 * time.Minute

// NewScheduler registers Run on refreshSpec and, when digestSpec is not
// empty and the job has a notifier, SendDigest on digestSpec. Specs use the
// standard five-field cron syntax.
func NewScheduler(job *Job, refreshSpec, digestSpec string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{cron: cron.New(cron.WithLocation(loc)), job: job}

	id, err := s.cron.AddFunc(refreshSpec, s.refresh)
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", refreshSpec, err)
	}
	s.refreshID = id
	if digestSpec != "" && job.Notifier != nil {
		if _, err := s.cron.AddFunc(digestSpec, s.digest); err != nil {
			return nil, fmt.Errorf("digest schedule %q: %w", digestSpec, err)
		}
	}
	return s, nil
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.job.Run(ctx); err != nil {
		if errors.Is(err, ErrBusy) {
			appLog.Debug("scheduled refresh skipped, previous run still active")
			return
		}
		appLog.Error("scheduled refresh failed", err)
	}
}

func (s *Scheduler) digest() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := s.job.SendDigest(ctx); err != nil {
		appLog.Error("scheduled digest failed", err)
	}
}

// Start runs one refresh immediately in the background, then follows the
// schedule.
func (s *Scheduler) Start() {
	appLog.Info("scheduler starting", "jobs", len(s.cron.Entries()))
	go s.refresh()
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	appLog.Info("scheduler stopped")
}

// Next returns when the refresh job fires next; zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.refreshID).Next
}
