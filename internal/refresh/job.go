// Package refresh runs the fetch, classify and aggregate pipeline on a
// schedule and keeps the latest result for the dashboard and digest.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"meetlens/internal/classify"
	"meetlens/internal/hub"
	appLog "meetlens/internal/log"
	"meetlens/internal/meetings"
	"meetlens/internal/model"
	"meetlens/internal/notify"
	"meetlens/internal/stats"
)

// ErrBusy is returned when a run is requested while one is in progress.
var ErrBusy = errors.New("refresh: already running")

// Snapshot is the result of one pipeline run.
type Snapshot struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	From        time.Time                 `json:"from"`
	To          time.Time                 `json:"to"`
	Source      string                    `json:"source"`
	Mock        bool                      `json:"mock"`
	Meetings    []model.ClassifiedMeeting `json:"meetings"`
	Statistics  model.Statistics          `json:"statistics"`
	Weekly      []stats.WeekBucket        `json:"weekly"`
	Shares      stats.ColorShares         `json:"shares"`
}

type MeetingGetter interface {
	GetMeetings(ctx context.Context, start, end time.Time, opts meetings.Options) ([]model.Meeting, error)
}

// MeetingFetcher also reports which source answered.
type MeetingFetcher interface {
	Fetch(ctx context.Context, start, end time.Time, opts meetings.Options) (meetings.Result, error)
}

type Publisher interface {
	Publish(t hub.MessageType, payload any)
}

type Capturer interface {
	Capture(ctx context.Context) error
}

type Notifier interface {
	SendDigest(ctx context.Context, d notify.Digest) error
}

// Job wires the pipeline together. Publisher, Capturer and Notifier are
// optional.
type Job struct {
	Meetings   MeetingFetcher
	Classifier *classify.Engine
	Stats      *stats.Engine
	Publisher  Publisher
	Capturer   Capturer
	Notifier   Notifier
	Location   *time.Location
	UseMock    bool

	now     func() time.Time
	running atomic.Bool

	mu          sync.RWMutex
	rangeDays   int
	horizonDays int
	latest      *Snapshot
}

func NewJob(getter MeetingFetcher, classifier *classify.Engine, st *stats.Engine, rangeDays, horizonDays int) *Job {
	j := &Job{
		Meetings:   getter,
		Classifier: classifier,
		Stats:      st,
		Location:   time.Local,
		now:        time.Now,
	}
	j.SetWindow(rangeDays, horizonDays)
	return j
}

// SetWindow changes how many days back and ahead the next run covers.
func (j *Job) SetWindow(rangeDays, horizonDays int) {
	if rangeDays < 0 {
		rangeDays = 0
	}
	if horizonDays < 0 {
		horizonDays = 0
	}
	j.mu.Lock()
	j.rangeDays, j.horizonDays = rangeDays, horizonDays
	j.mu.Unlock()
}

// Window returns [start of day rangeDays ago, end of day horizonDays ahead).
func (j *Job) Window() (time.Time, time.Time) {
	j.mu.RLock()
	back, ahead := j.rangeDays, j.horizonDays
	j.mu.RUnlock()

	loc := j.Location
	if loc == nil {
		loc = time.Local
	}
	now := j.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	return today.AddDate(0, 0, -back), today.AddDate(0, 0, ahead+1)
}

// Latest returns the most recent snapshot, or nil before the first run.
func (j *Job) Latest() *Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.latest
}

// Run executes the pipeline once and stores the snapshot.
func (j *Job) Run(ctx context.Context) (*Snapshot, error) {
	if !j.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer j.running.Store(false)

	started := j.now()
	from, to := j.Window()
	res, err := j.Meetings.Fetch(ctx, from, to, meetings.Options{UseMock: j.UseMock, UseCache: true})
	if err != nil {
		j.publish(hub.TypeRefreshFailed, map[string]string{"error": err.Error()})
		return nil, fmt.Errorf("refresh: %w", err)
	}

	classified := j.Classifier.ClassifyAll(res.Meetings)
	report := j.Stats.Calculate(classified)
	snap := &Snapshot{
		GeneratedAt: j.now().UTC(),
		From:        from,
		To:          to,
		Source:      res.Source,
		Mock:        res.Fallback,
		Meetings:    classified,
		Statistics:  report,
		Weekly:      j.Stats.WeeklyBreakdown(classified),
		Shares:      stats.Shares(report),
	}

	j.mu.Lock()
	j.latest = snap
	j.mu.Unlock()

	appLog.Info("refresh complete",
		"meetings", report.Total,
		"source", res.Source,
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly),
		"elapsed", j.now().Sub(started).Round(time.Millisecond).String(),
	)
	j.publish(hub.TypeStatisticsUpdated, map[string]any{
		"generated_at": snap.GeneratedAt,
		"total":        report.Total,
		"by_color":     report.ByColor,
	})

	if j.Capturer != nil {
		if err := j.Capturer.Capture(ctx); err != nil {
			appLog.Error("dashboard capture failed", err)
		}
	}
	return snap, nil
}

// SendDigest sends the latest snapshot, running the pipeline first if
// nothing has been computed yet.
func (j *Job) SendDigest(ctx context.Context) error {
	if j.Notifier == nil {
		return errors.New("refresh: no notifier configured")
	}
	snap := j.Latest()
	if snap == nil {
		var err error
		if snap, err = j.Run(ctx); err != nil {
			return err
		}
	}
	return j.Notifier.SendDigest(ctx, notify.Digest{
		From:   snap.From,
		To:     snap.To,
		Source: sourceLabel(snap),
		Stats:  snap.Statistics,
		Shares: snap.Shares,
	})
}

func sourceLabel(snap *Snapshot) string {
	if snap.Mock {
		return "démo"
	}
	return snap.Source
}

func (j *Job) publish(t hub.MessageType, payload any) {
	if j.Publisher != nil {
		j.Publisher.Publish(t, payload)
	}
}
