// Package meetings selects a meeting source for a window, caches the result
// and falls back to generated meetings when no source answers.
package meetings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meetlens/internal/cache"
	appLog "meetlens/internal/log"
	"meetlens/internal/model"
)

// Source is anything that can list the meetings of a window.
type Source interface {
	Name() string
	FetchMeetings(ctx context.Context, start, end time.Time) ([]model.Meeting, error)
}

// Cache is the subset of cache.Store the service needs.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Options tune a single GetMeetings call.
type Options struct {
	UseMock  bool
	UseCache bool
}

// DefaultOptions reads through the cache and uses real sources.
var DefaultOptions = Options{UseCache: true}

const cachePrefix = "meetings"

// Result is the answer to one Fetch: the meetings and the source that
// produced them.
type Result struct {
	Meetings []model.Meeting `json:"meetings"`
	Source   string          `json:"source"`
	// Fallback is set when the meetings are generated rather than read
	// from a calendar.
	Fallback bool `json:"fallback"`
	Cached   bool `json:"-"`
}

// Service fans a request out to the configured sources in order.
type Service struct {
	sources  []Source
	fallback Source
	cache    Cache
	ttl      time.Duration
}

// NewService builds a service. c may be nil to disable caching; fallback is
// used when UseMock is set, when no source is configured, or when every
// source fails.
func NewService(sources []Source, fallback Source, c Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &Service{sources: sources, fallback: fallback, cache: c, ttl: ttl}
}

// Sources returns the names of the configured real sources.
func (s *Service) Sources() []string {
	names := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		names = append(names, src.Name())
	}
	return names
}

// GetMeetings returns the meetings of [start, end]. See Fetch.
func (s *Service) GetMeetings(ctx context.Context, start, end time.Time, opts Options) ([]model.Meeting, error) {
	res, err := s.Fetch(ctx, start, end, opts)
	if err != nil {
		return nil, err
	}
	return res.Meetings, nil
}

// Fetch returns the meetings of [start, end] and where they came from. A
// source failure is logged and answered with fallback data; it is an error
// only when no fallback is configured.
func (s *Service) Fetch(ctx context.Context, start, end time.Time, opts Options) (Result, error) {
	if end.Before(start) {
		return Result{}, fmt.Errorf("meetings: end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if opts.UseMock {
		return s.fromFallback(ctx, start, end)
	}

	key := cache.GenerateKey(cachePrefix, start, end)
	if opts.UseCache && s.cache != nil {
		var cached Result
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			appLog.Warn("meetings cache read failed", "key", key, "cause", err)
		} else if hit {
			appLog.Debug("meetings cache hit", "key", key, "count", len(cached.Meetings))
			cached.Cached = true
			return cached, nil
		}
	}

	res, err := s.fromSources(ctx, start, end)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		appLog.Warn("meeting sources unavailable, using generated meetings", "cause", err)
		return s.fromFallback(ctx, start, end)
	}

	if opts.UseCache && s.cache != nil {
		if err := s.cache.Set(ctx, key, res, s.ttl); err != nil {
			appLog.Warn("meetings cache write failed", "key", key, "cause", err)
		}
	}
	return res, nil
}

var errNoSources = errors.New("no meeting source configured")

// fromSources returns the first successful source's meetings.
func (s *Service) fromSources(ctx context.Context, start, end time.Time) (Result, error) {
	if len(s.sources) == 0 {
		return Result{}, errNoSources
	}
	var errs []error
	for _, src := range s.sources {
		meetings, err := src.FetchMeetings(ctx, start, end)
		if err != nil {
			appLog.Warn("meeting source failed", "source", src.Name(), "cause", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		appLog.Info("meetings fetched", "source", src.Name(), "count", len(meetings))
		if meetings == nil {
			meetings = []model.Meeting{}
		}
		return Result{Meetings: meetings, Source: src.Name()}, nil
	}
	return Result{}, errors.Join(errs...)
}

func (s *Service) fromFallback(ctx context.Context, start, end time.Time) (Result, error) {
	if s.fallback == nil {
		return Result{}, errors.New("meetings: no fallback source configured")
	}
	meetings, err := s.fallback.FetchMeetings(ctx, start, end)
	if err != nil {
		return Result{}, err
	}
	return Result{Meetings: meetings, Source: s.fallback.Name(), Fallback: true}, nil
}
