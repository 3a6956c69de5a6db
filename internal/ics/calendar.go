package ics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	appLog "meetlens/internal/log"
	"meetlens/internal/model"
)

// Calendar serves meetings from a set of ICS subscriptions.
type Calendar struct {
	fetcher *Fetcher
	sources []Source
	loc     *time.Location
}

func NewCalendar(fetcher *Fetcher, sources []Source, loc *time.Location) *Calendar {
	return &Calendar{fetcher: fetcher, sources: sources, loc: loc}
}

func (c *Calendar) Name() string { return "ics" }

// FetchMeetings fetches, parses and expands every source for [start, end].
// A meeting present in several feeds is returned once. The call fails only
// when no source produced a calendar.
func (c *Calendar) FetchMeetings(ctx context.Context, start, end time.Time) ([]model.Meeting, error) {
	if len(c.sources) == 0 {
		return nil, errors.New("ics: no sources configured")
	}

	results, errs := c.fetcher.FetchAll(ctx, c.sources)

	var events []ParsedEvent
	parsed := 0
	for _, res := range results {
		evs, err := ParseICS(res.Source, res.Body)
		if err != nil {
			errs = append(errs, err)
			appLog.Error("ics parse failed", err, "id", res.Source.ID)
			continue
		}
		parsed++
		events = append(events, evs...)
	}
	if parsed == 0 {
		return nil, fmt.Errorf("ics: no usable source: %w", errors.Join(errs...))
	}

	expanded, err := ExpandMeetings(events, ExpandConfig{
		DisplayLocation: c.loc,
		RangeStart:      start,
		RangeEnd:        end,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(expanded.Meetings))
	out := make([]model.Meeting, 0, len(expanded.Meetings))
	for _, m := range expanded.Meetings {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })

	appLog.Info("ics meetings loaded", "sources", parsed, "meetings", len(out), "truncated", len(expanded.TruncatedEvents))
	return out, nil
}
