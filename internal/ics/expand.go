package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "meetlens/internal/log"
	"meetlens/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is applied to every produced meeting (time.Local when nil).
	DisplayLocation *time.Location

	// Inclusive window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules (5000 when zero).
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the meetings of a window and the UIDs whose expansion
// hit the cap.
type ExpandResult struct {
	Meetings        []model.Meeting
	TruncatedEvents []string
}

// ExpandMeetings turns parsed events into concrete meetings within the
// configured window. Single events, RRULE series, EXDATE exclusions and
// RECURRENCE-ID overrides are handled. Meetings are sorted by start.
func ExpandMeetings(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	var order []string

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	meetings := make([]model.Meeting, 0)
	for _, uid := range order {
		truncated := false
		for _, ev := range baseByUID[uid] {
			out, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			meetings = append(meetings, out...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: occurrences truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	sort.SliceStable(meetings, func(i, j int) bool { return meetings[i].Start.Before(meetings[j].Start) })
	result.Meetings = meetings
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Meeting, bool) {
	if ev.RawRRule == "" {
		if !overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		return []model.Meeting{toMeeting(ev, ev.UID, ev.Start, ev.End, nil, cfg.DisplayLocation)}, false
	}
	return expandRecurring(ev, overrides, cfg)
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Meeting, bool) {
	opt, err := rrule.StrToROption(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("expand: invalid RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	dur := ev.End.Sub(ev.Start)
	// Widen the lower bound by one duration so an occurrence already in
	// progress at RangeStart is kept.
	starts := set.Between(cfg.RangeStart.Add(-dur).In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	rec := recurrenceOf(opt)
	out := make([]model.Meeting, 0, len(starts))
	for _, start := range starts {
		end := start.Add(dur)
		if ev.AllDay {
			start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
			end = start.AddDate(0, 0, max(1, int(dur.Hours()/24)))
		}
		if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}

		// Series instances get a per-start ID so IDs stay unique in a batch.
		id := ev.UID + "@" + start.UTC().Format("20060102T150405Z")
		instance := ev
		if o, ok := findOverride(overrides, start); ok {
			instance = o
			start, end = o.Start, o.End
		}
		out = append(out, toMeeting(instance, id, start, end, rec, cfg.DisplayLocation))
	}
	return out, hitCap
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func recurrenceOf(opt *rrule.ROption) *model.Recurrence {
	rec := &model.Recurrence{Interval: max(opt.Interval, 1), Occurrences: opt.Count}
	switch opt.Freq {
	case rrule.DAILY:
		rec.Pattern = model.RecurrenceDaily
	case rrule.WEEKLY:
		rec.Pattern = model.RecurrenceWeekly
	case rrule.MONTHLY:
		rec.Pattern = model.RecurrenceMonthly
	case rrule.YEARLY:
		rec.Pattern = model.RecurrenceYearly
	default:
		// Sub-daily frequencies have no descriptor.
		return nil
	}
	if !opt.Until.IsZero() {
		until := opt.Until
		rec.EndDate = &until
	}
	return rec
}

func toMeeting(ev ParsedEvent, id string, start, end time.Time, rec *model.Recurrence, loc *time.Location) model.Meeting {
	subject := ev.Summary
	if subject == "" {
		subject = model.NoSubject
	}
	m := model.Meeting{
		ID:        id,
		Subject:   subject,
		Start:     start.In(loc),
		End:       end.In(loc),
		Duration:  model.DurationMinutes(start, end),
		Location:  ev.Location,
		Organizer: ev.Organizer,
		Body:      ev.Description,
		IsAllDay:  ev.AllDay,
	}
	if len(ev.Attendees) > 0 {
		m.Attendees = append([]string(nil), ev.Attendees...)
	}
	if rec != nil {
		r := *rec
		m.Recurrence = &r
	}
	return m
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
