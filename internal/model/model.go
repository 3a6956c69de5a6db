package model

import (
	"errors"
	"math"
	"time"
)

// Meeting is a single normalized calendar item as produced by an ingestion
// source (Outlook REST, ICS feed or the mock generator). Timestamps are
// already parsed and Duration is already derived.
type Meeting struct {
	ID       string    `json:"id"`
	Subject  string    `json:"subject"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration int       `json:"duration"` // minutes

	Location  string   `json:"location,omitempty"`
	Organizer string   `json:"organizer,omitempty"`
	Attendees []string `json:"attendees,omitempty"`
	Body      string   `json:"body,omitempty"`
	IsAllDay  bool     `json:"is_all_day,omitempty"`

	// Recurrence is carried through the pipeline untouched.
	Recurrence *Recurrence `json:"recurrence,omitempty"`
}

// Recurrence describes how a meeting repeats.
type Recurrence struct {
	Pattern     RecurrencePattern `json:"pattern"`
	Interval    int               `json:"interval"`
	EndDate     *time.Time        `json:"end_date,omitempty"`
	Occurrences int               `json:"occurrences,omitempty"`
}

type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
	RecurrenceYearly  RecurrencePattern = "yearly"
)

// NoSubject replaces an empty subject at ingestion.
const NoSubject = "Sans objet"

// DurationMinutes returns the meeting length in whole minutes, rounded to
// the nearest minute.
func DurationMinutes(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Minutes()))
}

// Validate checks the invariants every source must uphold.
func (m *Meeting) Validate() error {
	if m.ID == "" {
		return errors.New("meeting ID must not be empty")
	}
	if m.Start.IsZero() || m.End.IsZero() {
		return errors.New("meeting start and end must be set")
	}
	if m.End.Before(m.Start) {
		return errors.New("meeting end must not be before start")
	}
	if m.Duration != DurationMinutes(m.Start, m.End) {
		return errors.New("meeting duration must match end - start")
	}
	if m.Recurrence != nil && m.Recurrence.Interval < 0 {
		return errors.New("recurrence interval must not be negative")
	}
	return nil
}

// Clone returns a copy that shares no slices or pointers with m.
func (m Meeting) Clone() Meeting {
	out := m
	if m.Attendees != nil {
		out.Attendees = append([]string(nil), m.Attendees...)
	}
	if m.Recurrence != nil {
		r := *m.Recurrence
		if r.EndDate != nil {
			end := *r.EndDate
			r.EndDate = &end
		}
		out.Recurrence = &r
	}
	return out
}

// ClassifiedMeeting is a Meeting with the color category assigned by the
// classifier and a human-readable reason.
type ClassifiedMeeting struct {
	Meeting
	Color                Color  `json:"color"`
	ClassificationReason string `json:"classification_reason"`
}
