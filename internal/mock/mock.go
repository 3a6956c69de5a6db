// Package mock generates a plausible working calendar for demos and as the
// fallback when no real source is reachable.
package mock

import (
	"context"
	"fmt"
	"time"

	"meetlens/internal/model"
)

// Generator produces a fixed weekly pattern: a daily stand-up, a Tuesday
// direction meeting and a client training on the first Thursday of the
// month. Times are wall-clock in Location.
type Generator struct {
	Location *time.Location
	now      func() time.Time
}

func New(loc *time.Location) *Generator {
	if loc == nil {
		loc = time.Local
	}
	return &Generator{Location: loc, now: time.Now}
}

func (g *Generator) Name() string { return "mock" }

// FetchMeetings implements the meeting source interface; it never fails.
func (g *Generator) FetchMeetings(_ context.Context, start, end time.Time) ([]model.Meeting, error) {
	return g.Generate(start, end), nil
}

type template struct {
	subject  string
	startH   int
	startM   int
	endH     int
	endM     int
	location string
	body     string
}

var (
	standUp = template{
		subject: "Stand-up quotidien", startH: 9, endH: 9, endM: 30,
		location: "Teams", body: "Réunion optionnelle - stand-up quotidien",
	}
	direction = template{
		subject: "Réunion de direction obligatoire", startH: 14, endH: 15, endM: 30,
		location: "Salle de réunion A", body: "Présence obligatoire pour tous les managers",
	}
	training = template{
		subject: "Formation client - Déplacement", startH: 10, endH: 16,
		location: "Chez le client", body: "Formation sur site, prévoir le déplacement",
	}
)

// Generate returns the meetings of every day from start's date through
// end's date, in chronological order.
func (g *Generator) Generate(start, end time.Time) []model.Meeting {
	loc := g.Location
	stamp := g.now().UnixMilli()

	var out []model.Meeting
	day := time.Date(start.In(loc).Year(), start.In(loc).Month(), start.In(loc).Day(), 0, 0, 0, 0, loc)
	last := end.In(loc)
	for n := 0; !day.After(last); day = day.AddDate(0, 0, 1) {
		wd := day.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		add := func(t template) {
			out = append(out, t.meeting(fmt.Sprintf("mock-%d-%d", stamp, n), day))
			n++
		}
		add(standUp)
		if wd == time.Tuesday {
			add(direction)
		}
		if wd == time.Thursday && day.Day() <= 7 {
			add(training)
		}
	}
	return out
}

func (t template) meeting(id string, day time.Time) model.Meeting {
	y, mo, d := day.Date()
	s := time.Date(y, mo, d, t.startH, t.startM, 0, 0, day.Location())
	e := time.Date(y, mo, d, t.endH, t.endM, 0, 0, day.Location())
	return model.Meeting{
		ID:        id,
		Subject:   t.subject,
		Start:     s,
		End:       e,
		Duration:  model.DurationMinutes(s, e),
		Location:  t.location,
		Organizer: "organisateur@example.com",
		Body:      t.body,
	}
}
