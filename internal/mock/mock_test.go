package mock

import (
	"context"
	"testing"
	"time"

	"meetlens/internal/classify"
	"meetlens/internal/model"
)

func TestGenerateWeek(t *testing.T) {
	g := New(time.UTC)
	// 2024-03-04 is a Monday; 2024-03-07 is the first Thursday of March.
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)

	meetings := g.Generate(start, end)
	// 5 stand-ups + 1 direction + 1 training.
	if len(meetings) != 7 {
		t.Fatalf("got %d meetings, want 7", len(meetings))
	}

	ids := map[string]bool{}
	bySubject := map[string]int{}
	for _, m := range meetings {
		if err := m.Validate(); err != nil {
			t.Errorf("%s: %v", m.ID, err)
		}
		if ids[m.ID] {
			t.Errorf("duplicate ID %s", m.ID)
		}
		ids[m.ID] = true
		bySubject[m.Subject]++
		if wd := m.Start.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Errorf("weekend meeting %v", m.Start)
		}
	}
	if bySubject["Stand-up quotidien"] != 5 || bySubject["Réunion de direction obligatoire"] != 1 || bySubject["Formation client - Déplacement"] != 1 {
		t.Errorf("subjects = %v", bySubject)
	}
}

func TestGenerateTrainingOnlyFirstThursday(t *testing.T) {
	g := New(time.UTC)
	start := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	for _, m := range g.Generate(start, end) {
		if m.Subject == training.subject {
			t.Errorf("unexpected training on %v", m.Start)
		}
	}
}

func TestGenerateDurations(t *testing.T) {
	g := New(time.UTC)
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC) // Tuesday
	want := map[string]int{
		"Stand-up quotidien":               30,
		"Réunion de direction obligatoire": 90,
	}
	for _, m := range g.Generate(day, day) {
		if m.Duration != want[m.Subject] {
			t.Errorf("%s duration = %d, want %d", m.Subject, m.Duration, want[m.Subject])
		}
	}
}

func TestMockMeetingsClassifyAcrossColors(t *testing.T) {
	g := New(time.UTC)
	meetings, err := g.FetchMeetings(context.Background(),
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]model.Color{}
	for _, cm := range classify.New().ClassifyAll(meetings) {
		got[cm.Subject] = cm.Color
	}
	want := map[string]model.Color{
		"Stand-up quotidien":               model.ColorGreen,
		"Réunion de direction obligatoire": model.ColorRed,
		"Formation client - Déplacement":   model.ColorBlue,
	}
	for subject, c := range want {
		if got[subject] != c {
			t.Errorf("%s classified %v, want %v", subject, got[subject], c)
		}
	}
}

func TestGenerateEmptyRange(t *testing.T) {
	g := New(time.UTC)
	start := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC) // Saturday
	if got := g.Generate(start, start.Add(24*time.Hour)); len(got) != 0 {
		t.Errorf("weekend produced %d meetings", len(got))
	}
}
