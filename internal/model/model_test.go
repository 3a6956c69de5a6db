package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMeetingValidate(t *testing.T) {
	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)

	tests := []struct {
		name    string
		meeting Meeting
		wantErr bool
	}{
		{
			name:    "valid meeting",
			meeting: Meeting{ID: "m-1", Subject: "Point", Start: start, End: end, Duration: 45},
			wantErr: false,
		},
		{
			name:    "empty ID",
			meeting: Meeting{Subject: "Point", Start: start, End: end, Duration: 45},
			wantErr: true,
		},
		{
			name:    "end before start",
			meeting: Meeting{ID: "m-1", Start: end, End: start, Duration: -45},
			wantErr: true,
		},
		{
			name:    "duration mismatch",
			meeting: Meeting{ID: "m-1", Start: start, End: end, Duration: 60},
			wantErr: true,
		},
		{
			name: "negative recurrence interval",
			meeting: Meeting{ID: "m-1", Start: start, End: end, Duration: 45,
				Recurrence: &Recurrence{Pattern: RecurrenceWeekly, Interval: -1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meeting.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Meeting.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationMinutesRounds(t *testing.T) {
	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	if got := DurationMinutes(start, start.Add(29*time.Minute+31*time.Second)); got != 30 {
		t.Errorf("DurationMinutes = %d, want 30", got)
	}
	if got := DurationMinutes(start, start.Add(29*time.Minute+29*time.Second)); got != 29 {
		t.Errorf("DurationMinutes = %d, want 29", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	m := Meeting{
		ID:         "m-1",
		Attendees:  []string{"a@example.com"},
		Recurrence: &Recurrence{Pattern: RecurrenceWeekly, Interval: 1, EndDate: &end},
	}
	c := m.Clone()
	c.Attendees[0] = "b@example.com"
	c.Recurrence.Interval = 2
	*c.Recurrence.EndDate = end.AddDate(1, 0, 0)

	if m.Attendees[0] != "a@example.com" {
		t.Errorf("attendees shared with clone")
	}
	if m.Recurrence.Interval != 1 || !m.Recurrence.EndDate.Equal(end) {
		t.Errorf("recurrence shared with clone")
	}
}

func TestColorText(t *testing.T) {
	for _, c := range Colors {
		parsed, err := ParseColor(c.String())
		if err != nil {
			t.Fatalf("ParseColor(%q): %v", c.String(), err)
		}
		if parsed != c {
			t.Errorf("ParseColor(%q) = %v, want %v", c.String(), parsed, c)
		}
	}
	if _, err := ParseColor("purple"); err == nil {
		t.Error("expected error for unknown color")
	}
	if Color(42).String() != "gray" {
		t.Errorf("out-of-range color should render as gray, got %s", Color(42))
	}
}

func TestClassifiedMeetingJSON(t *testing.T) {
	cm := ClassifiedMeeting{
		Meeting:              Meeting{ID: "m-1", Subject: "Formation client"},
		Color:                ColorBlue,
		ClassificationReason: "Déplacement/Formation",
	}
	data, err := json.Marshal(cm)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["color"] != "blue" {
		t.Errorf("color = %v, want blue", decoded["color"])
	}
	if decoded["subject"] != "Formation client" {
		t.Errorf("embedded meeting fields should be flattened, got %v", decoded)
	}
}

func TestColorBreakdownAddRoutesUnknownToDefault(t *testing.T) {
	var b ColorBreakdown
	b.Add(ColorRed, 2)
	b.Add(Color(99), 3)
	if b.Red != 2 || b.Default != 3 || b.Sum() != 5 {
		t.Errorf("unexpected breakdown %+v", b)
	}
}
