package outlook

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetlens/internal/model"
)

// Event is a calendarview item. Field matching in encoding/json is
// case-insensitive, so both REST v2 (PascalCase) and Graph (camelCase)
// payloads decode.
type Event struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	Start       DateTimeZone `json:"start"`
	End         DateTimeZone `json:"end"`
	Location    *Location    `json:"location"`
	Organizer   *Recipient   `json:"organizer"`
	Attendees   []Recipient  `json:"attendees"`
	BodyPreview string       `json:"bodyPreview"`
	Body        *ItemBody    `json:"body"`
	IsAllDay    bool         `json:"isAllDay"`
}

type DateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type Location struct {
	DisplayName string `json:"displayName"`
}

type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

// Time resolves the wall time in its zone. Zones Go cannot load (Windows
// names) are read as UTC, which is what the Prefer header asks for.
func (d DateTimeZone) Time() (time.Time, error) {
	if d.DateTime == "" {
		return time.Time{}, errors.New("empty dateTime")
	}
	loc := time.UTC
	if d.TimeZone != "" {
		if l, err := time.LoadLocation(d.TimeZone); err == nil {
			loc = l
		}
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, d.DateTime, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable dateTime %q", d.DateTime)
}

// Meeting normalizes the event. A missing ID gets a generated one and a
// missing subject becomes model.NoSubject.
func (e Event) Meeting() (model.Meeting, error) {
	start, err := e.Start.Time()
	if err != nil {
		return model.Meeting{}, fmt.Errorf("start: %w", err)
	}
	end, err := e.End.Time()
	if err != nil {
		return model.Meeting{}, fmt.Errorf("end: %w", err)
	}
	if end.Before(start) {
		end = start
	}

	m := model.Meeting{
		ID:       e.ID,
		Subject:  strings.TrimSpace(e.Subject),
		Start:    start,
		End:      end,
		Duration: model.DurationMinutes(start, end),
		Body:     e.BodyPreview,
		IsAllDay: e.IsAllDay,
	}
	if m.ID == "" {
		m.ID = "meeting-" + uuid.NewString()
	}
	if m.Subject == "" {
		m.Subject = model.NoSubject
	}
	if m.Body == "" && e.Body != nil {
		m.Body = e.Body.Content
	}
	if e.Location != nil {
		m.Location = e.Location.DisplayName
	}
	if e.Organizer != nil {
		m.Organizer = e.Organizer.EmailAddress.Address
	}
	for _, a := range e.Attendees {
		v := a.EmailAddress.Address
		if v == "" {
			v = a.EmailAddress.Name
		}
		if v != "" {
			m.Attendees = append(m.Attendees, v)
		}
	}
	return m, nil
}
