package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"meetlens/internal/model"
)

// Format is a download format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatICS  Format = "ics"
)

const baseName = "meetings-analytics"

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatICS:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) Filename() string {
	return baseName + "." + string(f)
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatICS:
		return "text/calendar; charset=utf-8"
	}
	return "application/octet-stream"
}

// Write encodes meetings in format f.
func Write(w io.Writer, f Format, meetings []model.ClassifiedMeeting) error {
	switch f {
	case FormatCSV:
		return CSV(w, meetings)
	case FormatJSON:
		return JSON(w, meetings)
	case FormatICS:
		return ICS(w, meetings)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

var csvHeader = []string{"Sujet", "Date début", "Date fin", "Durée (min)", "Couleur", "Classification", "Lieu"}

// CSV writes one row per meeting with RFC 3339 UTC timestamps.
func CSV(w io.Writer, meetings []model.ClassifiedMeeting) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, m := range meetings {
		row := []string{
			m.Subject,
			m.Start.UTC().Format(time.RFC3339),
			m.End.UTC().Format(time.RFC3339),
			strconv.Itoa(m.Duration),
			m.Color.String(),
			m.ClassificationReason,
			m.Location,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv row %s: %w", m.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSON writes meetings as an indented array.
func JSON(w io.Writer, meetings []model.ClassifiedMeeting) error {
	if meetings == nil {
		meetings = []model.ClassifiedMeeting{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(meetings)
}

const prodID = "-//meetlens//Meeting Analytics//FR"

// ICS writes meetings as a VCALENDAR. The color goes to CATEGORIES and the
// classification reason to COMMENT.
func ICS(w io.Writer, meetings []model.ClassifiedMeeting) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)

	stamp := time.Now().UTC()
	for _, m := range meetings {
		ev := ical.NewEvent()
		ev.Props.SetText(ical.PropUID, m.ID)
		ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		if m.IsAllDay {
			ev.Props.SetDate(ical.PropDateTimeStart, m.Start)
			ev.Props.SetDate(ical.PropDateTimeEnd, m.End)
		} else {
			ev.Props.SetDateTime(ical.PropDateTimeStart, m.Start.UTC())
			ev.Props.SetDateTime(ical.PropDateTimeEnd, m.End.UTC())
		}
		ev.Props.SetText(ical.PropSummary, m.Subject)
		if m.Location != "" {
			ev.Props.SetText(ical.PropLocation, m.Location)
		}
		if m.Body != "" {
			ev.Props.SetText(ical.PropDescription, m.Body)
		}
		if m.Organizer != "" {
			ev.Props.Set(mailtoProp(ical.PropOrganizer, m.Organizer))
		}
		for _, a := range m.Attendees {
			ev.Props.Add(mailtoProp(ical.PropAttendee, a))
		}
		ev.Props.SetText(ical.PropCategories, m.Color.String())
		ev.Props.SetText(ical.PropComment, m.ClassificationReason)
		cal.Children = append(cal.Children, ev.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode ics: %w", err)
	}
	return nil
}

func mailtoProp(name, address string) *ical.Prop {
	p := ical.NewProp(name)
	if strings.Contains(address, "@") && !strings.HasPrefix(strings.ToLower(address), "mailto:") {
		address = "mailto:" + address
	}
	p.SetValueType(ical.ValueCalendarAddress)
	p.Value = address
	return p
}
