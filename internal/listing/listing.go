package listing

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"meetlens/internal/model"
)

// Filter selects which colored meetings are shown. Meetings in the default
// color are never filtered out.
type Filter struct {
	Red   bool
	Green bool
	Blue  bool
}

// AllColors shows every meeting.
var AllColors = Filter{Red: true, Green: true, Blue: true}

func (f Filter) Allows(c model.Color) bool {
	switch c {
	case model.ColorRed:
		return f.Red
	case model.ColorGreen:
		return f.Green
	case model.ColorBlue:
		return f.Blue
	default:
		return true
	}
}

// Apply returns the meetings allowed by f, in their original order.
func (f Filter) Apply(meetings []model.ClassifiedMeeting) []model.ClassifiedMeeting {
	out := make([]model.ClassifiedMeeting, 0, len(meetings))
	for _, m := range meetings {
		if f.Allows(m.Color) {
			out = append(out, m)
		}
	}
	return out
}

// SortKey names a list ordering.
type SortKey string

const (
	DateAsc      SortKey = "date-asc"
	DateDesc     SortKey = "date-desc"
	DurationAsc  SortKey = "duration-asc"
	DurationDesc SortKey = "duration-desc"
	SubjectAsc   SortKey = "subject-asc"
	SubjectDesc  SortKey = "subject-desc"
)

// DefaultSort is used when a request does not name one.
const DefaultSort = DateDesc

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case DateAsc, DateDesc, DurationAsc, DurationDesc, SubjectAsc, SubjectDesc:
		return k, nil
	case "":
		return DefaultSort, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// Sort returns a sorted copy of meetings. An unknown key keeps the input
// order. Subjects are compared with French collation.
func Sort(meetings []model.ClassifiedMeeting, key SortKey) []model.ClassifiedMeeting {
	out := append([]model.ClassifiedMeeting(nil), meetings...)

	var less func(a, b model.ClassifiedMeeting) bool
	switch key {
	case DateAsc:
		less = func(a, b model.ClassifiedMeeting) bool { return a.Start.Before(b.Start) }
	case DateDesc:
		less = func(a, b model.ClassifiedMeeting) bool { return b.Start.Before(a.Start) }
	case DurationAsc:
		less = func(a, b model.ClassifiedMeeting) bool { return a.Duration < b.Duration }
	case DurationDesc:
		less = func(a, b model.ClassifiedMeeting) bool { return b.Duration < a.Duration }
	case SubjectAsc, SubjectDesc:
		// collate.Collator is not safe for concurrent use.
		c := collate.New(language.French)
		if key == SubjectAsc {
			less = func(a, b model.ClassifiedMeeting) bool { return c.CompareString(a.Subject, b.Subject) < 0 }
		} else {
			less = func(a, b model.ClassifiedMeeting) bool { return c.CompareString(b.Subject, a.Subject) < 0 }
		}
	default:
		return out
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// FilterByDateRange keeps meetings that lie entirely within [start, end].
func FilterByDateRange(meetings []model.ClassifiedMeeting, start, end time.Time) []model.ClassifiedMeeting {
	out := make([]model.ClassifiedMeeting, 0, len(meetings))
	for _, m := range meetings {
		if !m.Start.Before(start) && !m.End.After(end) {
			out = append(out, m)
		}
	}
	return out
}
