package stats

import (
	"fmt"
	"sort"

	"meetlens/internal/model"
)

// WeekBucket counts meetings per color for one ISO week.
type WeekBucket struct {
	Key   string               `json:"key"`   // 2024-W03
	Label string               `json:"label"` // S3 2024
	Count model.ColorBreakdown `json:"count"`
}

// WeeklyBreakdown groups meetings by the ISO week of their start in the
// engine's location, sorted chronologically.
func (e *Engine) WeeklyBreakdown(meetings []model.ClassifiedMeeting) []WeekBucket {
	byKey := make(map[string]*WeekBucket)
	for _, m := range meetings {
		year, week := m.Start.In(e.loc).ISOWeek()
		key := fmt.Sprintf("%d-W%02d", year, week)
		b, ok := byKey[key]
		if !ok {
			b = &WeekBucket{Key: key, Label: fmt.Sprintf("S%d %d", week, year)}
			byKey[key] = b
		}
		b.Count.Add(m.Color, 1)
	}

	out := make([]WeekBucket, 0, len(byKey))
	for _, b := range byKey {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ColorShares holds the percentage of meetings in each color.
type ColorShares struct {
	Red     float64 `json:"red"`
	Green   float64 `json:"green"`
	Blue    float64 `json:"blue"`
	Default float64 `json:"default"`
}

// Shares converts the per-color counts of s into percentages of the total.
func Shares(s model.Statistics) ColorShares {
	if s.Total == 0 {
		return ColorShares{}
	}
	pct := func(n int) float64 { return float64(n) * 100 / float64(s.Total) }
	return ColorShares{
		Red:     pct(s.ByColor.Red),
		Green:   pct(s.ByColor.Green),
		Blue:    pct(s.ByColor.Blue),
		Default: pct(s.ByColor.Default),
	}
}
