package stats

import (
	"math"
	"sort"
	"time"

	"meetlens/internal/model"
)

// topN bounds the busiest day and hour lists.
const topN = 10

// Engine computes aggregate statistics over classified meetings.
// It holds no state besides the display location used for hour buckets.
type Engine struct {
	loc *time.Location
}

// New returns an engine that buckets hours in loc (time.Local when nil).
func New(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{loc: loc}
}

// Calculate builds the statistics report for meetings. An empty input
// yields an all-zero report.
func (e *Engine) Calculate(meetings []model.ClassifiedMeeting) model.Statistics {
	report := model.Statistics{
		BusiestDays:  []model.DayCount{},
		BusiestHours: []model.HourCount{},
	}
	if len(meetings) == 0 {
		return report
	}

	report.Total = len(meetings)
	earliest, latest := meetings[0].Start, meetings[0].Start

	days := newCounter[string]()
	hours := newCounter[int]()

	for _, m := range meetings {
		report.TotalDuration += m.Duration
		report.ByColor.Add(m.Color, 1)
		report.ByColorDuration.Add(m.Color, m.Duration)

		if m.Start.Before(earliest) {
			earliest = m.Start
		}
		if m.Start.After(latest) {
			latest = m.Start
		}

		days.inc(m.Start.UTC().Format(time.DateOnly))
		hours.inc(m.Start.In(e.loc).Hour())
	}

	report.AverageDuration = float64(report.TotalDuration) / float64(report.Total)

	dayCount := math.Ceil(latest.Sub(earliest).Hours() / 24)
	if dayCount > 0 {
		total := float64(report.Total)
		report.WeeklyFrequency = total / (dayCount / 7)
		report.MonthlyFrequency = total / (dayCount / 30)
		report.AveragePerDay = total / dayCount
	}

	for _, kv := range days.top(topN) {
		report.BusiestDays = append(report.BusiestDays, model.DayCount{Date: kv.key, Count: kv.count})
	}
	for _, kv := range hours.top(topN) {
		report.BusiestHours = append(report.BusiestHours, model.HourCount{Hour: kv.key, Count: kv.count})
	}
	return report
}

// CountByColor returns the number of meetings per color.
func CountByColor(meetings []model.ClassifiedMeeting) model.ColorBreakdown {
	var b model.ColorBreakdown
	for _, m := range meetings {
		b.Add(m.Color, 1)
	}
	return b
}

// DurationByColor returns the summed duration in minutes per color.
func DurationByColor(meetings []model.ClassifiedMeeting) model.ColorBreakdown {
	var b model.ColorBreakdown
	for _, m := range meetings {
		b.Add(m.Color, m.Duration)
	}
	return b
}

type keyCount[K comparable] struct {
	key   K
	count int
}

// counter keeps counts in first-occurrence order so a stable sort breaks
// ties the same way on every run.
type counter[K comparable] struct {
	index map[K]int
	items []keyCount[K]
}

func newCounter[K comparable]() *counter[K] {
	return &counter[K]{index: make(map[K]int)}
}

func (c *counter[K]) inc(k K) {
	if i, ok := c.index[k]; ok {
		c.items[i].count++
		return
	}
	c.index[k] = len(c.items)
	c.items = append(c.items, keyCount[K]{key: k, count: 1})
}

func (c *counter[K]) top(n int) []keyCount[K] {
	out := append([]keyCount[K](nil), c.items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].count > out[j].count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
