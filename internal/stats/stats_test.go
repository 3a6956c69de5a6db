package stats

import (
	"math"
	"testing"
	"time"

	"meetlens/internal/model"
)

func classified(id string, start time.Time, minutes int, color model.Color) model.ClassifiedMeeting {
	return model.ClassifiedMeeting{
		Meeting: model.Meeting{
			ID:       id,
			Subject:  id,
			Start:    start,
			End:      start.Add(time.Duration(minutes) * time.Minute),
			Duration: minutes,
		},
		Color:                color,
		ClassificationReason: "test",
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateEmpty(t *testing.T) {
	s := New(time.UTC).Calculate(nil)
	if s.Total != 0 || s.TotalDuration != 0 || s.AverageDuration != 0 {
		t.Errorf("expected zero totals, got %+v", s)
	}
	if s.WeeklyFrequency != 0 || s.MonthlyFrequency != 0 || s.AveragePerDay != 0 {
		t.Errorf("expected zero frequencies, got %+v", s)
	}
	if s.BusiestDays == nil || len(s.BusiestDays) != 0 {
		t.Errorf("BusiestDays = %#v, want empty non-nil", s.BusiestDays)
	}
	if s.BusiestHours == nil || len(s.BusiestHours) != 0 {
		t.Errorf("BusiestHours = %#v, want empty non-nil", s.BusiestHours)
	}
}

func TestCalculateTotalsAndAverage(t *testing.T) {
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	meetings := []model.ClassifiedMeeting{
		classified("a", base, 60, model.ColorRed),
		classified("b", base.Add(2*time.Hour), 30, model.ColorGreen),
		classified("c", base.Add(4*time.Hour), 120, model.ColorBlue),
	}
	s := New(time.UTC).Calculate(meetings)

	if s.Total != 3 {
		t.Errorf("Total = %d, want 3", s.Total)
	}
	if s.TotalDuration != 210 {
		t.Errorf("TotalDuration = %d, want 210", s.TotalDuration)
	}
	if !approx(s.AverageDuration, 70) {
		t.Errorf("AverageDuration = %v, want 70", s.AverageDuration)
	}
	if s.ByColor.Sum() != s.Total {
		t.Errorf("ByColor sum %d != Total %d", s.ByColor.Sum(), s.Total)
	}
	if s.ByColorDuration.Sum() != s.TotalDuration {
		t.Errorf("ByColorDuration sum %d != TotalDuration %d", s.ByColorDuration.Sum(), s.TotalDuration)
	}
	want := model.ColorBreakdown{Red: 60, Green: 30, Blue: 120}
	if s.ByColorDuration != want {
		t.Errorf("ByColorDuration = %+v, want %+v", s.ByColorDuration, want)
	}
	// Span is four hours: one day.
	if !approx(s.AveragePerDay, 3) || !approx(s.WeeklyFrequency, 21) || !approx(s.MonthlyFrequency, 90) {
		t.Errorf("frequencies = %v/%v/%v", s.AveragePerDay, s.WeeklyFrequency, s.MonthlyFrequency)
	}
}

func TestCalculateSameInstantHasZeroFrequencies(t *testing.T) {
	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	s := New(time.UTC).Calculate([]model.ClassifiedMeeting{
		classified("a", start, 30, model.ColorRed),
		classified("b", start, 45, model.ColorRed),
	})
	if s.WeeklyFrequency != 0 || s.MonthlyFrequency != 0 || s.AveragePerDay != 0 {
		t.Errorf("expected zero frequencies for zero span, got %+v", s)
	}
	if math.IsNaN(s.AverageDuration) || !approx(s.AverageDuration, 37.5) {
		t.Errorf("AverageDuration = %v, want 37.5", s.AverageDuration)
	}
}

func TestCalculateFrequenciesOverTwoWeeks(t *testing.T) {
	first := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	var meetings []model.ClassifiedMeeting
	for i := 0; i < 14; i++ {
		meetings = append(meetings, classified("m", first.AddDate(0, 0, i), 30, model.ColorGreen))
	}
	// First to last start is 13 days.
	s := New(time.UTC).Calculate(meetings)
	if !approx(s.AveragePerDay, 14.0/13) {
		t.Errorf("AveragePerDay = %v, want %v", s.AveragePerDay, 14.0/13)
	}
	if !approx(s.WeeklyFrequency, 14/(13.0/7)) {
		t.Errorf("WeeklyFrequency = %v", s.WeeklyFrequency)
	}
	if !approx(s.MonthlyFrequency, 14/(13.0/30)) {
		t.Errorf("MonthlyFrequency = %v", s.MonthlyFrequency)
	}
}

func TestCalculateUnknownColorGoesToDefault(t *testing.T) {
	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	s := New(time.UTC).Calculate([]model.ClassifiedMeeting{
		classified("a", start, 30, model.Color(77)),
		classified("b", start, 15, model.ColorDefault),
	})
	if s.ByColor.Default != 2 || s.ByColorDuration.Default != 45 {
		t.Errorf("default bucket = %d/%d, want 2/45", s.ByColor.Default, s.ByColorDuration.Default)
	}
}

func TestBusiestDaysStableOrder(t *testing.T) {
	d := func(day, hour int) time.Time { return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC) }
	meetings := []model.ClassifiedMeeting{
		classified("a", d(5, 9), 30, model.ColorRed),
		classified("b", d(4, 9), 30, model.ColorRed),
		classified("c", d(6, 9), 30, model.ColorRed),
		classified("d", d(6, 10), 30, model.ColorRed),
		classified("e", d(4, 14), 30, model.ColorRed),
	}
	s := New(time.UTC).Calculate(meetings)

	// 03-04 and 03-06 tie at 2; 03-04 occurred first.
	want := []model.DayCount{
		{Date: "2024-03-04", Count: 2},
		{Date: "2024-03-06", Count: 2},
		{Date: "2024-03-05", Count: 1},
	}
	if len(s.BusiestDays) != len(want) {
		t.Fatalf("BusiestDays = %v, want %v", s.BusiestDays, want)
	}
	for i := range want {
		if s.BusiestDays[i] != want[i] {
			t.Errorf("BusiestDays[%d] = %v, want %v", i, s.BusiestDays[i], want[i])
		}
	}

	wantHours := []model.HourCount{{Hour: 9, Count: 3}, {Hour: 10, Count: 1}, {Hour: 14, Count: 1}}
	for i := range wantHours {
		if s.BusiestHours[i] != wantHours[i] {
			t.Errorf("BusiestHours[%d] = %v, want %v", i, s.BusiestHours[i], wantHours[i])
		}
	}
}

func TestBusiestListsCappedAtTen(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var meetings []model.ClassifiedMeeting
	for i := 0; i < 15; i++ {
		meetings = append(meetings, classified("m", start.AddDate(0, 0, i).Add(time.Duration(i)*time.Hour), 30, model.ColorGreen))
	}
	s := New(time.UTC).Calculate(meetings)
	if len(s.BusiestDays) != 10 {
		t.Errorf("len(BusiestDays) = %d, want 10", len(s.BusiestDays))
	}
	if len(s.BusiestHours) != 10 {
		t.Errorf("len(BusiestHours) = %d, want 10", len(s.BusiestHours))
	}
}

func TestBusiestHoursUseDisplayLocationAndDaysUseUTC(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 23:30 UTC on Jan 15 is 00:30 on Jan 16 in Paris.
	start := time.Date(2024, 1, 15, 23, 30, 0, 0, time.UTC)
	s := New(paris).Calculate([]model.ClassifiedMeeting{classified("a", start, 30, model.ColorRed)})

	if s.BusiestDays[0].Date != "2024-01-15" {
		t.Errorf("day = %s, want 2024-01-15", s.BusiestDays[0].Date)
	}
	if s.BusiestHours[0].Hour != 0 {
		t.Errorf("hour = %d, want 0", s.BusiestHours[0].Hour)
	}
}

func TestColorHelpers(t *testing.T) {
	start := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	meetings := []model.ClassifiedMeeting{
		classified("a", start, 30, model.ColorRed),
		classified("b", start, 45, model.ColorRed),
		classified("c", start, 60, model.ColorBlue),
	}
	if got := CountByColor(meetings); got != (model.ColorBreakdown{Red: 2, Blue: 1}) {
		t.Errorf("CountByColor = %+v", got)
	}
	if got := DurationByColor(meetings); got != (model.ColorBreakdown{Red: 75, Blue: 60}) {
		t.Errorf("DurationByColor = %+v", got)
	}
}

func TestWeeklyBreakdown(t *testing.T) {
	e := New(time.UTC)
	meetings := []model.ClassifiedMeeting{
		classified("a", time.Date(2024, 1, 17, 9, 0, 0, 0, time.UTC), 30, model.ColorRed),   // 2024-W03
		classified("b", time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), 30, model.ColorGreen),  // 2024-W01
		classified("c", time.Date(2024, 1, 18, 9, 0, 0, 0, time.UTC), 30, model.ColorGreen), // 2024-W03
		classified("d", time.Date(2023, 1, 1, 9, 0, 0, 0, time.UTC), 30, model.ColorBlue),   // 2022-W52
	}
	got := e.WeeklyBreakdown(meetings)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(got), got)
	}
	if got[0].Key != "2022-W52" || got[0].Label != "S52 2022" {
		t.Errorf("first bucket = %+v", got[0])
	}
	if got[1].Key != "2024-W01" || got[2].Key != "2024-W03" {
		t.Errorf("bucket order = %s, %s", got[1].Key, got[2].Key)
	}
	if got[2].Count != (model.ColorBreakdown{Red: 1, Green: 1}) {
		t.Errorf("W03 count = %+v", got[2].Count)
	}
	if len(e.WeeklyBreakdown(nil)) != 0 {
		t.Error("expected empty breakdown")
	}
}

func TestShares(t *testing.T) {
	if got := Shares(model.Statistics{}); got != (ColorShares{}) {
		t.Errorf("Shares(empty) = %+v", got)
	}
	s := model.Statistics{Total: 4, ByColor: model.ColorBreakdown{Red: 1, Green: 2, Default: 1}}
	got := Shares(s)
	if !approx(got.Red, 25) || !approx(got.Green, 50) || !approx(got.Blue, 0) || !approx(got.Default, 25) {
		t.Errorf("Shares = %+v", got)
	}
}
