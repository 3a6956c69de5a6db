package model

// ColorBreakdown holds one number per color bucket.
type ColorBreakdown struct {
	Red     int `json:"red"`
	Green   int `json:"green"`
	Blue    int `json:"blue"`
	Default int `json:"default"`
}

// Add routes n into the bucket for c. Unknown colors land in Default.
func (b *ColorBreakdown) Add(c Color, n int) {
	switch c {
	case ColorRed:
		b.Red += n
	case ColorGreen:
		b.Green += n
	case ColorBlue:
		b.Blue += n
	default:
		b.Default += n
	}
}

// Sum returns the total across all buckets.
func (b ColorBreakdown) Sum() int {
	return b.Red + b.Green + b.Blue + b.Default
}

// DayCount is a calendar date (YYYY-MM-DD, UTC) with its meeting count.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// HourCount is an hour of day (0-23) with its meeting count.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// Statistics is the aggregate report over a batch of classified meetings.
type Statistics struct {
	Total            int            `json:"total"`
	TotalDuration    int            `json:"total_duration"`   // minutes
	AverageDuration  float64        `json:"average_duration"` // minutes
	ByColor          ColorBreakdown `json:"by_color"`
	ByColorDuration  ColorBreakdown `json:"by_color_duration"`
	WeeklyFrequency  float64        `json:"weekly_frequency"`
	MonthlyFrequency float64        `json:"monthly_frequency"`
	AveragePerDay    float64        `json:"average_per_day"`
	BusiestDays      []DayCount     `json:"busiest_days"`
	BusiestHours     []HourCount    `json:"busiest_hours"`
}
