package statistics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/fitmatch/insights/pkg/fitness"
)

const (
	// PlatformCommissionRate is the share of completed revenue kept by the platform
	PlatformCommissionRate = 0.15
	// TrainerPayoutRate is the share of completed revenue paid out to trainers
	TrainerPayoutRate = 1 - PlatformCommissionRate

	unknownLabel = "Unknown"
	monthLayout  = "2006-01"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// growthPercent returns (cur-prev)/prev*100, or 0 when there is no baseline
func growthPercent(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return round2((cur - prev) / prev * 100)
}

func percentOf(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func average(sum float64, n int64) float64 {
	if n == 0 {
		return 0
	}
	return round2(sum / float64(n))
}

// mean accumulates an average over optional values
type mean struct {
	sum float64
	n   int64
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m mean) value() float64 {
	return average(m.sum, m.n)
}

// ageOn returns the age in whole years on day
func ageOn(birth, day time.Time) int {
	age := day.Year() - birth.Year()
	if day.Month() < birth.Month() || (day.Month() == birth.Month() && day.Day() < birth.Day()) {
		age--
	}
	return age
}

func (d *AgeDistribution) add(birth *time.Time, today time.Time) {
	if birth == nil {
		d.Unknown++
		return
	}
	switch age := ageOn(*birth, today); {
	case age < 18:
		d.Under18++
	case age <= 25:
		d.From18To25++
	case age <= 45:
		d.From26To45++
	default:
		d.Over45++
	}
}

func normalizeGender(g *string) string {
	if g == nil {
		return unknownLabel
	}
	switch strings.ToLower(strings.TrimSpace(*g)) {
	case "male", "m":
		return "Male"
	case "female", "f":
		return "Female"
	case "":
		return unknownLabel
	default:
		return "Other"
	}
}

func labelOr(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownLabel
	}
	return s
}

// labeledCounts turns a histogram into buckets sorted by count descending,
// then label. Percentages are relative to total.
func labeledCounts(counts map[string]int64, total int64) []LabeledCount {
	out := make([]LabeledCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, LabeledCount{Label: label, Count: n, Percentage: percentOf(n, total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func topN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// countSeries converts a day or month histogram into an ascending series
func countSeries(counts map[string]int64) []CountPoint {
	out := make([]CountPoint, 0, len(counts))
	for date, n := range counts {
		out = append(out, CountPoint{Date: date, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// meanSeries converts per-key means into an ascending series
func meanSeries(means map[string]*mean) []ValuePoint {
	out := make([]ValuePoint, 0, len(means))
	for date, m := range means {
		out = append(out, ValuePoint{Date: date, Value: m.value()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// weekdaySeries renders a weekday histogram Monday first, including empty days
func weekdaySeries(counts map[time.Weekday]int64, total int64) []LabeledCount {
	out := make([]LabeledCount, 0, len(weekdays))
	for _, d := range weekdays {
		out = append(out, LabeledCount{Label: d.String(), Count: counts[d], Percentage: percentOf(counts[d], total)})
	}
	return out
}

func dayKey(t time.Time) string {
	return fitness.StartOfDay(t).Format(fitness.DateLayout)
}

func monthKey(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

// longestStreak returns the longest run of consecutive calendar days.
// days must be sorted ascending and free of duplicates.
func longestStreak(days []time.Time) int {
	if len(days) == 0 {
		return 0
	}
	best, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}
