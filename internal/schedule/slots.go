package schedule

import (
	"sort"
	"time"
)

// TimeRange represents a half-open time interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two ranges share any time.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Duration returns the length of the range.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Slot is a candidate meeting slot with its score.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Score float64   `json:"score"`
}

// Options controls slot generation and scoring.
type Options struct {
	// HorizonDays bounds how far past the requested start candidates are generated.
	HorizonDays int
	// Increment is the step between candidate slot starts.
	Increment time.Duration
	// WorkdayStartHour and WorkdayEndHour bound candidate slots (local hours).
	WorkdayStartHour int
	WorkdayEndHour   int
	// IncludeWeekends allows Saturday/Sunday candidates.
	IncludeWeekends bool
	// MaxSuggestions caps the number of returned slots.
	MaxSuggestions int
	// Location is the account's timezone for working-hour boundaries.
	Location *time.Location
}

// DefaultOptions returns the options used when the caller provides none.
func DefaultOptions() Options {
	return Options{
		HorizonDays:      7,
		Increment:        30 * time.Minute,
		WorkdayStartHour: 9,
		WorkdayEndHour:   18,
		IncludeWeekends:  false,
		MaxSuggestions:   5,
		Location:         time.UTC,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.HorizonDays <= 0 {
		o.HorizonDays = d.HorizonDays
	}
	if o.Increment <= 0 {
		o.Increment = d.Increment
	}
	if o.WorkdayStartHour <= 0 && o.WorkdayEndHour <= 0 {
		o.WorkdayStartHour = d.WorkdayStartHour
		o.WorkdayEndHour = d.WorkdayEndHour
	}
	if o.WorkdayEndHour <= o.WorkdayStartHour {
		o.WorkdayStartHour = d.WorkdayStartHour
		o.WorkdayEndHour = d.WorkdayEndHour
	}
	if o.MaxSuggestions <= 0 {
		o.MaxSuggestions = d.MaxSuggestions
	}
	if o.Location == nil {
		o.Location = d.Location
	}
	return o
}

// MergeBusy sorts and coalesces overlapping or adjacent busy ranges.
func MergeBusy(busy []TimeRange) []TimeRange {
	if len(busy) == 0 {
		return nil
	}

	sorted := make([]TimeRange, len(busy))
	copy(sorted, busy)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []TimeRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !r.Start.After(last.End) {
			if r.End.After(last.End) {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Conflicts returns the merged busy ranges that overlap the proposed range.
// An empty result means the proposed time is free for all attendees.
func Conflicts(busy []TimeRange, proposed TimeRange) []TimeRange {
	var conflicts []TimeRange
	for _, b := range MergeBusy(busy) {
		if b.Overlaps(proposed) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts
}

// GenerateSlots produces every non-conflicting candidate slot of the
// requested duration across the horizon, unscored. The requested start
// anchors the search: candidates begin at the start of the requested
// day and run HorizonDays forward.
func GenerateSlots(requested TimeRange, busy []TimeRange, opts Options) []Slot {
	opts = opts.normalized()
	duration := requested.Duration()
	if duration <= 0 {
		return nil
	}

	merged := MergeBusy(busy)

	local := requested.Start.In(opts.Location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, opts.Location)
	horizon := dayStart.AddDate(0, 0, opts.HorizonDays)

	var slots []Slot
	for day := dayStart; day.Before(horizon); day = day.AddDate(0, 0, 1) {
		if !opts.IncludeWeekends && isWeekend(day.Weekday()) {
			continue
		}

		windowStart := day.Add(time.Duration(opts.WorkdayStartHour) * time.Hour)
		windowEnd := day.Add(time.Duration(opts.WorkdayEndHour) * time.Hour)

		for start := windowStart; !start.Add(duration).After(windowEnd); start = start.Add(opts.Increment) {
			candidate := TimeRange{Start: start, End: start.Add(duration)}
			// Past slots are useless suggestions.
			if candidate.Start.Before(requested.Start) && !sameInstant(candidate.Start, requested.Start) {
				continue
			}
			if hasOverlap(merged, candidate) {
				continue
			}
			slots = append(slots, Slot{Start: candidate.Start, End: candidate.End})
		}
	}
	return slots
}

// SuggestTimes returns the top scored alternative slots for a requested
// meeting, best first. Ties break toward the earlier start.
func SuggestTimes(requested TimeRange, busy []TimeRange, opts Options) []Slot {
	opts = opts.normalized()
	merged := MergeBusy(busy)

	slots := GenerateSlots(requested, busy, opts)
	for i := range slots {
		slots[i].Score = scoreSlot(TimeRange{Start: slots[i].Start, End: slots[i].End}, requested, merged, opts)
	}

	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Score != slots[j].Score {
			return slots[i].Score > slots[j].Score
		}
		return slots[i].Start.Before(slots[j].Start)
	})

	if len(slots) > opts.MaxSuggestions {
		slots = slots[:opts.MaxSuggestions]
	}
	return slots
}

// scoreSlot assigns a linear score to a candidate. Higher is better.
// Components:
//   - proximity: 100 minus 2 points per hour of distance from the
//     requested start, floored at zero
//   - same day as the request: +15
//   - mid working day (start between 10:00 and 16:00 local): +10
//   - adjacent to an existing busy range (back-to-back): +5
func scoreSlot(candidate, requested TimeRange, mergedBusy []TimeRange, opts Options) float64 {
	distance := candidate.Start.Sub(requested.Start)
	if distance < 0 {
		distance = -distance
	}
	score := 100.0 - 2.0*distance.Hours()
	if score < 0 {
		score = 0
	}

	local := candidate.Start.In(opts.Location)
	reqLocal := requested.Start.In(opts.Location)
	if local.Year() == reqLocal.Year() && local.YearDay() == reqLocal.YearDay() {
		score += 15
	}

	if local.Hour() >= 10 && local.Hour() < 16 {
		score += 10
	}

	for _, b := range mergedBusy {
		if sameInstant(candidate.Start, b.End) || sameInstant(candidate.End, b.Start) {
			score += 5
			break
		}
	}

	return score
}

func hasOverlap(merged []TimeRange, candidate TimeRange) bool {
	for _, b := range merged {
		if b.Overlaps(candidate) {
			return true
		}
	}
	return false
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func sameInstant(a, b time.Time) bool {
	return a.Equal(b)
}
