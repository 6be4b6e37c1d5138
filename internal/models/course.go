package models

import (
	"fmt"
	"strings"
	"time"
)

// Weekday enumerates schedule days. Persisted as uppercase names; parsed once
// at the storage boundary.
type Weekday string

// Week days.
const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

var weekdays = map[Weekday]struct{}{
	Monday: {}, Tuesday: {}, Wednesday: {}, Thursday: {}, Friday: {}, Saturday: {}, Sunday: {},
}

// ParseWeekday normalises a raw day name.
func ParseWeekday(raw string) (Weekday, error) {
	day := Weekday(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := weekdays[day]; !ok {
		return "", fmt.Errorf("invalid weekday %q", raw)
	}
	return day, nil
}

// ClockMinutes is a time of day expressed as minutes after midnight.
type ClockMinutes int

// ParseClock converts "HH:MM" into minutes after midnight.
func ParseClock(raw string) (ClockMinutes, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	return ClockMinutes(t.Hour()*60 + t.Minute()), nil
}

// String renders minutes after midnight back into "HH:MM".
func (m ClockMinutes) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// ScheduleSlot is one weekly meeting of a course.
type ScheduleSlot struct {
	Day   Weekday      `json:"day_of_week"`
	Start ClockMinutes `json:"start_time"`
	End   ClockMinutes `json:"end_time"`
}

// ParseScheduleSlot builds a slot from its stored representation.
func ParseScheduleSlot(day, start, end string) (ScheduleSlot, error) {
	d, err := ParseWeekday(day)
	if err != nil {
		return ScheduleSlot{}, err
	}
	s, err := ParseClock(start)
	if err != nil {
		return ScheduleSlot{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return ScheduleSlot{}, err
	}
	if e <= s {
		return ScheduleSlot{}, fmt.Errorf("slot end %s not after start %s", end, start)
	}
	return ScheduleSlot{Day: d, Start: s, End: e}, nil
}

// Overlaps reports whether two slots collide: same day and
// start1 < end2 && start2 < end1.
func (s ScheduleSlot) Overlaps(other ScheduleSlot) bool {
	return s.Day == other.Day && s.Start < other.End && other.Start < s.End
}

// SchedulesConflict reports whether any slot of a collides with any slot of b.
func SchedulesConflict(a, b []ScheduleSlot) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Overlaps(y) {
				return true
			}
		}
	}
	return false
}

// CourseRef is a lightweight course reference used for prerequisite listings.
type CourseRef struct {
	ID   string `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
}

// Course is a catalog entry. Code is unique and immutable once published.
type Course struct {
	ID          string  `db:"id" json:"id"`
	Code        string  `db:"code" json:"code"`
	Name        string  `db:"name" json:"name"`
	CreditHours int     `db:"credit_hours" json:"credit_hours"`
	Capacity    int     `db:"capacity" json:"capacity"`
	Instructor  *string `db:"instructor" json:"instructor,omitempty"`
	SemesterID  *string `db:"semester_id" json:"semester_id,omitempty"`

	Schedule      []ScheduleSlot `db:"-" json:"schedule,omitempty"`
	Prerequisites []CourseRef    `db:"-" json:"prerequisites,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasSchedule reports whether the course carries meeting times.
func (c *Course) HasSchedule() bool {
	return c != nil && len(c.Schedule) > 0
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	SemesterID string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
