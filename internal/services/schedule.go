// This file implements the strategy pattern for scheduled closures. Each
// frequency knows when the period after a given closure is due to end.

package services

import (
	"fmt"
	"time"

	"saldo/internal/core"
)

// CloseSchedule computes the next scheduled closure after lastClose. The
// anchor supplies the day (and month, for yearly schedules) periods end on.
// ok is false when the schedule never closes.
type CloseSchedule interface {
	Next(lastClose time.Time, anchor core.Date) (next time.Time, ok bool)
}

// IsDue reports whether a closure is due at now.
func IsDue(s CloseSchedule, lastClose, now time.Time, anchor core.Date) bool {
	next, ok := s.Next(lastClose, anchor)
	return ok && !now.Before(next)
}

// NeverSchedule disables scheduled closures.
type NeverSchedule struct{}

func (NeverSchedule) Next(time.Time, core.Date) (time.Time, bool) {
	return time.Time{}, false
}

// DailySchedule closes at the first midnight (UTC) after the last closure.
type DailySchedule struct{}

func (DailySchedule) Next(lastClose time.Time, _ core.Date) (time.Time, bool) {
	y, m, d := lastClose.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC), true
}

// WeeklySchedule closes seven days after the last closure.
type WeeklySchedule struct{}

func (WeeklySchedule) Next(lastClose time.Time, _ core.Date) (time.Time, bool) {
	return lastClose.Add(7 * 24 * time.Hour), true
}

// MonthlySchedule closes on the anchor's day of month, clamped to the last
// day of shorter months.
type MonthlySchedule struct{}

func (MonthlySchedule) Next(lastClose time.Time, anchor core.Date) (time.Time, bool) {
	lastClose = lastClose.UTC()
	day := anchorDay(anchor)
	y, m, _ := lastClose.Date()
	candidate := clampedDate(y, m, day)
	if !candidate.After(lastClose) {
		candidate = clampedDate(y, m+1, day)
	}
	return candidate, true
}

// YearlySchedule closes on the anchor's month and day every year.
type YearlySchedule struct{}

func (YearlySchedule) Next(lastClose time.Time, anchor core.Date) (time.Time, bool) {
	lastClose = lastClose.UTC()
	month := time.January
	if !anchor.IsZero() {
		month = time.Month(anchor.Month())
	}
	day := anchorDay(anchor)
	candidate := clampedDate(lastClose.Year(), month, day)
	if !candidate.After(lastClose) {
		candidate = clampedDate(lastClose.Year()+1, month, day)
	}
	return candidate, true
}

func anchorDay(anchor core.Date) int {
	if anchor.IsZero() {
		return 1
	}
	return anchor.Day()
}

// clampedDate is midnight UTC of the given day, or of the month's last day
// when the month is shorter. month may overflow into the next year.
func clampedDate(year int, month time.Month, day int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return first.AddDate(0, 0, day-1)
}

var closeSchedules = map[core.RepetitionTypes]CloseSchedule{
	core.Never:   NeverSchedule{},
	core.Daily:   DailySchedule{},
	core.Weekly:  WeeklySchedule{},
	core.Monthly: MonthlySchedule{},
	core.Yearly:  YearlySchedule{},
}

// GetCloseSchedule returns the schedule for a frequency.
func GetCloseSchedule(every core.RepetitionTypes) (CloseSchedule, error) {
	s, ok := closeSchedules[every]
	if !ok {
		return nil, fmt.Errorf("unknown close frequency: %s", every)
	}
	return s, nil
}
