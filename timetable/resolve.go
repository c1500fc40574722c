package timetable

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
)

// uidNamespace scopes the deterministic identifiers generated for timetable
// events. Changing it would change every UID of every exported calendar.
var uidNamespace = uuid.MustParse("8f4a1c6e-90d2-4b5a-b1e7-3c2a9d64f081")

const uidDomain = "uc3mcal"

// RecurringEvent is a resolved session series: the anchor occurrence, the
// weekly recurrence bound, the exception instants and a stable identifier.
// Resolution is deterministic; regenerating the same timetable yields
// identical events.
type RecurringEvent struct {
	Session ClassSession

	UID   string
	Start time.Time // first occurrence start, in the timetable timezone
	End   time.Time // first occurrence end
	Until time.Time // last occurrence start, inclusive

	// ExDates are the start instants removed from the series.
	ExDates []time.Time

	// Occurrences is the effective occurrence count after exclusions. Zero
	// is a data-quality condition, not an error; callers may log it.
	Occurrences int
}

// Resolve derives the recurring event of a session. The recurrence anchor is
// the first occurrence of the session weekday on or after FirstDate.
func Resolve(s ClassSession) (RecurringEvent, error) {
	if err := s.Validate(); err != nil {
		return RecurringEvent{}, err
	}

	anchor := nextWeekday(s.FirstDate, s.Weekday)
	last := prevWeekday(s.LastDate, s.Weekday)

	ev := RecurringEvent{
		Session: s,
		UID:     sessionUID(s),
		Start:   s.Start.At(anchor),
		End:     s.End.At(anchor),
		Until:   s.Start.At(last),
	}
	for _, ex := range s.Excluded {
		ev.ExDates = append(ev.ExDates, s.Start.At(ex))
	}

	count, err := countOccurrences(&ev, s.Weekday)
	if err != nil {
		return RecurringEvent{}, fmt.Errorf("session %s-%s: %w", s.CourseCode, s.GroupID, err)
	}
	ev.Occurrences = count
	return ev, nil
}

// ResolveAll resolves every session, preserving input order.
func ResolveAll(sessions []ClassSession) ([]RecurringEvent, error) {
	events := make([]RecurringEvent, 0, len(sessions))
	for i := range sessions {
		ev, err := Resolve(sessions[i])
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// sessionUID derives the event identifier from the fields that name a session
// series, so repeated generation for the same timetable is idempotent. The
// date span is part of the key: the same course and group may occupy the same
// weekday slot over disjoint spans (a lecture series and its exam date) and
// those must stay distinct events.
func sessionUID(s ClassSession) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		s.CourseCode, s.GroupID, s.Weekday, s.Start,
		s.FirstDate.Format(time.DateOnly), s.LastDate.Format(time.DateOnly))
	return uuid.NewSHA1(uidNamespace, []byte(key)).String() + "@" + uidDomain
}

func countOccurrences(ev *RecurringEvent, weekday time.Weekday) (int, error) {
	if ev.Until.Before(ev.Start) {
		return 0, nil
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   ev.Start,
		Until:     ev.Until,
		Byweekday: []rrule.Weekday{rruleWeekday(weekday)},
	})
	if err != nil {
		return 0, err
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex)
	}
	return len(set.All()), nil
}

func rruleWeekday(d time.Weekday) rrule.Weekday {
	switch d {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

// nextWeekday returns the first occurrence of d on or after date.
func nextWeekday(date time.Time, d time.Weekday) time.Time {
	off := (int(d) - int(date.Weekday()) + 7) % 7
	return date.AddDate(0, 0, off)
}

// prevWeekday returns the last occurrence of d on or before date.
func prevWeekday(date time.Time, d time.Weekday) time.Time {
	off := (int(date.Weekday()) - int(d) + 7) % 7
	return date.AddDate(0, 0, -off)
}
