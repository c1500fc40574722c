package timetable

import (
	"fmt"
	"time"

	"golang.org/x/exp/slices"
)

// SessionType classifies a class meeting. It only affects how the event
// summary is rendered.
type SessionType int

const (
	SessionOther SessionType = iota
	SessionLecture
	SessionLab
	SessionSeminar
	SessionExam
)

func (t SessionType) String() string {
	switch t {
	case SessionLecture:
		return "Lecture"
	case SessionLab:
		return "Lab"
	case SessionSeminar:
		return "Seminar"
	case SessionExam:
		return "Exam"
	default:
		return ""
	}
}

// TimeOfDay is a local wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Minutes() < o.Minutes()
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// At anchors the wall-clock time on the given calendar date, in the date's
// own location.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}

// AddMinutes returns the time of day m minutes later.
func (t TimeOfDay) AddMinutes(m int) TimeOfDay {
	total := t.Minutes() + m
	return TimeOfDay{Hour: total / 60, Minute: total % 60}
}

// ClassSession is one weekly class meeting pattern: a course occupying the
// same weekday slot over an inclusive date span, minus excluded dates.
type ClassSession struct {
	CourseCode string
	GroupID    string
	Subject    string
	Type       SessionType
	Weekday    time.Weekday
	Start      TimeOfDay
	End        TimeOfDay
	Location   string

	// FirstDate and LastDate bound the weekly pattern, as midnights in the
	// timetable timezone.
	FirstDate time.Time
	LastDate  time.Time

	// Excluded lists in-span dates with no session (holidays). Every entry
	// falls on Weekday.
	Excluded []time.Time
}

// Validate checks the single-session invariants.
func (s *ClassSession) Validate() error {
	if s.CourseCode == "" {
		return fmt.Errorf("session %q: empty course code", s.Subject)
	}
	if s.GroupID == "" {
		return fmt.Errorf("session %q: empty group id", s.Subject)
	}
	if s.Subject == "" {
		return fmt.Errorf("session %s-%s: empty subject", s.CourseCode, s.GroupID)
	}
	if !s.Start.Before(s.End) {
		return fmt.Errorf("session %s-%s: start %s is not before end %s", s.CourseCode, s.GroupID, s.Start, s.End)
	}
	if s.LastDate.Before(s.FirstDate) {
		return fmt.Errorf("session %s-%s: first date %s is after last date %s",
			s.CourseCode, s.GroupID, s.FirstDate.Format(time.DateOnly), s.LastDate.Format(time.DateOnly))
	}
	for _, ex := range s.Excluded {
		if ex.Weekday() != s.Weekday {
			return fmt.Errorf("session %s-%s: excluded date %s is not a %s",
				s.CourseCode, s.GroupID, ex.Format(time.DateOnly), s.Weekday)
		}
		if ex.Before(s.FirstDate) || ex.After(s.LastDate) {
			return fmt.Errorf("session %s-%s: excluded date %s is outside %s..%s",
				s.CourseCode, s.GroupID, ex.Format(time.DateOnly),
				s.FirstDate.Format(time.DateOnly), s.LastDate.Format(time.DateOnly))
		}
	}
	return nil
}

func (s *ClassSession) spanIntersects(o *ClassSession) bool {
	return !s.FirstDate.After(o.LastDate) && !o.FirstDate.After(s.LastDate)
}

// ValidationError reports two sessions of the same group that occupy
// overlapping time intervals on the same weekday with intersecting date
// spans. It signals a parser defect or a source-data anomaly.
type ValidationError struct {
	GroupID string
	Weekday time.Weekday
	First   ClassSession
	Second  ClassSession
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("overlapping sessions for group %s on %s: %s %s-%s and %s %s-%s",
		e.GroupID, e.Weekday,
		e.First.CourseCode, e.First.Start, e.First.End,
		e.Second.CourseCode, e.Second.Start, e.Second.End)
}

// ValidateSessions checks each session's invariants and scans for overlaps
// within each (group, weekday) bucket. The scan sorts an explicit copy so
// the reported pair does not depend on input order.
func ValidateSessions(sessions []ClassSession) error {
	for i := range sessions {
		if err := sessions[i].Validate(); err != nil {
			return err
		}
	}

	sorted := slices.Clone(sessions)
	slices.SortStableFunc(sorted, compareSessions)

	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].GroupID != sorted[i].GroupID || sorted[j].Weekday != sorted[i].Weekday {
				break
			}
			if sorted[j].Start.Minutes() >= sorted[i].End.Minutes() {
				break
			}
			if sorted[i].spanIntersects(&sorted[j]) {
				return &ValidationError{
					GroupID: sorted[i].GroupID,
					Weekday: sorted[i].Weekday,
					First:   sorted[i],
					Second:  sorted[j],
				}
			}
		}
	}
	return nil
}

// MergeAdjacent collapses consecutive time slots of the same course, group
// and weekday over the same date span into single sessions, e.g. two
// back-to-back one-hour slots become one two-hour session. The result is
// sorted by (group, weekday, start) and safe to feed to ValidateSessions.
func MergeAdjacent(sessions []ClassSession) []ClassSession {
	if len(sessions) == 0 {
		return nil
	}

	// Sort so the parts of one series sit next to each other, merge, then
	// restore the (group, weekday, start) order callers expect.
	sorted := slices.Clone(sessions)
	slices.SortStableFunc(sorted, compareSeries)

	merged := make([]ClassSession, 0, len(sorted))
	merged = append(merged, sorted[0])
	for _, s := range sorted[1:] {
		prev := &merged[len(merged)-1]
		if s.CourseCode == prev.CourseCode &&
			s.GroupID == prev.GroupID &&
			s.Weekday == prev.Weekday &&
			s.FirstDate.Equal(prev.FirstDate) &&
			s.LastDate.Equal(prev.LastDate) &&
			s.Start == prev.End {
			prev.End = s.End
			continue
		}
		merged = append(merged, s)
	}

	slices.SortStableFunc(merged, compareSessions)
	return merged
}

// compareSeries groups sessions of the same course series together, ordered
// by slot start within the series.
func compareSeries(a, b ClassSession) int {
	if a.GroupID != b.GroupID {
		if a.GroupID < b.GroupID {
			return -1
		}
		return 1
	}
	if a.CourseCode != b.CourseCode {
		if a.CourseCode < b.CourseCode {
			return -1
		}
		return 1
	}
	if a.Weekday != b.Weekday {
		return int(a.Weekday) - int(b.Weekday)
	}
	if d := a.FirstDate.Compare(b.FirstDate); d != 0 {
		return d
	}
	if d := a.LastDate.Compare(b.LastDate); d != 0 {
		return d
	}
	return a.Start.Minutes() - b.Start.Minutes()
}

func compareSessions(a, b ClassSession) int {
	if a.GroupID != b.GroupID {
		if a.GroupID < b.GroupID {
			return -1
		}
		return 1
	}
	if a.Weekday != b.Weekday {
		return int(a.Weekday) - int(b.Weekday)
	}
	if d := a.Start.Minutes() - b.Start.Minutes(); d != 0 {
		return d
	}
	if a.CourseCode != b.CourseCode {
		if a.CourseCode < b.CourseCode {
			return -1
		}
		return 1
	}
	return a.FirstDate.Compare(b.FirstDate)
}

// dateOnly returns the date at midnight in its own location.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
