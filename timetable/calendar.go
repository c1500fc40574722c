package timetable

import (
	"fmt"

	"github.com/uc3mcal/uc3mcal/ical"
)

const (
	prodID      = "-//uc3mcal//NONSGML v1.0//EN"
	specVersion = "2.0"
)

// byDayCodes maps time.Weekday (Sunday-first) onto RRULE day codes.
var byDayCodes = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// BuildCalendar assembles the iCalendar document from resolved events,
// preserving input order so output is byte-reproducible.
func BuildCalendar(events []RecurringEvent) *ical.Calendar {
	cal := &ical.Calendar{
		ProdID:  prodID,
		Version: specVersion,
		Events:  make([]ical.Event, 0, len(events)),
	}
	for i := range events {
		cal.Events = append(cal.Events, calendarEvent(&events[i]))
	}
	return cal
}

func calendarEvent(ev *RecurringEvent) ical.Event {
	return ical.Event{
		UID: ev.UID,
		// DTSTAMP repeats the anchor so regeneration of an unchanged
		// timetable is byte-identical.
		Stamp:    ev.Start,
		Start:    ev.Start,
		End:      ev.End,
		Summary:  eventSummary(&ev.Session),
		Location: ev.Session.Location,
		Recurrence: &ical.Recurrence{
			Freq:  ical.FreqWeekly,
			ByDay: byDayCodes[ev.Session.Weekday],
			Until: ev.Until,
		},
		ExDates: ev.ExDates,
	}
}

func eventSummary(s *ClassSession) string {
	if label := s.Type.String(); label != "" {
		return fmt.Sprintf("%s (%s)", s.Subject, label)
	}
	return s.Subject
}

// Export runs the whole core pipeline: parse the raw page, resolve the
// recurrences and encode the document. On any failure no partial document is
// returned.
func Export(raw []byte, meta PeriodMeta) (string, error) {
	sessions, err := Parse(raw, meta)
	if err != nil {
		return "", err
	}
	events, err := ResolveAll(sessions)
	if err != nil {
		return "", err
	}
	return BuildCalendar(events).Encode()
}
