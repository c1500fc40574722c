// Package ical builds RFC 5545 iCalendar documents. It is institution
// agnostic: callers assemble a Calendar from Events and encode it to the
// CRLF-terminated wire format, with text escaping and 75-octet line folding
// applied per RFC 5545.
package ical

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Content lines longer than this many octets (excluding CRLF) are folded.
const maxLineOctets = 75

const dateTimeLayout = "20060102T150405"

// EncodeError reports an event that cannot be encoded because a required
// field is missing or invalid. Parser-validated input never triggers it.
type EncodeError struct {
	UID   string
	Field string
}

func (e *EncodeError) Error() string {
	if e.UID == "" {
		return fmt.Sprintf("ical: invalid field %s", e.Field)
	}
	return fmt.Sprintf("ical: invalid field %s in event %s", e.Field, e.UID)
}

// Frequency is an RRULE FREQ value.
type Frequency string

const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
	FreqYearly  Frequency = "YEARLY"
)

// Recurrence is an RRULE value. Until and Count are mutually exclusive;
// when both are zero the rule is unbounded.
type Recurrence struct {
	Freq     Frequency
	Interval int
	ByDay    string    // two-letter day code, e.g. "MO"
	Until    time.Time // converted to UTC on output, inclusive
	Count    int
}

func (r *Recurrence) String() string {
	var sb strings.Builder
	sb.WriteString("FREQ=")
	sb.WriteString(string(r.Freq))
	if r.Interval > 1 {
		fmt.Fprintf(&sb, ";INTERVAL=%d", r.Interval)
	}
	if r.ByDay != "" {
		sb.WriteString(";BYDAY=")
		sb.WriteString(r.ByDay)
	}
	if !r.Until.IsZero() {
		// UNTIL must be expressed in UTC when DTSTART is zone-anchored.
		sb.WriteString(";UNTIL=")
		sb.WriteString(r.Until.UTC().Format(dateTimeLayout))
		sb.WriteString("Z")
	} else if r.Count > 0 {
		fmt.Fprintf(&sb, ";COUNT=%d", r.Count)
	}
	return sb.String()
}

// Event is a single VEVENT. Start and End carry the event's timezone in
// their time.Location; a UTC location is encoded with the Z suffix instead
// of a TZID parameter.
type Event struct {
	UID         string
	Stamp       time.Time // DTSTAMP; falls back to Start when zero
	Start       time.Time
	End         time.Time
	Summary     string
	Description string
	Location    string
	Recurrence  *Recurrence
	ExDates     []time.Time
}

// Calendar is a whole iCalendar document. Events are encoded in slice
// order; no sorting is applied so identical input yields identical bytes.
type Calendar struct {
	ProdID  string
	Version string
	Events  []Event
}

// Encode renders the document. On error nothing is returned: the output is
// either a complete valid document or empty.
func (c *Calendar) Encode() (string, error) {
	var sb strings.Builder
	writeContentLine(&sb, "BEGIN:VCALENDAR")
	writeProp(&sb, prop{name: "PRODID", value: c.ProdID})
	writeProp(&sb, prop{name: "VERSION", value: c.Version})
	for i := range c.Events {
		if err := c.Events[i].encode(&sb); err != nil {
			return "", err
		}
	}
	writeContentLine(&sb, "END:VCALENDAR")
	return sb.String(), nil
}

func (e *Event) encode(sb *strings.Builder) error {
	if e.UID == "" {
		return &EncodeError{Field: "UID"}
	}
	if e.Summary == "" {
		return &EncodeError{UID: e.UID, Field: "SUMMARY"}
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return &EncodeError{UID: e.UID, Field: "DTSTART"}
	}
	if !e.End.After(e.Start) {
		return &EncodeError{UID: e.UID, Field: "DTEND"}
	}

	stamp := e.Stamp
	if stamp.IsZero() {
		stamp = e.Start
	}

	writeContentLine(sb, "BEGIN:VEVENT")
	writeProp(sb, prop{name: "UID", value: EscapeText(e.UID)})
	// DTSTAMP must be a UTC date-time (RFC 5545 section 3.8.7.2).
	writeProp(sb, dateTimeProp("DTSTAMP", stamp.UTC()))
	writeProp(sb, dateTimeProp("DTSTART", e.Start))
	writeProp(sb, dateTimeProp("DTEND", e.End))
	writeProp(sb, prop{name: "SUMMARY", value: EscapeText(e.Summary)})
	if e.Location != "" {
		writeProp(sb, prop{name: "LOCATION", value: EscapeText(e.Location)})
	}
	if e.Description != "" {
		writeProp(sb, prop{name: "DESCRIPTION", value: EscapeText(e.Description)})
	}
	if e.Recurrence != nil {
		writeProp(sb, prop{name: "RRULE", value: e.Recurrence.String()})
	}
	for _, ex := range e.ExDates {
		writeProp(sb, dateTimeProp("EXDATE", ex))
	}
	writeContentLine(sb, "END:VEVENT")
	return nil
}

type param struct {
	name  string
	value string
}

type prop struct {
	name   string
	params []param
	value  string
}

func dateTimeProp(name string, t time.Time) prop {
	if t.Location() == time.UTC {
		return prop{name: name, value: t.Format(dateTimeLayout) + "Z"}
	}
	return prop{
		name:   name,
		params: []param{{name: "TZID", value: t.Location().String()}},
		value:  t.Format(dateTimeLayout),
	}
}

func writeProp(sb *strings.Builder, p prop) {
	var line strings.Builder
	line.WriteString(p.name)
	for _, pr := range p.params {
		line.WriteByte(';')
		line.WriteString(pr.name)
		line.WriteByte('=')
		// Parameter values containing reserved characters go in quotes.
		if strings.ContainsAny(pr.value, ";:,") {
			line.WriteByte('"')
			line.WriteString(pr.value)
			line.WriteByte('"')
		} else {
			line.WriteString(pr.value)
		}
	}
	line.WriteByte(':')
	line.WriteString(p.value)
	writeContentLine(sb, line.String())
}

// writeContentLine writes a logical line, folding it whenever the octet
// count exceeds the limit. Folds never split a UTF-8 sequence.
func writeContentLine(sb *strings.Builder, line string) {
	n := 0
	for _, r := range line {
		rl := utf8.RuneLen(r)
		n += rl
		if n > maxLineOctets {
			sb.WriteString("\r\n ")
			n = 1 + rl
		}
		sb.WriteRune(r)
	}
	sb.WriteString("\r\n")
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
)

// EscapeText escapes a TEXT value per RFC 5545 section 3.3.11.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// UnescapeText reverses EscapeText.
func UnescapeText(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			sb.WriteByte('\n')
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// FormatDateTime renders a local date-time value the way it appears on the
// wire, without a timezone designator.
func FormatDateTime(t time.Time) string {
	return t.Format(dateTimeLayout)
}
