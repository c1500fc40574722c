package timetable

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Parse errors. Callers match them with errors.Is; the wrapped message
// carries the offending table position.
var (
	ErrMalformedTable    = errors.New("malformed timetable table")
	ErrUnknownTimeFormat = errors.New("unknown time slot format")
	ErrMissingDateRange  = errors.New("missing date range")
)

// slotMinutes is the granularity of the published table: each row is one
// 15-minute slot and a session cell spans rowspan slots.
const slotMinutes = 15

// PeriodMeta carries the academic-period metadata that lives outside the
// timetable table itself: the period bounds, which pin the calendar year of
// the `dd.mon` dates inside the table, and the academic-calendar holidays.
type PeriodMeta struct {
	Start    time.Time
	End      time.Time
	Holidays []time.Time
	Location *time.Location // defaults to Madrid
}

func (m *PeriodMeta) location() *time.Location {
	if m.Location != nil {
		return m.Location
	}
	return Madrid
}

// DefaultPeriodMeta returns the usual bounds of an academic period: the
// fall term of the timetable's year, or the spring term of the following
// calendar year.
func DefaultPeriodMeta(id TimetableID) PeriodMeta {
	if id.Period == 2 {
		return PeriodMeta{
			Start: time.Date(id.Year+1, time.January, 8, 0, 0, 0, 0, Madrid),
			End:   time.Date(id.Year+1, time.May, 31, 0, 0, 0, 0, Madrid),
		}
	}
	return PeriodMeta{
		Start: time.Date(id.Year, time.September, 1, 0, 0, 0, 0, Madrid),
		End:   time.Date(id.Year, time.December, 23, 0, 0, 0, 0, Madrid),
	}
}

// courseHeaderRe matches the `.asignaturaGrupo` header text, e.g.
// "13871-95 Redes de Computadores (T)": course code, group, subject and an
// optional session-type marker.
var courseHeaderRe = regexp.MustCompile(`^(\d+)-(\d+)\s+(.+?)(?:\s+\(([A-Za-z])\))?$`)

var spanishMonths = map[string]time.Month{
	"ene": time.January, "feb": time.February, "mar": time.March,
	"abr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "ago": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dic": time.December,
}

// Parse turns the raw timetable page into normalized sessions. It is a pure
// function of the input bytes and the period metadata: adjacent slots of the
// same course are merged and the resulting set is validated for overlaps.
func Parse(raw []byte, meta PeriodMeta) ([]ClassSession, error) {
	if meta.Start.IsZero() || meta.End.IsZero() {
		return nil, fmt.Errorf("%w: period start and end dates are required", ErrMissingDateRange)
	}
	if meta.End.Before(meta.Start) {
		return nil, fmt.Errorf("%w: period end %s is before start %s", ErrMissingDateRange,
			meta.End.Format(time.DateOnly), meta.Start.Format(time.DateOnly))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}

	tbody := doc.Find(".timetable > tbody").First()
	if tbody.Length() == 0 {
		return nil, fmt.Errorf("%w: no .timetable tbody element", ErrMalformedTable)
	}

	var sessions []ClassSession
	var parseErr error
	tbody.ChildrenFiltered("tr").EachWithBreak(func(rowIdx int, row *goquery.Selection) bool {
		start, err := parseSlotStart(row, rowIdx)
		if err != nil {
			parseErr = err
			return false
		}
		row.ChildrenFiltered("td.celdaConSesion").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			cellSessions, err := parseCell(cell, start, &meta)
			if err != nil {
				parseErr = err
				return false
			}
			sessions = append(sessions, cellSessions...)
			return true
		})
		return parseErr == nil
	})
	if parseErr != nil {
		return nil, parseErr
	}

	sessions = MergeAdjacent(sessions)
	if err := ValidateSessions(sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// parseSlotStart reads the row's `.cabeceraHora` cell: the hour as the cell
// text with the minutes inside a trailing <sup> element.
func parseSlotStart(row *goquery.Selection, rowIdx int) (TimeOfDay, error) {
	cell := row.Find(".cabeceraHora").First()
	if cell.Length() == 0 {
		return TimeOfDay{}, fmt.Errorf("%w: row %d has no time cell", ErrMalformedTable, rowIdx)
	}

	minText := strings.TrimSpace(cell.Find("sup").First().Text())
	hourText := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cell.Text()), minText))
	if hourText == "" || minText == "" {
		return TimeOfDay{}, fmt.Errorf("%w: row %d time cell %q", ErrUnknownTimeFormat, rowIdx, cell.Text())
	}

	hour, err := strconv.Atoi(hourText)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: non-numeric hour %q in row %d", ErrUnknownTimeFormat, hourText, rowIdx)
	}
	min, err := strconv.Atoi(minText)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: non-numeric minutes %q in row %d", ErrUnknownTimeFormat, minText, rowIdx)
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: time %02d:%02d out of range in row %d", ErrUnknownTimeFormat, hour, min, rowIdx)
	}
	return TimeOfDay{Hour: hour, Minute: min}, nil
}

// parseCell extracts every session series of one occupied cell. A cell may
// list several date ranges (e.g. part of the term in one room, the rest in
// another), each of which becomes its own session.
func parseCell(cell *goquery.Selection, start TimeOfDay, meta *PeriodMeta) ([]ClassSession, error) {
	slots := 1
	if raw, ok := cell.Attr("rowspan"); ok {
		var err error
		if slots, err = strconv.Atoi(strings.TrimSpace(raw)); err != nil || slots < 1 {
			return nil, fmt.Errorf("%w: invalid rowspan %q", ErrMalformedTable, raw)
		}
	}
	end := start.AddMinutes(slots * slotMinutes)

	group := cell.Find(".asignaturaGrupo").First()
	if group.Length() == 0 {
		return nil, fmt.Errorf("%w: occupied cell has no course element", ErrMalformedTable)
	}
	header := firstTextNode(group)
	m := courseHeaderRe.FindStringSubmatch(header)
	if m == nil {
		return nil, fmt.Errorf("%w: cannot parse course header %q", ErrMalformedTable, header)
	}
	courseCode, groupID, subject := m[1], m[2], m[3]
	sessionType := sessionTypeFromMarker(m[4])

	dates := group.Find(".fechasSesion").First()
	if dates.Length() == 0 {
		return nil, fmt.Errorf("%w: course %s-%s has no session dates element", ErrMalformedTable, courseCode, groupID)
	}

	var spans []string
	dates.Find("span").Each(func(_ int, span *goquery.Selection) {
		spans = append(spans, strings.TrimSpace(span.Text()))
	})
	if len(spans) == 0 {
		return nil, fmt.Errorf("%w: course %s-%s lists no session dates", ErrMissingDateRange, courseCode, groupID)
	}

	loc := meta.location()
	var sessions []ClassSession
	// Spans come in (date range, location) pairs; a trailing range without
	// a location span keeps an empty location.
	for i := 0; i < len(spans); i += 2 {
		first, last, err := parseDateRange(spans[i], meta, loc)
		if err != nil {
			return nil, fmt.Errorf("course %s-%s: %w", courseCode, groupID, err)
		}
		location := ""
		if i+1 < len(spans) {
			location = spans[i+1]
		}
		weekday := first.Weekday()
		sessions = append(sessions, ClassSession{
			CourseCode: courseCode,
			GroupID:    groupID,
			Subject:    subject,
			Type:       sessionType,
			Weekday:    weekday,
			Start:      start,
			End:        end,
			Location:   location,
			FirstDate:  first,
			LastDate:   last,
			Excluded:   holidaysInSpan(meta.Holidays, weekday, first, last, loc),
		})
	}
	return sessions, nil
}

func sessionTypeFromMarker(marker string) SessionType {
	switch strings.ToUpper(marker) {
	case "T":
		return SessionLecture
	case "P":
		return SessionLab
	case "S":
		return SessionSeminar
	case "E":
		return SessionExam
	default:
		return SessionOther
	}
}

// firstTextNode returns the first non-empty text node directly under the
// selection, skipping nested elements.
func firstTextNode(sel *goquery.Selection) string {
	var text string
	sel.Contents().EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if goquery.NodeName(node) == "#text" {
			if t := strings.TrimSpace(node.Text()); t != "" {
				text = t
				return false
			}
		}
		return true
	})
	return text
}

// parseDateRange reads a `dd.mon - dd.mon:` range (or a single `dd.mon:`
// date) into period-anchored midnights.
func parseDateRange(raw string, meta *PeriodMeta, loc *time.Location) (time.Time, time.Time, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), ":"))
	if raw == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: empty session date range", ErrMissingDateRange)
	}

	startRaw, endRaw, isRange := strings.Cut(raw, "-")
	first, err := parseSpanishDate(startRaw, meta, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !isRange {
		return first, first, nil
	}
	last, err := parseSpanishDate(endRaw, meta, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return first, last, nil
}

// parseSpanishDate reads a `dd.mon` date with a Spanish month abbreviation.
// The year comes from the period bounds: dates before the period start in a
// period that crosses a year boundary belong to the later year.
func parseSpanishDate(raw string, meta *PeriodMeta, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	dayRaw, monthRaw, ok := strings.Cut(raw, ".")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: date %q does not follow dd.mon", ErrMalformedTable, raw)
	}
	day, err := strconv.Atoi(strings.TrimSpace(dayRaw))
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: invalid day in date %q", ErrMalformedTable, raw)
	}
	month, ok := spanishMonths[strings.ToLower(strings.TrimSpace(monthRaw))]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: unknown month in date %q", ErrMalformedTable, raw)
	}

	d := time.Date(meta.Start.Year(), month, day, 0, 0, 0, 0, loc)
	if d.Before(dateOnly(meta.Start.In(loc))) && meta.End.Year() > meta.Start.Year() {
		d = time.Date(meta.End.Year(), month, day, 0, 0, 0, 0, loc)
	}
	return d, nil
}

func holidaysInSpan(holidays []time.Time, weekday time.Weekday, first, last time.Time, loc *time.Location) []time.Time {
	var out []time.Time
	for _, h := range holidays {
		d := dateOnly(h.In(loc))
		if d.Weekday() == weekday && !d.Before(first) && !d.After(last) {
			out = append(out, d)
		}
	}
	return out
}
