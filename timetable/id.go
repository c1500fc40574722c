package timetable

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const timetableDomain = "aplicaciones.uc3m.es"

// Madrid is the timezone every UC3M timetable is published in.
var Madrid = mustLoadLocation("Europe/Madrid")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// TimetableID identifies one published per-group timetable.
type TimetableID struct {
	Year   int
	Plan   int
	Center int
	Grade  int
	Group  int
	Period int
}

// URL returns the address the timetable page is published at.
func (id TimetableID) URL() string {
	u := url.URL{
		Scheme: "https",
		Host:   timetableDomain,
		Path:   fmt.Sprintf("/horarios-web/publicacion/%d/porCentroPlanCursoGrupo.tt", id.Year),
	}
	q := url.Values{}
	q.Set("plan", strconv.Itoa(id.Plan))
	q.Set("centro", strconv.Itoa(id.Center))
	q.Set("curso", strconv.Itoa(id.Grade))
	q.Set("grupo", strconv.Itoa(id.Group))
	q.Set("tipoPer", "C")
	q.Set("valorPer", strconv.Itoa(id.Period))
	u.RawQuery = q.Encode()
	return u.String()
}

// ErrNotTimetableURL is returned by ParseTimetableURL for addresses that do
// not point at a published UC3M timetable.
var ErrNotTimetableURL = errors.New("not a uc3m timetable url")

// ParseTimetableURL extracts a TimetableID from a pasted timetable address.
// It is the inverse of TimetableID.URL.
func ParseTimetableURL(raw string) (TimetableID, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return TimetableID{}, fmt.Errorf("%w: %v", ErrNotTimetableURL, err)
	}
	if u.Hostname() != timetableDomain {
		return TimetableID{}, fmt.Errorf("%w: unexpected host %q", ErrNotTimetableURL, u.Hostname())
	}

	// Path shape: /horarios-web/publicacion/{year}/porCentroPlanCursoGrupo.tt
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 3 {
		return TimetableID{}, fmt.Errorf("%w: missing year path segment", ErrNotTimetableURL)
	}
	year, err := strconv.Atoi(segments[2])
	if err != nil {
		return TimetableID{}, fmt.Errorf("%w: non-numeric year segment %q", ErrNotTimetableURL, segments[2])
	}

	query := u.Query()
	intParam := func(name string) (int, error) {
		raw := query.Get(name)
		if raw == "" {
			return 0, fmt.Errorf("%w: missing query param %q", ErrNotTimetableURL, name)
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid query param %q", ErrNotTimetableURL, name)
		}
		return v, nil
	}

	id := TimetableID{Year: year}
	if id.Plan, err = intParam("plan"); err != nil {
		return TimetableID{}, err
	}
	if id.Center, err = intParam("centro"); err != nil {
		return TimetableID{}, err
	}
	if id.Grade, err = intParam("curso"); err != nil {
		return TimetableID{}, err
	}
	if id.Group, err = intParam("grupo"); err != nil {
		return TimetableID{}, err
	}
	if id.Period, err = intParam("valorPer"); err != nil {
		return TimetableID{}, err
	}
	return id, nil
}
