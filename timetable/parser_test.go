package timetable

import (
	"errors"
	"os"
	"testing"
	"time"
)

func fallMeta(t *testing.T) PeriodMeta {
	t.Helper()
	return PeriodMeta{
		Start: time.Date(2022, time.September, 1, 0, 0, 0, 0, Madrid),
		End:   time.Date(2022, time.December, 23, 0, 0, 0, 0, Madrid),
		Holidays: []time.Time{
			time.Date(2022, time.October, 31, 0, 0, 0, 0, Madrid), // Monday
			time.Date(2022, time.November, 1, 0, 0, 0, 0, Madrid), // Tuesday
			time.Date(2022, time.December, 8, 0, 0, 0, 0, Madrid), // Thursday, matches nothing
		},
	}
}

func loadFixture(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/timetable.html")
	if err != nil {
		t.Fatalf("could not read fixture: %v", err)
	}
	return raw
}

func TestParseFixture(t *testing.T) {
	sessions, err := Parse(loadFixture(t), fallMeta(t))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("got %d sessions, want 3: %+v", len(sessions), sessions)
	}

	lecture := sessions[0]
	if lecture.CourseCode != "13871" || lecture.GroupID != "95" {
		t.Errorf("lecture identity = %s-%s, want 13871-95", lecture.CourseCode, lecture.GroupID)
	}
	if lecture.Subject != "Redes de Computadores" {
		t.Errorf("lecture subject = %q", lecture.Subject)
	}
	if lecture.Type != SessionLecture {
		t.Errorf("lecture type = %v, want SessionLecture", lecture.Type)
	}
	if lecture.Weekday != time.Monday {
		t.Errorf("lecture weekday = %s, want Monday", lecture.Weekday)
	}
	// Two adjacent one-hour cells merge into a single two-hour session.
	if lecture.Start != (TimeOfDay{9, 0}) || lecture.End != (TimeOfDay{11, 0}) {
		t.Errorf("lecture slot = %s-%s, want 09:00-11:00", lecture.Start, lecture.End)
	}
	if lecture.Location != "Aula 4.0.E02" {
		t.Errorf("lecture location = %q", lecture.Location)
	}
	wantFirst := time.Date(2022, time.September, 12, 0, 0, 0, 0, Madrid)
	wantLast := time.Date(2022, time.December, 5, 0, 0, 0, 0, Madrid)
	if !lecture.FirstDate.Equal(wantFirst) || !lecture.LastDate.Equal(wantLast) {
		t.Errorf("lecture span = %s..%s", lecture.FirstDate, lecture.LastDate)
	}
	if len(lecture.Excluded) != 1 || lecture.Excluded[0].Day() != 31 {
		t.Errorf("lecture excluded = %v, want the October 31 holiday", lecture.Excluded)
	}

	exam := sessions[1]
	if exam.Type != SessionExam {
		t.Errorf("exam type = %v, want SessionExam", exam.Type)
	}
	if !exam.FirstDate.Equal(exam.LastDate) {
		t.Errorf("exam span = %s..%s, want a single date", exam.FirstDate, exam.LastDate)
	}
	if exam.FirstDate.Day() != 19 || exam.FirstDate.Month() != time.December {
		t.Errorf("exam date = %s, want December 19", exam.FirstDate)
	}
	if len(exam.Excluded) != 0 {
		t.Errorf("exam excluded = %v, want none", exam.Excluded)
	}

	lab := sessions[2]
	if lab.CourseCode != "13902" || lab.Type != SessionLab || lab.Weekday != time.Tuesday {
		t.Errorf("lab = %+v, want 13902 lab on Tuesday", lab)
	}
	if lab.Start != (TimeOfDay{10, 0}) || lab.End != (TimeOfDay{11, 30}) {
		t.Errorf("lab slot = %s-%s, want 10:00-11:30", lab.Start, lab.End)
	}
	if len(lab.Excluded) != 1 || lab.Excluded[0].Month() != time.November {
		t.Errorf("lab excluded = %v, want the November 1 holiday", lab.Excluded)
	}
}

func TestParseMalformedPage(t *testing.T) {
	_, err := Parse([]byte("<html><body><p>mantenimiento</p></body></html>"), fallMeta(t))
	if !errors.Is(err, ErrMalformedTable) {
		t.Fatalf("err = %v, want ErrMalformedTable", err)
	}
}

func TestParseUnknownTimeFormat(t *testing.T) {
	page := `<table class="timetable"><tbody>
		<tr><td class="cabeceraHora">primera<sup>hora</sup></td><td></td></tr>
	</tbody></table>`
	_, err := Parse([]byte(page), fallMeta(t))
	if !errors.Is(err, ErrUnknownTimeFormat) {
		t.Fatalf("err = %v, want ErrUnknownTimeFormat", err)
	}
}

func TestParseMissingPeriodBounds(t *testing.T) {
	_, err := Parse(loadFixture(t), PeriodMeta{})
	if !errors.Is(err, ErrMissingDateRange) {
		t.Fatalf("err = %v, want ErrMissingDateRange", err)
	}
}

func TestParseInvertedPeriodBounds(t *testing.T) {
	meta := fallMeta(t)
	meta.Start, meta.End = meta.End, meta.Start
	_, err := Parse(loadFixture(t), meta)
	if !errors.Is(err, ErrMissingDateRange) {
		t.Fatalf("err = %v, want ErrMissingDateRange", err)
	}
}

func TestParseOverlapFails(t *testing.T) {
	// Two different courses of the same group occupy 09:00-10:30 and
	// 10:00-11:00 on the same Mondays.
	page := `<table class="timetable"><tbody>
		<tr>
			<td class="cabeceraHora">9<sup>00</sup></td>
			<td class="celdaConSesion" rowspan="6">
				<div class="asignaturaGrupo">13871-95 Redes de Computadores (T)
					<div class="fechasSesion"><span>12.sep - 05.dic:</span><span>Aula 1</span></div>
				</div>
			</td>
		</tr>
		<tr>
			<td class="cabeceraHora">10<sup>00</sup></td>
			<td class="celdaConSesion" rowspan="4">
				<div class="asignaturaGrupo">13902-95 Sistemas Operativos (T)
					<div class="fechasSesion"><span>12.sep - 05.dic:</span><span>Aula 2</span></div>
				</div>
			</td>
		</tr>
	</tbody></table>`
	_, err := Parse([]byte(page), fallMeta(t))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if verr.GroupID != "95" || verr.Weekday != time.Monday {
		t.Errorf("validation error = %v, want group 95 on Monday", verr)
	}
}

func TestParseEmptyCellsTolerated(t *testing.T) {
	page := `<table class="timetable"><tbody>
		<tr><td class="cabeceraHora">9<sup>00</sup></td><td></td><td></td></tr>
		<tr><td class="cabeceraHora">9<sup>15</sup></td><td></td><td></td></tr>
	</tbody></table>`
	sessions, err := Parse([]byte(page), fallMeta(t))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("got %d sessions, want 0", len(sessions))
	}
}

func TestParseWinterPeriodYearWrap(t *testing.T) {
	// A spring-term date before the period start month belongs to the
	// later calendar year.
	page := `<table class="timetable"><tbody>
		<tr>
			<td class="cabeceraHora">9<sup>00</sup></td>
			<td class="celdaConSesion" rowspan="4">
				<div class="asignaturaGrupo">13871-95 Redes de Computadores (T)
					<div class="fechasSesion"><span>09.ene - 15.may:</span><span>Aula 1</span></div>
				</div>
			</td>
		</tr>
	</tbody></table>`
	meta := PeriodMeta{
		Start: time.Date(2022, time.December, 1, 0, 0, 0, 0, Madrid),
		End:   time.Date(2023, time.May, 31, 0, 0, 0, 0, Madrid),
	}
	sessions, err := Parse([]byte(page), meta)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	if sessions[0].FirstDate.Year() != 2023 || sessions[0].LastDate.Year() != 2023 {
		t.Errorf("span = %s..%s, want 2023 dates", sessions[0].FirstDate, sessions[0].LastDate)
	}
}
