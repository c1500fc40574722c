// Package server exposes the export pipeline over HTTP: one endpoint that
// turns the six timetable identifiers into a .ics download, plus a helper
// that redirects a pasted timetable URL onto it.
package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uc3mcal/uc3mcal/timetable"
)

type Server struct {
	router  *gin.Engine
	fetcher timetable.Fetcher
	logger  *zap.Logger
}

func New(fetcher timetable.Fetcher, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	s := &Server{
		router:  router,
		fetcher: fetcher,
		logger:  logger,
	}
	router.GET("/", s.handleTimetable)
	router.GET("/from", s.handleFrom)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) handleTimetable(c *gin.Context) {
	id, ok := timetableIDFromQuery(c)
	if !ok {
		return
	}
	meta, ok := periodMetaFromQuery(c, id)
	if !ok {
		return
	}

	raw, err := s.fetcher.Fetch(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("timetable retrieval failed", zap.Error(err), zap.Int("year", id.Year), zap.Int("group", id.Group))
		c.String(http.StatusBadGateway, "cannot retrieve timetable: %v", err)
		return
	}

	doc, err := timetable.Export(raw, meta)
	if err != nil {
		s.logger.Error("timetable export failed", zap.Error(err), zap.Int("year", id.Year), zap.Int("group", id.Group))
		c.String(http.StatusInternalServerError, "cannot parse timetable: %v", err)
		return
	}

	filename := fmt.Sprintf("horario-%d-%d-%d-%d.ics", id.Year, id.Grade, id.Group, id.Period)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(doc))
}

func (s *Server) handleFrom(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		c.String(http.StatusBadRequest, "missing `url` query parameter")
		return
	}
	id, err := timetable.ParseTimetableURL(raw)
	if err != nil {
		c.String(http.StatusBadRequest, "unknown timetable url: %v", err)
		return
	}
	target := fmt.Sprintf("/?year=%d&plan=%d&center=%d&grade=%d&group=%d&period=%d",
		id.Year, id.Plan, id.Center, id.Grade, id.Group, id.Period)
	c.Redirect(http.StatusFound, target)
}

func timetableIDFromQuery(c *gin.Context) (timetable.TimetableID, bool) {
	var id timetable.TimetableID
	for _, p := range []struct {
		name string
		dest *int
	}{
		{"year", &id.Year},
		{"plan", &id.Plan},
		{"center", &id.Center},
		{"grade", &id.Grade},
		{"group", &id.Group},
		{"period", &id.Period},
	} {
		raw := c.Query(p.name)
		if raw == "" {
			c.String(http.StatusBadRequest, "missing `%s` query parameter", p.name)
			return id, false
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.String(http.StatusBadRequest, "invalid `%s` query parameter", p.name)
			return id, false
		}
		*p.dest = v
	}
	return id, true
}

// periodMetaFromQuery builds the period metadata, with optional `start`,
// `end` and repeated `holiday` query parameters (2006-01-02) overriding the
// defaults for the period.
func periodMetaFromQuery(c *gin.Context, id timetable.TimetableID) (timetable.PeriodMeta, bool) {
	meta := timetable.DefaultPeriodMeta(id)

	parseDate := func(name, raw string) (time.Time, bool) {
		d, err := time.ParseInLocation(time.DateOnly, raw, timetable.Madrid)
		if err != nil {
			c.String(http.StatusBadRequest, "invalid `%s` query parameter", name)
			return time.Time{}, false
		}
		return d, true
	}

	if raw := c.Query("start"); raw != "" {
		d, ok := parseDate("start", raw)
		if !ok {
			return meta, false
		}
		meta.Start = d
	}
	if raw := c.Query("end"); raw != "" {
		d, ok := parseDate("end", raw)
		if !ok {
			return meta, false
		}
		meta.End = d
	}
	for _, raw := range c.QueryArray("holiday") {
		d, ok := parseDate("holiday", raw)
		if !ok {
			return meta, false
		}
		meta.Holidays = append(meta.Holidays, d)
	}

	if meta.End.Before(meta.Start) {
		c.String(http.StatusBadRequest, "invalid period: `end` is before `start`")
		return meta, false
	}
	return meta, true
}
