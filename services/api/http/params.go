package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sealevel-monitor/dashboard/services/api/engine"
	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// allStations expands to every station in the baseline model.
const allStations = "All Stations"

// defaultWindowDays is the range used when start_date is omitted.
const defaultWindowDays = 7

// paramError is a malformed query parameter.
type paramError struct {
	name string
	msg  string
}

func (e *paramError) Error() string { return fmt.Sprintf("invalid %s: %s", e.name, e.msg) }

// parseRequest reads the shared dashboard query parameters.
func (s *Server) parseRequest(c *gin.Context) (engine.Request, error) {
	var req engine.Request

	req.Stations = s.parseStations(c)

	now := time.Now().UTC()
	end := sealevel.LevelDaily.Truncate(now)
	if v := c.Query("end_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return req, &paramError{name: "end_date", msg: err.Error()}
		}
		end = t
	}
	start := end.AddDate(0, 0, -(defaultWindowDays - 1))
	if v := c.Query("start_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return req, &paramError{name: "start_date", msg: err.Error()}
		}
		start = t
	}
	req.Start, req.End = start, end

	source, err := sealevel.ParseSource(c.Query("data_source"))
	if err != nil {
		return req, err
	}
	req.Source = source

	if v := c.Query("show_anomalies"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, &paramError{name: "show_anomalies", msg: "expected true or false"}
		}
		req.Anomalies = b
	}
	return req, nil
}

// parseStations accepts repeated station=X, a comma separated stations=X,Y
// or the "All Stations" selector.
func (s *Server) parseStations(c *gin.Context) []string {
	var names []string
	names = append(names, c.QueryArray("station")...)
	if v := c.Query("stations"); v != "" {
		names = append(names, strings.Split(v, ",")...)
	}
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), allStations) {
			return s.deps.Model.StationNames()
		}
	}
	return names
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not YYYY-MM-DD or RFC3339", v)
	}
	return t.UTC(), nil
}

// writeError maps engine and validation errors onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, endpoint string, err error) {
	var (
		pErr  *paramError
		dsErr *engine.DataSourceError
	)
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, sealevel.ErrEmptyStationSet):
		status, kind = http.StatusNotFound, "not_found"
	case errors.As(err, &pErr),
		errors.Is(err, sealevel.ErrInvalidRange),
		errors.Is(err, sealevel.ErrInvalidSource),
		errors.Is(err, sealevel.ErrInvalidLevel):
		status, kind = http.StatusBadRequest, "invalid"
	case errors.As(err, &dsErr):
		kind = "store"
	}
	s.deps.Metrics.RequestErrors.WithLabelValues(endpoint, kind).Inc()
	if status >= http.StatusInternalServerError {
		s.deps.Log.ErrorContext(c.Request.Context(), "request failed",
			"request_id", c.GetString("request_id"), "endpoint", endpoint, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
