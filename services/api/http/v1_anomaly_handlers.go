package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

type outlierView struct {
	Timestamp time.Time `json:"timestamp"`
	Station   string    `json:"station"`
	Actual    float64   `json:"actual"`
	Expected  float64   `json:"expected"`
	Deviation float64   `json:"deviation"`
	Tolerance float64   `json:"tolerance"`
	Excluded  bool      `json:"excluded_from_baseline,omitempty"`
	Reason    string    `json:"reason"`
}

// measurementsFor reads the cleaned measurements behind an anomaly view.
// These views are not cached; they exist for quality review, not the chart.
func (s *Server) measurementsFor(c *gin.Context, endpoint string) (sealevel.Plan, []sealevel.Measurement, bool) {
	req, err := s.parseRequest(c)
	if err != nil {
		s.writeError(c, endpoint, err)
		return sealevel.Plan{}, nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	plan, ms, err := s.deps.Engine.Measurements(ctx, req)
	if err != nil {
		s.writeError(c, endpoint, err)
		return sealevel.Plan{}, nil, false
	}
	s.deps.Metrics.Requests.WithLabelValues(endpoint, string(plan.Level())).Inc()
	return plan, ms, true
}

// handleV1Outliers lists readings that break the station model.
// GET /api/v1/outliers?station=All Stations&start_date=...&end_date=...
func (s *Server) handleV1Outliers(c *gin.Context) {
	plan, ms, ok := s.measurementsFor(c, "outliers")
	if !ok {
		return
	}
	chain := s.deps.Engine.Scorer()

	outliers := make([]outlierView, 0)
	for _, sc := range chain.Score(ms) {
		v := sc.Verdict
		if !v.IsOutlier {
			continue
		}
		outliers = append(outliers, outlierView{
			Timestamp: sc.Measurement.Timestamp,
			Station:   sc.Measurement.Station,
			Actual:    v.Actual,
			Expected:  v.Expected,
			Deviation: v.Deviation,
			Tolerance: v.Tolerance,
			Excluded:  v.ExcludedFromBaseline,
			Reason:    v.Reason,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"data": outliers,
		"meta": gin.H{
			"level":         plan.Level(),
			"total_records": len(ms),
			"outlier_count": len(outliers),
			"strategy":      chain.Name(),
		},
	})
}

// handleV1Corrections suggests replacement values for outliers.
// GET /api/v1/corrections?station=Haifa&start_date=...&end_date=...
func (s *Server) handleV1Corrections(c *gin.Context) {
	plan, ms, ok := s.measurementsFor(c, "corrections")
	if !ok {
		return
	}
	chain := s.deps.Engine.Scorer()
	corrections := chain.SuggestCorrections(ms)

	c.JSON(http.StatusOK, gin.H{
		"data": corrections,
		"meta": gin.H{
			"level":            plan.Level(),
			"total_records":    len(ms),
			"correction_count": len(corrections),
			"strategy":         chain.Name(),
		},
	})
}

// handleV1Validation summarises model agreement per station.
// GET /api/v1/validation?station=All Stations&start_date=...&end_date=...
func (s *Server) handleV1Validation(c *gin.Context) {
	plan, ms, ok := s.measurementsFor(c, "validation")
	if !ok {
		return
	}
	report := s.deps.Engine.Scorer().ValidationReport(ms)

	c.JSON(http.StatusOK, gin.H{
		"data": report,
		"meta": gin.H{"level": plan.Level()},
	})
}
