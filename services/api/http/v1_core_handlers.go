package http

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/sealevel-monitor/dashboard/services/api/anomaly"
	"github.com/sealevel-monitor/dashboard/services/api/db"
	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// handleV1Data returns measurements for the requested stations at the
// resolution chosen for the date range.
// GET /api/v1/data?station=Haifa&station=Yafo&start_date=2025-01-01&end_date=2025-01-31&show_anomalies=true
func (s *Server) handleV1Data(c *gin.Context) {
	req, err := s.parseRequest(c)
	if err != nil {
		s.writeError(c, "data", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	resp, err := s.deps.Engine.Query(ctx, req)
	if err != nil {
		s.writeError(c, "data", err)
		return
	}

	if resp.CacheHit {
		c.Header("X-Cache", "hit")
	} else {
		c.Header("X-Cache", "miss")
	}
	c.JSON(http.StatusOK, resp.Result)
}

type stationView struct {
	db.StationSnapshot
	Anchor    bool     `json:"anchor"`
	Offset    *float64 `json:"offset,omitempty"`
	Tolerance *float64 `json:"tolerance,omitempty"`
}

// handleV1Stations lists stations known to the store or the baseline model.
// GET /api/v1/stations?data_source=default
func (s *Server) handleV1Stations(c *gin.Context) {
	source, err := sealevel.ParseSource(c.Query("data_source"))
	if err != nil {
		s.writeError(c, "stations", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	snaps, err := s.deps.Stations.ListStations(ctx, source)
	if err != nil {
		s.writeError(c, "stations", err)
		return
	}

	stations := mergeStations(snaps, s.deps.Model)
	c.JSON(http.StatusOK, gin.H{
		"data": stations,
		"meta": gin.H{
			"count":               len(stations),
			"anchors":             s.deps.Model.Anchors,
			"agreement_threshold": s.deps.Model.AgreementThreshold,
		},
	})
}

func mergeStations(snaps []db.StationSnapshot, model anomaly.Model) []stationView {
	byName := make(map[string]stationView)
	for _, snap := range snaps {
		byName[snap.Station] = stationView{StationSnapshot: snap}
	}
	for _, name := range model.StationNames() {
		v, ok := byName[name]
		if !ok {
			v = stationView{StationSnapshot: db.StationSnapshot{Station: name}}
		}
		rule, _ := model.Rule(name)
		offset, tolerance := rule.Offset, rule.Tolerance
		v.Offset, v.Tolerance = &offset, &tolerance
		v.Anchor = model.IsAnchor(name)
		byName[name] = v
	}
	out := make([]stationView, 0, len(byName))
	for _, v := range byName {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Station < out[j].Station })
	return out
}
