package http

// registerV1Routes sets up /api/v1. The bearer token, when configured,
// guards only this group so probes stay open.
func (s *Server) registerV1Routes() {
	v1 := s.router.Group("/api/v1")
	if s.cfg.BearerToken != "" {
		v1.Use(bearerAuthMiddleware(s.cfg.BearerToken))
	}

	v1.GET("/data", s.handleV1Data)
	v1.GET("/stations", s.handleV1Stations)

	// Anomaly views over the same query parameters as /data.
	v1.GET("/outliers", s.handleV1Outliers)
	v1.GET("/corrections", s.handleV1Corrections)
	v1.GET("/validation", s.handleV1Validation)
}
