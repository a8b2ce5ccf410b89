package models

import "time"

// FeedResponse models the JSON payload returned by the station monitor feed.
type FeedResponse struct {
	Network  string    `json:"network"`
	Readings []Reading `json:"readings"`
}

// Reading is one station sample as published by the monitors.
type Reading struct {
	Station     string    `json:"Station"`
	Tag         string    `json:"Tab_TabularTag"`
	Timestamp   time.Time `json:"Tab_DateTime"`
	Depth       *float64  `json:"Tab_Value_mDepthC1"`
	Temperature *float64  `json:"Tab_Value_monT2m"`
}

// Candidate is a normalized reading ready for insertion.
type Candidate struct {
	Station   string
	TS        time.Time
	Primary   *float64
	Secondary *float64
}

// LastReading is the most recent stored reading for a station.
type LastReading struct {
	Primary *float64
	TS      time.Time
}
