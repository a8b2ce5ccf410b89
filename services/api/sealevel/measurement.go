package sealevel

import (
	"fmt"
	"strings"
	"time"
)

// Source tags which feed a measurement came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceTides   Source = "tides"
)

// ParseSource validates a source tag. An empty string selects the default feed.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(SourceDefault):
		return SourceDefault, nil
	case string(SourceTides):
		return SourceTides, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, s)
	}
}

// Row is a measurement as read from a store, before cleaning. Values are
// nullable and may carry sentinels or non-finite numbers.
type Row struct {
	Station   string
	Timestamp time.Time
	Primary   *float64
	Secondary *float64
	Source    Source
	// Count is the number of raw rows behind an aggregated row; zero for raw rows.
	Count int
}

// Measurement is a cleaned observation. For aggregated levels Timestamp is
// the bucket start and Count the number of contributing raw rows.
type Measurement struct {
	Station   string    `json:"station"`
	Timestamp time.Time `json:"timestamp"`
	Primary   float64   `json:"value_primary"`
	Secondary *float64  `json:"value_secondary,omitempty"`
	Source    Source    `json:"source"`
	Count     int       `json:"count"`
}

// DedupeStations trims, drops blanks and removes duplicates, preserving
// first-seen order.
func DedupeStations(stations []string) []string {
	seen := make(map[string]struct{}, len(stations))
	out := make([]string, 0, len(stations))
	for _, s := range stations {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
