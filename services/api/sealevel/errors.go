package sealevel

import "errors"

var (
	// ErrInvalidRange is returned when a range ends before it starts.
	ErrInvalidRange = errors.New("invalid range: end date is before start date")
	// ErrEmptyStationSet is returned when a request names no stations.
	ErrEmptyStationSet = errors.New("no stations requested")
	// ErrInvalidSource is returned for a source tag other than default or tides.
	ErrInvalidSource = errors.New("invalid data source")
	// ErrInvalidLevel is returned when parsing an unknown aggregation level.
	ErrInvalidLevel = errors.New("invalid aggregation level")
)
