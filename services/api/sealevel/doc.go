// Package sealevel holds the request-independent building blocks of the
// data path: the measurement model, the resolution selector that maps a
// date range onto an aggregation level, the query plan handed to a store,
// and the numeric cleaning applied to every row a store returns.
//
// # Resolution policy
//
// The level is a step function of the inclusive day count of the range:
//
//	days      level
//	<= 7      raw
//	8..30     hourly
//	31..90    tri-hourly
//	91..365   daily
//	> 365     weekly
//
// Each step keeps a dashboard series to a few hundred points per station.
//
// # Cleaning
//
// Station feeds report missing readings as -999 (or lower) and occasionally
// as NaN. Such primary values drop the row entirely; secondary values are
// nulled. Aggregated buckets average only valid values and a bucket with no
// valid contributors is not emitted.
package sealevel
