package anomaly

import (
	"fmt"
	"strings"

	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// Verdict is the outcome of scoring one measurement.
type Verdict struct {
	// Scored is false when no verdict could be formed (no anchors reported,
	// unknown station, too few samples). Such readings pass through unflagged.
	Scored               bool    `json:"scored"`
	Actual               float64 `json:"actual"`
	Expected             float64 `json:"expected"`
	Baseline             float64 `json:"baseline"`
	Deviation            float64 `json:"deviation"`
	Tolerance            float64 `json:"tolerance"`
	IsOutlier            bool    `json:"is_outlier"`
	Corrected            float64 `json:"corrected"`
	ExcludedFromBaseline bool    `json:"excluded_from_baseline,omitempty"`
	BaselineSources      int     `json:"baseline_sources,omitempty"`
	Reason               string  `json:"reason"`
}

// Scored pairs a measurement with its verdict.
type Scored struct {
	Measurement sealevel.Measurement `json:"measurement"`
	Verdict     Verdict              `json:"verdict"`
}

// Scorer turns a batch of measurements into one verdict per measurement,
// in input order.
type Scorer interface {
	Name() string
	// Available reports whether the strategy is usable with its configuration.
	Available() bool
	Score(ms []sealevel.Measurement) []Scored
}

// Strategy names accepted by NewScorers.
const (
	StrategyBaseline = "baseline"
	StrategyIQR      = "iqr"
)

// NewScorers builds the strategies named in names, in order.
func NewScorers(names []string, model Model) ([]Scorer, error) {
	out := make([]Scorer, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case StrategyBaseline:
			out = append(out, NewBaselineScorer(model))
		case StrategyIQR:
			out = append(out, NewIQRScorer())
		case "":
		default:
			return nil, fmt.Errorf("unknown anomaly strategy %q", n)
		}
	}
	return out, nil
}

// Chain delegates to the first available strategy of an ordered list.
type Chain struct {
	scorers []Scorer
}

// NewChain returns a chain over scorers in priority order.
func NewChain(scorers ...Scorer) *Chain {
	return &Chain{scorers: scorers}
}

// Active returns the strategy the chain delegates to, or nil.
func (c *Chain) Active() Scorer {
	for _, s := range c.scorers {
		if s.Available() {
			return s
		}
	}
	return nil
}

// Name is the active strategy's name, or "none".
func (c *Chain) Name() string {
	if s := c.Active(); s != nil {
		return s.Name()
	}
	return "none"
}

func (c *Chain) Available() bool { return c.Active() != nil }

// Score runs the active strategy. Without one every reading passes through.
func (c *Chain) Score(ms []sealevel.Measurement) []Scored {
	if s := c.Active(); s != nil {
		return s.Score(ms)
	}
	out := make([]Scored, len(ms))
	for i, m := range ms {
		out[i] = unscored(m, "no anomaly strategy configured")
	}
	return out
}

// SuggestCorrections scores ms and returns corrections for outliers only.
func (c *Chain) SuggestCorrections(ms []sealevel.Measurement) []Correction {
	return Corrections(c.Score(ms))
}

// ValidationReport scores ms and summarises the verdicts per station.
func (c *Chain) ValidationReport(ms []sealevel.Measurement) Report {
	r := BuildReport(c.Score(ms))
	r.Strategy = c.Name()
	return r
}

func unscored(m sealevel.Measurement, reason string) Scored {
	return Scored{
		Measurement: m,
		Verdict: Verdict{
			Actual:    m.Primary,
			Corrected: m.Primary,
			Reason:    reason,
		},
	}
}
