package anomaly

import (
	"fmt"
	"math"
	"sort"

	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// minIQRSamples is the smallest per-station sample for which quartiles are
// considered meaningful.
const minIQRSamples = 11

// IQRScorer flags readings outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR] of their
// own station's values in the batch. It has no model of the coupling between
// stations and is only used when no station model is configured.
type IQRScorer struct {
	k float64
}

func NewIQRScorer() *IQRScorer { return &IQRScorer{k: 1.5} }

func (s *IQRScorer) Name() string    { return StrategyIQR }
func (s *IQRScorer) Available() bool { return true }

func (s *IQRScorer) Score(ms []sealevel.Measurement) []Scored {
	out := make([]Scored, len(ms))
	byStation := make(map[string][]int)
	for i, m := range ms {
		byStation[m.Station] = append(byStation[m.Station], i)
	}
	for station, idx := range byStation {
		if len(idx) < minIQRSamples {
			for _, i := range idx {
				out[i] = unscored(ms[i], fmt.Sprintf("only %d readings for %s; at least %d needed for quartiles", len(idx), station, minIQRSamples))
			}
			continue
		}
		values := make([]float64, len(idx))
		for j, i := range idx {
			values[j] = ms[i].Primary
		}
		sort.Float64s(values)
		q1, median, q3 := quantile(values, 0.25), quantile(values, 0.5), quantile(values, 0.75)
		lo, hi := q1-s.k*(q3-q1), q3+s.k*(q3-q1)

		for _, i := range idx {
			m := ms[i]
			tolerance := hi - median
			if m.Primary < median {
				tolerance = median - lo
			}
			v := Verdict{
				Scored:    true,
				Actual:    m.Primary,
				Expected:  median,
				Baseline:  median,
				Deviation: math.Abs(m.Primary - median),
				Tolerance: tolerance,
				IsOutlier: m.Primary < lo || m.Primary > hi,
				Corrected: m.Primary,
			}
			if v.IsOutlier {
				v.Corrected = median
				v.Reason = fmt.Sprintf("%s reads %.3f m outside interquartile bounds [%.3f, %.3f] m", station, m.Primary, lo, hi)
			} else {
				v.Reason = fmt.Sprintf("%s within interquartile bounds [%.3f, %.3f] m", station, lo, hi)
			}
			out[i] = Scored{Measurement: m, Verdict: v}
		}
	}
	return out
}

// quantile interpolates linearly between closest ranks of sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
