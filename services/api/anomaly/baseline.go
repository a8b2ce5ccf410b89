package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sealevel-monitor/dashboard/services/api/sealevel"
)

// BaselineScorer checks every reading against the anchor average of its
// time bucket plus the station's static offset.
type BaselineScorer struct {
	model Model
}

// NewBaselineScorer returns a scorer over model. The model is not copied and
// must not be modified afterwards.
func NewBaselineScorer(model Model) *BaselineScorer {
	return &BaselineScorer{model: model}
}

func (b *BaselineScorer) Name() string { return StrategyBaseline }

// Available is true when the model names at least one anchor.
func (b *BaselineScorer) Available() bool { return len(b.model.Anchors) > 0 }

// Score groups ms by time bucket and scores each group independently.
func (b *BaselineScorer) Score(ms []sealevel.Measurement) []Scored {
	out := make([]Scored, len(ms))
	for _, idx := range b.groupByBucket(ms) {
		b.scoreBucket(ms, idx, out)
	}
	return out
}

func (b *BaselineScorer) bucketOf(ts time.Time) time.Time {
	if b.model.Alignment > 0 {
		return ts.UTC().Truncate(b.model.Alignment)
	}
	return ts.UTC()
}

// groupByBucket returns measurement indexes per bucket, buckets in time order.
func (b *BaselineScorer) groupByBucket(ms []sealevel.Measurement) [][]int {
	pos := make(map[time.Time]int)
	var keys []time.Time
	var groups [][]int
	for i, m := range ms {
		k := b.bucketOf(m.Timestamp)
		g, ok := pos[k]
		if !ok {
			g = len(groups)
			pos[k] = g
			keys = append(keys, k)
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return keys[order[i]].Before(keys[order[j]]) })
	sorted := make([][]int, len(groups))
	for i, g := range order {
		sorted[i] = groups[g]
	}
	return sorted
}

type anchorReading struct {
	station string
	value   float64
}

// anchorReadings averages each anchor's readings within one bucket.
func (b *BaselineScorer) anchorReadings(ms []sealevel.Measurement, idx []int) []anchorReading {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, i := range idx {
		m := ms[i]
		if !b.model.IsAnchor(m.Station) {
			continue
		}
		sums[m.Station] += m.Primary
		counts[m.Station]++
	}
	out := make([]anchorReading, 0, len(sums))
	for _, a := range b.model.Anchors {
		if n := counts[a]; n > 0 {
			out = append(out, anchorReading{station: a, value: sums[a] / float64(n)})
		}
	}
	return out
}

// crossValidate keeps anchors within the agreement threshold of at least
// half of the other reporting anchors. It returns kept readings and the set
// of excluded anchor names.
func (b *BaselineScorer) crossValidate(readings []anchorReading) ([]anchorReading, map[string]bool) {
	excluded := make(map[string]bool)
	if b.model.AgreementThreshold <= 0 || len(readings) <= 1 {
		return readings, excluded
	}
	required := max(1, len(readings)/2)
	kept := make([]anchorReading, 0, len(readings))
	for i, r := range readings {
		agree := 0
		for j, o := range readings {
			if i != j && math.Abs(r.value-o.value) <= b.model.AgreementThreshold {
				agree++
			}
		}
		if agree >= required {
			kept = append(kept, r)
		} else {
			excluded[r.station] = true
		}
	}
	return kept, excluded
}

func (b *BaselineScorer) scoreBucket(ms []sealevel.Measurement, idx []int, out []Scored) {
	kept, excluded := b.crossValidate(b.anchorReadings(ms, idx))
	if len(kept) == 0 {
		for _, i := range idx {
			out[i] = unscored(ms[i], "no anchor station reported in this interval")
		}
		return
	}

	var sum float64
	for _, r := range kept {
		sum += r.value
	}
	baseline := sum / float64(len(kept))

	for _, i := range idx {
		m := ms[i]
		rule, ok := b.model.Rule(m.Station)
		if !ok {
			out[i] = unscored(m, fmt.Sprintf("no baseline relationship configured for %s", m.Station))
			continue
		}
		expected := baseline + rule.Offset
		deviation := math.Abs(m.Primary - expected)
		v := Verdict{
			Scored:               true,
			Actual:               m.Primary,
			Expected:             expected,
			Baseline:             baseline,
			Deviation:            deviation,
			Tolerance:            rule.Tolerance,
			IsOutlier:            deviation > rule.Tolerance || excluded[m.Station],
			ExcludedFromBaseline: excluded[m.Station],
			BaselineSources:      len(kept),
		}
		v.Corrected = m.Primary
		if v.IsOutlier {
			v.Corrected = expected
		}
		v.Reason = baselineReason(m.Station, v, b.model.AgreementThreshold)
		out[i] = Scored{Measurement: m, Verdict: v}
	}
}

func baselineReason(station string, v Verdict, threshold float64) string {
	switch {
	case v.ExcludedFromBaseline:
		return fmt.Sprintf("%s reads %.3f m and disagrees with the other anchor stations by more than %.1f cm; excluded from baseline, expected %.3f m",
			station, v.Actual, threshold*100, v.Expected)
	case v.IsOutlier:
		return fmt.Sprintf("%s reads %.3f m, expected %.3f m (baseline %.3f m + offset %.3f m); deviation %.1f cm exceeds tolerance %.1f cm",
			station, v.Actual, v.Expected, v.Baseline, v.Expected-v.Baseline, v.Deviation*100, v.Tolerance*100)
	default:
		return fmt.Sprintf("%s within tolerance: deviation %.1f cm of %.1f cm allowed",
			station, v.Deviation*100, v.Tolerance*100)
	}
}
