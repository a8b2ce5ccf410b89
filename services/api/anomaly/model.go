// Package anomaly flags and corrects readings that break the known physical
// coupling between coastal stations. The primary strategy compares each
// reading against the average of a set of anchor stations plus a fixed
// per-station offset; a distribution-based fallback is available for
// deployments without a station model.
package anomaly

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// StationRule is the static relationship of one station to the anchor average.
type StationRule struct {
	// Offset is the expected deviation from the anchor average, in metres.
	Offset float64 `yaml:"offset" json:"offset"`
	// Tolerance is the absolute error budget before a reading is an outlier.
	Tolerance float64 `yaml:"tolerance" json:"tolerance"`
}

// Model is the read-only station configuration shared by all requests.
type Model struct {
	Anchors  []string               `yaml:"anchors" json:"anchors"`
	Stations map[string]StationRule `yaml:"stations" json:"stations"`
	// AgreementThreshold enables anchor cross-validation when positive: an
	// anchor further than this from most other anchors is left out of the
	// average and flagged.
	AgreementThreshold float64 `yaml:"agreementThreshold" json:"agreement_threshold"`
	// Alignment groups readings whose timestamps fall in the same window.
	// Zero groups on exact timestamps.
	Alignment time.Duration `yaml:"alignment" json:"alignment"`
}

// DefaultModel is the Israeli Mediterranean and Red Sea gauge network. The
// southern gauges share one mean level; the others sit at fixed offsets.
func DefaultModel() Model {
	return Model{
		Anchors: []string{"Yafo", "Ashdod", "Ashkelon"},
		Stations: map[string]StationRule{
			"Yafo":     {Offset: 0.00, Tolerance: 0.03},
			"Ashdod":   {Offset: 0.00, Tolerance: 0.03},
			"Ashkelon": {Offset: 0.00, Tolerance: 0.03},
			"Haifa":    {Offset: 0.04, Tolerance: 0.05},
			"Acre":     {Offset: 0.08, Tolerance: 0.05},
			"Eilat":    {Offset: 0.28, Tolerance: 0.06},
		},
		AgreementThreshold: 0.05,
	}
}

// LoadModel reads a YAML station model from path and validates it.
func LoadModel(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Model{}, fmt.Errorf("read baseline model: %w", err)
	}
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Model{}, fmt.Errorf("parse baseline model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Model{}, err
	}
	return m, nil
}

// Validate checks that every anchor has a rule and every rule is usable.
func (m Model) Validate() error {
	var errs []error
	for _, a := range m.Anchors {
		if _, ok := m.Stations[a]; !ok {
			errs = append(errs, fmt.Errorf("anchor %q has no station rule", a))
		}
	}
	for _, name := range m.StationNames() {
		rule := m.Stations[name]
		if math.IsNaN(rule.Offset) || math.IsInf(rule.Offset, 0) {
			errs = append(errs, fmt.Errorf("station %q: offset must be finite", name))
		}
		if !(rule.Tolerance > 0) || math.IsInf(rule.Tolerance, 0) {
			errs = append(errs, fmt.Errorf("station %q: tolerance must be positive", name))
		}
	}
	if m.AgreementThreshold < 0 {
		errs = append(errs, errors.New("agreementThreshold must not be negative"))
	}
	if m.Alignment < 0 {
		errs = append(errs, errors.New("alignment must not be negative"))
	}
	return errors.Join(errs...)
}

// StationNames returns the known stations in sorted order.
func (m Model) StationNames() []string {
	names := make([]string, 0, len(m.Stations))
	for name := range m.Stations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsAnchor reports whether station is one of the anchors.
func (m Model) IsAnchor(station string) bool {
	for _, a := range m.Anchors {
		if a == station {
			return true
		}
	}
	return false
}

// Rule returns the rule for station.
func (m Model) Rule(station string) (StationRule, bool) {
	r, ok := m.Stations[station]
	return r, ok
}
