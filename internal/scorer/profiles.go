package scorer

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultFeatures returns the production feature definitions. Pricing
// transforms were dropped from the defaults after price proved too noisy a
// signal; first_price remains a valid source column for custom profiles.
func DefaultFeatures() FeatureConfig {
	return FeatureConfig{
		LogTransforms:     []string{ColInventory, ColMOQ},
		InverseTransforms: []string{ColLeadtimeWeeks, ColMOQ},
		BinaryFeatures: []string{
			FeatIsAuthorized,
			FeatHasDatasheet,
			FeatInStock,
			FeatImmediateShip,
			FeatIsAvailable,
		},
		Composites:        []string{FeatAvailabilityScore, FeatDemandScore},
		InventoryRatioCap: 10,
	}
}

// DefaultWeights returns the balanced production weight profile (sum 1.0).
func DefaultWeights() WeightConfig {
	return WeightConfig{
		FeatDemandScore:       0.35,
		FeatAvailabilityScore: 0.35,
		"inv_leadtime_weeks":  0.15,
		"inv_moq":             0.10,
		FeatIsAuthorized:      0.05,
	}
}

// DefaultBoosts returns the production boost rule set.
func DefaultBoosts() []BoostRule {
	return []BoostRule{
		{
			Name:        "ample_stock",
			Description: "inventory covers at least ten minimum orders",
			Multiplier:  1.10,
			When: []Condition{
				{Field: ColInventory, Op: OpGe, ValueField: ColMOQ, Scale: 10},
			},
		},
		{
			Name:        "immediate_ship",
			Description: "zero lead time",
			Multiplier:  1.15,
			When: []Condition{
				{Field: ColLeadtimeWeeks, Op: OpEq, Value: 0},
			},
		},
		{
			Name:        "authorized_source",
			Description: "listed by an authorized vendor",
			Multiplier:  1.05,
			When: []Condition{
				{Field: "source_type", Op: OpEq, Equals: "Authorized"},
			},
		},
		{
			Name:        "high_demand",
			Description: "strong historical demand",
			Multiplier:  1.08,
			When: []Condition{
				{Field: ColDemandAllTime, Op: OpGt, Value: 100},
			},
		},
	}
}

// DefaultConfig assembles the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		Features: DefaultFeatures(),
		Weights:  DefaultWeights(),
		Boosts:   DefaultBoosts(),
	}
}

// ProfileSet holds named weight and boost profiles for side-by-side runs.
type ProfileSet struct {
	Weights map[string]WeightConfig `yaml:"weights"`
	Boosts  map[string][]BoostRule  `yaml:"boosts"`
}

// BuiltinWeightProfiles returns the named weight variants shipped with the
// engine, keyed by profile name. "default" is the balanced profile.
func BuiltinWeightProfiles() map[string]WeightConfig {
	return map[string]WeightConfig{
		"default": DefaultWeights(),
		"demand_focused": {
			FeatDemandScore:       0.50,
			FeatAvailabilityScore: 0.25,
			"inv_leadtime_weeks":  0.15,
			"inv_moq":             0.05,
			FeatIsAuthorized:      0.05,
		},
		"availability_focused": {
			FeatDemandScore:       0.20,
			FeatAvailabilityScore: 0.50,
			"inv_leadtime_weeks":  0.20,
			"inv_moq":             0.05,
			FeatIsAuthorized:      0.05,
		},
	}
}

// LoadProfiles reads named weight/boost profiles from a YAML file. The file
// may carry either section; missing sections fall back to the builtins.
func LoadProfiles(path string) (*ProfileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: read profiles %s", path)
	}

	var ps ProfileSet
	if err := yaml.Unmarshal(data, &ps); err != nil {
		return nil, eris.Wrapf(err, "scorer: parse profiles %s", path)
	}

	if ps.Weights == nil {
		ps.Weights = BuiltinWeightProfiles()
	}
	if ps.Boosts == nil {
		ps.Boosts = map[string][]BoostRule{"default": DefaultBoosts()}
	}
	return &ps, nil
}

// ConfigHash returns a short SHA-256 hash of a scoring config so persisted
// runs record which configuration produced them.
func ConfigHash(cfg Config) string {
	data, err := json.Marshal(struct {
		Features FeatureConfig
		Weights  WeightConfig
		Boosts   []BoostRule
	}{cfg.Features, cfg.Weights, cfg.Boosts})
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:16])
}
