package scorer

import (
	"math"

	"github.com/datadojo/partrank/internal/model"
)

// FeatureConfig declares which source columns are transformed and which
// engineered features are produced. It is loaded once and treated as
// read-only for the life of the process.
type FeatureConfig struct {
	LogTransforms     []string `yaml:"log_transforms" mapstructure:"log_transforms"`
	InverseTransforms []string `yaml:"inverse_transforms" mapstructure:"inverse_transforms"`
	BinaryFeatures    []string `yaml:"binary_features" mapstructure:"binary_features"`
	Composites        []string `yaml:"composites" mapstructure:"composites"`

	// InventoryRatioCap bounds the inventory/moq term of availability_score.
	InventoryRatioCap float64 `yaml:"inventory_ratio_cap" mapstructure:"inventory_ratio_cap"`
}

// Source columns usable in log/inverse transforms and boost conditions.
const (
	ColInventory     = "inventory"
	ColLeadtimeWeeks = "leadtime_weeks"
	ColMOQ           = "moq"
	ColFirstPrice    = "first_price"
	ColDemandAllTime = "demand_all_time"
)

// Binary feature names.
const (
	FeatIsAuthorized  = "is_authorized"
	FeatHasDatasheet  = "has_datasheet"
	FeatInStock       = "in_stock"
	FeatImmediateShip = "immediate_availability"
	FeatIsAvailable   = "is_available"
)

// Composite feature names.
const (
	FeatAvailabilityScore = "availability_score"
	FeatDemandScore       = "demand_score"
	FeatEconomicScore     = "economic_score"
)

// rawColumn returns the numeric value of a source column and whether the
// record carries it. Absent optional columns report ok=false; the transforms
// below substitute a documented default instead of failing the record.
func rawColumn(p *model.PartRecord, col string) (float64, bool) {
	switch col {
	case ColInventory:
		return float64(p.Inventory), true
	case ColLeadtimeWeeks:
		if p.LeadtimeWeeks == nil {
			return 0, false
		}
		return float64(*p.LeadtimeWeeks), true
	case ColMOQ:
		if p.MOQ == nil {
			return 0, false
		}
		return *p.MOQ, true
	case ColFirstPrice:
		if p.FirstPrice == nil {
			return 0, false
		}
		return *p.FirstPrice, true
	case ColDemandAllTime:
		return float64(p.DemandAllTime), true
	default:
		return 0, false
	}
}

// knownColumn reports whether col is a recognized source column.
func knownColumn(col string) bool {
	switch col {
	case ColInventory, ColLeadtimeWeeks, ColMOQ, ColFirstPrice, ColDemandAllTime:
		return true
	}
	return false
}

// EngineerFeatures derives the configured feature vector from one record.
// Every declared feature name is present in the result, and every value is
// finite: missing source columns default (0 for log and binary features,
// 1/(1+0) for inverse) rather than disqualifying the record.
func EngineerFeatures(p *model.PartRecord, cfg FeatureConfig) model.FeatureVector {
	fv := make(model.FeatureVector, len(cfg.LogTransforms)+len(cfg.InverseTransforms)+len(cfg.BinaryFeatures)+len(cfg.Composites))

	for _, col := range cfg.LogTransforms {
		raw, _ := rawColumn(p, col)
		fv["log_"+col] = math.Log1p(math.Max(0, raw))
	}

	for _, col := range cfg.InverseTransforms {
		raw, _ := rawColumn(p, col)
		fv["inv_"+col] = 1 / (1 + math.Max(0, raw))
	}

	for _, name := range cfg.BinaryFeatures {
		fv[name] = binaryFeature(p, name)
	}

	for _, name := range cfg.Composites {
		fv[name] = compositeFeature(p, name, cfg)
	}

	return fv
}

func binaryFeature(p *model.PartRecord, name string) float64 {
	switch name {
	case FeatIsAuthorized:
		if p.SourceType == model.SourceAuthorized {
			return 1
		}
	case FeatHasDatasheet:
		if p.Datasheet != "" {
			return 1
		}
	case FeatInStock:
		if p.Inventory > 0 {
			return 1
		}
	case FeatImmediateShip:
		if p.LeadtimeWeeks != nil && *p.LeadtimeWeeks == 0 {
			return 1
		}
	case FeatIsAvailable:
		// Unavailable means no stock AND a lead time beyond 12 weeks.
		// An absent lead time counts as available.
		if p.Inventory == 0 && p.LeadtimeWeeks != nil && *p.LeadtimeWeeks > 12 {
			return 0
		}
		return 1
	}
	return 0
}

func compositeFeature(p *model.PartRecord, name string, cfg FeatureConfig) float64 {
	switch name {
	case FeatAvailabilityScore:
		ratioCap := cfg.InventoryRatioCap
		if ratioCap <= 0 {
			ratioCap = 10
		}
		score := 0.5*binaryFeature(p, FeatInStock) + 0.3*binaryFeature(p, FeatImmediateShip)
		// Zero or absent MOQ contributes nothing to the ratio term.
		if p.MOQ != nil && *p.MOQ > 0 {
			ratio := float64(p.Inventory) / *p.MOQ
			score += 0.2 * clamp(ratio, 0, ratioCap)
		}
		return clamp(score, 0, 2)
	case FeatDemandScore:
		// Raw demand; the batch normalizer puts it on a comparable scale.
		return math.Max(0, float64(p.DemandAllTime))
	case FeatEconomicScore:
		price, _ := rawColumn(p, ColFirstPrice)
		moq, _ := rawColumn(p, ColMOQ)
		return 0.6/(1+math.Max(0, price)) + 0.4/(1+math.Max(0, moq))
	}
	return 0
}

// DeclaredFeatures lists every feature name the config produces. Weight
// configurations are validated against this set before any scoring occurs.
func DeclaredFeatures(cfg FeatureConfig) []string {
	var names []string
	for _, col := range cfg.LogTransforms {
		names = append(names, "log_"+col)
	}
	for _, col := range cfg.InverseTransforms {
		names = append(names, "inv_"+col)
	}
	names = append(names, cfg.BinaryFeatures...)
	names = append(names, cfg.Composites...)
	return names
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
