// Package model defines the part records and scoring results shared across
// the scoring engine, warehouse loader, and stores.
package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// SourceType classifies the vendor a part record came from.
type SourceType string

const (
	SourceAuthorized SourceType = "Authorized"
	SourceOther      SourceType = "Other"
)

// PartRecord is one row of scoring input. Only PN is required; every other
// field may be absent. Pointer fields distinguish "absent" from a zero value
// where that distinction changes the engineered features.
type PartRecord struct {
	PN            string     `json:"pn"`
	Description   string     `json:"desc,omitempty"`
	Category      string     `json:"category,omitempty"`
	Manufacturer  string     `json:"manuf,omitempty"`
	Inventory     int64      `json:"inventory"`
	LeadtimeWeeks *int       `json:"leadtime_weeks,omitempty"`
	MOQ           *float64   `json:"moq,omitempty"`
	FirstPrice    *float64   `json:"first_price,omitempty"`
	DemandAllTime int64      `json:"demand_all_time"`
	SourceType    SourceType `json:"source_type,omitempty"`
	Datasheet     string     `json:"datasheet,omitempty"`
}

// FeatureVector maps engineered feature names to finite numeric values.
type FeatureVector map[string]float64

// ScoredPart is a PartRecord extended with its engineered features and the
// scores produced by one scoring pass.
type ScoredPart struct {
	PartRecord

	Features        FeatureVector `json:"features"`
	BaseScore       float64       `json:"base_score"`
	BoostedScore    float64       `json:"boosted_score"`
	PriorityScore   float64       `json:"priority_score"`
	ScorePercentile float64       `json:"score_percentile"`
	AppliedBoosts   []string      `json:"applied_boosts,omitempty"`

	BatchID  string    `json:"batch_id,omitempty"`
	ScoredAt time.Time `json:"scored_at,omitempty"`
}

// ValidateBatch checks batch-level invariants before any scoring happens.
// Downstream consumers key results by pn, so an empty or duplicate pn is an
// input error raised to the caller rather than a row silently scored.
func ValidateBatch(parts []PartRecord) error {
	if len(parts) == 0 {
		return eris.New("model: batch is empty")
	}

	seen := make(map[string]int, len(parts))
	for i, p := range parts {
		if p.PN == "" {
			return eris.Errorf("model: record %d has empty pn", i)
		}
		if prev, ok := seen[p.PN]; ok {
			return eris.Errorf("model: duplicate pn %q at rows %d and %d", p.PN, prev, i)
		}
		seen[p.PN] = i
	}
	return nil
}

// IntPtr and Float64Ptr build optional fields in literals and tests.
func IntPtr(v int) *int             { return &v }
func Float64Ptr(v float64) *float64 { return &v }
