package scorer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datadojo/partrank/internal/model"
)

func TestApplyBoostsDefaults(t *testing.T) {
	t.Parallel()

	t.Run("fully qualified part gets every boost", func(t *testing.T) {
		t.Parallel()
		p := model.PartRecord{
			PN:            "X1",
			Inventory:     100,
			LeadtimeWeeks: model.IntPtr(0),
			MOQ:           model.Float64Ptr(1),
			DemandAllTime: 500,
			SourceType:    model.SourceAuthorized,
		}
		boosted, applied := ApplyBoosts(1.0, &p, nil, DefaultBoosts())
		assert.InDelta(t, 1.10*1.15*1.05*1.08, boosted, 1e-9)
		assert.ElementsMatch(t, []string{"ample_stock", "immediate_ship", "authorized_source", "high_demand"}, applied)
	})

	t.Run("unqualified part gets none", func(t *testing.T) {
		t.Parallel()
		p := model.PartRecord{
			PN:            "X2",
			Inventory:     0,
			LeadtimeWeeks: model.IntPtr(8),
			MOQ:           model.Float64Ptr(100),
			DemandAllTime: 20,
			SourceType:    model.SourceOther,
		}
		boosted, applied := ApplyBoosts(1.0, &p, nil, DefaultBoosts())
		assert.Equal(t, 1.0, boosted)
		assert.Empty(t, applied)
	})

	t.Run("absent moq never qualifies for ample stock", func(t *testing.T) {
		t.Parallel()
		p := model.PartRecord{PN: "X3", Inventory: 1_000_000}
		boosted, applied := ApplyBoosts(1.0, &p, nil, DefaultBoosts())
		assert.Equal(t, 1.0, boosted)
		assert.NotContains(t, applied, "ample_stock")
	})

	t.Run("absent lead time never qualifies for immediate ship", func(t *testing.T) {
		t.Parallel()
		p := model.PartRecord{PN: "X4", Inventory: 10}
		_, applied := ApplyBoosts(1.0, &p, nil, DefaultBoosts())
		assert.NotContains(t, applied, "immediate_ship")
	})
}

func TestApplyBoostsNeverCreatesValue(t *testing.T) {
	t.Parallel()

	p := model.PartRecord{
		PN:            "X1",
		Inventory:     100,
		LeadtimeWeeks: model.IntPtr(0),
		MOQ:           model.Float64Ptr(1),
		DemandAllTime: 500,
		SourceType:    model.SourceAuthorized,
	}

	for _, base := range []float64{0, -0.5, -10} {
		boosted, applied := ApplyBoosts(base, &p, nil, DefaultBoosts())
		assert.Equal(t, base, boosted, "base %g must pass through unboosted", base)
		assert.Empty(t, applied)
	}
}

func TestApplyBoostsOrderIndependent(t *testing.T) {
	t.Parallel()

	p := model.PartRecord{
		PN:            "X1",
		Inventory:     100,
		LeadtimeWeeks: model.IntPtr(0),
		MOQ:           model.Float64Ptr(1),
		DemandAllTime: 500,
		SourceType:    model.SourceAuthorized,
	}

	want, _ := ApplyBoosts(2.5, &p, nil, DefaultBoosts())

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		rules := DefaultBoosts()
		rng.Shuffle(len(rules), func(a, b int) { rules[a], rules[b] = rules[b], rules[a] })
		got, _ := ApplyBoosts(2.5, &p, nil, rules)
		assert.InDelta(t, want, got, 1e-12)
	}
}

func TestConditionConjunction(t *testing.T) {
	t.Parallel()

	rule := BoostRule{
		Name:       "cheap_and_popular",
		Multiplier: 1.2,
		When: []Condition{
			{Field: ColDemandAllTime, Op: OpGt, Value: 100},
			{Field: ColFirstPrice, Op: OpLt, Value: 10},
		},
	}

	both := model.PartRecord{PN: "a", DemandAllTime: 500, FirstPrice: model.Float64Ptr(2)}
	onlyDemand := model.PartRecord{PN: "b", DemandAllTime: 500, FirstPrice: model.Float64Ptr(50)}
	priceAbsent := model.PartRecord{PN: "c", DemandAllTime: 500}

	got, applied := ApplyBoosts(1.0, &both, nil, []BoostRule{rule})
	assert.InDelta(t, 1.2, got, 1e-9)
	assert.Equal(t, []string{"cheap_and_popular"}, applied)

	got, _ = ApplyBoosts(1.0, &onlyDemand, nil, []BoostRule{rule})
	assert.Equal(t, 1.0, got)

	got, _ = ApplyBoosts(1.0, &priceAbsent, nil, []BoostRule{rule})
	assert.Equal(t, 1.0, got, "condition over an absent column is false, not an error")
}

func TestConditionOverEngineeredFeature(t *testing.T) {
	t.Parallel()

	rule := BoostRule{
		Name:       "documented",
		Multiplier: 1.02,
		When:       []Condition{{Field: FeatHasDatasheet, Op: OpEq, Value: 1}},
	}
	p := model.PartRecord{PN: "a", Datasheet: "https://ds.example/a.pdf"}
	fv := EngineerFeatures(&p, DefaultFeatures())

	got, applied := ApplyBoosts(1.0, &p, fv, []BoostRule{rule})
	assert.InDelta(t, 1.02, got, 1e-9)
	assert.Equal(t, []string{"documented"}, applied)
}

func TestValidateBoosts(t *testing.T) {
	declared := DeclaredFeatures(DefaultFeatures())

	tests := []struct {
		name    string
		rules   []BoostRule
		wantErr string
	}{
		{"defaults valid", DefaultBoosts(), ""},
		{
			"zero multiplier rejected",
			[]BoostRule{{Name: "bad", Multiplier: 0, When: []Condition{{Field: ColInventory, Op: OpGt, Value: 0}}}},
			"multiplier must be > 0",
		},
		{
			"unknown field rejected",
			[]BoostRule{{Name: "bad", Multiplier: 1.1, When: []Condition{{Field: "warp_factor", Op: OpGt, Value: 0}}}},
			`unknown field "warp_factor"`,
		},
		{
			"unknown operator rejected",
			[]BoostRule{{Name: "bad", Multiplier: 1.1, When: []Condition{{Field: ColInventory, Op: "matches", Value: 0}}}},
			"unknown operator",
		},
		{
			"empty conditions rejected",
			[]BoostRule{{Name: "bad", Multiplier: 1.1}},
			"no conditions",
		},
		{
			"source_type ordering rejected",
			[]BoostRule{{Name: "bad", Multiplier: 1.1, When: []Condition{{Field: "source_type", Op: OpGt, Equals: "Authorized"}}}},
			"only eq/ne",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBoosts(tt.rules, declared)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
