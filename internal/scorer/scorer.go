// Package scorer implements the part priority scoring engine: feature
// engineering, batch-robust normalization, weighted aggregation, declarative
// multiplicative boosts, and percentile ranking.
package scorer

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/datadojo/partrank/internal/model"
)

// Config is the full, immutable scoring configuration: feature definitions,
// one weight profile, and one boost rule set. It is validated once at
// construction and shared read-only across all workers.
type Config struct {
	Features FeatureConfig `yaml:"features" mapstructure:"features"`
	Weights  WeightConfig  `yaml:"weights" mapstructure:"weights"`
	Boosts   []BoostRule   `yaml:"boosts" mapstructure:"boosts"`

	// Workers bounds the per-record fan-out. Zero means GOMAXPROCS.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// PartScorer scores batches of part records. It holds no state across
// batches beyond its configuration.
type PartScorer struct {
	cfg      Config
	declared []string
}

// New validates cfg and returns a scorer. A bad weight sum, a boost over an
// unknown field, or a weight referencing a feature the engineer cannot
// produce fails here, before any record is processed.
func New(cfg Config) (*PartScorer, error) {
	declared := DeclaredFeatures(cfg.Features)
	if len(declared) == 0 {
		return nil, eris.New("scorer: feature config declares no features")
	}
	if err := ValidateWeights(cfg.Weights, declared); err != nil {
		return nil, err
	}
	if err := ValidateBoosts(cfg.Boosts, declared); err != nil {
		return nil, err
	}
	return &PartScorer{cfg: cfg, declared: declared}, nil
}

// ScoreBatch runs the full pipeline over one batch and returns a scored copy
// of every record. The batch either scores to completion or is rejected as a
// whole; there is no partial output.
func (s *PartScorer) ScoreBatch(ctx context.Context, parts []model.PartRecord) ([]model.ScoredPart, error) {
	st, err := s.prepare(ctx, parts)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, st, s.cfg.Boosts)
}

// ScoreBatchProfiles scores one batch under several named boost profiles
// side-by-side, reusing a single feature-engineering and normalization pass.
// Base scores are identical across profiles; only boosts and ranking differ.
func (s *PartScorer) ScoreBatchProfiles(ctx context.Context, parts []model.PartRecord, profiles map[string][]BoostRule) (map[string][]model.ScoredPart, error) {
	for name, rules := range profiles {
		if err := ValidateBoosts(rules, s.declared); err != nil {
			return nil, eris.Wrapf(err, "scorer: boost profile %s", name)
		}
	}

	st, err := s.prepare(ctx, parts)
	if err != nil {
		return nil, err
	}

	results := make(map[string][]model.ScoredPart, len(profiles))
	for name, rules := range profiles {
		scored, err := s.finish(ctx, st, rules)
		if err != nil {
			return nil, eris.Wrapf(err, "scorer: boost profile %s", name)
		}
		results[name] = scored
	}
	return results, nil
}

// batchState carries the stage outputs shared by every boost profile.
type batchState struct {
	parts      []model.PartRecord
	features   []model.FeatureVector
	normalized []model.FeatureVector
	base       []float64
	batchID    string
}

// prepare runs the per-record feature engineering fan-out, the batch-wide
// normalization reduction, and the weighted base score.
func (s *PartScorer) prepare(ctx context.Context, parts []model.PartRecord) (*batchState, error) {
	if err := model.ValidateBatch(parts); err != nil {
		return nil, err
	}

	st := &batchState{
		parts:    parts,
		features: make([]model.FeatureVector, len(parts)),
		base:     make([]float64, len(parts)),
		batchID:  uuid.NewString(),
	}

	log := zap.L().With(zap.String("batch_id", st.batchID))
	log.Info("scorer: starting batch", zap.Int("parts", len(parts)))

	// Feature engineering is independent per record.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i := range parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st.features[i] = EngineerFeatures(&parts[i], s.cfg.Features)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "scorer: engineer features")
	}

	// Normalization needs every record's value, so it is a sync point.
	normalized, err := NormalizeBatch(ctx, st.features, s.declared)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: normalize")
	}
	st.normalized = normalized

	for i := range parts {
		base := BaseScore(st.normalized[i], s.cfg.Weights)
		// A part with no path to availability carries no priority at all.
		if v, ok := st.features[i][FeatIsAvailable]; ok && v == 0 {
			base = 0
		}
		st.base[i] = base
	}

	return st, nil
}

// finish applies one boost rule set and the final ranking to a prepared batch.
func (s *PartScorer) finish(ctx context.Context, st *batchState, rules []BoostRule) ([]model.ScoredPart, error) {
	boosted := make([]float64, len(st.parts))
	appliedNames := make([][]string, len(st.parts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i := range st.parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			boosted[i], appliedNames[i] = ApplyBoosts(st.base[i], &st.parts[i], st.features[i], rules)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "scorer: apply boosts")
	}

	priority, percentile := Rank(boosted)

	now := time.Now().UTC()
	scored := make([]model.ScoredPart, len(st.parts))
	var boostedCount int
	for i := range st.parts {
		if len(appliedNames[i]) > 0 {
			boostedCount++
		}
		scored[i] = model.ScoredPart{
			PartRecord:      st.parts[i],
			Features:        st.normalized[i],
			BaseScore:       st.base[i],
			BoostedScore:    boosted[i],
			PriorityScore:   priority[i],
			ScorePercentile: percentile[i],
			AppliedBoosts:   appliedNames[i],
			BatchID:         st.batchID,
			ScoredAt:        now,
		}
	}

	zap.L().Info("scorer: batch complete",
		zap.String("batch_id", st.batchID),
		zap.Int("parts", len(scored)),
		zap.Int("boosted", boostedCount),
	)

	return scored, nil
}

func (s *PartScorer) workers() int {
	if s.cfg.Workers > 0 {
		return s.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}
