package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datadojo/partrank/internal/fetcher"
	"github.com/datadojo/partrank/internal/model"
	"github.com/datadojo/partrank/internal/resilience"
	"github.com/datadojo/partrank/internal/scorer"
	"github.com/datadojo/partrank/internal/warehouse"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score parts and rank them by priority",
	Long: `Score part records through the full pipeline: feature engineering,
robust normalization, weighted base scoring, multiplicative boosts, and
min-max ranking to a 0-100 priority score.

Records come from the parts warehouse or from a CSV/XLSX export.

Examples:
  # Score the full warehouse
  partrank score

  # Score a 10% sample of passives
  partrank score --sample 10 --categories capacitors,resistors

  # Score a supplier export and save the results
  partrank score --source csv --input offers.csv --save

  # Compare the demand-focused profile, top 50 to CSV
  partrank score --profile demand_focused --limit 50 --format csv --output top.csv`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("source", "warehouse", "record source: warehouse, csv, or xlsx")
	f.String("input", "", "input file path (required for csv/xlsx sources)")
	f.String("profile", "", "weight profile name (overrides config)")
	f.String("boost-profile", "", "boost profile name (overrides config)")
	f.String("profiles-file", "", "YAML file with custom weight/boost profiles")
	f.Int("limit", 0, "maximum number of warehouse records (0=all)")
	f.Float64("sample", 0, "random warehouse sample percentage (0=full scan)")
	f.String("categories", "", "comma-separated part categories (e.g., capacitors,ics)")
	f.Int("workers", 0, "scoring worker count (overrides config)")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table or csv")
	f.Bool("save", false, "save results to the configured store")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("score"); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "score"))

	source, _ := cmd.Flags().GetString("source")
	input, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	save, _ := cmd.Flags().GetBool("save")

	if format != "table" && format != "csv" {
		return eris.Errorf("score: --format must be table or csv (got %q)", format)
	}

	scorerCfg, profileName, err := buildScorerConfig(cmd)
	if err != nil {
		return err
	}
	engine, err := scorer.New(scorerCfg)
	if err != nil {
		return err
	}

	started := time.Now().UTC()
	parts, err := loadParts(ctx, cmd, source, input)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		fmt.Println("No parts to score.")
		return nil
	}

	log.Info("scoring batch",
		zap.String("source", source),
		zap.String("profile", profileName),
		zap.Int("parts", len(parts)),
	)

	results, err := engine.ScoreBatch(ctx, parts)
	if err != nil {
		return eris.Wrap(err, "score: batch")
	}

	batchID := uuid.NewString()
	boosted := 0
	for i := range results {
		results[i].BatchID = batchID
		results[i].ScoredAt = started
		if len(results[i].AppliedBoosts) > 0 {
			boosted++
		}
	}

	log.Info("scoring complete",
		zap.String("batch_id", batchID),
		zap.Int("total", len(results)),
		zap.Int("boosted", boosted),
	)

	if err := outputScoreResults(results, format, outputPath); err != nil {
		return err
	}

	if save {
		st, err := initStore(ctx, false)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "score: migrate store")
		}
		if err := st.SaveScores(ctx, results); err != nil {
			return eris.Wrap(err, "score: save")
		}
		run := model.RunLog{
			ID:           uuid.NewString(),
			BatchID:      batchID,
			Profile:      profileName,
			ConfigHash:   scorer.ConfigHash(scorerCfg),
			Source:       source,
			PartCount:    len(results),
			BoostedCount: boosted,
			StartedAt:    started,
			FinishedAt:   time.Now().UTC(),
		}
		if err := st.LogRun(ctx, run); err != nil {
			return eris.Wrap(err, "score: log run")
		}
		fmt.Printf("Saved %d scores (batch %s)\n", len(results), batchID)
	}

	printScoreSummary(results)
	return nil
}

// buildScorerConfig assembles the scoring configuration from config defaults,
// an optional profiles file, and CLI overrides. It returns the resolved
// weight profile name alongside the config.
func buildScorerConfig(cmd *cobra.Command) (scorer.Config, string, error) {
	weightName := cfg.Scoring.WeightProfile
	if v, _ := cmd.Flags().GetString("profile"); v != "" {
		weightName = v
	}
	boostName := cfg.Scoring.BoostProfile
	if v, _ := cmd.Flags().GetString("boost-profile"); v != "" {
		boostName = v
	}

	weights := scorer.BuiltinWeightProfiles()
	boosts := map[string][]scorer.BoostRule{"default": scorer.DefaultBoosts()}

	profilesPath := cfg.Scoring.ProfilesPath
	if v, _ := cmd.Flags().GetString("profiles-file"); v != "" {
		profilesPath = v
	}
	if profilesPath != "" {
		ps, err := scorer.LoadProfiles(profilesPath)
		if err != nil {
			return scorer.Config{}, "", err
		}
		weights = ps.Weights
		boosts = ps.Boosts
	}

	w, ok := weights[weightName]
	if !ok {
		return scorer.Config{}, "", eris.Errorf("score: unknown weight profile %q", weightName)
	}
	b, ok := boosts[boostName]
	if !ok {
		return scorer.Config{}, "", eris.Errorf("score: unknown boost profile %q", boostName)
	}

	workers := cfg.Scoring.Workers
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		workers = v
	}

	return scorer.Config{
		Features: scorer.DefaultFeatures(),
		Weights:  w,
		Boosts:   b,
		Workers:  workers,
	}, weightName, nil
}

// loadParts reads the batch from the requested source.
func loadParts(ctx context.Context, cmd *cobra.Command, source, input string) ([]model.PartRecord, error) {
	switch source {
	case "warehouse":
		pool, err := warehousePool(ctx)
		if err != nil {
			return nil, err
		}
		defer pool.Close()

		retry := resilience.FromRetryConfig(
			cfg.Warehouse.RetryMaxAttempts,
			cfg.Warehouse.RetryBackoffMs,
			cfg.Warehouse.RetryMaxBackoff,
			0, 0,
		)
		loader := warehouse.New(pool, cfg.Warehouse.QueriesPerSec, retry)

		limit, _ := cmd.Flags().GetInt("limit")
		sample, _ := cmd.Flags().GetFloat64("sample")
		opts := warehouse.LoadOptions{
			Limit:         limit,
			SamplePercent: sample,
		}
		if v, _ := cmd.Flags().GetString("categories"); v != "" {
			opts.Categories = splitAndTrim(v)
		}
		return loader.LoadParts(ctx, opts)

	case "csv":
		if input == "" {
			return nil, eris.New("score: --input is required for csv source")
		}
		f, err := os.Open(input)
		if err != nil {
			return nil, eris.Wrapf(err, "score: open %s", input)
		}
		defer f.Close() //nolint:errcheck
		return fetcher.ReadPartsCSV(ctx, f)

	case "xlsx":
		if input == "" {
			return nil, eris.New("score: --input is required for xlsx source")
		}
		return fetcher.ReadPartsXLSX(input)

	default:
		return nil, eris.Errorf("score: --source must be warehouse, csv, or xlsx (got %q)", source)
	}
}

// warehousePool connects to the parts warehouse.
func warehousePool(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := cfg.Warehouse.DatabaseURL
	if dsn == "" {
		return nil, eris.New("score: no warehouse database_url configured (set warehouse.database_url)")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "score: create warehouse pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "score: ping warehouse")
	}
	return pool, nil
}

func printScoreSummary(results []model.ScoredPart) {
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	var boosted int
	var sum float64
	maxScore := 0.0
	minScore := 101.0
	for _, r := range results {
		sum += r.PriorityScore
		if r.PriorityScore > maxScore {
			maxScore = r.PriorityScore
		}
		if r.PriorityScore < minScore {
			minScore = r.PriorityScore
		}
		if len(r.AppliedBoosts) > 0 {
			boosted++
		}
	}
	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Total scored:  %d\n", len(results))
	fmt.Printf("Boosted:       %d (%.1f%%)\n", boosted, float64(boosted)/float64(len(results))*100)
	fmt.Printf("Score range:   %.1f to %.1f\n", minScore, maxScore)
	fmt.Printf("Average score: %.1f\n", sum/float64(len(results)))
}

func outputScoreResults(results []model.ScoredPart, format, outputPath string) error {
	var w *os.File
	if outputPath != "" {
		var err error
		w, err = os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "score: create output file %s", outputPath)
		}
		defer w.Close() //nolint:errcheck
	} else {
		w = os.Stdout
	}

	switch format {
	case "csv":
		return writeScoreCSV(w, results)
	case "table":
		return writeScoreTable(w, results)
	default:
		return eris.Errorf("score: unsupported format %q", format)
	}
}

func writeScoreCSV(w io.Writer, results []model.ScoredPart) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"pn", "category", "inventory", "demand_all_time", "base_score", "boosted_score", "priority_score", "score_percentile", "applied_boosts"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "score: write CSV header")
	}

	for _, r := range results {
		row := []string{
			r.PN,
			r.Category,
			fmt.Sprintf("%d", r.Inventory),
			fmt.Sprintf("%d", r.DemandAllTime),
			fmt.Sprintf("%.4f", r.BaseScore),
			fmt.Sprintf("%.4f", r.BoostedScore),
			fmt.Sprintf("%.1f", r.PriorityScore),
			fmt.Sprintf("%.1f", r.ScorePercentile),
			strings.Join(r.AppliedBoosts, ";"),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "score: write CSV row")
		}
	}
	return nil
}

func writeScoreTable(w io.Writer, results []model.ScoredPart) error {
	header := fmt.Sprintf("%-24s %-15s %10s %8s %8s %6s  %s\n",
		"PN", "Category", "Inventory", "Demand", "Priority", "Pctile", "Boosts")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "score: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 90)); err != nil {
		return eris.Wrap(err, "score: write table separator")
	}

	for _, r := range results {
		pn := r.PN
		if len(pn) > 24 {
			pn = pn[:21] + "..."
		}
		line := fmt.Sprintf("%-24s %-15s %10d %8d %8.1f %6.1f  %s\n",
			pn, r.Category, r.Inventory, r.DemandAllTime,
			r.PriorityScore, r.ScorePercentile, strings.Join(r.AppliedBoosts, ","))
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "score: write table row")
		}
	}
	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
