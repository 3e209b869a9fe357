// Package warehouse loads part records from the parts warehouse in PostgreSQL.
package warehouse

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/datadojo/partrank/internal/db"
	"github.com/datadojo/partrank/internal/model"
	"github.com/datadojo/partrank/internal/resilience"
)

// LoadOptions narrows a warehouse load.
type LoadOptions struct {
	// Limit caps the number of records returned. Zero means no cap.
	Limit int

	// SamplePercent, when > 0, loads a random sample of roughly that
	// percentage of the parts table instead of the full set.
	SamplePercent float64

	// Categories restricts the load to the named part categories.
	Categories []string
}

// Loader reads part records from the warehouse. Queries are rate limited so
// batch scoring runs do not starve interactive warehouse users, and transient
// failures are retried.
type Loader struct {
	pool    db.Pool
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// New builds a Loader. queriesPerSec <= 0 disables rate limiting.
func New(pool db.Pool, queriesPerSec float64, retry resilience.RetryConfig) *Loader {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if queriesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(queriesPerSec), 1)
	}
	retry.OnRetry = resilience.RetryLogger("warehouse", "load_parts")
	return &Loader{pool: pool, limiter: limiter, retry: retry}
}

// LoadParts reads part records joined with their all-time demand.
func (l *Loader) LoadParts(ctx context.Context, opts LoadOptions) ([]model.PartRecord, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "warehouse: rate limit wait")
	}

	query, args := buildPartsQuery(opts)

	parts, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) ([]model.PartRecord, error) {
		return l.queryParts(ctx, query, args)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("warehouse: loaded parts",
		zap.Int("parts", len(parts)),
		zap.Int("limit", opts.Limit),
		zap.Float64("sample_percent", opts.SamplePercent),
	)
	return parts, nil
}

// Ping checks warehouse connectivity.
func (l *Loader) Ping(ctx context.Context) error {
	return eris.Wrap(l.pool.Ping(ctx), "warehouse: ping")
}

func buildPartsQuery(opts LoadOptions) (string, []any) {
	from := `parts p`
	if opts.SamplePercent > 0 {
		from = fmt.Sprintf(`parts p TABLESAMPLE SYSTEM (%g)`, opts.SamplePercent)
	}

	query := `SELECT p.pn, p.description, p.category, p.manufacturer, p.inventory, p.leadtime_weeks, p.moq, p.first_price, COALESCE(d.demand_all_time, 0), p.source_type, p.datasheet FROM ` + from +
		` LEFT JOIN part_demand d ON d.pn = p.pn`

	var args []any
	argIdx := 1

	if len(opts.Categories) > 0 {
		query += fmt.Sprintf(` WHERE p.category = ANY($%d)`, argIdx)
		args = append(args, opts.Categories)
		argIdx++
	}

	query += ` ORDER BY p.pn`

	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, opts.Limit)
	}

	return query, args
}

func (l *Loader) queryParts(ctx context.Context, query string, args []any) ([]model.PartRecord, error) {
	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: query parts")
	}
	defer rows.Close()

	var parts []model.PartRecord
	for rows.Next() {
		var p model.PartRecord
		var desc, category, manuf, sourceType, datasheet *string

		if err := rows.Scan(&p.PN, &desc, &category, &manuf, &p.Inventory,
			&p.LeadtimeWeeks, &p.MOQ, &p.FirstPrice, &p.DemandAllTime,
			&sourceType, &datasheet); err != nil {
			return nil, eris.Wrap(err, "warehouse: scan part")
		}

		if desc != nil {
			p.Description = *desc
		}
		if category != nil {
			p.Category = *category
		}
		if manuf != nil {
			p.Manufacturer = *manuf
		}
		if sourceType != nil {
			p.SourceType = model.SourceType(*sourceType)
		}
		if datasheet != nil {
			p.Datasheet = *datasheet
		}
		parts = append(parts, p)
	}
	return parts, eris.Wrap(rows.Err(), "warehouse: iterate parts")
}
