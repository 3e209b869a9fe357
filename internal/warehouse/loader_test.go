package warehouse

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datadojo/partrank/internal/model"
	"github.com/datadojo/partrank/internal/resilience"
)

var partColumns = []string{
	"pn", "description", "category", "manufacturer", "inventory",
	"leadtime_weeks", "moq", "first_price", "demand_all_time",
	"source_type", "datasheet",
}

func newMockLoader(t *testing.T) (*Loader, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	retry := resilience.DefaultRetryConfig()
	retry.InitialBackoff = 1 // effectively immediate in tests
	return New(mock, 0, retry), mock
}

func strPtr(s string) *string { return &s }

func TestLoadParts(t *testing.T) {
	l, mock := newMockLoader(t)

	mock.ExpectQuery(`FROM parts p LEFT JOIN part_demand d ON d\.pn = p\.pn ORDER BY p\.pn`).
		WillReturnRows(pgxmock.NewRows(partColumns).
			AddRow("CAP-100", strPtr("ceramic cap"), strPtr("capacitor"), strPtr("Murata"),
				int64(250), model.IntPtr(2), model.Float64Ptr(10), model.Float64Ptr(0.12),
				int64(900), strPtr("Authorized"), strPtr("https://example.com/cap.pdf")).
			AddRow("RES-200", nil, nil, nil,
				int64(0), nil, nil, nil,
				int64(0), nil, nil))

	parts, err := l.LoadParts(context.Background(), LoadOptions{})
	require.NoError(t, err)
	require.Len(t, parts, 2)

	cap100 := parts[0]
	assert.Equal(t, "CAP-100", cap100.PN)
	assert.Equal(t, "capacitor", cap100.Category)
	assert.Equal(t, int64(250), cap100.Inventory)
	require.NotNil(t, cap100.LeadtimeWeeks)
	assert.Equal(t, 2, *cap100.LeadtimeWeeks)
	assert.Equal(t, int64(900), cap100.DemandAllTime)
	assert.Equal(t, model.SourceAuthorized, cap100.SourceType)

	res200 := parts[1]
	assert.Equal(t, "RES-200", res200.PN)
	assert.Nil(t, res200.LeadtimeWeeks, "warehouse NULL stays absent")
	assert.Nil(t, res200.MOQ)
	assert.Empty(t, string(res200.SourceType))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadParts_LimitAndCategories(t *testing.T) {
	l, mock := newMockLoader(t)

	mock.ExpectQuery(`WHERE p\.category = ANY\(\$1\) ORDER BY p\.pn LIMIT \$2`).
		WithArgs([]string{"capacitor", "resistor"}, 500).
		WillReturnRows(pgxmock.NewRows(partColumns))

	parts, err := l.LoadParts(context.Background(), LoadOptions{
		Limit:      500,
		Categories: []string{"capacitor", "resistor"},
	})
	require.NoError(t, err)
	assert.Empty(t, parts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadParts_Sample(t *testing.T) {
	l, mock := newMockLoader(t)

	mock.ExpectQuery(`FROM parts p TABLESAMPLE SYSTEM \(5\) LEFT JOIN`).
		WillReturnRows(pgxmock.NewRows(partColumns).
			AddRow("CAP-100", nil, nil, nil, int64(1), nil, nil, nil, int64(0), nil, nil))

	parts, err := l.LoadParts(context.Background(), LoadOptions{SamplePercent: 5})
	require.NoError(t, err)
	assert.Len(t, parts, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadParts_RetriesTransientFailure(t *testing.T) {
	l, mock := newMockLoader(t)

	mock.ExpectQuery(`FROM parts p LEFT JOIN`).
		WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectQuery(`FROM parts p LEFT JOIN`).
		WillReturnRows(pgxmock.NewRows(partColumns).
			AddRow("CAP-100", nil, nil, nil, int64(1), nil, nil, nil, int64(0), nil, nil))

	parts, err := l.LoadParts(context.Background(), LoadOptions{})
	require.NoError(t, err)
	assert.Len(t, parts, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadParts_PermanentFailureNotRetried(t *testing.T) {
	l, mock := newMockLoader(t)

	mock.ExpectQuery(`FROM parts p LEFT JOIN`).
		WillReturnError(&pgconn.PgError{Code: "42P01"}) // undefined_table

	_, err := l.LoadParts(context.Background(), LoadOptions{})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "exactly one attempt")
}
