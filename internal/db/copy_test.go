package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "scores", []string{"pn", "priority_score"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"scores"}, []string{"pn", "priority_score"}).WillReturnResult(3)

	rows := [][]any{{"PN-1", 87.5}, {"PN-2", 12.0}, {"PN-3", 50.0}}
	n, err := CopyFrom(context.Background(), mock, "scores", []string{"pn", "priority_score"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"partrank", "scores"}, []string{"pn"}).WillReturnResult(1)

	n, err := CopyFrom(context.Background(), mock, "partrank.scores", []string{"pn"}, [][]any{{"PN-1"}})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"scores"}, []string{"pn"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "scores", []string{"pn"}, [][]any{{"PN-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO scores")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableIdent(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"scores", `"scores"`},
		{"partrank.scores", `"partrank"."scores"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, tableIdent(tt.input).Sanitize())
		})
	}
}
