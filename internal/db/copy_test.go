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
	n, err := CopyFrom(context.TODO(), nil, "record_items", []string{"id", "value"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"record_items"}, []string{"id", "value"}).WillReturnResult(3)

	rows := [][]any{{"a", "7.2"}, {"b", "7.4"}, {"c", "7.1"}}
	n, err := CopyFrom(context.Background(), mock, "record_items", []string{"id", "value"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"record_items"}, []string{"id", "value"}).
		WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "record_items", []string{"id", "value"}, [][]any{{"a", "1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO record_items")
	assert.NoError(t, mock.ExpectationsWereMet())
}
