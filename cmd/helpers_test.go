package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	rng, err := parseRange("2026-01-01", "2026-01-31")
	require.NoError(t, err)
	require.NotNil(t, rng.From)
	require.NotNil(t, rng.To)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *rng.From)
	// Upper bound includes the whole named day.
	assert.True(t, rng.To.After(time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)))
	assert.True(t, rng.To.Before(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestParseRangeOpenEnded(t *testing.T) {
	rng, err := parseRange("", "")
	require.NoError(t, err)
	assert.Nil(t, rng.From)
	assert.Nil(t, rng.To)

	rng, err = parseRange("2026-01-01", "")
	require.NoError(t, err)
	require.NotNil(t, rng.From)
	assert.Nil(t, rng.To)
}

func TestParseRangeInvalid(t *testing.T) {
	_, err := parseRange("January 1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse --from")

	_, err = parseRange("", "2026-13-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse --to")
}

func TestResolveTemplate(t *testing.T) {
	fx := newServeFixture(t)
	ctx := context.Background()

	byCode, err := resolveTemplate(ctx, fx.store, "QC-CHEM-01")
	require.NoError(t, err)
	assert.Equal(t, fx.template.ID, byCode.ID)

	byID, err := resolveTemplate(ctx, fx.store, fx.template.ID)
	require.NoError(t, err)
	assert.Equal(t, "QC-CHEM-01", byID.Code)

	_, err = resolveTemplate(ctx, fx.store, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template not found")
}
