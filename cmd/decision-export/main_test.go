package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilters(t *testing.T) {
	filters, err := buildFilters("ambulance", "human", "2026-03-01T00:00:00Z", "2026-03-02T00:00:00Z", 50)
	require.NoError(t, err)

	require.NotNil(t, filters.RequiredResource)
	assert.Equal(t, "ambulance", *filters.RequiredResource)
	require.NotNil(t, filters.ResolvedBy)
	assert.Equal(t, "human", *filters.ResolvedBy)
	assert.True(t, filters.StartTime.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, filters.EndTime.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 50, filters.Limit)
}

func TestBuildFilters_Empty(t *testing.T) {
	filters, err := buildFilters("", "", "", "", 0)
	require.NoError(t, err)
	assert.Nil(t, filters.RequiredResource)
	assert.Nil(t, filters.ResolvedBy)
	assert.Nil(t, filters.StartTime)
	assert.Nil(t, filters.EndTime)
}

func TestBuildFilters_Invalid(t *testing.T) {
	_, err := buildFilters("", "robot", "", "", 0)
	assert.Error(t, err)

	_, err = buildFilters("", "", "yesterday", "", 0)
	assert.Error(t, err)

	_, err = buildFilters("", "", "", "", -1)
	assert.Error(t, err)
}
