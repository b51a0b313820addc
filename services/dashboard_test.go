package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"storefront-api/models"
)

func TestPercentChange(t *testing.T) {
	cases := []struct {
		name              string
		current, previous float64
		want              float64
	}{
		{"both zero", 0, 0, 0},
		{"from zero", 5, 0, 100},
		{"from zero large", 1_000_000, 0, 100},
		{"doubled", 200, 100, 100},
		{"halved", 50, 100, -50},
		{"unchanged", 42, 42, 0},
		{"rounded", 1, 3, -66.67},
		{"to zero", 0, 10, -100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PercentChange(tc.current, tc.previous))
		})
	}
}

func TestResolveRangeDefault(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)
	cur, prev, err := ResolveRange("", "", now)
	require.NoError(t, err)

	assert.Equal(t, now, cur.End)
	assert.Equal(t, now.Add(-DefaultWindow), cur.Start)
	assert.Equal(t, cur.Start, prev.End)
	assert.Equal(t, now.Add(-2*DefaultWindow), prev.Start)
}

func TestResolveRangeExplicit(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)
	cur, prev, err := ResolveRange("2026-09-01", "2026-09-10", now)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, ReportLocation), cur.Start)
	assert.Equal(t, time.Date(2026, 9, 11, 0, 0, 0, 0, ReportLocation), cur.End)
	assert.Equal(t, time.Date(2026, 8, 22, 0, 0, 0, 0, ReportLocation), prev.Start)
	assert.Equal(t, cur.Start, prev.End)
}

func TestResolveRangeUsesReportZone(t *testing.T) {
	// a UTC server must still cut days at local midnight
	now := time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)
	cur, _, err := ResolveRange("2026-09-01", "2026-09-01", now)
	require.NoError(t, err)

	assert.True(t, cur.Start.Equal(time.Date(2026, 8, 31, 17, 0, 0, 0, time.UTC)), cur.Start.String())
	assert.True(t, cur.End.Equal(time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC)), cur.End.String())
}

func TestResolveRangeSingleDay(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)
	cur, _, err := ResolveRange("2026-09-01", "2026-09-01", now)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cur.End.Sub(cur.Start))
}

func TestResolveRangeErrors(t *testing.T) {
	now := time.Now()
	_, _, err := ResolveRange("2026-13-01", "", now)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, _, err = ResolveRange("", "yesterday", now)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, _, err = ResolveRange("2026-09-10", "2026-09-01", now)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestRevenuePipelinesExcludeCancelled(t *testing.T) {
	r := models.DateRange{Start: time.Unix(0, 0), End: time.Unix(100, 0)}
	for name, p := range map[string][]bson.D{
		"totals":   RevenueTotalsPipeline(r),
		"byDay":    RevenueByDayPipeline(r),
		"category": RevenueByCategoryPipeline(r),
		"top":      TopProductsPipeline(r, 5),
	} {
		first := p[0]
		require.Equal(t, "$match", first[0].Key, name)
		match := first[0].Value.(bson.D)
		assert.Equal(t, bson.D{{Key: "$ne", Value: models.OrderStatusCancelled}}, match[1].Value, name)
	}
}

func TestTopProductsPipelineLimit(t *testing.T) {
	p := TopProductsPipeline(models.DateRange{}, 3)
	last := p[len(p)-1]
	assert.Equal(t, "$limit", last[0].Key)
	assert.Equal(t, 3, last[0].Value)
}
