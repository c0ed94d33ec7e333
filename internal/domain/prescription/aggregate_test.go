package prescription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateID(t *testing.T) {
	day := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)
	id, err := AggregateID(day, 7, 123456)
	require.NoError(t, err)
	assert.Equal(t, int64(240310_07_0000123456), id)

	again, err := AggregateID(day.Add(-10*time.Hour), 7, 123456)
	require.NoError(t, err)
	assert.Equal(t, id, again, "same day gives the same id")
}

func TestDecodeAggregateID(t *testing.T) {
	day := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	id, err := AggregateID(day, 12, 9_876_543_210-1)
	require.NoError(t, err)

	gotDay, segment, admission, err := DecodeAggregateID(id)
	require.NoError(t, err)
	assert.True(t, gotDay.Equal(day))
	assert.Equal(t, 12, segment)
	assert.Equal(t, int64(9_876_543_209), admission)
}

func TestAggregateID_OutOfRange(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := AggregateID(day, 100, 1)
	assert.Error(t, err)
	_, err = AggregateID(day, 1, 10_000_000_000)
	assert.Error(t, err)
	_, err = AggregateID(day, 1, 0)
	assert.Error(t, err)
}

func TestIsAggregateID(t *testing.T) {
	assert.False(t, IsAggregateID(123456), "hospital ids are small")
	assert.False(t, IsAggregateID(241340_01_0000000001), "month 13")
	assert.False(t, IsAggregateID(240231_01_0000000001), "february 31")
	assert.True(t, IsAggregateID(240229_01_0000000001))
}
