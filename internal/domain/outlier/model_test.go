package outlier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreFor(t *testing.T) {
	tests := []struct {
		count, total, want int
	}{
		{50, 100, 0},
		{20, 100, 0},
		{19, 100, 1},
		{10, 100, 1},
		{5, 100, 2},
		{4, 100, 3},
		{1, 0, ScoreUnseen},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScoreFor(tt.count, tt.total), "%d/%d", tt.count, tt.total)
	}
}

func TestLookup(t *testing.T) {
	manual := 1
	outliers := []*Outlier{
		{Dose: 500, Frequency: 4, Score: 0},
		{Dose: 1000, Frequency: 4, Score: 3, ManualScore: &manual},
	}
	assert.Equal(t, 0, Lookup(outliers, 500, 4, false))
	assert.Equal(t, 1, Lookup(outliers, 1000, 4, false), "manual score wins")
	assert.Equal(t, ScoreUnseen, Lookup(outliers, 500, 6, false))
	assert.Equal(t, ScoreCommon, Lookup(nil, 9999, 1, true), "whitelisted drugs are never outliers")
}

func TestNormalizeDose(t *testing.T) {
	assert.Equal(t, 500.0, NormalizeDose(0.5*1000))
	assert.Equal(t, 0.0625, NormalizeDose(62.5*0.001))
	assert.Equal(t, 0.00625, NormalizeDose(6.25*0.001))
	assert.NotEqual(t, NormalizeDose(0.0625), NormalizeDose(0.063))
	assert.Equal(t, 0.0, NormalizeDose(0))
}
