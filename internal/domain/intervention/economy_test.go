package intervention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestDailyCost(t *testing.T) {
	assert.Equal(t, 15.0, DailyCost(0.01, 500, 3))
	assert.Equal(t, 0.33, DailyCost(0.111, 1, 3))
	assert.Equal(t, 0.0, DailyCost(0, 500, 3))
}

func TestEconomyDayValue(t *testing.T) {
	v, err := EconomyDayValue(EconomySuspension, 15, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 15.0, v)

	v, err = EconomyDayValue(EconomySubstitution, 15, f64(2), nil)
	require.NoError(t, err)
	assert.Equal(t, 13.0, v)

	// substituting for a more expensive drug is a negative economy
	v, err = EconomyDayValue(EconomySubstitution, 2, f64(15), nil)
	require.NoError(t, err)
	assert.Equal(t, -13.0, v)

	v, err = EconomyDayValue(EconomyCustom, 15, f64(2), f64(7.5))
	require.NoError(t, err)
	assert.Equal(t, 7.5, v)

	_, err = EconomyDayValue(EconomySubstitution, 15, nil, nil)
	assert.ErrorIs(t, err, ErrNoDestiny)
	_, err = EconomyDayValue(EconomyCustom, 15, nil, nil)
	assert.ErrorIs(t, err, ErrNoCustomValue)
	_, err = EconomyDayValue(9, 15, nil, nil)
	assert.ErrorIs(t, err, ErrUnknownEconomy)
}

func TestEconomyDays(t *testing.T) {
	base := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)

	days, err := EconomyDays(base, nil)
	require.NoError(t, err)
	assert.Nil(t, days)

	same := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	days, err = EconomyDays(base, &same)
	require.NoError(t, err)
	require.NotNil(t, days)
	assert.Equal(t, 1, *days)

	end := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	days, err = EconomyDays(base, &end)
	require.NoError(t, err)
	assert.Equal(t, 5, *days)

	before := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	_, err = EconomyDays(base, &before)
	assert.ErrorIs(t, err, ErrEndBeforeBase)
}

func TestEconomyTypeFor(t *testing.T) {
	suspend := &Reason{ID: 1, Suspension: true}
	substitute := &Reason{ID: 2, Substitution: true}
	plain := &Reason{ID: 3}

	assert.Nil(t, EconomyTypeFor([]*Reason{plain}))
	assert.Equal(t, EconomySuspension, *EconomyTypeFor([]*Reason{plain, suspend}))
	assert.Equal(t, EconomySubstitution, *EconomyTypeFor([]*Reason{suspend, substitute}))
	assert.Equal(t, EconomySubstitution, *EconomyTypeFor([]*Reason{substitute, suspend}))
}
