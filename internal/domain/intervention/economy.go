package intervention

import (
	"errors"
	"math"
	"time"
)

var (
	ErrNoDestiny      = errors.New("substitution economy requires a destiny line")
	ErrNoCustomValue  = errors.New("custom economy requires a day value")
	ErrUnknownEconomy = errors.New("unknown economy type")
	ErrEndBeforeBase  = errors.New("economy end date is before its base date")
)

// DailyCost is price x dose (in the price unit) x administrations per day.
func DailyCost(price, dose, dailyFrequency float64) float64 {
	return round2(price * dose * dailyFrequency)
}

// EconomyDayValue computes the daily saving of an intervention. destiny is
// only used for substitutions and custom only for custom economies.
func EconomyDayValue(kind int, origin float64, destiny *float64, custom *float64) (float64, error) {
	switch kind {
	case EconomySuspension:
		return round2(origin), nil
	case EconomySubstitution:
		if destiny == nil {
			return 0, ErrNoDestiny
		}
		return round2(origin - *destiny), nil
	case EconomyCustom:
		if custom == nil {
			return 0, ErrNoCustomValue
		}
		return round2(*custom), nil
	}
	return 0, ErrUnknownEconomy
}

// EconomyDays counts the days between base and end, both included. A nil
// end means the economy is still running and has no day count.
func EconomyDays(base time.Time, end *time.Time) (*int, error) {
	if end == nil {
		return nil, nil
	}
	b := dateOnly(base)
	e := dateOnly(*end)
	if e.Before(b) {
		return nil, ErrEndBeforeBase
	}
	days := int(e.Sub(b).Hours()/24) + 1
	return &days, nil
}

// EconomyTypeFor derives the economy type from the selected reasons:
// substitution wins over suspension. It returns nil when neither applies.
func EconomyTypeFor(reasons []*Reason) *int {
	var suspension bool
	for _, r := range reasons {
		if r.Substitution {
			t := EconomySubstitution
			return &t
		}
		suspension = suspension || r.Suspension
	}
	if suspension {
		t := EconomySuspension
		return &t
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
