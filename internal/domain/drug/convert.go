package drug

import "strings"

// Special daily frequency codes.
const (
	FreqAsNeeded   = 33 // SN
	FreqPhysician  = 44 // ACM
	FreqContinuous = 55
	FreqNow        = 66
	FreqUndefined  = 99
)

// IsSpecialFrequency reports whether f is one of the special codes rather
// than a number of doses per day.
func IsSpecialFrequency(f float64) bool {
	switch f {
	case FreqAsNeeded, FreqPhysician, FreqContinuous, FreqNow, FreqUndefined:
		return true
	}
	return false
}

// SkipsDuplicity reports whether lines with this frequency are excluded from
// duplicity checks (as needed, physician discretion, now).
func SkipsDuplicity(f float64) bool {
	return f == FreqAsNeeded || f == FreqPhysician || f == FreqNow
}

// DailyFrequency returns the number of administrations per day used in dose
// and cost arithmetic. Special codes and unknown values count as one.
func DailyFrequency(f *float64) float64 {
	if f == nil || *f <= 0 || IsSpecialFrequency(*f) {
		return 1
	}
	return *f
}

// DefaultUnit returns the unit marked default, if any.
func DefaultUnit(units []*DrugUnit) *DrugUnit {
	for _, u := range units {
		if u.Default {
			return u
		}
	}
	return nil
}

func findUnit(units []*DrugUnit, id string) *DrugUnit {
	for _, u := range units {
		if strings.EqualFold(u.IDUnit, id) {
			return u
		}
	}
	return nil
}

// ConvertDose converts dose expressed in from into to, using each unit's
// factor relative to the default unit. It reports false when either unit is
// unknown for the drug or has no usable factor.
func ConvertDose(dose float64, from, to string, units []*DrugUnit) (float64, bool) {
	if strings.EqualFold(from, to) {
		return dose, true
	}
	fu, tu := findUnit(units, from), findUnit(units, to)
	if fu == nil || tu == nil || fu.Factor <= 0 || tu.Factor <= 0 {
		return 0, false
	}
	return dose * fu.Factor / tu.Factor, true
}

// ToDefault converts dose into the drug's default unit. When there is no
// default unit the dose is returned untouched.
func ToDefault(dose float64, from string, units []*DrugUnit) (float64, bool) {
	def := DefaultUnit(units)
	if def == nil {
		return dose, false
	}
	return ConvertDose(dose, from, def.IDUnit, units)
}
