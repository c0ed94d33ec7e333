package exam

import "math"

// RenalAlertThreshold is the filtration rate (mL/min) under which a result is flagged.
const RenalAlertThreshold = 50.0

const (
	unitNormalized = "mL/min/1.73m²"
	unitPlain      = "mL/min"
)

// Result is a calculated filtration rate. Value is nil when the inputs were
// missing or outside the formula's domain.
type Result struct {
	Name     string   `json:"name"`
	Initials string   `json:"initials"`
	Value    *float64 `json:"value"`
	Unit     string   `json:"unit"`
	Ref      string   `json:"ref"`
	Alert    bool     `json:"alert"`
	// Adjusted is the body surface corrected value (CKD-EPI 2009 only).
	Adjusted *float64 `json:"adjusted,omitempty"`
}

func (r Result) Empty() bool { return r.Value == nil }

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func result(name, initials, unit string, v float64) Result {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Result{Name: name, Initials: initials, Unit: unit}
	}
	rv := round1(v)
	return Result{
		Name:     name,
		Initials: initials,
		Value:    &rv,
		Unit:     unit,
		Ref:      "> 50 " + unit,
		Alert:    rv < RenalAlertThreshold,
	}
}

func empty(name, initials, unit string) Result {
	return Result{Name: name, Initials: initials, Unit: unit}
}

// Inputs gathers what the calculators may need. Zero values mean unknown.
type Inputs struct {
	Creatinine float64 // mg/dL
	Age        int     // years
	AgeMonths  int
	HasAge     bool
	Female     bool
	Black      bool
	Weight     float64 // kg
	Height     float64 // cm
}

func adult(in Inputs) bool { return in.HasAge && in.Age >= 18 }

// MDRD: 175 x Cr^-1.154 x age^-0.203 x 0.742 (female) x 1.212 (black).
func MDRD(in Inputs) Result {
	const name, initials = "Modification of Diet in Renal Disease", "MDRD"
	if in.Creatinine <= 0 || !adult(in) {
		return empty(name, initials, unitNormalized)
	}
	v := 175 * math.Pow(in.Creatinine, -1.154) * math.Pow(float64(in.Age), -0.203)
	if in.Female {
		v *= 0.742
	}
	if in.Black {
		v *= 1.212
	}
	return result(name, initials, unitNormalized, v)
}

// CockcroftGault: ((140 - age) x weight) / (72 x Cr) x 0.85 (female).
func CockcroftGault(in Inputs) Result {
	const name, initials = "Cockcroft-Gault", "CG"
	if in.Creatinine <= 0 || in.Weight <= 0 || !adult(in) || in.Age >= 140 {
		return empty(name, initials, unitPlain)
	}
	v := (140 - float64(in.Age)) * in.Weight / (72 * in.Creatinine)
	if in.Female {
		v *= 0.85
	}
	return result(name, initials, unitPlain, v)
}

// BSA is the Mosteller body surface area in m².
func BSA(weight, height float64) float64 {
	if weight <= 0 || height <= 0 {
		return 0
	}
	return math.Sqrt(weight * height / 3600)
}

// CKDEPI2009 also fills Adjusted, the value de-normalised by the patient's
// body surface, when weight and height are known.
func CKDEPI2009(in Inputs) Result {
	const name, initials = "Chronic Kidney Disease Epidemiology 2009", "CKD"
	if in.Creatinine <= 0 || !adult(in) {
		return empty(name, initials, unitNormalized)
	}
	k, a := 0.9, -0.411
	if in.Female {
		k, a = 0.7, -0.329
	}
	ratio := in.Creatinine / k
	v := 141 * math.Pow(math.Min(ratio, 1), a) * math.Pow(math.Max(ratio, 1), -1.209) * math.Pow(0.993, float64(in.Age))
	if in.Female {
		v *= 1.018
	}
	if in.Black {
		v *= 1.159
	}
	res := result(name, initials, unitNormalized, v)
	if res.Value != nil {
		if bsa := BSA(in.Weight, in.Height); bsa > 0 {
			adj := round1(v * bsa / 1.73)
			res.Adjusted = &adj
		}
	}
	return res
}

// CKDEPI2021 is the race free refit.
func CKDEPI2021(in Inputs) Result {
	const name, initials = "Chronic Kidney Disease Epidemiology 2021", "CKD21"
	if in.Creatinine <= 0 || !adult(in) {
		return empty(name, initials, unitNormalized)
	}
	k, a := 0.9, -0.302
	if in.Female {
		k, a = 0.7, -0.241
	}
	ratio := in.Creatinine / k
	v := 142 * math.Pow(math.Min(ratio, 1), a) * math.Pow(math.Max(ratio, 1), -1.200) * math.Pow(0.9938, float64(in.Age))
	if in.Female {
		v *= 1.012
	}
	return result(name, initials, unitNormalized, v)
}

// SchwartzBedside: 0.413 x height / Cr, for patients under 18.
func SchwartzBedside(in Inputs) Result {
	const name, initials = "Schwartz 2 (bedside)", "Schwartz 2"
	if in.Creatinine <= 0 || in.Height <= 0 || !in.HasAge || in.Age >= 18 {
		return empty(name, initials, unitNormalized)
	}
	return result(name, initials, unitNormalized, 0.413*in.Height/in.Creatinine)
}

// SchwartzOriginal: k x height / Cr with k 0.45 under one year, 0.55 from
// one to twelve (and for girls up to 17), 0.70 for boys 13 to 17.
func SchwartzOriginal(in Inputs) Result {
	const name, initials = "Schwartz 1 (original)", "Schwartz 1"
	if in.Creatinine <= 0 || in.Height <= 0 || !in.HasAge || in.Age >= 18 {
		return empty(name, initials, unitNormalized)
	}
	var k float64
	switch {
	case in.Age < 1:
		k = 0.45
	case in.Age <= 12, in.Female:
		k = 0.55
	default:
		k = 0.70
	}
	return result(name, initials, unitNormalized, k*in.Height/in.Creatinine)
}

// Clearance is the rate used by dose rules: CKD-EPI 2021 for adults and
// bedside Schwartz below 18.
func Clearance(in Inputs) Result {
	if adult(in) {
		return CKDEPI2021(in)
	}
	return SchwartzBedside(in)
}
