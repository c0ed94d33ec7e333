package patient

import (
	"strings"
	"time"
)

// Dialysis modes. An empty value means the patient is not on dialysis.
const (
	DialysisContinuous   = "c"
	DialysisExtended     = "x"
	DialysisPeritoneal   = "v"
	DialysisIntermittent = "p"
)

var validDialysis = map[string]bool{
	"": true, DialysisContinuous: true, DialysisExtended: true,
	DialysisPeritoneal: true, DialysisIntermittent: true,
}

// Patient is one hospital admission with its clinical data.
type Patient struct {
	AdmissionNumber int64      `db:"admission_number" json:"admissionNumber"`
	IDPatient       int64      `db:"id_patient" json:"idPatient"`
	IDHospital      int        `db:"id_hospital" json:"idHospital"`
	Birthdate       *time.Time `db:"birthdate" json:"birthdate"`
	Gender          *string    `db:"gender" json:"gender"`
	SkinColor       *string    `db:"skin_color" json:"skinColor"`
	Weight          *float64   `db:"weight" json:"weight"`
	WeightDate      *time.Time `db:"weight_date" json:"weightDate"`
	Height          *float64   `db:"height" json:"height"`
	Dialysis        *string    `db:"dialysis" json:"dialysis"`
	Tube            bool       `db:"tube" json:"tube"`
	AlertText       *string    `db:"alert_text" json:"alertText"`
	AdmissionDate   *time.Time `db:"admission_date" json:"admissionDate"`
	DischargeDate   *time.Time `db:"discharge_date" json:"dischargeDate"`
	Observation     *string    `db:"observation" json:"observation"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
	UpdatedBy       *int64     `db:"updated_by" json:"updatedBy,omitempty"`
}

// Age returns the completed years at the given instant. It reports false
// when the birthdate is unknown or in the future.
func (p *Patient) Age(at time.Time) (int, bool) {
	if p.Birthdate == nil || p.Birthdate.After(at) {
		return 0, false
	}
	b := *p.Birthdate
	years := at.Year() - b.Year()
	if at.Month() < b.Month() || (at.Month() == b.Month() && at.Day() < b.Day()) {
		years--
	}
	return years, true
}

// AgeMonths returns the completed months at the given instant.
func (p *Patient) AgeMonths(at time.Time) (int, bool) {
	if p.Birthdate == nil || p.Birthdate.After(at) {
		return 0, false
	}
	b := *p.Birthdate
	months := (at.Year()-b.Year())*12 + int(at.Month()) - int(b.Month())
	if at.Day() < b.Day() {
		months--
	}
	return months, true
}

func (p *Patient) Female() bool {
	return p.Gender != nil && strings.EqualFold(*p.Gender, "F")
}

// Black reports whether the recorded skin color is black ("Negra"/"Black").
func (p *Patient) Black() bool {
	if p.SkinColor == nil {
		return false
	}
	c := strings.ToLower(*p.SkinColor)
	return c == "negra" || c == "preta" || c == "black"
}

func (p *Patient) DialysisMode() string {
	if p.Dialysis == nil {
		return ""
	}
	return *p.Dialysis
}

// WeightHistory is appended every time the recorded weight changes.
type WeightHistory struct {
	AdmissionNumber int64     `db:"admission_number" json:"admissionNumber"`
	Weight          float64   `db:"weight" json:"weight"`
	Height          *float64  `db:"height" json:"height"`
	Date            time.Time `db:"date" json:"date"`
	CreatedBy       *int64    `db:"created_by" json:"createdBy"`
}

// Allergy is recorded against a hospital drug, a substance or both.
type Allergy struct {
	AdmissionNumber int64   `db:"admission_number" json:"admissionNumber"`
	IDDrug          *int64  `db:"id_drug" json:"idDrug"`
	SCTID           *int64  `db:"sctid" json:"sctid"`
	Description     string  `db:"description" json:"description"`
	Active          bool    `db:"active" json:"active"`
	DrugName        *string `json:"drugName,omitempty"`
}

// ClinicalUpdate carries the fields a pharmacist may change. Nil fields are left as is.
type ClinicalUpdate struct {
	Weight      *float64   `json:"weight"`
	WeightDate  *time.Time `json:"weightDate"`
	Height      *float64   `json:"height"`
	Dialysis    *string    `json:"dialysis"`
	Tube        *bool      `json:"tube"`
	AlertText   *string    `json:"alertText"`
	Observation *string    `json:"observation"`
}
