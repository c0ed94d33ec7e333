package intervention

import "time"

// Intervention statuses. Pending interventions await an outcome; deleted
// ones are kept with status 0.
const (
	StatusDeleted       = "0"
	StatusPending       = "s"
	StatusAccepted      = "a"
	StatusNotAccepted   = "n"
	StatusNotApplicable = "x"
	StatusJustified     = "j"
)

// OutcomeReopen moves an intervention back to pending.
const OutcomeReopen = StatusPending

var validOutcomes = map[string]bool{
	StatusAccepted: true, StatusNotAccepted: true, StatusNotApplicable: true,
	StatusJustified: true, OutcomeReopen: true,
}

// Economy types.
const (
	EconomySuspension   = 1
	EconomySubstitution = 2
	EconomyCustom       = 3
)

// Snapshot records the cost side of a line when the outcome is given.
type Snapshot struct {
	IDPrescriptionDrug int64    `json:"idPrescriptionDrug"`
	IDDrug             int64    `json:"idDrug"`
	DrugName           string   `json:"drugName"`
	Dose               *float64 `json:"dose"`
	IDMeasureUnit      *string  `json:"idMeasureUnit"`
	IDFrequency        *string  `json:"idFrequency"`
	DailyFrequency     float64  `json:"dailyFrequency"`
	Price              *float64 `json:"price"`
	IDMeasureUnitPrice *string  `json:"idMeasureUnitPrice"`
	DailyCost          *float64 `json:"dailyCost"`
}

type Intervention struct {
	ID                        int64      `db:"id" json:"id"`
	IDPrescriptionDrug        int64      `db:"id_prescription_drug" json:"idPrescriptionDrug"`
	IDPrescription            int64      `db:"id_prescription" json:"idPrescription"`
	AdmissionNumber           int64      `db:"admission_number" json:"admissionNumber"`
	Reasons                   []int      `db:"reasons" json:"reasons"`
	Error                     bool       `db:"error" json:"error"`
	Cost                      bool       `db:"cost" json:"cost"`
	Interactions              []int64    `db:"interactions" json:"interactions"`
	Observation               *string    `db:"observation" json:"observation"`
	Status                    string     `db:"status" json:"status"`
	EconomyType               *int       `db:"economy_type" json:"economyType"`
	EconomyDayValue           *float64   `db:"economy_day_value" json:"economyDayValue"`
	EconomyDays               *int       `db:"economy_days" json:"economyDays"`
	DateBaseEconomy           *time.Time `db:"date_base_economy" json:"dateBaseEconomy"`
	DateEndEconomy            *time.Time `db:"date_end_economy" json:"dateEndEconomy"`
	IDPrescriptionDrugDestiny *int64     `db:"id_prescription_drug_destiny" json:"idPrescriptionDrugDestiny"`
	Origin                    *Snapshot  `db:"origin" json:"origin"`
	Destiny                   *Snapshot  `db:"destiny" json:"destiny"`
	OutcomeAt                 *time.Time `db:"outcome_at" json:"outcomeAt"`
	OutcomeBy                 *int64     `db:"outcome_by" json:"outcomeBy"`
	CreatedAt                 time.Time  `db:"created_at" json:"createdAt"`
	CreatedBy                 int64      `db:"created_by" json:"createdBy"`
}

// PatientLevel reports whether the intervention targets the admission rather than a line.
func (i *Intervention) PatientLevel() bool { return i.IDPrescriptionDrug == 0 }

// Reason is an intervention reason. Children point to their parent.
type Reason struct {
	ID           int    `db:"id" json:"id"`
	Description  string `db:"description" json:"description"`
	Parent       *int   `db:"parent" json:"parent"`
	Suspension   bool   `db:"suspension" json:"suspension"`
	Substitution bool   `db:"substitution" json:"substitution"`
	Active       bool   `db:"active" json:"active"`
}

// SaveRequest creates or updates the pending intervention of a line. A zero
// IDPrescriptionDrug records a patient level intervention on
// AdmissionNumber.
type SaveRequest struct {
	IDPrescriptionDrug        int64    `json:"idPrescriptionDrug"`
	AdmissionNumber           int64    `json:"admissionNumber"`
	Reasons                   []int    `json:"idInterventionReason"`
	Error                     bool     `json:"error"`
	Cost                      bool     `json:"cost"`
	Interactions              []int64  `json:"interactions"`
	Observation               *string  `json:"observation"`
	Propagate                 *bool    `json:"propagate"`
	EconomyType               *int     `json:"economyType"`
	IDPrescriptionDrugDestiny *int64   `json:"idPrescriptionDrugDestiny"`
	EconomyDayValue           *float64 `json:"economyDayValue"`
}

// OutcomeRequest sets the outcome of an intervention.
type OutcomeRequest struct {
	Outcome                   string     `json:"outcome"`
	IDPrescriptionDrugDestiny *int64     `json:"idPrescriptionDrugDestiny"`
	EconomyDayValue           *float64   `json:"economyDayValue"`
	DateEndEconomy            *time.Time `json:"dateEndEconomy"`
}

// OutcomeData is what the outcome dialog shows before a decision.
type OutcomeData struct {
	Intervention      *Intervention `json:"intervention"`
	Origin            *Snapshot     `json:"origin"`
	Destiny           *Snapshot     `json:"destiny"`
	DestinyCandidates []*Snapshot   `json:"destinyCandidates"`
	EconomyDayValue   *float64      `json:"economyDayValue"`
	EconomyDays       *int          `json:"economyDays"`
}

// ListFilter selects interventions. Deleted ones are never listed.
type ListFilter struct {
	AdmissionNumber *int64
	From            *time.Time
	To              *time.Time
	Statuses        []string
}
