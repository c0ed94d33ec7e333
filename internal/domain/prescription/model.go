package prescription

import (
	"strings"
	"time"

	"github.com/clinrx/clinrx/internal/domain/alert"
	"github.com/clinrx/clinrx/internal/domain/drug"
)

// Review status of a prescription.
const (
	StatusPending = "0"
	StatusChecked = "s"
)

// Line sources as sent by the hospital system.
const (
	SourceDrug      = "Medicamentos"
	SourceSolution  = "Soluções"
	SourceProcedure = "Procedimentos"
	SourceDiet      = "Dietas"
)

var validSources = map[string]bool{
	SourceDrug: true, SourceSolution: true, SourceProcedure: true, SourceDiet: true,
}

// Prescription is a prescription header. Aggregates are synthetic headers
// merging the prescriptions of one admission on one day.
type Prescription struct {
	ID              int64      `db:"id" json:"id"`
	AdmissionNumber int64      `db:"admission_number" json:"admissionNumber"`
	IDHospital      int        `db:"id_hospital" json:"idHospital"`
	IDSegment       *int       `db:"id_segment" json:"idSegment"`
	IDDepartment    *int       `db:"id_department" json:"idDepartment"`
	Date            time.Time  `db:"date" json:"date"`
	Expire          *time.Time `db:"expire" json:"expire"`
	Status          string     `db:"status" json:"status"`
	Agg             bool       `db:"agg" json:"agg"`
	Concilia        bool       `db:"concilia" json:"concilia"`
	Features        *Features  `db:"features" json:"features"`
	Prescriber      *string    `db:"prescriber" json:"prescriber"`
	UpdatedAt       *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
	UpdatedBy       *int64     `db:"updated_by" json:"updatedBy,omitempty"`
}

func (p *Prescription) segment() int {
	if p.IDSegment == nil {
		return 0
	}
	return *p.IDSegment
}

// Line is a prescription drug line. DrugName, SCTID and IDClass are read
// from the drug and substance catalogs.
type Line struct {
	ID             int64      `db:"id" json:"id"`
	IDPrescription int64      `db:"id_prescription" json:"idPrescription"`
	IDDrug         *int64     `db:"id_drug" json:"idDrug"`
	Dose           *float64   `db:"dose" json:"dose"`
	IDMeasureUnit  *string    `db:"id_measure_unit" json:"idMeasureUnit"`
	IDFrequency    *string    `db:"id_frequency" json:"idFrequency"`
	Route          *string    `db:"route" json:"route"`
	Interval       *string    `db:"dose_interval" json:"interval"`
	SuspendedAt    *time.Time `db:"suspended_at" json:"suspendedAt"`
	SolutionGroup  *string    `db:"solution_group" json:"solutionGroup"`
	Source         string     `db:"source" json:"source"`
	Period         *int       `db:"period" json:"period"`
	Notes          *string    `db:"notes" json:"notes"`
	Checked        bool       `db:"checked" json:"checked"`
	Status         string     `db:"status" json:"status"`

	DrugName string  `json:"drugName,omitempty"`
	SCTID    *int64  `json:"sctid,omitempty"`
	IDClass  *string `json:"idClass,omitempty"`
}

func (l *Line) Suspended() bool { return l.SuspendedAt != nil }

// Intravenous reports whether the route is an intravenous one.
func (l *Line) Intravenous() bool {
	if l.Route == nil {
		return false
	}
	r := strings.ToUpper(strings.TrimSpace(*l.Route))
	return r == "EV" || r == "IV" || strings.HasPrefix(r, "INTRAVEN") || strings.HasPrefix(r, "ENDOVEN")
}

// Features is the summary stored on the prescription after each check. It
// drives the prioritized listing.
type Features struct {
	AlertCount        int            `json:"alertCount"`
	AlertLevel        string         `json:"alertLevel"`
	AlertStats        map[string]int `json:"alertStats"`
	DrugCount         int            `json:"drugCount"`
	SolutionCount     int            `json:"solutionCount"`
	ProcedureCount    int            `json:"procedureCount"`
	DietCount         int            `json:"dietCount"`
	AntimicroCount    int            `json:"antimicroCount"`
	MAVCount          int            `json:"mavCount"`
	ControlledCount   int            `json:"controlledCount"`
	NotDefaultCount   int            `json:"notDefaultCount"`
	ScoreTotal        int            `json:"scoreTotal"`
	DiffCount         int            `json:"diffCount"`
	InterventionCount int            `json:"interventionCount"`
	ProcessedAt       time.Time      `json:"processedAt"`
}

// InterventionInfo is the latest intervention recorded on a line, as shown
// next to it.
type InterventionInfo struct {
	ID                 int64   `json:"id"`
	IDPrescriptionDrug int64   `json:"idPrescriptionDrug"`
	Status             string  `json:"status"`
	Reasons            []int   `json:"reasons"`
	Observation        *string `json:"observation"`
}

// LineView is a line with the computed data of a check.
type LineView struct {
	*Line
	DoseDefault    *float64          `json:"doseDefault"`
	DefaultUnit    *string           `json:"defaultUnit"`
	DailyFrequency *float64          `json:"dailyFrequency"`
	Score          int               `json:"score"`
	Attributes     *drug.Attributes  `json:"attributes"`
	Alerts         []alert.Alert     `json:"alerts"`
	Intervention   *InterventionInfo `json:"intervention"`
}

// Detail is a checked prescription with its lines grouped by source.
type Detail struct {
	*Prescription
	Underlying    []int64             `json:"prescriptions,omitempty"`
	Drugs         []*LineView         `json:"drugs"`
	Solutions     []*LineView         `json:"solutions"`
	Procedures    []*LineView         `json:"procedures"`
	Diets         []*LineView         `json:"diets"`
	AlertStats    alert.Stats         `json:"alertStats"`
	Interventions []*InterventionInfo `json:"interventions"`
	Age           *int                `json:"age"`
	Weight        *float64            `json:"weight"`
	Clearance     *float64            `json:"clearance"`
}

// ListFilter selects prescriptions for the prioritized listing.
type ListFilter struct {
	IDSegment   *int
	Date        time.Time
	Departments []int
	Order       string
	Agg         *bool
	Status      *string
}

// Listing orders.
const (
	OrderAlerts = "alerts"
	OrderScore  = "score"
	OrderDate   = "date"
)

var validOrders = map[string]bool{OrderAlerts: true, OrderScore: true, OrderDate: true}

// IngestRecord is one prescription with its lines sent by the hospital integration.
type IngestRecord struct {
	Prescription
	Lines []*Line `json:"lines"`
}
