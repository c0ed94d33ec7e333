package alert

import (
	"github.com/clinrx/clinrx/internal/domain/drug"
	"github.com/clinrx/clinrx/internal/domain/substance"
)

// Alert types. Pair types reuse the substance relation kinds.
const (
	TypeAllergy         = "allergy"
	TypeMaxDose         = "maxDose"
	TypeMaxDoseTotal    = "maxDoseTotal"
	TypeKidney          = "kidney"
	TypeLiver           = "liver"
	TypePlatelets       = "platelets"
	TypeElderly         = "elderly"
	TypeTube            = "tube"
	TypeMaxTime         = "maxTime"
	TypeInteraction     = substance.KindInteraction
	TypeYSite           = substance.KindYSite
	TypeSameSolution    = substance.KindSameSolution
	TypeCrossReactivity = substance.KindCrossReactivity
	TypeDuplicity       = "dm"
	TypeTherapeuticDup  = "dt"
)

const (
	LevelHigh   = substance.LevelHigh
	LevelMedium = substance.LevelMedium
	LevelLow    = substance.LevelLow
)

// ElderlyAge is the age from which elderly restricted drugs raise an alert.
const ElderlyAge = 60

var levelRank = map[string]int{LevelLow: 1, LevelMedium: 2, LevelHigh: 3}

// HigherLevel returns the more severe of a and b. Empty means none.
func HigherLevel(a, b string) string {
	if levelRank[b] > levelRank[a] {
		return b
	}
	return a
}

// Item is one prescription line as seen by the engine. Dose is already in
// the drug's default unit.
type Item struct {
	ID            int64
	IDDrug        int64
	DrugName      string
	SCTID         *int64
	IDClass       *string
	Dose          *float64
	Frequency     *float64 // doses per day or a special frequency code
	Route         string
	Intravenous   bool
	SolutionGroup *string
	Suspended     bool
	Period        int // days in use
	Attributes    *drug.Attributes
}

func (it *Item) whitelisted() bool {
	return it.Attributes != nil && it.Attributes.WhiteList
}

func (it *Item) active() bool {
	return !it.Suspended && !it.whitelisted()
}

func (it *Item) skipsDuplicity() bool {
	return it.Frequency != nil && drug.SkipsDuplicity(*it.Frequency)
}

// dailyDose is nil when the dose is unknown.
func (it *Item) dailyDose() *float64 {
	if it.Dose == nil {
		return nil
	}
	v := *it.Dose * drug.DailyFrequency(it.Frequency)
	return &v
}

// Patient is the clinical context of the prescription. Nil means unknown.
type Patient struct {
	Age               *int
	Weight            *float64
	Dialysis          string
	Tube              bool
	AllergyDrugs      map[int64]bool
	AllergySubstances map[int64]bool
	Clearance         *float64
	TGO               *float64
	TGP               *float64
	Platelets         *float64
}

// Alert is raised against one line. Related holds the other line of a pair alert.
type Alert struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Text    string `json:"text"`
	IDLine  int64  `json:"idPrescriptionDrug"`
	Related *int64 `json:"related,omitempty"`
}

// Stats summarises the alerts of a prescription.
type Stats struct {
	Total   int            `json:"total"`
	ByType  map[string]int `json:"byType"`
	ByLevel map[string]int `json:"byLevel"`
	Level   string         `json:"level"`
}

// Result holds the alerts raised for each line id.
type Result struct {
	Alerts map[int64][]Alert `json:"alerts"`
	Stats  Stats             `json:"stats"`
}

// For returns the alerts of one line.
func (r *Result) For(line int64) []Alert {
	return r.Alerts[line]
}
