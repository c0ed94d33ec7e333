package drug

import "time"

// Drug is a hospital drug, optionally linked to a substance by its SNOMED id.
type Drug struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	SCTID      *int64 `db:"sctid" json:"sctid"`
	IDHospital int    `db:"id_hospital" json:"idHospital"`
}

type Unit struct {
	ID          string `db:"id" json:"id"`
	Description string `db:"description" json:"description"`
}

// DrugUnit is a measure unit a drug can be prescribed in. Factor converts one
// of this unit into the drug's default unit.
type DrugUnit struct {
	IDDrug      int64   `db:"id_drug" json:"idDrug"`
	IDUnit      string  `db:"id_unit" json:"idUnit"`
	Description string  `db:"description" json:"description"`
	Factor      float64 `db:"factor" json:"factor"`
	Default     bool    `db:"is_default" json:"default"`
}

// Frequency maps a hospital frequency code to doses per day. Special codes
// (as needed, physician discretion, continuous, now, undefined) are stored
// in place of the daily value.
type Frequency struct {
	ID             string   `db:"id" json:"id"`
	Description    string   `db:"description" json:"description"`
	DailyFrequency *float64 `db:"daily_frequency" json:"dailyFrequency"`
}

// Attributes is the clinical setup of a drug inside a segment.
type Attributes struct {
	IDDrug             int64      `db:"id_drug" json:"idDrug"`
	IDSegment          int        `db:"id_segment" json:"idSegment"`
	Antimicro          bool       `db:"antimicro" json:"antimicro"`
	MAV                bool       `db:"mav" json:"mav"`
	Controlled         bool       `db:"controlled" json:"controlled"`
	NotDefault         bool       `db:"not_default" json:"notDefault"`
	Elderly            bool       `db:"elderly" json:"elderly"`
	Tube               bool       `db:"tube" json:"tube"`
	WhiteList          bool       `db:"whitelist" json:"whiteList"`
	UseWeight          bool       `db:"use_weight" json:"useWeight"`
	Fasting            bool       `db:"fasting" json:"fasting"`
	MaxDose            *float64   `db:"max_dose" json:"maxDose"`
	Kidney             *float64   `db:"kidney" json:"kidney"`
	Liver              *float64   `db:"liver" json:"liver"`
	Platelets          *float64   `db:"platelets" json:"platelets"`
	MaxTime            *int       `db:"max_time" json:"maxTime"`
	Division           *int       `db:"division" json:"division"`
	Price              *float64   `db:"price" json:"price"`
	IDMeasureUnitPrice *string    `db:"id_measure_unit_price" json:"idMeasureUnitPrice"`
	IDMeasureUnit      *string    `db:"id_measure_unit" json:"idMeasureUnit"`
	UpdatedAt          *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
	UpdatedBy          *int64     `db:"updated_by" json:"updatedBy,omitempty"`
}

// ListFilter narrows the drug listing.
type ListFilter struct {
	IDSegment *int
	Name      string
}

// AttributesFilter narrows the admin attributes listing. Nil flags are ignored.
type AttributesFilter struct {
	IDSegment    *int
	Name         string
	HasPrice     *bool
	HasMaxDose   *bool
	HasSubstance *bool
}

// AttributesRow is one line of the admin attributes listing.
type AttributesRow struct {
	Attributes
	Name          string  `json:"name"`
	SCTID         *int64  `json:"sctid"`
	SubstanceName *string `json:"substance"`
	Segment       string  `json:"segment"`
}
