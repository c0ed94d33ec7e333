package exam

import "time"

// Exam types the clinical rules look at. Other types are stored and shown
// against the segment reference ranges only.
const (
	TypeCreatinine = "cr"
	TypeTGO        = "tgo"
	TypeTGP        = "tgp"
	TypePlatelets  = "plqt"
	TypePotassium  = "k"
)

// Exam is one lab result of an admission.
type Exam struct {
	AdmissionNumber int64     `db:"admission_number" json:"admissionNumber"`
	TypeExam        string    `db:"type_exam" json:"typeExam"`
	Value           float64   `db:"value" json:"value"`
	Unit            *string   `db:"unit" json:"unit"`
	Date            time.Time `db:"date" json:"date"`
}

// Entry is the latest result of one exam type with its reference range.
type Entry struct {
	TypeExam string     `json:"type"`
	Name     string     `json:"name"`
	Initials string     `json:"initials"`
	Value    float64    `json:"value"`
	Unit     *string    `json:"unit"`
	Date     time.Time  `json:"date"`
	Prev     *float64   `json:"prev"`
	PrevDate *time.Time `json:"prevDate,omitempty"`
	Delta    *float64   `json:"delta"`
	Min      *float64   `json:"min"`
	Max      *float64   `json:"max"`
	Ref      *string    `json:"ref"`
	Alert    bool       `json:"alert"`
	order    int
}

// View is what the prescription screen shows for an admission's exams.
type View struct {
	AdmissionNumber int64    `json:"admissionNumber"`
	Exams           []*Entry `json:"exams"`
	Renal           []Result `json:"renal"`
	AlertCount      int      `json:"alertCount"`
}

// Clinical carries the values the alert rules need. Nil means unknown.
type Clinical struct {
	Clearance *float64 `json:"clearance"`
	TGO       *float64 `json:"tgo"`
	TGP       *float64 `json:"tgp"`
	Platelets *float64 `json:"platelets"`
	Potassium *float64 `json:"potassium"`
}
