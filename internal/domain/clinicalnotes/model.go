package clinicalnotes

import "time"

// Annotation kinds counted on every note.
const (
	KindMedications  = "medications"
	KindComplication = "complication"
	KindSymptoms     = "symptoms"
	KindDiet         = "diet"
	KindDialysis     = "dialysis"
	KindAllergy      = "allergy"
	KindConduct      = "conduct"
	KindSigns        = "signs"
	KindInfo         = "info"
	KindNames        = "names"
)

// Kinds lists the annotation kinds in display order.
var Kinds = []string{
	KindMedications, KindComplication, KindSymptoms, KindDiet, KindDialysis,
	KindAllergy, KindConduct, KindSigns, KindInfo, KindNames,
}

func validKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

type Note struct {
	ID              int64          `db:"id" json:"id"`
	AdmissionNumber int64          `db:"admission_number" json:"admissionNumber"`
	Date            time.Time      `db:"date" json:"date"`
	Text            string         `db:"text" json:"text"`
	Prescriber      *string        `db:"prescriber" json:"prescriber"`
	Position        *string        `db:"position" json:"position"`
	Annotations     map[string]int `db:"annotations" json:"annotations"`
}

// Excerpt is what a summary keeps of one note.
type Excerpt struct {
	IDNote     int64     `json:"idNote"`
	Date       time.Time `json:"date"`
	Prescriber *string   `json:"prescriber"`
	Sentences  []string  `json:"sentences"`
}

// Summary gathers the latest excerpts of an admission for one annotation kind.
type Summary struct {
	AdmissionNumber int64      `json:"admissionNumber"`
	Kind            string     `json:"kind"`
	Excerpts        []*Excerpt `json:"excerpts"`
	GeneratedAt     time.Time  `json:"generatedAt"`
}
