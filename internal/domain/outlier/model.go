package outlier

import (
	"math"
	"time"

	"github.com/clinrx/clinrx/internal/domain/drug"
)

// Scores run from 0 (common) to 3 (rare). Unseen is used for a dose and
// frequency never prescribed for the drug in the segment.
const (
	ScoreCommon = 0
	ScoreRare   = 3
	ScoreUnseen = 4
)

// Outlier is a (dose, frequency) combination seen for a drug in a segment.
// Dose is in the drug's default unit.
type Outlier struct {
	ID          int64      `db:"id" json:"id"`
	IDDrug      int64      `db:"id_drug" json:"idDrug"`
	IDSegment   int        `db:"id_segment" json:"idSegment"`
	Dose        float64    `db:"dose" json:"dose"`
	Frequency   float64    `db:"frequency" json:"frequency"`
	CountNum    int        `db:"countnum" json:"countNum"`
	Score       int        `db:"score" json:"score"`
	ManualScore *int       `db:"manual_score" json:"manualScore"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
	UpdatedBy   *int64     `db:"updated_by" json:"updatedBy,omitempty"`
}

// Effective returns the manual score when a pharmacist set one.
func (o *Outlier) Effective() int {
	if o.ManualScore != nil {
		return *o.ManualScore
	}
	return o.Score
}

// NormalizeDose rounds a converted dose to 6 significant digits, dropping
// the float noise of unit conversion so stored and prescribed doses agree.
func NormalizeDose(d float64) float64 {
	if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return d
	}
	scale := math.Pow(10, 6-math.Ceil(math.Log10(math.Abs(d))))
	return math.Round(d*scale) / scale
}

func sameValue(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

func (o *Outlier) matches(dose, frequency float64) bool {
	return sameValue(o.Dose, NormalizeDose(dose)) && math.Abs(o.Frequency-frequency) < 1e-6
}

// HistoryRow is a prescribed (dose, unit, frequency) combination with its
// number of occurrences.
type HistoryRow struct {
	IDDrug    int64
	Dose      float64
	IDUnit    string
	Frequency float64
	Count     int
}

// ScoreFor returns the score of count occurrences out of total.
func ScoreFor(count, total int) int {
	if total <= 0 {
		return ScoreUnseen
	}
	share := float64(count) / float64(total)
	switch {
	case share >= 0.20:
		return 0
	case share >= 0.10:
		return 1
	case share >= 0.05:
		return 2
	default:
		return ScoreRare
	}
}

// Lookup scores a line against the known outliers of its drug.
func Lookup(outliers []*Outlier, dose, frequency float64, whitelisted bool) int {
	if whitelisted {
		return ScoreCommon
	}
	for _, o := range outliers {
		if o.matches(dose, frequency) {
			return o.Effective()
		}
	}
	return ScoreUnseen
}

// Listing is the outlier screen of one drug in a segment.
type Listing struct {
	Outliers    []*Outlier        `json:"outliers"`
	Drug        *drug.Drug        `json:"drug"`
	Attributes  *drug.Attributes  `json:"attributes"`
	Units       []*drug.DrugUnit  `json:"units"`
	Frequencies []*drug.Frequency `json:"frequencies"`
}
