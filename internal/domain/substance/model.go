package substance

import "time"

// Relation kinds between two substances.
const (
	KindInteraction     = "it"
	KindYSite           = "iy" // incompatible in Y-site administration
	KindSameSolution    = "sl" // incompatible in the same solution
	KindCrossReactivity = "rx"
)

var validKinds = map[string]bool{
	KindInteraction: true, KindYSite: true, KindSameSolution: true, KindCrossReactivity: true,
}

// Alert levels, shared with the alert engine.
const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"
)

var validLevels = map[string]bool{LevelHigh: true, LevelMedium: true, LevelLow: true}

// Substance is a SNOMED CT substance from the shared catalog.
type Substance struct {
	ID      int64   `db:"id" json:"sctid"`
	Name    string  `db:"name" json:"name"`
	IDClass *string `db:"id_class" json:"idClass"`
	Active  bool    `db:"active" json:"active"`
	Link    *string `db:"link" json:"link"`
}

// Relation links two substances. Pairs are stored with SctidA < SctidB.
type Relation struct {
	SctidA    int64      `db:"sctid_a" json:"sctidA"`
	SctidB    int64      `db:"sctid_b" json:"sctidB"`
	Kind      string     `db:"kind" json:"kind"`
	Text      string     `db:"text" json:"text"`
	Level     string     `db:"level" json:"level"`
	Active    bool       `db:"active" json:"active"`
	Author    *int64     `db:"author" json:"author,omitempty"`
	UpdatedAt *time.Time `db:"updated_at" json:"updatedAt,omitempty"`

	// NameA and NameB are filled on listings.
	NameA string `json:"nameA,omitempty"`
	NameB string `json:"nameB,omitempty"`
}

// Normalize orders the pair so that SctidA < SctidB.
func (r *Relation) Normalize() {
	if r.SctidA > r.SctidB {
		r.SctidA, r.SctidB = r.SctidB, r.SctidA
		r.NameA, r.NameB = r.NameB, r.NameA
	}
}

// Involves reports whether the relation joins a and b in either order.
func (r *Relation) Involves(a, b int64) bool {
	return (r.SctidA == a && r.SctidB == b) || (r.SctidA == b && r.SctidB == a)
}
