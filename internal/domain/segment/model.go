package segment

import "time"

// Segment is a ward or clinical protocol grouping. Reference ranges and drug
// attributes are configured per segment.
type Segment struct {
	ID          int    `db:"id" json:"id"`
	Description string `db:"description" json:"description"`
	Status      int    `db:"status" json:"status"`
}

// Department maps a hospital department to the segment it belongs to.
type Department struct {
	IDHospital   int    `db:"id_hospital" json:"idHospital"`
	IDDepartment int    `db:"id_department" json:"idDepartment"`
	IDSegment    *int   `db:"id_segment" json:"idSegment"`
	Name         string `db:"name" json:"name"`
}

// Exam is the reference range of one exam type inside a segment.
type Exam struct {
	IDSegment int        `db:"id_segment" json:"idSegment"`
	TypeExam  string     `db:"type_exam" json:"type"`
	Name      string     `db:"name" json:"name"`
	Initials  string     `db:"initials" json:"initials"`
	Min       *float64   `db:"min" json:"min"`
	Max       *float64   `db:"max" json:"max"`
	Ref       *string    `db:"ref" json:"ref"`
	Order     int        `db:"ord" json:"order"`
	Active    bool       `db:"active" json:"active"`
	UpdatedAt *time.Time `db:"updated_at" json:"updatedAt,omitempty"`
	UpdatedBy *int64     `db:"updated_by" json:"updatedBy,omitempty"`
}

// InRange reports whether value lies inside [Min, Max]. Open bounds always pass.
func (e *Exam) InRange(value float64) bool {
	if e.Min != nil && value < *e.Min {
		return false
	}
	if e.Max != nil && value > *e.Max {
		return false
	}
	return true
}

// Detail is a segment with its departments and exam references.
type Detail struct {
	Segment
	Departments []*Department `json:"departments"`
	Exams       []*Exam       `json:"exams"`
}
