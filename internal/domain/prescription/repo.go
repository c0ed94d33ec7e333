package prescription

import (
	"context"
	"time"
)

type Repository interface {
	Get(ctx context.Context, id int64) (*Prescription, error)
	Upsert(ctx context.Context, p *Prescription) error
	UpsertLines(ctx context.Context, lines []*Line) error
	Lines(ctx context.Context, prescriptionIDs []int64) ([]*Line, error)
	LineByID(ctx context.Context, id int64) (*Line, error)
	// SameDay returns the non aggregate prescriptions of an admission on a day.
	SameDay(ctx context.Context, admission int64, day time.Time) ([]*Prescription, error)
	UpdateFeatures(ctx context.Context, id int64, f *Features) error
	SetStatus(ctx context.Context, ids []int64, status string, userID int64) error
	UpdateNotes(ctx context.Context, lineID int64, notes *string, userID int64) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Prescription, int, error)
	InterventionsByLine(ctx context.Context, lineIDs []int64) (map[int64]*InterventionInfo, error)
	// PatientInterventions lists the patient level interventions of an admission.
	PatientInterventions(ctx context.Context, admission int64) ([]*InterventionInfo, error)
}
