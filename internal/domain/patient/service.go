package patient

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinrx/clinrx/internal/platform/api"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Get(ctx context.Context, admission int64) (*Patient, error) {
	p, err := s.repo.Get(ctx, admission)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.NotFound("patient not found")
		}
		return nil, err
	}
	return p, nil
}

// Find is Get without the not found error: a missing patient yields nil.
func (s *Service) Find(ctx context.Context, admission int64) (*Patient, error) {
	p, err := s.repo.Get(ctx, admission)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *Service) Allergies(ctx context.Context, admission int64) ([]*Allergy, error) {
	return s.repo.Allergies(ctx, admission)
}

func (s *Service) WeightHistory(ctx context.Context, admission int64) ([]*WeightHistory, error) {
	return s.repo.WeightHistory(ctx, admission)
}

func sameWeight(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return math.Abs(*a-*b) < 1e-9
}

func validateMeasures(weight, height *float64, dialysis *string) error {
	if weight != nil && (*weight <= 0 || *weight > 500) {
		return api.InvalidParams("weight must be between 0 and 500 kg")
	}
	if height != nil && (*height <= 0 || *height > 300) {
		return api.InvalidParams("height must be between 0 and 300 cm")
	}
	if dialysis != nil && !validDialysis[*dialysis] {
		return api.InvalidParams("invalid dialysis mode: " + *dialysis)
	}
	return nil
}

// UpdateClinical applies a pharmacist's changes to the admission. An unknown
// admission is created so clinical data can be recorded before ingest.
func (s *Service) UpdateClinical(ctx context.Context, admission int64, in ClinicalUpdate, userID int64) (*Patient, error) {
	if admission <= 0 {
		return nil, api.InvalidParams("invalid admission number")
	}
	if err := validateMeasures(in.Weight, in.Height, in.Dialysis); err != nil {
		return nil, err
	}

	p, err := s.Find(ctx, admission)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &Patient{AdmissionNumber: admission}
	}

	weightChanged := in.Weight != nil && !sameWeight(p.Weight, in.Weight)
	if weightChanged {
		p.Weight = in.Weight
		date := s.now()
		if in.WeightDate != nil {
			date = *in.WeightDate
		}
		p.WeightDate = &date
	}
	if in.Height != nil {
		p.Height = in.Height
	}
	if in.Dialysis != nil {
		p.Dialysis = in.Dialysis
	}
	if in.Tube != nil {
		p.Tube = *in.Tube
	}
	if in.AlertText != nil {
		p.AlertText = in.AlertText
	}
	if in.Observation != nil {
		p.Observation = in.Observation
	}
	p.UpdatedBy = &userID

	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, err
	}
	if weightChanged {
		if err := s.repo.AddWeight(ctx, &WeightHistory{
			AdmissionNumber: admission, Weight: *p.Weight, Height: p.Height,
			Date: *p.WeightDate, CreatedBy: &userID,
		}); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// IngestRecord is one patient row sent by the hospital integration.
type IngestRecord struct {
	Patient
	Allergies []*Allergy `json:"allergies"`
}

// Ingest upserts hospital patient data. Clinical fields already edited by a
// pharmacist (dialysis, tube, alert text, observation) are kept.
func (s *Service) Ingest(ctx context.Context, records []*IngestRecord, userID int64) (int, error) {
	if len(records) == 0 {
		return 0, api.InvalidParams("no patients to ingest")
	}
	for i, rec := range records {
		if rec.AdmissionNumber <= 0 {
			return 0, api.InvalidParams("record " + strconv.Itoa(i) + ": admissionNumber is required")
		}
		if err := validateMeasures(rec.Weight, rec.Height, rec.Dialysis); err != nil {
			return 0, err
		}
	}

	for _, rec := range records {
		in := rec.Patient
		current, err := s.Find(ctx, in.AdmissionNumber)
		if err != nil {
			return 0, err
		}
		if current != nil {
			if in.Dialysis == nil {
				in.Dialysis = current.Dialysis
			}
			if in.AlertText == nil {
				in.AlertText = current.AlertText
			}
			if in.Observation == nil {
				in.Observation = current.Observation
			}
			in.Tube = in.Tube || current.Tube
			if in.Weight == nil {
				in.Weight, in.WeightDate = current.Weight, current.WeightDate
			}
			if in.Height == nil {
				in.Height = current.Height
			}
		}
		var prevWeight *float64
		if current != nil {
			prevWeight = current.Weight
		}
		if in.Weight != nil && in.WeightDate == nil {
			now := s.now()
			in.WeightDate = &now
		}
		in.UpdatedBy = &userID
		if err := s.repo.Upsert(ctx, &in); err != nil {
			return 0, err
		}
		if in.Weight != nil && !sameWeight(prevWeight, in.Weight) {
			if err := s.repo.AddWeight(ctx, &WeightHistory{
				AdmissionNumber: in.AdmissionNumber, Weight: *in.Weight, Height: in.Height,
				Date: *in.WeightDate, CreatedBy: &userID,
			}); err != nil {
				return 0, err
			}
		}
		if rec.Allergies != nil {
			if err := s.repo.ReplaceAllergies(ctx, in.AdmissionNumber, rec.Allergies); err != nil {
				return 0, err
			}
		}
	}
	return len(records), nil
}
