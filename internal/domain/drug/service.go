package drug

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/clinrx/clinrx/internal/platform/api"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Drug, int, error) {
	f.Name = strings.TrimSpace(f.Name)
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) Get(ctx context.Context, id int64) (*Drug, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.NotFound("drug not found")
		}
		return nil, err
	}
	return d, nil
}

func (s *Service) Units(ctx context.Context, idDrug int64) ([]*DrugUnit, error) {
	if _, err := s.Get(ctx, idDrug); err != nil {
		return nil, err
	}
	return s.repo.Units(ctx, idDrug)
}

// UnitsFor returns the measure units of every drug in ids.
func (s *Service) UnitsFor(ctx context.Context, ids []int64) (map[int64][]*DrugUnit, error) {
	return s.repo.UnitsFor(ctx, ids)
}

func (s *Service) AttributesFor(ctx context.Context, ids []int64, idSegment int) (map[int64]*Attributes, error) {
	return s.repo.AttributesFor(ctx, ids, idSegment)
}

// Attributes returns the drug attributes in a segment, or nil when the drug
// has not been configured there.
func (s *Service) Attributes(ctx context.Context, idDrug int64, idSegment int) (*Attributes, error) {
	a, err := s.repo.Attributes(ctx, idDrug, idSegment)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (s *Service) Frequencies(ctx context.Context) (map[string]*Frequency, error) {
	return s.repo.Frequencies(ctx)
}

func nonNegative(name string, v *float64) error {
	if v != nil && *v < 0 {
		return api.InvalidParams(name + " must not be negative")
	}
	return nil
}

func (s *Service) UpsertAttributes(ctx context.Context, a *Attributes) error {
	if a.IDSegment <= 0 {
		return api.InvalidParams("segment is required")
	}
	for name, v := range map[string]*float64{
		"maxDose": a.MaxDose, "kidney": a.Kidney, "liver": a.Liver,
		"platelets": a.Platelets, "price": a.Price,
	} {
		if err := nonNegative(name, v); err != nil {
			return err
		}
	}
	if a.MaxTime != nil && *a.MaxTime < 0 {
		return api.InvalidParams("maxTime must not be negative")
	}
	if a.Division != nil && *a.Division <= 0 {
		return api.InvalidParams("division must be positive")
	}

	if _, err := s.Get(ctx, a.IDDrug); err != nil {
		return err
	}
	units, err := s.repo.Units(ctx, a.IDDrug)
	if err != nil {
		return err
	}
	for _, unit := range []*string{a.IDMeasureUnit, a.IDMeasureUnitPrice} {
		if unit != nil && *unit != "" && findUnit(units, *unit) == nil {
			return api.BusinessRule("unit " + *unit + " is not configured for this drug")
		}
	}
	return s.repo.UpsertAttributes(ctx, a)
}

func (s *Service) AttributesList(ctx context.Context, f AttributesFilter, limit, offset int) ([]*AttributesRow, int, error) {
	f.Name = strings.TrimSpace(f.Name)
	return s.repo.AttributesList(ctx, f, limit, offset)
}

func (s *Service) UpdateUnitFactor(ctx context.Context, idDrug int64, idUnit string, factor float64) error {
	if factor <= 0 {
		return api.InvalidParams("factor must be positive")
	}
	if err := s.repo.UpdateUnitFactor(ctx, idDrug, idUnit, factor); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return api.NotFound("drug unit not found")
		}
		return err
	}
	return nil
}
