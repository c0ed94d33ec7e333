package outlier

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/clinrx/clinrx/internal/domain/drug"
	"github.com/clinrx/clinrx/internal/platform/api"
)

// HistoryDays is the prescription window used to generate outliers.
const HistoryDays = 90

type DrugSource interface {
	Get(ctx context.Context, id int64) (*drug.Drug, error)
	Units(ctx context.Context, idDrug int64) ([]*drug.DrugUnit, error)
	UnitsFor(ctx context.Context, ids []int64) (map[int64][]*drug.DrugUnit, error)
	Attributes(ctx context.Context, idDrug int64, idSegment int) (*drug.Attributes, error)
	AttributesFor(ctx context.Context, ids []int64, idSegment int) (map[int64]*drug.Attributes, error)
	Frequencies(ctx context.Context) (map[string]*drug.Frequency, error)
}

type Service struct {
	repo  Repository
	drugs DrugSource
}

func NewService(repo Repository, drugs DrugSource) *Service {
	return &Service{repo: repo, drugs: drugs}
}

type comboKey struct {
	drug      int64
	dose      float64
	frequency float64
}

// Generate rebuilds the outliers of a segment from its recent prescriptions.
// Doses are converted to each drug's default unit before counting, so the
// same dose prescribed in different units counts once. It returns the
// number of outliers written.
func (s *Service) Generate(ctx context.Context, idSegment int, userID int64) (int, error) {
	if idSegment <= 0 {
		return 0, api.InvalidParams("invalid segment")
	}
	history, err := s.repo.History(ctx, idSegment, HistoryDays)
	if err != nil {
		return 0, err
	}
	if len(history) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0)
	seen := make(map[int64]bool)
	for _, h := range history {
		if !seen[h.IDDrug] {
			seen[h.IDDrug] = true
			ids = append(ids, h.IDDrug)
		}
	}
	units, err := s.drugs.UnitsFor(ctx, ids)
	if err != nil {
		return 0, err
	}

	counts := make(map[comboKey]int)
	totals := make(map[int64]int)
	for _, h := range history {
		dose := h.Dose
		if h.IDUnit != "" {
			if v, ok := drug.ToDefault(h.Dose, h.IDUnit, units[h.IDDrug]); ok {
				dose = v
			}
		}
		k := comboKey{drug: h.IDDrug, dose: NormalizeDose(dose), frequency: h.Frequency}
		counts[k] += h.Count
		totals[h.IDDrug] += h.Count
	}

	keys := make([]comboKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].drug != keys[j].drug {
			return keys[i].drug < keys[j].drug
		}
		if keys[i].dose != keys[j].dose {
			return keys[i].dose < keys[j].dose
		}
		return keys[i].frequency < keys[j].frequency
	})

	for _, k := range keys {
		o := &Outlier{
			IDDrug:    k.drug,
			IDSegment: idSegment,
			Dose:      k.dose,
			Frequency: k.frequency,
			CountNum:  counts[k],
			Score:     ScoreFor(counts[k], totals[k.drug]),
			UpdatedBy: &userID,
		}
		if err := s.repo.Upsert(ctx, o); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// List returns the outliers of a drug in a segment with what the screen needs
// to edit its attributes.
func (s *Service) List(ctx context.Context, idSegment int, idDrug int64) (*Listing, error) {
	d, err := s.drugs.Get(ctx, idDrug)
	if err != nil {
		return nil, err
	}
	outliers, err := s.repo.List(ctx, idSegment, idDrug)
	if err != nil {
		return nil, err
	}
	attrs, err := s.drugs.Attributes(ctx, idDrug, idSegment)
	if err != nil {
		return nil, err
	}
	units, err := s.drugs.Units(ctx, idDrug)
	if err != nil {
		return nil, err
	}
	freqs, err := s.drugs.Frequencies(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]*drug.Frequency, 0, len(freqs))
	for _, f := range freqs {
		list = append(list, f)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	if outliers == nil {
		outliers = []*Outlier{}
	}
	return &Listing{Outliers: outliers, Drug: d, Attributes: attrs, Units: units, Frequencies: list}, nil
}

// ForDrugs returns the outliers of the given drugs in a segment.
func (s *Service) ForDrugs(ctx context.Context, idSegment int, ids []int64) (map[int64][]*Outlier, error) {
	if len(ids) == 0 {
		return map[int64][]*Outlier{}, nil
	}
	return s.repo.ForDrugs(ctx, idSegment, ids)
}

// SetManualScore overrides the generated score. A nil score clears it.
func (s *Service) SetManualScore(ctx context.Context, id int64, score *int, userID int64) (*Outlier, error) {
	if score != nil && (*score < ScoreCommon || *score > ScoreUnseen) {
		return nil, api.InvalidParams("score must be between 0 and 4")
	}
	if err := s.repo.SetManualScore(ctx, id, score, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.NotFound("outlier not found")
		}
		return nil, err
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}
