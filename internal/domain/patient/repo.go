package patient

import "context"

type Repository interface {
	Get(ctx context.Context, admission int64) (*Patient, error)
	Upsert(ctx context.Context, p *Patient) error
	AddWeight(ctx context.Context, h *WeightHistory) error
	WeightHistory(ctx context.Context, admission int64) ([]*WeightHistory, error)
	Allergies(ctx context.Context, admission int64) ([]*Allergy, error)
	ReplaceAllergies(ctx context.Context, admission int64, allergies []*Allergy) error
}
