package segment

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

func (s *Service) List(ctx context.Context) ([]*Segment, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int) (*Detail, error) {
	seg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.NotFound("segment not found")
		}
		return nil, err
	}
	deps, err := s.repo.Departments(ctx, id)
	if err != nil {
		return nil, err
	}
	exams, err := s.repo.Exams(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Segment: *seg, Departments: deps, Exams: exams}, nil
}

// ExamRefs returns the segment's active exam references keyed by exam type.
func (s *Service) ExamRefs(ctx context.Context, idSegment int) (map[string]*Exam, error) {
	exams, err := s.repo.Exams(ctx, idSegment)
	if err != nil {
		return nil, err
	}
	refs := make(map[string]*Exam, len(exams))
	for _, e := range exams {
		if e.Active {
			refs[strings.ToLower(e.TypeExam)] = e
		}
	}
	return refs, nil
}

func (s *Service) UpsertExam(ctx context.Context, e *Exam) error {
	e.TypeExam = strings.ToLower(strings.TrimSpace(e.TypeExam))
	if e.TypeExam == "" {
		return api.InvalidParams("exam type is required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return api.InvalidParams("exam name is required")
	}
	if e.Min != nil && e.Max != nil && *e.Min > *e.Max {
		return api.InvalidParams("min must not exceed max")
	}
	if _, err := s.repo.GetByID(ctx, e.IDSegment); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return api.NotFound("segment not found")
		}
		return err
	}
	return s.repo.UpsertExam(ctx, e)
}
