package segment

import "context"

type Repository interface {
	List(ctx context.Context) ([]*Segment, error)
	GetByID(ctx context.Context, id int) (*Segment, error)
	Departments(ctx context.Context, idSegment int) ([]*Department, error)
	Exams(ctx context.Context, idSegment int) ([]*Exam, error)
	UpsertExam(ctx context.Context, e *Exam) error
}
