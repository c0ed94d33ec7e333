package exam

import "context"

type Repository interface {
	// ListByAdmission returns the results of an admission, newest first.
	ListByAdmission(ctx context.Context, admission int64) ([]*Exam, error)
	Insert(ctx context.Context, exams []*Exam) (int, error)
}
