package clinicalnotes

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/clinrx/clinrx/internal/platform/api"
	"github.com/clinrx/clinrx/internal/platform/cache"
	"github.com/clinrx/clinrx/internal/platform/db"
)

const (
	summaryNotes     = 5
	summarySentences = 3
)

// SummaryCache stores computed summaries. *cache.Cache satisfies it; a miss
// or an unavailable store both read as false.
type SummaryCache interface {
	Get(ctx context.Context, key string, dst interface{}) bool
	Set(ctx context.Context, key string, v interface{})
}

type Service struct {
	repo  Repository
	cache SummaryCache
	now   func() time.Time
}

func NewService(repo Repository, c SummaryCache) *Service {
	return &Service{repo: repo, cache: c, now: time.Now}
}

func (s *Service) List(ctx context.Context, admission int64, limit, offset int) ([]*Note, int, error) {
	if admission <= 0 {
		return nil, 0, api.InvalidParams("invalid admission number")
	}
	return s.repo.ListByAdmission(ctx, admission, limit, offset)
}

func key(ctx context.Context, admission int64, kind string) string {
	return cache.Key(db.SchemaFromContext(ctx), admission, kind)
}

func (s *Service) build(ctx context.Context, admission int64, kind string) (*Summary, error) {
	notes, err := s.repo.WithAnnotation(ctx, admission, kind, summaryNotes)
	if err != nil {
		return nil, err
	}
	sum := &Summary{AdmissionNumber: admission, Kind: kind, Excerpts: []*Excerpt{}, GeneratedAt: s.now().UTC()}
	for _, n := range notes {
		sentences := excerpt(n.Text, kind, summarySentences)
		if len(sentences) == 0 {
			continue
		}
		sum.Excerpts = append(sum.Excerpts, &Excerpt{
			IDNote: n.ID, Date: n.Date, Prescriber: n.Prescriber, Sentences: sentences,
		})
	}
	return sum, nil
}

// Summary reads through the cache.
func (s *Service) Summary(ctx context.Context, admission int64, kind string) (*Summary, error) {
	if admission <= 0 {
		return nil, api.InvalidParams("invalid admission number")
	}
	if !validKind(kind) {
		return nil, api.InvalidParams("invalid annotation kind " + kind)
	}
	k := key(ctx, admission, kind)
	var cached Summary
	if s.cache.Get(ctx, k, &cached) {
		return &cached, nil
	}
	sum, err := s.build(ctx, admission, kind)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, k, sum)
	return sum, nil
}

// Refresh rebuilds the summaries of kinds for the admission, or of every
// kind when kinds is empty. They are cached once the request commits.
func (s *Service) Refresh(ctx context.Context, admission int64, kinds ...string) (map[string]*Summary, error) {
	if admission <= 0 {
		return nil, api.InvalidParams("invalid admission number")
	}
	if len(kinds) == 0 {
		kinds = Kinds
	}
	out := make(map[string]*Summary, len(kinds))
	for _, kind := range kinds {
		if !validKind(kind) {
			return nil, api.InvalidParams("invalid annotation kind " + kind)
		}
		sum, err := s.build(ctx, admission, kind)
		if err != nil {
			return nil, err
		}
		k := key(ctx, admission, kind)
		db.AfterCommit(ctx, func() { s.cache.Set(ctx, k, sum) })
		out[kind] = sum
	}
	return out, nil
}

// Ingest annotates and stores notes, then refreshes the cached summaries of
// the kinds the new notes mention.
func (s *Service) Ingest(ctx context.Context, notes []*Note) (int, error) {
	if len(notes) == 0 {
		return 0, api.InvalidParams("no notes to ingest")
	}
	touched := make(map[int64]map[string]bool)
	for _, n := range notes {
		if n.ID <= 0 || n.AdmissionNumber <= 0 {
			return 0, api.InvalidParams("note id and admissionNumber are required")
		}
		if strings.TrimSpace(n.Text) == "" {
			return 0, api.InvalidParams("note text is required")
		}
		if n.Date.IsZero() {
			return 0, api.InvalidParams("note date is required")
		}
		n.Annotations = Annotate(n.Text)
		if touched[n.AdmissionNumber] == nil {
			touched[n.AdmissionNumber] = make(map[string]bool)
		}
		for kind, count := range n.Annotations {
			if count > 0 {
				touched[n.AdmissionNumber][kind] = true
			}
		}
	}

	inserted, err := s.repo.Insert(ctx, notes)
	if err != nil {
		return inserted, err
	}

	for admission, kinds := range touched {
		list := make([]string, 0, len(kinds))
		for k := range kinds {
			list = append(list, k)
		}
		if len(list) == 0 {
			continue
		}
		sort.Strings(list)
		if _, err := s.Refresh(ctx, admission, list...); err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}
