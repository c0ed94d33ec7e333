package substance

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"

	"github.com/clinrx/clinrx/internal/platform/api"
	"github.com/clinrx/clinrx/internal/platform/db"
)

// Service fronts the substance catalog. Relation sets are shared by every
// tenant, so lookups by substance list are kept in a process wide LRU.
type Service struct {
	repo      Repository
	relations *lru.Cache[string, []*Relation]
}

func NewService(repo Repository, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = 2048
	}
	c, err := lru.New[string, []*Relation](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{repo: repo, relations: c}, nil
}

func (s *Service) List(ctx context.Context, name string, limit, offset int) ([]*Substance, int, error) {
	return s.repo.List(ctx, strings.TrimSpace(name), limit, offset)
}

func (s *Service) Get(ctx context.Context, id int64) (*Substance, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.NotFound("substance not found")
		}
		return nil, err
	}
	return sub, nil
}

func (s *Service) GetMany(ctx context.Context, ids []int64) (map[int64]*Substance, error) {
	return s.repo.GetMany(ctx, ids)
}

// Relations lists every relation of a substance, active or not.
func (s *Service) Relations(ctx context.Context, id int64) ([]*Relation, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.RelationsOf(ctx, id)
}

// relationKey is the sorted, de-duplicated id list.
func relationKey(ids []int64) (string, []int64) {
	uniq := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id != 0 && !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })
	parts := make([]string, len(uniq))
	for i, id := range uniq {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ","), uniq
}

// RelationsAmong returns the active relations whose both ends are in ids.
func (s *Service) RelationsAmong(ctx context.Context, ids []int64) ([]*Relation, error) {
	key, uniq := relationKey(ids)
	if len(uniq) < 1 {
		return nil, nil
	}
	if rels, ok := s.relations.Get(key); ok {
		return rels, nil
	}
	rels, err := s.repo.RelationsAmong(ctx, uniq)
	if err != nil {
		return nil, err
	}
	s.relations.Add(key, rels)
	return rels, nil
}

func (s *Service) UpsertRelation(ctx context.Context, rel *Relation) error {
	rel.Kind = strings.ToLower(rel.Kind)
	if !validKinds[rel.Kind] {
		return api.InvalidParams("invalid relation kind: " + rel.Kind)
	}
	if rel.SctidA == rel.SctidB {
		return api.InvalidParams("a relation needs two different substances")
	}
	if rel.Level == "" {
		rel.Level = LevelLow
	}
	if !validLevels[rel.Level] {
		return api.InvalidParams("invalid level: " + rel.Level)
	}
	rel.Normalize()
	for _, id := range []int64{rel.SctidA, rel.SctidB} {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	if err := s.repo.UpsertRelation(ctx, rel); err != nil {
		return err
	}
	// a purge before commit lets concurrent checks cache the old set again
	db.AfterCommit(ctx, s.relations.Purge)
	return nil
}
