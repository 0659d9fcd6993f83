package search

import (
	"context"
	"log/slog"

	"experiences/api/internal/experience"
)

const (
	BackendMeili = "meilisearch"
	BackendPG    = "postgres"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili  *Meili
	pgfts  *PgFTS
	logger *slog.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{meili: meili, pgfts: pgfts, logger: logger}
}

func (s *Service) meiliReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meiliReady() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: BackendMeili}
		}
		s.logger.WarnContext(ctx, "meilisearch error, falling back to pgfts", "error", err)
	}

	if s.pgfts == nil {
		return Response{Results: []Result{}, Query: q.Text, Backend: BackendPG}
	}
	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		s.logger.ErrorContext(ctx, "pgfts search failed", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Backend: BackendPG}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: BackendPG}
}

// IndexExperience pushes an experience to Meilisearch. PG FTS needs no
// indexing since its vector is a generated column.
func (s *Service) IndexExperience(_ context.Context, e *experience.Experience) error {
	if e == nil || !s.meiliReady() {
		return nil
	}
	return s.meili.IndexExperience(RecordFromExperience(e))
}

// ReindexAllFromPG reindexes every experience from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.meiliReady() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "reindex load failed", "error", err)
		return
	}
	if err := s.meili.IndexExperiences(records); err != nil {
		s.logger.ErrorContext(ctx, "reindex experiences failed", "error", err)
		return
	}
	s.logger.InfoContext(ctx, "search reindex complete", "experiences", len(records))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
