package service

import (
	"context"
	"strings"

	"github.com/barbarosson/advisory/internal/domain"
)

const searchKBLimit = 20

// SearchKB queries the knowledge base directly, without a model call.
func (s *Service) SearchKB(ctx context.Context, req *domain.AgentRequest) (*domain.SearchKBResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.Validationf("query is required")
	}

	docs, err := s.store.SearchKBDocuments(ctx, domain.KBSearchFilter{
		Query:     req.Query,
		SourceLaw: req.SourceLaw,
		Standard:  req.Standard,
		Limit:     searchKBLimit,
	})
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []domain.KBDocument{}
	}

	return &domain.SearchKBResponse{Results: docs, Count: len(docs)}, nil
}

// ListThreads returns a tenant's recent threads for an agent.
func (s *Service) ListThreads(ctx context.Context, tenantID, agentID string, limit int) ([]domain.Thread, error) {
	if tenantID == "" {
		return nil, domain.Validationf("tenant_id is required")
	}
	threads, err := s.store.ListThreads(ctx, tenantID, agentID, limit)
	if err != nil {
		return nil, err
	}
	if threads == nil {
		threads = []domain.Thread{}
	}
	return threads, nil
}
