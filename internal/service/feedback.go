package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/barbarosson/advisory/internal/domain"
)

// Feedback records a quality rating for an assistant message. Empty
// rating fields default to the first vocabulary entry; the message must
// exist inside the caller's tenant.
func (s *Service) Feedback(ctx context.Context, req *domain.AgentRequest) (*domain.FeedbackResponse, error) {
	if req.MessageID == "" {
		return nil, domain.Validationf("message_id is required")
	}
	if req.TenantID == "" {
		return nil, domain.Validationf("tenant_id is required")
	}

	msg, err := s.store.GetMessage(ctx, req.TenantID, req.MessageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, domain.Validationf("message %s not found", req.MessageID)
	}

	solved := defaulted(req.SolvedProblem, domain.SolvedProblemValues)
	accurate := defaulted(req.IsAccurate, domain.IsAccurateValues)
	clear := defaulted(req.IsClear, domain.IsClearValues)

	if !domain.ValidFeedbackValue(domain.SolvedProblemValues, solved) {
		return nil, domain.Validationf("invalid solved_problem value %q", solved)
	}
	if !domain.ValidFeedbackValue(domain.IsAccurateValues, accurate) {
		return nil, domain.Validationf("invalid is_accurate value %q", accurate)
	}
	if !domain.ValidFeedbackValue(domain.IsClearValues, clear) {
		return nil, domain.Validationf("invalid is_clear value %q", clear)
	}

	fb := &domain.Feedback{
		FeedbackID:    uuid.New().String(),
		MessageID:     req.MessageID,
		TenantID:      req.TenantID,
		SolvedProblem: solved,
		IsAccurate:    accurate,
		IsClear:       clear,
		Comment:       req.Comment,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateFeedback(ctx, fb); err != nil {
		return nil, err
	}

	return &domain.FeedbackResponse{Success: true}, nil
}

func defaulted(v string, vocabulary []string) string {
	if v == "" {
		return vocabulary[0]
	}
	return v
}
