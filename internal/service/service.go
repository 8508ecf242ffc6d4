// Package service drives the agent completion loop: conversation
// assembly, model calls, tool execution and persistence.
package service

import (
	"go.uber.org/zap"

	"github.com/barbarosson/advisory/internal/agent"
	"github.com/barbarosson/advisory/internal/config"
	"github.com/barbarosson/advisory/internal/llm"
	"github.com/barbarosson/advisory/internal/store"
	"github.com/barbarosson/advisory/policy"
)

// Service owns the chat, feedback and knowledge-base operations for
// every registered agent profile.
type Service struct {
	store        store.Store
	llmClient    *llm.Client
	policyEngine *policy.Engine
	profiles     map[string]*agent.Profile
	config       *config.Config
	logger       *zap.Logger
}

// New wires the service. Profiles are keyed by their public agent ID.
func New(st store.Store, llmClient *llm.Client, policyEngine *policy.Engine, profiles []*agent.Profile, cfg *config.Config, logger *zap.Logger) *Service {
	byID := make(map[string]*agent.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	return &Service{
		store:        st,
		llmClient:    llmClient,
		policyEngine: policyEngine,
		profiles:     byID,
		config:       cfg,
		logger:       logger,
	}
}

// Profile returns the agent profile registered under id.
func (s *Service) Profile(id string) (*agent.Profile, bool) {
	p, ok := s.profiles[id]
	return p, ok
}
