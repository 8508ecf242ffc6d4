package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/barbarosson/advisory/internal/agent"
	"github.com/barbarosson/advisory/internal/domain"
	"github.com/barbarosson/advisory/internal/llm"
)

const (
	threadTitleLimit = 60
	toolCallTimeout  = 30 * time.Second
)

// Chat runs one turn of the agent conversation: it persists the user
// message, replays recent history to the model and loops over tool
// calls until the model produces a text answer or the round ceiling is
// reached.
func (s *Service) Chat(ctx context.Context, profile *agent.Profile, req *domain.AgentRequest) (*domain.ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, domain.Validationf("message is required")
	}
	if req.TenantID == "" {
		return nil, domain.Validationf("tenant_id is required")
	}

	started := time.Now()

	thread, err := s.resolveThread(ctx, profile, req)
	if err != nil {
		return nil, err
	}

	userMsg := &domain.Message{
		MessageID: uuid.New().String(),
		ThreadID:  thread.ThreadID,
		TenantID:  req.TenantID,
		Role:      domain.RoleUser,
		Content:   req.Message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	history, err := s.store.GetRecentMessages(ctx, req.TenantID, thread.ThreadID, s.config.Agent.HistoryLimit)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.ChatMessage, 0, len(history)+1)
	messages = append(messages, llm.ChatMessage{
		Role:    string(domain.RoleSystem),
		Content: profile.SystemPrompt(time.Now().UTC().Format("2006-01-02"), req.Language),
	})
	for _, m := range history {
		messages = append(messages, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	final, toolRounds, err := s.completionLoop(ctx, profile, req.TenantID, messages)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(started).Milliseconds()
	metadata, _ := json.Marshal(domain.MessageMetadata{
		ResponseTimeMs: elapsed,
		ToolRounds:     toolRounds,
	})

	assistantMsg := &domain.Message{
		MessageID: uuid.New().String(),
		ThreadID:  thread.ThreadID,
		TenantID:  req.TenantID,
		Role:      domain.RoleAssistant,
		Content:   final,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}
	if err := s.store.CreateMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}
	if err := s.store.TouchThread(ctx, req.TenantID, thread.ThreadID, assistantMsg.CreatedAt); err != nil {
		return nil, err
	}

	return &domain.ChatResponse{
		Message:        final,
		ThreadID:       thread.ThreadID,
		ResponseTimeMs: elapsed,
	}, nil
}

// resolveThread loads the caller's thread or creates a new one titled
// from the first message.
func (s *Service) resolveThread(ctx context.Context, profile *agent.Profile, req *domain.AgentRequest) (*domain.Thread, error) {
	if req.ThreadID != "" {
		thread, err := s.store.GetThread(ctx, req.TenantID, req.ThreadID)
		if err != nil {
			return nil, err
		}
		// Threads are per agent; one agent never sees another's.
		if thread == nil || thread.AgentID != profile.ID {
			return nil, domain.Validationf("thread %s not found", req.ThreadID)
		}
		return thread, nil
	}

	now := time.Now().UTC()
	thread := &domain.Thread{
		ThreadID:  uuid.New().String(),
		TenantID:  req.TenantID,
		AgentID:   profile.ID,
		Title:     threadTitle(req.Message),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateThread(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

func threadTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= threadTitleLimit {
		return message
	}
	return string(runes[:threadTitleLimit]) + "..."
}

// completionLoop calls the model and executes requested tools until the
// model answers in text or the round ceiling is hit. The response after
// the final round is taken as the answer whatever it contains. It
// returns the final content and the number of tool rounds executed.
func (s *Service) completionLoop(ctx context.Context, profile *agent.Profile, tenantID string, messages []llm.ChatMessage) (string, int, error) {
	temperature := s.config.LLM.Temperature
	maxTokens := s.config.LLM.MaxTokens

	for round := 0; ; round++ {
		resp, err := s.llmClient.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
			Model:       s.config.LLM.Model,
			Messages:    messages,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
			Tools:       profile.Tools.Specs(),
		})
		if err != nil {
			return "", 0, &domain.UpstreamError{Err: err}
		}

		assistant := resp.Choices[0].Message
		if len(assistant.ToolCalls) == 0 || round >= s.config.Agent.MaxToolRounds {
			return assistant.Content, round, nil
		}

		messages = append(messages, *assistant)
		for _, tc := range assistant.ToolCalls {
			result := s.executeToolCall(ctx, profile, tenantID, tc)
			messages = append(messages, llm.ChatMessage{
				Role:       "tool",
				Content:    string(result),
				ToolCallID: tc.ID,
			})
		}
	}
}

// executeToolCall runs one policy-gated tool call. Failures never abort
// the request; they come back as {"error": ...} payloads for the model.
func (s *Service) executeToolCall(ctx context.Context, profile *agent.Profile, tenantID string, tc llm.ToolCall) json.RawMessage {
	name := tc.Function.Name
	args := json.RawMessage(tc.Function.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	if def, ok := profile.Tools.Lookup(name); ok && def.Write {
		var parsedArgs map[string]any
		_ = json.Unmarshal(args, &parsedArgs)
		decision, reason, err := s.policyEngine.Evaluate(ctx, map[string]any{
			"tool_name": name,
			"write":     true,
			"tenant_id": tenantID,
			"args":      parsedArgs,
		})
		if err != nil {
			s.logger.Error("policy evaluation failed", zap.String("tool", name), zap.Error(err))
			return errorPayload("policy evaluation failed")
		}
		if decision != "allow" {
			s.logger.Warn("tool call blocked by policy",
				zap.String("tool", name),
				zap.String("tenant_id", tenantID),
				zap.String("reason", reason))
			if reason == "" {
				reason = "blocked by policy"
			}
			return errorPayload(reason)
		}
	}

	toolCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
	defer cancel()

	s.logger.Debug("executing tool call",
		zap.String("tool", name),
		zap.String("tenant_id", tenantID))
	return profile.Tools.Execute(toolCtx, tenantID, name, args)
}

func errorPayload(msg string) json.RawMessage {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return out
}
