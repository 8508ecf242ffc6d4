// Package domain defines the core domain models for the advisory service.
package domain

import (
	"encoding/json"
	"time"
)

// Thread is a persisted conversation between one tenant and an agent.
type Thread struct {
	ThreadID  string    `json:"thread_id"`
	TenantID  string    `json:"tenant_id"`
	AgentID   string    `json:"agent_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single turn in a thread. Messages are immutable once
// written; ordering is by creation timestamp only.
type Message struct {
	MessageID string          `json:"message_id"`
	ThreadID  string          `json:"thread_id"`
	TenantID  string          `json:"tenant_id"`
	Role      Role            `json:"role"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"created_at"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// MessageMetadata is the telemetry attached to assistant messages.
// ToolRounds counts completion-loop rounds that executed tools, not
// individual tool calls.
type MessageMetadata struct {
	ResponseTimeMs int64 `json:"response_time_ms"`
	ToolRounds     int   `json:"tool_calls_count"`
}

// Feedback is an append-only quality rating for one assistant message.
type Feedback struct {
	FeedbackID    string    `json:"feedback_id"`
	MessageID     string    `json:"message_id"`
	TenantID      string    `json:"tenant_id"`
	SolvedProblem string    `json:"solved_problem"`
	IsAccurate    string    `json:"is_accurate"`
	IsClear       string    `json:"is_clear"`
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
}

// Principal is the authenticated caller resolved by the identity provider.
type Principal struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
}
