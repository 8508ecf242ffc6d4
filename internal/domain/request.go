package domain

// AgentRequest is the JSON body accepted by POST /v1/agents/:agent_id.
// Action selects which of the remaining fields are required.
type AgentRequest struct {
	Action   Action `json:"action"`
	TenantID string `json:"tenant_id"`
	Language string `json:"language,omitempty"`

	// chat
	Message  string `json:"message,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`

	// feedback
	MessageID     string `json:"message_id,omitempty"`
	SolvedProblem string `json:"solved_problem,omitempty"`
	IsAccurate    string `json:"is_accurate,omitempty"`
	IsClear       string `json:"is_clear,omitempty"`
	Comment       string `json:"comment,omitempty"`

	// search_kb
	Query     string `json:"query,omitempty"`
	SourceLaw string `json:"source_law,omitempty"`
	Standard  string `json:"standard,omitempty"`
}

// ChatResponse is returned for action "chat".
type ChatResponse struct {
	Message        string `json:"message"`
	ThreadID       string `json:"thread_id"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

// FeedbackResponse is returned for action "feedback".
type FeedbackResponse struct {
	Success bool `json:"success"`
}

// SearchKBResponse is returned for action "search_kb".
type SearchKBResponse struct {
	Results []KBDocument `json:"results"`
	Count   int          `json:"count"`
}
