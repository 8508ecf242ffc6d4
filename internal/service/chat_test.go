package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/barbarosson/advisory/internal/agent"
	"github.com/barbarosson/advisory/internal/config"
	"github.com/barbarosson/advisory/internal/domain"
	"github.com/barbarosson/advisory/internal/llm"
	"github.com/barbarosson/advisory/internal/store"
	"github.com/barbarosson/advisory/internal/tools"
	"github.com/barbarosson/advisory/policy"
)

// modelStub replays scripted chat-completion responses and records every
// request body it receives. When the script runs out it repeats the last
// entry.
type modelStub struct {
	mu        sync.Mutex
	responses []string
	requests  []llm.ChatCompletionRequest
	server    *httptest.Server
}

func newModelStub(t *testing.T, responses ...string) *modelStub {
	t.Helper()
	stub := &modelStub{responses: responses}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		defer stub.mu.Unlock()

		var req llm.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding model request: %v", err)
		}
		stub.requests = append(stub.requests, req)

		i := len(stub.requests) - 1
		if i >= len(stub.responses) {
			i = len(stub.responses) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, stub.responses[i])
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (m *modelStub) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *modelStub) request(i int) llm.ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[i]
}

func textResponse(content string) string {
	msg, _ := json.Marshal(content)
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}]}`, msg)
}

func toolCallResponse(callID, name, args string) string {
	escaped, _ := json.Marshal(args)
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"","tool_calls":[{"id":%q,"type":"function","function":{"name":%q,"arguments":%s}}]},"finish_reason":"tool_calls"}]}`, callID, name, escaped)
}

func newTestService(t *testing.T, stub *modelStub, extraProfiles ...*agent.Profile) (*Service, store.Store) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "advisory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.Temperature = 0.3
	cfg.LLM.MaxTokens = 3000
	cfg.Agent.HistoryLimit = 20
	cfg.Agent.MaxToolRounds = 5

	client := llm.NewClient(stub.server.URL, "", 5*time.Second)
	profiles := append([]*agent.Profile{
		agent.NewAccountingProfile(st),
		agent.NewCFOProfile(st),
	}, extraProfiles...)

	return New(st, client, engine, profiles, cfg, zap.NewNop()), st
}

func TestChatDirectAnswer(t *testing.T) {
	stub := newModelStub(t, textResponse("Kisaca: evet."))
	svc, st := newTestService(t, stub)
	ctx := context.Background()

	profile, _ := svc.Profile("accounting")
	longMessage := strings.Repeat("a", 80)
	resp, err := svc.Chat(ctx, profile, &domain.AgentRequest{
		Action:   domain.ActionChat,
		TenantID: "tenant-a",
		Message:  longMessage,
	})
	require.NoError(t, err)
	assert.Equal(t, "Kisaca: evet.", resp.Message)
	assert.NotEmpty(t, resp.ThreadID)
	assert.GreaterOrEqual(t, resp.ResponseTimeMs, int64(0))

	thread, err := st.GetThread(ctx, "tenant-a", resp.ThreadID)
	require.NoError(t, err)
	require.NotNil(t, thread)
	assert.Equal(t, strings.Repeat("a", 60)+"...", thread.Title)
	assert.Equal(t, "accounting", thread.AgentID)

	messages, err := st.GetRecentMessages(ctx, "tenant-a", resp.ThreadID, 20)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, messages[1].Role)

	var md domain.MessageMetadata
	require.NoError(t, json.Unmarshal(messages[1].Metadata, &md))
	assert.Equal(t, 0, md.ToolRounds)

	// First model request: system prompt then the user message.
	req := stub.request(0)
	require.GreaterOrEqual(t, len(req.Messages), 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "user", req.Messages[len(req.Messages)-1].Role)
	assert.NotEmpty(t, req.Tools)
}

func TestChatShortTitleNotTruncated(t *testing.T) {
	stub := newModelStub(t, textResponse("ok"))
	svc, st := newTestService(t, stub)
	ctx := context.Background()

	profile, _ := svc.Profile("accounting")
	resp, err := svc.Chat(ctx, profile, &domain.AgentRequest{
		Action:   domain.ActionChat,
		TenantID: "tenant-a",
		Message:  "KDV orani nedir?",
	})
	require.NoError(t, err)

	thread, err := st.GetThread(ctx, "tenant-a", resp.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, "KDV orani nedir?", thread.Title)
}

func TestChatWithoutThreadIDAlwaysCreatesThread(t *testing.T) {
	stub := newModelStub(t, textResponse("cevap"))
	svc, st := newTestService(t, stub)
	ctx := context.Background()

	profile, _ := svc.Profile("accounting")
	req := &domain.AgentRequest{
		Action:   domain.ActionChat,
		TenantID: "tenant-a",
		Message:  "ayni soru",
	}

	first, err := svc.Chat(ctx, profile, req)
	require.NoError(t, err)
	second, err := svc.Chat(ctx, profile, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ThreadID, second.ThreadID)

	threads, err := st.ListThreads(ctx, "tenant-a", "accounting", 10)
	require.NoError(t, err)
	assert.Len(t, threads, 2)
}

func TestChatToolRoundtrip(t *testing.T) {
	stub := newModelStub(t,
		toolCallResponse("call_1", "list_categories", "{}"),
		textResponse("Kategoriler listelendi."),
	)
	svc, st := newTestService(t, stub)
	ctx := context.Background()

	require.NoError(t, st.CreateKBCategory(ctx, &domain.KBCategory{ID: "cat1", Name: "Vergi Usul", Code: "VUK"}))

	profile, _ := svc.Profile("accounting")
	resp, err := svc.Chat(ctx, profile, &domain.AgentRequest{
		Action:   domain.ActionChat,
		TenantID: "tenant-a",
		Message:  "Kategorileri listele",
	})
	require.NoError(t, err)
	assert.Equal(t, "Kategoriler listelendi.", resp.Message)
	assert.Equal(t, 2, stub.callCount())

	// Second model request must carry the assistant tool call and the
	// tool result tagged with its call id.
	second := stub.request(1)
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "Vergi Usul")

	prev := second.Messages[len(second.Messages)-2]
	require.Len(t, prev.ToolCalls, 1)
	assert.Equal(t, "list_categories", prev.ToolCalls[0].Function.Name)

	messages, err := st.GetRecentMessages(ctx, "tenant-a", resp.ThreadID, 20)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	var md domain.MessageMetadata
	require.NoError(t, json.Unmarshal(messages[1].Metadata, &md))
	assert.Equal(t, 1, md.ToolRounds)
}

func TestChatToolErrorDoesNotFailRequest(t *testing.T) {
	stub := newModelStub(t,
		toolCallResponse("call_1", "no_such_tool", "{}"),
		textResponse("Malesef bu bilgiye ulasamadim."),
	)
	svc, _ := newTestService(t, stub)

	profile, _ := svc.Profile("accounting")
	resp, err := svc.Chat(context.Background(), profile, &domain.AgentRequest{
		Action:   domain.ActionChat,
		TenantID: "tenant-a",
		Message:  "soru",
	})
	require.NoError(t, err)
	assert.Equal(t, "Malesef bu bilgiye ulasamadim.", resp.Message)

	second := stub.request(1)
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Contains(t, last.Content, "error")
}

func TestChatMetadataCountsRoundsNotCalls(t *testing.T) {
	// One round carrying two tool calls is one round.
	twoCalls := `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"list_categories","arguments":"{}"}},{"id":"call_2","type":"function","function":{"name":"list_categories","arguments":"{}"}}]},"finish_reason":"tool_calls"}]}`
	stub := newModelStub(t, twoCalls, textResponse("tamam"))
	svc, st := newTestService(t, stub)
	ctx := context.Background()

	profile, _ := svc.Profile("accounting")
	resp, err := svc.Chat(ctx, profile, &domain.AgentRequest{
		Action:   domain.ActionChat,
		TenantID: "tenant-a",
		Message:  "kategoriler",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stub.callCount())

	second := stub.request(1)
	assert.Equal(t, "call_2", second.Messages[len(second.Messages)-1].ToolCallID)
	assert.Equal(t, "call_1", second.Messages[len(second.Messages)-2].ToolCallID)

	messages, err := st.GetRecentMessages(ctx, "tenant-a", resp.ThreadID, 20)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	var md domain.MessageMetadata
	require.NoError(t, json.Unmarshal(messages[1].Metadata, &md))
	assert.Equal(t, 1, md.ToolRounds)
}

func TestChatToolRoundCeiling(t *testing.T) {
	// Every response asks for another tool call; the loop must stop after
	// the configured number of rounds and take the next reply as final.
	stub := newModelStub(t, toolCallResponse("call_x", "list_categories", "{}"))
	svc, st := newTestService(t, stub)
	ctx := context.Background()

	profile, _ := svc.Profile("accounting")
	resp, err := svc.Chat(ctx, profile, &domain.AgentRequest{
		Action:   domain.ActionChat,
		TenantID: "tenant-a",
		Message:  "dongu",
	})
	require.NoError(t, err)
	assert.Equal(t, "", resp.Message)
	assert.Equal(t, 6, stub.callCount())

	messages, err := st.GetRecentMessages(ctx, "tenant-a", resp.ThreadID, 20)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	var md domain.MessageMetadata
	require.NoError(t, json.Unmarshal(messages[1].Metadata, &md))
	assert.Equal(t, 5, md.ToolRounds)
}

func TestChatBlockedWriteTool(t *testing.T) {
	writeProfile := agent.NewProfile("writer", "Writer", []domain.Action{domain.ActionChat},
		mustWriteRegistry(t), func(date, language string) string { return "system" })

	stub := newModelStub(t,
		toolCallResponse("call_1", "purge_records", "{}"),
		textResponse("done"),
	)
	svc, _ := newTestService(t, stub, writeProfile)

	profile, ok := svc.Profile("writer")
	require.True(t, ok)

	_, err := svc.Chat(context.Background(), profile, &domain.AgentRequest{
		Action:   domain.ActionChat,
		TenantID: "tenant-a",
		Message:  "temizle",
	})
	require.NoError(t, err)

	second := stub.request(1)
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Contains(t, last.Content, "error")
}

func mustWriteRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	return tools.MustNewRegistry(tools.Definition{
		Name:  "purge_records",
		Write: true,
		Handler: func(ctx context.Context, tenantID string, args json.RawMessage) (any, error) {
			t.Error("blocked tool must not execute")
			return nil, nil
		},
	})
}

func TestChatValidation(t *testing.T) {
	stub := newModelStub(t, textResponse("unused"))
	svc, st := newTestService(t, stub)
	ctx := context.Background()

	profile, _ := svc.Profile("accounting")

	t.Run("empty message", func(t *testing.T) {
		_, err := svc.Chat(ctx, profile, &domain.AgentRequest{
			Action:   domain.ActionChat,
			TenantID: "tenant-a",
			Message:  "   ",
		})
		assert.True(t, domain.IsValidation(err))
		assert.Equal(t, 0, stub.callCount())

		threads, err := st.ListThreads(ctx, "tenant-a", "accounting", 10)
		require.NoError(t, err)
		assert.Empty(t, threads)
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, err := svc.Chat(ctx, profile, &domain.AgentRequest{
			Action:  domain.ActionChat,
			Message: "soru",
		})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("foreign thread rejected", func(t *testing.T) {
		require.NoError(t, st.CreateThread(ctx, &domain.Thread{
			ThreadID: "other", TenantID: "tenant-b", AgentID: "accounting",
			Title: "x", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		}))
		_, err := svc.Chat(ctx, profile, &domain.AgentRequest{
			Action:   domain.ActionChat,
			TenantID: "tenant-a",
			Message:  "soru",
			ThreadID: "other",
		})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("other agent's thread rejected", func(t *testing.T) {
		require.NoError(t, st.CreateThread(ctx, &domain.Thread{
			ThreadID: "cfo-thread", TenantID: "tenant-a", AgentID: "cfo",
			Title: "x", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		}))
		_, err := svc.Chat(ctx, profile, &domain.AgentRequest{
			Action:   domain.ActionChat,
			TenantID: "tenant-a",
			Message:  "soru",
			ThreadID: "cfo-thread",
		})
		assert.True(t, domain.IsValidation(err))
		assert.Equal(t, 0, stub.callCount())

		messages, err := st.GetRecentMessages(ctx, "tenant-a", "cfo-thread", 10)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})
}

func TestChatModelFailureIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	t.Cleanup(server.Close)

	stub := &modelStub{server: server}
	svc, _ := newTestService(t, stub)

	profile, _ := svc.Profile("accounting")
	_, err := svc.Chat(context.Background(), profile, &domain.AgentRequest{
		Action:   domain.ActionChat,
		TenantID: "tenant-a",
		Message:  "soru",
	})
	assert.True(t, domain.IsUpstream(err))
}

func TestFeedbackDefaultsAndValidation(t *testing.T) {
	stub := newModelStub(t, textResponse("cevap"))
	svc, st := newTestService(t, stub)
	ctx := context.Background()

	profile, _ := svc.Profile("accounting")
	chat, err := svc.Chat(ctx, profile, &domain.AgentRequest{
		Action:   domain.ActionChat,
		TenantID: "tenant-a",
		Message:  "soru",
	})
	require.NoError(t, err)

	messages, err := st.GetRecentMessages(ctx, "tenant-a", chat.ThreadID, 20)
	require.NoError(t, err)
	assistantID := messages[1].MessageID

	t.Run("defaults applied", func(t *testing.T) {
		resp, err := svc.Feedback(ctx, &domain.AgentRequest{
			Action:    domain.ActionFeedback,
			TenantID:  "tenant-a",
			MessageID: assistantID,
			Comment:   "kaynaklar eksikti",
		})
		require.NoError(t, err)
		assert.True(t, resp.Success)

		list, err := st.ListFeedback(ctx, "tenant-a", assistantID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "yes", list[0].SolvedProblem)
		assert.Equal(t, "yes", list[0].IsAccurate)
		assert.Equal(t, "very_clear", list[0].IsClear)
		assert.Equal(t, "kaynaklar eksikti", list[0].Comment)
	})

	t.Run("invalid vocabulary rejected", func(t *testing.T) {
		_, err := svc.Feedback(ctx, &domain.AgentRequest{
			Action:        domain.ActionFeedback,
			TenantID:      "tenant-a",
			MessageID:     assistantID,
			SolvedProblem: "maybe",
		})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("foreign tenant message rejected", func(t *testing.T) {
		_, err := svc.Feedback(ctx, &domain.AgentRequest{
			Action:    domain.ActionFeedback,
			TenantID:  "tenant-b",
			MessageID: assistantID,
		})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("missing message id rejected", func(t *testing.T) {
		_, err := svc.Feedback(ctx, &domain.AgentRequest{
			Action:   domain.ActionFeedback,
			TenantID: "tenant-a",
		})
		assert.True(t, domain.IsValidation(err))
	})
}

func TestSearchKB(t *testing.T) {
	stub := newModelStub(t, textResponse("unused"))
	svc, st := newTestService(t, stub)
	ctx := context.Background()

	require.NoError(t, st.CreateKBDocument(ctx, &domain.KBDocument{
		ID: "VUK_M257", Title: "Defter ibrazi", SourceLawCode: "213",
		Summary: "Defter ve belgeler", Status: domain.KBStatusActive,
	}))

	t.Run("finds documents", func(t *testing.T) {
		resp, err := svc.SearchKB(ctx, &domain.AgentRequest{
			Action:   domain.ActionSearchKB,
			TenantID: "tenant-a",
			Query:    "defter",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Count)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "VUK_M257", resp.Results[0].ID)
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		resp, err := svc.SearchKB(ctx, &domain.AgentRequest{
			Action:   domain.ActionSearchKB,
			TenantID: "tenant-a",
			Query:    "zzz",
		})
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Count)
		assert.NotNil(t, resp.Results)
	})

	t.Run("blank query rejected", func(t *testing.T) {
		_, err := svc.SearchKB(ctx, &domain.AgentRequest{
			Action:   domain.ActionSearchKB,
			TenantID: "tenant-a",
		})
		assert.True(t, domain.IsValidation(err))
	})
}

func TestChatUsesThreadHistory(t *testing.T) {
	stub := newModelStub(t, textResponse("ilk"), textResponse("ikinci"))
	svc, _ := newTestService(t, stub)
	ctx := context.Background()

	profile, _ := svc.Profile("cfo")
	first, err := svc.Chat(ctx, profile, &domain.AgentRequest{
		Action:   domain.ActionChat,
		TenantID: "tenant-a",
		Message:  "Gecen ay kar ne kadar?",
	})
	require.NoError(t, err)

	_, err = svc.Chat(ctx, profile, &domain.AgentRequest{
		Action:   domain.ActionChat,
		TenantID: "tenant-a",
		Message:  "Peki bu ay?",
		ThreadID: first.ThreadID,
	})
	require.NoError(t, err)

	// Second turn replays the first exchange before the new question.
	second := stub.request(1)
	roles := make([]string, len(second.Messages))
	contents := make([]string, len(second.Messages))
	for i, m := range second.Messages {
		roles[i] = m.Role
		contents[i] = m.Content
	}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	assert.Equal(t, "ilk", contents[2])
	assert.Equal(t, "Peki bu ay?", contents[3])
}
