package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitrelay-platform/fitrelay/internal/history"
	"github.com/fitrelay-platform/fitrelay/internal/llm"
)

type memRepo struct {
	turns     []history.Turn
	insertErr error
}

func (m *memRepo) Insert(_ context.Context, turn *history.Turn) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.turns = append(m.turns, *turn)
	return nil
}

func (m *memRepo) Recent(_ context.Context, conversationID string, limit int) ([]history.Turn, error) {
	var out []history.Turn
	for _, t := range m.turns {
		if t.ConversationID == conversationID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// scriptedLLM returns canned results in order, recording each request.
type scriptedLLM struct {
	results []*llm.Result
	errs    []error
	reqs    []llm.Request
}

func (s *scriptedLLM) Complete(_ context.Context, req llm.Request) (*llm.Result, error) {
	i := len(s.reqs)
	s.reqs = append(s.reqs, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.results[i], nil
}

type recordingDispatcher struct {
	calls   []llm.ToolCall
	phones  []string
	results []string
	oks     []bool
}

func (r *recordingDispatcher) Dispatch(_ context.Context, call llm.ToolCall, defaultPhone string) (string, bool) {
	i := len(r.calls)
	r.calls = append(r.calls, call)
	r.phones = append(r.phones, defaultPhone)
	if i < len(r.results) {
		return r.results[i], r.oks[i]
	}
	return "ok", true
}

func newOrchestrator(repo *memRepo, model *scriptedLLM, disp *recordingDispatcher) *Orchestrator {
	return New(history.NewService(repo, nil), model, disp, nil)
}

func TestProcessTurn_DirectAnswer(t *testing.T) {
	repo := &memRepo{}
	model := &scriptedLLM{results: []*llm.Result{{Text: "Olá! Como posso ajudar?"}}}
	disp := &recordingDispatcher{}

	res, err := newOrchestrator(repo, model, disp).ProcessTurn(context.Background(), TurnRequest{
		ConversationID: "c1",
		NewMessage:     "oi",
	})
	require.NoError(t, err)

	assert.Equal(t, "Olá! Como posso ajudar?", res.Reply)
	assert.Zero(t, res.ToolCallsExecuted)
	assert.False(t, res.Fallback)
	assert.Empty(t, disp.calls, "no tools were requested")

	// Both turns persisted, in order.
	require.Len(t, repo.turns, 2)
	assert.Equal(t, history.RoleUser, repo.turns[0].Role)
	assert.Equal(t, history.RoleAssistant, repo.turns[1].Role)
	assert.Equal(t, "Olá! Como posso ajudar?", repo.turns[1].Content)

	// Single completion call, tools offered, system prompt first.
	require.Len(t, model.reqs, 1)
	assert.NotEmpty(t, model.reqs[0].Tools)
	assert.Equal(t, openai.ChatMessageRoleSystem, model.reqs[0].Messages[0].Role)
}

func TestProcessTurn_ToolLoop(t *testing.T) {
	repo := &memRepo{}
	assistantMsg := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:   "call_1",
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      "search_programs",
				Arguments: `{"level":"iniciante","modality":"HIIT","has_equipment":false}`,
			},
		}},
	}
	model := &scriptedLLM{results: []*llm.Result{
		{
			ToolCalls: []llm.ToolCall{{
				ID:        "call_1",
				Name:      "search_programs",
				Arguments: json.RawMessage(`{"level":"iniciante","modality":"HIIT","has_equipment":false}`),
			}},
			AssistantMessage: assistantMsg,
		},
		{Text: "Encontrei 2 programas de HIIT para iniciantes!"},
	}}
	disp := &recordingDispatcher{results: []string{`{"programs":[{"id":"p1"},{"id":"p2"}]}`}, oks: []bool{true}}

	res, err := newOrchestrator(repo, model, disp).ProcessTurn(context.Background(), TurnRequest{
		ConversationID: "c1",
		NewMessage:     "Quero HIIT iniciante",
		UserPhone:      "11987654321",
	})
	require.NoError(t, err)

	assert.Equal(t, "Encontrei 2 programas de HIIT para iniciantes!", res.Reply)
	assert.Equal(t, 1, res.ToolCallsExecuted)
	require.Len(t, disp.calls, 1)
	assert.Equal(t, "search_programs", disp.calls[0].Name)
	assert.Equal(t, "11987654321", disp.phones[0], "request-level phone reaches the dispatcher")

	// Finalizing call: no tools, assistant tool-call message then tool result.
	require.Len(t, model.reqs, 2)
	final := model.reqs[1]
	assert.Empty(t, final.Tools)
	n := len(final.Messages)
	assert.Equal(t, openai.ChatMessageRoleTool, final.Messages[n-1].Role)
	assert.Equal(t, "call_1", final.Messages[n-1].ToolCallID)
	assert.NotEmpty(t, final.Messages[n-2].ToolCalls, "model's tool-call message must be re-inserted")
}

func TestProcessTurn_ToolFailureDoesNotAbort(t *testing.T) {
	repo := &memRepo{}
	assistantMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
	model := &scriptedLLM{results: []*llm.Result{
		{
			ToolCalls: []llm.ToolCall{
				{ID: "call_1", Name: "search_programs", Arguments: json.RawMessage(`{}`)},
				{ID: "call_2", Name: "send_message_text", Arguments: json.RawMessage(`{"text":"oi"}`)},
			},
			AssistantMessage: assistantMsg,
		},
		{Text: "Tive um problema na busca, mas enviei sua mensagem."},
	}}
	disp := &recordingDispatcher{
		results: []string{"tool search_programs failed: 500", `{"status":"sent"}`},
		oks:     []bool{false, true},
	}

	res, err := newOrchestrator(repo, model, disp).ProcessTurn(context.Background(), TurnRequest{
		ConversationID: "c1",
		NewMessage:     "busca e avisa",
	})
	require.NoError(t, err)

	// Both calls attempted, both counted, failure folded into the conversation.
	assert.Equal(t, 2, res.ToolCallsExecuted)
	require.Len(t, disp.calls, 2)
	final := model.reqs[1]
	n := len(final.Messages)
	assert.Contains(t, final.Messages[n-2].Content, "failed")
	assert.Equal(t, "call_1", final.Messages[n-2].ToolCallID)
}

func TestProcessTurn_CompletionFailureFallsBack(t *testing.T) {
	repo := &memRepo{}
	model := &scriptedLLM{errs: []error{errors.New("provider down")}, results: []*llm.Result{nil}}
	disp := &recordingDispatcher{}

	res, err := newOrchestrator(repo, model, disp).ProcessTurn(context.Background(), TurnRequest{
		ConversationID: "c1",
		NewMessage:     "oi",
	})
	require.NoError(t, err, "provider failure must not fail the request")

	assert.True(t, res.Fallback)
	assert.Equal(t, llm.FallbackText, res.Reply)
	// The fallback is persisted as the assistant turn.
	require.Len(t, repo.turns, 2)
	assert.Equal(t, llm.FallbackText, repo.turns[1].Content)
}

func TestProcessTurn_FinalizingFailureFallsBack(t *testing.T) {
	repo := &memRepo{}
	model := &scriptedLLM{
		results: []*llm.Result{
			{
				ToolCalls:        []llm.ToolCall{{ID: "call_1", Name: "search_programs", Arguments: json.RawMessage(`{}`)}},
				AssistantMessage: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant},
			},
			nil,
		},
		errs: []error{nil, errors.New("provider down")},
	}
	disp := &recordingDispatcher{results: []string{"ok"}, oks: []bool{true}}

	res, err := newOrchestrator(repo, model, disp).ProcessTurn(context.Background(), TurnRequest{
		ConversationID: "c1",
		NewMessage:     "busca",
	})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, llm.FallbackText, res.Reply)
	assert.Equal(t, 1, res.ToolCallsExecuted, "tool attempts still counted")
}

func TestProcessTurn_MissingAPIKeyIsFatal(t *testing.T) {
	repo := &memRepo{}
	model := &scriptedLLM{errs: []error{llm.ErrNoAPIKey}, results: []*llm.Result{nil}}
	disp := &recordingDispatcher{}

	_, err := newOrchestrator(repo, model, disp).ProcessTurn(context.Background(), TurnRequest{
		ConversationID: "c1",
		NewMessage:     "oi",
	})
	require.ErrorIs(t, err, llm.ErrNoAPIKey)
}

func TestProcessTurn_StoreFailureIsFatal(t *testing.T) {
	repo := &memRepo{insertErr: errors.New("connection refused")}
	model := &scriptedLLM{}
	disp := &recordingDispatcher{}

	_, err := newOrchestrator(repo, model, disp).ProcessTurn(context.Background(), TurnRequest{
		ConversationID: "c1",
		NewMessage:     "oi",
	})
	require.Error(t, err)
	assert.Empty(t, model.reqs, "no completion call after a store failure")
}

func TestProcessTurn_HistoryCountsOnlyForwardedRoles(t *testing.T) {
	repo := &memRepo{turns: []history.Turn{
		{ConversationID: "c1", Role: history.RoleSystem, Content: "persona"},
		{ConversationID: "c1", Role: history.RoleUser, Content: "oi"},
		{ConversationID: "c1", Role: history.RoleAssistant, Content: "olá!"},
	}}
	model := &scriptedLLM{results: []*llm.Result{{Text: "claro!"}}}
	disp := &recordingDispatcher{}

	res, err := newOrchestrator(repo, model, disp).ProcessTurn(context.Background(), TurnRequest{
		ConversationID: "c1",
		NewMessage:     "me ajuda",
	})
	require.NoError(t, err)

	// 2 prior forwarded turns + the new message; the system row is dropped.
	assert.Equal(t, 3, res.MessagesInHistory)
	for _, m := range model.reqs[0].Messages[1:] {
		assert.NotEqual(t, openai.ChatMessageRoleSystem, m.Role, "stored system rows never reach the prompt")
	}
}
