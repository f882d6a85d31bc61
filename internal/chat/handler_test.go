package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitrelay-platform/fitrelay/internal/llm"
	"github.com/fitrelay-platform/fitrelay/internal/orchestrator"
)

type stubProcessor struct {
	result *orchestrator.TurnResult
	err    error
	got    *orchestrator.TurnRequest
}

func (s *stubProcessor) ProcessTurn(_ context.Context, req orchestrator.TurnRequest) (*orchestrator.TurnResult, error) {
	s.got = &req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func post(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleTurn(rec, req)
	return rec
}

func TestHandleTurn_Success(t *testing.T) {
	proc := &stubProcessor{result: &orchestrator.TurnResult{
		Reply:             "Bom treino!",
		MessagesInHistory: 5,
		ToolCallsExecuted: 2,
	}}
	h := NewHandler(proc)

	rec := post(t, h, `{"conversation_id":"c1","new_message":"oi","user_phone":"11987654321","platform":"whatsapp"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "c1", env.ConversationID)
	assert.Equal(t, "Bom treino!", env.Response)
	assert.Equal(t, 5, env.Metadata.MessagesInHistory)
	assert.Equal(t, 2, env.Metadata.ToolCallsExecuted)
	assert.Equal(t, "whatsapp", env.Metadata.Platform)
	require.NotNil(t, env.Metadata.UserPhone)
	assert.Equal(t, "11987654321", *env.Metadata.UserPhone)
	assert.NotEmpty(t, env.Metadata.Timestamp)

	require.NotNil(t, proc.got)
	assert.Equal(t, "oi", proc.got.NewMessage)
	assert.Equal(t, "11987654321", proc.got.UserPhone)
}

func TestHandleTurn_OptionalFieldsDefault(t *testing.T) {
	proc := &stubProcessor{result: &orchestrator.TurnResult{Reply: "olá"}}
	h := NewHandler(proc)

	rec := post(t, h, `{"conversation_id":"c1","new_message":"oi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "unknown", env.Metadata.Platform)
	assert.Nil(t, env.Metadata.UserPhone)

	// The raw body must carry an explicit null, not omit the key.
	assert.Contains(t, rec.Body.String(), `"user_phone":null`)
}

func TestHandleTurn_MissingFields(t *testing.T) {
	proc := &stubProcessor{}
	h := NewHandler(proc)

	for name, body := range map[string]string{
		"no conversation_id": `{"new_message":"oi"}`,
		"no new_message":     `{"conversation_id":"c1"}`,
		"empty new_message":  `{"conversation_id":"c1","new_message":""}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := post(t, h, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var fail struct {
				Success bool   `json:"success"`
				Error   string `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fail))
			assert.False(t, fail.Success)
			assert.NotEmpty(t, fail.Error)
			assert.Nil(t, proc.got, "pipeline must not run for invalid input")
		})
	}
}

func TestHandleTurn_MalformedJSON(t *testing.T) {
	h := NewHandler(&stubProcessor{})
	rec := post(t, h, `{"conversation_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestHandleTurn_FallbackStillSucceeds(t *testing.T) {
	proc := &stubProcessor{result: &orchestrator.TurnResult{
		Reply:    llm.FallbackText,
		Fallback: true,
	}}
	h := NewHandler(proc)

	rec := post(t, h, `{"conversation_id":"c1","new_message":"oi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, llm.FallbackText, env.Response)
}

func TestHandleTurn_MissingAPIKey(t *testing.T) {
	h := NewHandler(&stubProcessor{err: llm.ErrNoAPIKey})

	rec := post(t, h, `{"conversation_id":"c1","new_message":"oi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestHandleTurn_StoreFailure(t *testing.T) {
	h := NewHandler(&stubProcessor{err: errors.New("connection refused")})

	rec := post(t, h, `{"conversation_id":"c1","new_message":"oi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}
