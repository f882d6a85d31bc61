package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fitrelay-platform/fitrelay/internal/api"
	"github.com/fitrelay-platform/fitrelay/internal/llm"
	"github.com/fitrelay-platform/fitrelay/internal/middleware"
	"github.com/fitrelay-platform/fitrelay/internal/orchestrator"
)

// TurnProcessor runs the conversation pipeline for one inbound message.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, req orchestrator.TurnRequest) (*orchestrator.TurnResult, error)
}

// Handler exposes the conversation pipeline over HTTP.
type Handler struct {
	orch     TurnProcessor
	validate *validator.Validate
}

func NewHandler(orch TurnProcessor) *Handler {
	return &Handler{
		orch:     orch,
		validate: validator.New(),
	}
}

// HandleTurn processes one inbound message and replies with the
// conversational envelope. Validation failures are rejected before
// anything is written to the store.
func (h *Handler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.NewBadRequestError("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(validationMessage(err)))
		return
	}

	result, err := h.orch.ProcessTurn(r.Context(), orchestrator.TurnRequest{
		ConversationID: req.ConversationID,
		NewMessage:     req.NewMessage,
		UserPhone:      req.UserPhone,
		Platform:       req.Platform,
		RequestID:      middleware.GetRequestID(r.Context()),
	})
	if err != nil {
		slog.Error("processing turn", "error", err, "conversation_id", req.ConversationID)
		if errors.Is(err, llm.ErrNoAPIKey) {
			api.HandleError(w, api.NewInternalError("completion provider is not configured"))
			return
		}
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, Envelope{
		Success:        true,
		ConversationID: req.ConversationID,
		Response:       result.Reply,
		Metadata: Metadata{
			MessagesInHistory: result.MessagesInHistory,
			ToolCallsExecuted: result.ToolCallsExecuted,
			Timestamp:         time.Now().UTC().Format(time.RFC3339),
			Platform:          platformOrUnknown(req.Platform),
			UserPhone:         phoneOrNil(req.UserPhone),
		},
	})
}

func platformOrUnknown(platform string) string {
	if platform == "" {
		return "unknown"
	}
	return platform
}

func phoneOrNil(phone string) *string {
	if phone == "" {
		return nil
	}
	return &phone
}

// validationMessage flattens validator errors into a single line naming
// the missing fields by their JSON names.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "validation error"
	}
	msg := "missing required field"
	for i, fe := range verrs {
		name := fieldJSONName(fe.Field())
		if i == 0 {
			msg += ": " + name
		} else {
			msg += ", " + name
		}
	}
	return msg
}

func fieldJSONName(field string) string {
	switch field {
	case "ConversationID":
		return "conversation_id"
	case "NewMessage":
		return "new_message"
	}
	return field
}
