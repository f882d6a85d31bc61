package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fitrelay-platform/fitrelay/internal/events"
	"github.com/fitrelay-platform/fitrelay/internal/history"
	"github.com/fitrelay-platform/fitrelay/internal/llm"
	"github.com/fitrelay-platform/fitrelay/internal/metrics"
	"github.com/fitrelay-platform/fitrelay/internal/tools"
)

// TurnRequest is one validated inbound chat turn.
type TurnRequest struct {
	ConversationID string
	NewMessage     string
	UserPhone      string
	Platform       string
	RequestID      string
}

// TurnResult is what the pipeline hands back to the HTTP layer.
type TurnResult struct {
	Reply             string
	MessagesInHistory int
	ToolCallsExecuted int
	Fallback          bool
}

// Dispatcher executes a single tool call and never fails the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, call llm.ToolCall, defaultPhone string) (result string, ok bool)
}

// Orchestrator runs the conversation-turn pipeline: persist the user
// message, rebuild context, call the model, execute requested tools,
// finalize, persist the reply.
type Orchestrator struct {
	history    *history.Service
	completion llm.Client
	dispatcher Dispatcher
	publisher  *events.Publisher
}

// New creates an Orchestrator. publisher may be nil.
func New(historySvc *history.Service, completion llm.Client, dispatcher Dispatcher, publisher *events.Publisher) *Orchestrator {
	return &Orchestrator{
		history:    historySvc,
		completion: completion,
		dispatcher: dispatcher,
		publisher:  publisher,
	}
}

// ProcessTurn executes the pipeline for one inbound message. Errors
// returned here are fatal: the request could not be persisted or the
// service is misconfigured. Completion and tool failures degrade to
// conversational text and still produce a result.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	// Persist the inbound message first; nothing proceeds without it.
	userTurn := &history.Turn{
		ConversationID: req.ConversationID,
		Role:           history.RoleUser,
		Content:        req.NewMessage,
	}
	if err := o.history.Record(ctx, userTurn); err != nil {
		metrics.TurnsProcessedTotal.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("persisting user message: %w", err)
	}

	turns, err := o.history.Context(ctx, req.ConversationID)
	if err != nil {
		metrics.TurnsProcessedTotal.WithLabelValues("store_error").Inc()
		return nil, err
	}

	messages := assembleMessages(turns)

	result := &TurnResult{MessagesInHistory: len(turns)}

	reply, err := o.converse(ctx, req, messages, result)
	if err != nil {
		// Only configuration problems propagate; provider errors were
		// already converted to the fallback reply.
		return nil, err
	}
	result.Reply = reply

	// Persisting the reply is best effort: the user already got it.
	assistantTurn := &history.Turn{
		ConversationID: req.ConversationID,
		Role:           history.RoleAssistant,
		Content:        reply,
	}
	if err := o.history.Record(ctx, assistantTurn); err != nil {
		slog.Error("persisting assistant reply", "error", err, "conversation_id", req.ConversationID)
	}

	if result.Fallback {
		metrics.TurnsProcessedTotal.WithLabelValues("fallback").Inc()
	} else {
		metrics.TurnsProcessedTotal.WithLabelValues("success").Inc()
	}
	o.publishTurnProcessed(ctx, req, result)

	return result, nil
}

// converse runs the model round trips: one completion with the tool
// catalog, then tool dispatch and a finalizing completion when the
// model asked for tools.
func (o *Orchestrator) converse(ctx context.Context, req TurnRequest, messages []openai.ChatCompletionMessage, result *TurnResult) (string, error) {
	first, err := o.completion.Complete(ctx, llm.Request{
		Messages: messages,
		Tools:    tools.Catalog(),
	})
	if err != nil {
		if errors.Is(err, llm.ErrNoAPIKey) {
			return "", err
		}
		slog.Error("completion failed, using fallback", "error", err, "conversation_id", req.ConversationID)
		metrics.CompletionCallsTotal.WithLabelValues("initial", "error").Inc()
		result.Fallback = true
		return llm.FallbackText, nil
	}
	metrics.CompletionCallsTotal.WithLabelValues("initial", "success").Inc()

	if len(first.ToolCalls) == 0 {
		return first.Text, nil
	}

	// The model's own tool-call message must be visible in the
	// finalizing call, so re-insert it before the results.
	messages = append(messages, first.AssistantMessage)

	for _, call := range first.ToolCalls {
		output, ok := o.dispatcher.Dispatch(ctx, call, req.UserPhone)
		result.ToolCallsExecuted++

		messages = append(messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    output,
			ToolCallID: call.ID,
		})

		if pubErr := o.publisher.PublishToolExecuted(ctx, events.ToolExecutedEvent{
			RequestID:      req.RequestID,
			ConversationID: req.ConversationID,
			Tool:           call.Name,
			Success:        ok,
			Timestamp:      time.Now().UTC(),
		}); pubErr != nil {
			slog.Warn("publishing tool event", "error", pubErr)
		}
	}

	final, err := o.completion.Complete(ctx, llm.Request{Messages: messages})
	if err != nil {
		slog.Error("finalizing completion failed, using fallback", "error", err, "conversation_id", req.ConversationID)
		metrics.CompletionCallsTotal.WithLabelValues("final", "error").Inc()
		result.Fallback = true
		return llm.FallbackText, nil
	}
	metrics.CompletionCallsTotal.WithLabelValues("final", "success").Inc()

	return final.Text, nil
}

func (o *Orchestrator) publishTurnProcessed(ctx context.Context, req TurnRequest, result *TurnResult) {
	err := o.publisher.PublishTurnProcessed(ctx, events.TurnProcessedEvent{
		RequestID:         req.RequestID,
		ConversationID:    req.ConversationID,
		Platform:          req.Platform,
		MessagesInHistory: result.MessagesInHistory,
		ToolCallsExecuted: result.ToolCallsExecuted,
		Fallback:          result.Fallback,
		Timestamp:         time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("publishing turn event", "error", err)
	}
}
