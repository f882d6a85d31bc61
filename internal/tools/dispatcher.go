package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/fitrelay-platform/fitrelay/internal/llm"
	"github.com/fitrelay-platform/fitrelay/internal/metrics"
)

// handlerFunc executes one tool call. The returned string is folded
// into the conversation as the tool result; errors are converted to
// descriptive strings by Dispatch and never propagate.
type handlerFunc func(ctx context.Context, args json.RawMessage, defaultPhone string) (string, error)

// Dispatcher maps declared tool names to outbound actions against the
// automation backend.
type Dispatcher struct {
	webhook  *WebhookClient
	handlers map[string]handlerFunc
}

// NewDispatcher builds the name-keyed dispatch table.
func NewDispatcher(webhook *WebhookClient) *Dispatcher {
	d := &Dispatcher{webhook: webhook}
	d.handlers = map[string]handlerFunc{
		ToolSearchPrograms:    d.callGeneric(ToolSearchPrograms),
		ToolGetProgramDetails: d.callGeneric(ToolGetProgramDetails),
		ToolSendLegacy:        d.sendText,
		ToolSendText:          d.sendText,
		ToolSendButtons:       d.sendButtons,
		ToolSendList:          d.sendList,
	}
	return d
}

// Dispatch executes a single tool call. It always returns a string:
// tool output on success, a descriptive failure message otherwise. A
// failing call never aborts its siblings; ok reports whether the call
// succeeded, for accounting only.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall, defaultPhone string) (result string, ok bool) {
	handler, known := d.handlers[call.Name]
	if !known {
		slog.Warn("tool not implemented", "tool", call.Name)
		// The name is model-controlled; a fixed label keeps
		// hallucinated tools from growing the metric cardinality.
		metrics.ToolDispatchesTotal.WithLabelValues("unrecognized", "unknown").Inc()
		return fmt.Sprintf("tool %s not implemented", call.Name), false
	}

	result, err := handler(ctx, call.Arguments, defaultPhone)
	if err != nil {
		slog.Error("tool dispatch failed", "tool", call.Name, "error", err)
		metrics.ToolDispatchesTotal.WithLabelValues(call.Name, "error").Inc()
		return fmt.Sprintf("tool %s failed: %v", call.Name, err), false
	}

	metrics.ToolDispatchesTotal.WithLabelValues(call.Name, "success").Inc()
	return result, true
}

// callGeneric forwards arguments verbatim to the automation backend's
// generic tool endpoint.
func (d *Dispatcher) callGeneric(name string) handlerFunc {
	return func(ctx context.Context, args json.RawMessage, _ string) (string, error) {
		return d.webhook.CallTool(ctx, name, args)
	}
}

type textArgs struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (d *Dispatcher) sendText(ctx context.Context, raw json.RawMessage, defaultPhone string) (string, error) {
	var args textArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("decoding arguments: %w", err)
	}
	to, err := resolvePhone(args.To, defaultPhone)
	if err != nil {
		return "", err
	}
	return d.webhook.SendWhatsApp(ctx, NewTextMessage(to, args.Text))
}

type buttonsArgs struct {
	To      string   `json:"to"`
	Body    string   `json:"body"`
	Header  string   `json:"header"`
	Footer  string   `json:"footer"`
	Buttons []Button `json:"buttons"`
}

func (d *Dispatcher) sendButtons(ctx context.Context, raw json.RawMessage, defaultPhone string) (string, error) {
	var args buttonsArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("decoding arguments: %w", err)
	}
	to, err := resolvePhone(args.To, defaultPhone)
	if err != nil {
		return "", err
	}
	return d.webhook.SendWhatsApp(ctx, NewButtonsMessage(to, args.Body, args.Header, args.Footer, args.Buttons))
}

type listArgs struct {
	To         string        `json:"to"`
	Body       string        `json:"body"`
	ButtonText string        `json:"button_text"`
	Header     string        `json:"header"`
	Footer     string        `json:"footer"`
	Sections   []ListSection `json:"sections"`
}

func (d *Dispatcher) sendList(ctx context.Context, raw json.RawMessage, defaultPhone string) (string, error) {
	var args listArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("decoding arguments: %w", err)
	}
	to, err := resolvePhone(args.To, defaultPhone)
	if err != nil {
		return "", err
	}
	return d.webhook.SendWhatsApp(ctx, NewListMessage(to, args.Body, args.ButtonText, args.Header, args.Footer, args.Sections))
}

// resolvePhone picks the argument-level destination when present,
// otherwise the request-level user phone, and normalizes either.
func resolvePhone(argTo, defaultPhone string) (string, error) {
	to := argTo
	if to == "" {
		to = defaultPhone
	}
	if to == "" {
		return "", fmt.Errorf("destination phone missing")
	}
	return NormalizePhone(to), nil
}
