package events

import "time"

// StreamEvents is the JetStream stream carrying relay audit events.
const StreamEvents = "FITRELAY_EVENTS"

// Subject constants.
const (
	SubjectTurnProcessed = "fitrelay.events.turn"
	SubjectToolExecuted  = "fitrelay.events.tool"
)

// TurnProcessedEvent is published after each completed pipeline run,
// whether the reply came from the model or from the fallback text.
type TurnProcessedEvent struct {
	RequestID         string    `json:"request_id"`
	ConversationID    string    `json:"conversation_id"`
	Platform          string    `json:"platform"`
	MessagesInHistory int       `json:"messages_in_history"`
	ToolCallsExecuted int       `json:"tool_calls_executed"`
	Fallback          bool      `json:"fallback"`
	Timestamp         time.Time `json:"timestamp"`
}

// ToolExecutedEvent is published once per tool dispatch attempt.
type ToolExecutedEvent struct {
	RequestID      string    `json:"request_id"`
	ConversationID string    `json:"conversation_id"`
	Tool           string    `json:"tool"`
	Success        bool      `json:"success"`
	Timestamp      time.Time `json:"timestamp"`
}
