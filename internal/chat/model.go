package chat

// Request is the inbound webhook body for one conversation turn.
type Request struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	NewMessage     string `json:"new_message" validate:"required"`
	UserPhone      string `json:"user_phone,omitempty"`
	Platform       string `json:"platform,omitempty"`
}

// Envelope is the success response body.
type Envelope struct {
	Success        bool     `json:"success"`
	ConversationID string   `json:"conversation_id"`
	Response       string   `json:"response"`
	Metadata       Metadata `json:"metadata"`
}

// Metadata describes how the reply was produced.
type Metadata struct {
	MessagesInHistory int     `json:"messages_in_history"`
	ToolCallsExecuted int     `json:"tool_calls_executed"`
	Timestamp         string  `json:"timestamp"`
	Platform          string  `json:"platform"`
	UserPhone         *string `json:"user_phone"`
}
