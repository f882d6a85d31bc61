package tools

import (
	"strings"
	"unicode"
)

// WhatsApp interactive-message field limits. Exceeding values are
// hard-truncated, never rejected.
const (
	MaxButtonTitleLen  = 20
	MaxListTitleLen    = 24
	MaxHeaderFooterLen = 60
	MaxDescriptionLen  = 72
	MaxBodyLen         = 1024

	MaxButtons         = 3
	MaxListSections    = 10
	MaxRowsPerSection  = 10
)

// countryCode is prepended to any destination number that does not
// already carry it.
const countryCode = "55"

// NormalizePhone reduces a destination to canonical international
// form: digits only, country code 55, leading plus. It is total and
// idempotent: NormalizePhone(NormalizePhone(x)) == NormalizePhone(x).
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	n := digits.String()
	if n == "" {
		return ""
	}
	if !strings.HasPrefix(n, countryCode) {
		n = countryCode + n
	}
	return "+" + n
}

// Truncate hard-caps s at n runes. It never errors and returns s
// unchanged when it already fits.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// OutboundMessage is the wire shape posted to the messaging webhook.
type OutboundMessage struct {
	To          string `json:"to"`
	MessageType string `json:"message_type"`
	Payload     any    `json:"payload"`
}

// Message types accepted by the messaging webhook.
const (
	MessageTypeText        = "text"
	MessageTypeInteractive = "interactive"
)

// TextPayload is the body of a plain text message.
type TextPayload struct {
	Text string `json:"text"`
}

// Button is one reply button in an interactive "button" message.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ButtonsPayload is the body of an interactive "button" message.
type ButtonsPayload struct {
	Type    string   `json:"type"`
	Body    string   `json:"body"`
	Header  string   `json:"header,omitempty"`
	Footer  string   `json:"footer,omitempty"`
	Buttons []Button `json:"buttons"`
}

// ListRow is one selectable row in an interactive "list" message.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListSection groups rows under a section title.
type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

// ListPayload is the body of an interactive "list" message.
type ListPayload struct {
	Type       string        `json:"type"`
	Body       string        `json:"body"`
	ButtonText string        `json:"button_text,omitempty"`
	Header     string        `json:"header,omitempty"`
	Footer     string        `json:"footer,omitempty"`
	Sections   []ListSection `json:"sections"`
}

// NewTextMessage builds a text-typed outbound message, capping the
// text at the WhatsApp body limit.
func NewTextMessage(to, text string) OutboundMessage {
	return OutboundMessage{
		To:          to,
		MessageType: MessageTypeText,
		Payload:     TextPayload{Text: Truncate(text, MaxBodyLen)},
	}
}

// NewButtonsMessage builds an interactive button message. Buttons
// beyond the third are dropped; every text field is capped at its
// WhatsApp limit.
func NewButtonsMessage(to, body, header, footer string, buttons []Button) OutboundMessage {
	if len(buttons) > MaxButtons {
		buttons = buttons[:MaxButtons]
	}
	capped := make([]Button, 0, len(buttons))
	for _, b := range buttons {
		capped = append(capped, Button{
			ID:    b.ID,
			Title: Truncate(b.Title, MaxButtonTitleLen),
		})
	}
	return OutboundMessage{
		To:          to,
		MessageType: MessageTypeInteractive,
		Payload: ButtonsPayload{
			Type:    "button",
			Body:    Truncate(body, MaxBodyLen),
			Header:  Truncate(header, MaxHeaderFooterLen),
			Footer:  Truncate(footer, MaxHeaderFooterLen),
			Buttons: capped,
		},
	}
}

// NewListMessage builds an interactive list message. Sections beyond
// the tenth and rows beyond the tenth per section are dropped; titles
// and descriptions are capped at their WhatsApp limits.
func NewListMessage(to, body, buttonText, header, footer string, sections []ListSection) OutboundMessage {
	if len(sections) > MaxListSections {
		sections = sections[:MaxListSections]
	}
	capped := make([]ListSection, 0, len(sections))
	for _, sec := range sections {
		rows := sec.Rows
		if len(rows) > MaxRowsPerSection {
			rows = rows[:MaxRowsPerSection]
		}
		outRows := make([]ListRow, 0, len(rows))
		for _, row := range rows {
			outRows = append(outRows, ListRow{
				ID:          row.ID,
				Title:       Truncate(row.Title, MaxListTitleLen),
				Description: Truncate(row.Description, MaxDescriptionLen),
			})
		}
		capped = append(capped, ListSection{
			Title: Truncate(sec.Title, MaxListTitleLen),
			Rows:  outRows,
		})
	}
	return OutboundMessage{
		To:          to,
		MessageType: MessageTypeInteractive,
		Payload: ListPayload{
			Type:       "list",
			Body:       Truncate(body, MaxBodyLen),
			ButtonText: Truncate(buttonText, MaxButtonTitleLen),
			Header:     Truncate(header, MaxHeaderFooterLen),
			Footer:     Truncate(footer, MaxHeaderFooterLen),
			Sections:   capped,
		},
	}
}
