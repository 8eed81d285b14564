package slack

import "encoding/json"

// Event types handled by the dispatcher.
const (
	EventTypeMessage = "message"
)

// EventCallback is the outer body of an Events API request.
type EventCallback struct {
	Token     string          `json:"token"`
	Challenge json.RawMessage `json:"challenge,omitempty"`
	Type      string          `json:"type"`
	TeamID    string          `json:"team_id"`
	APIAppID  string          `json:"api_app_id"`
	EventID   string          `json:"event_id"`
	EventTime int64           `json:"event_time"`
	Event     *InnerEvent     `json:"event"`
}

// InnerEvent is the nested event payload.
type InnerEvent struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Channel string `json:"channel"`
	User    string `json:"user"`
	Text    string `json:"text"`
	TS      string `json:"ts"`
	BotID   string `json:"bot_id,omitempty"`
}
