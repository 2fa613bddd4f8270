package domain

// ChatMessage is the provider-agnostic chat message shape used by the
// gateway and the completion integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// RawTurn is a caller-supplied history entry before normalization. Content
// falls back to Text when empty.
type RawTurn struct {
	Role    string `json:"role,omitempty" yaml:"role,omitempty"`
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
	Text    string `json:"text,omitempty" yaml:"text,omitempty"`
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}
