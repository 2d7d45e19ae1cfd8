package core

import "time"

// Audit event names
const (
	EventLogin            = "login"
	EventLogout           = "logout"
	EventTokenRefresh     = "token_refresh"
	EventAllTokensRevoked = "all_tokens_revoked"
)

// AuthEvent is a structured audit record
type AuthEvent struct {
	UserID     string         `json:"user_id,omitempty"`
	Event      string         `json:"event"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
