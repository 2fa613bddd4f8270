package usecase

import (
	"strings"

	"reply-gateway/internal/cache"
	"reply-gateway/internal/domain"
)

// normalizeHistory keeps the last limit raw entries and converts them to chat
// turns. Entries without content are dropped after the window is applied, so
// they still occupy a slot.
func normalizeHistory(raw []domain.RawTurn, limit int) []domain.ChatMessage {
	if limit <= 0 || len(raw) == 0 {
		return []domain.ChatMessage{}
	}
	if len(raw) > limit {
		raw = raw[len(raw)-limit:]
	}

	out := make([]domain.ChatMessage, 0, len(raw))
	for _, turn := range raw {
		content := turn.Content
		if content == "" {
			content = turn.Text
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		role := domain.RoleUser
		if turn.Role == domain.RoleAssistant {
			role = domain.RoleAssistant
		}
		out = append(out, domain.ChatMessage{Role: role, Content: content})
	}
	return out
}

// CacheKey is the fingerprint the gateway uses for message and the last
// limit raw history entries. A non-positive limit uses the default window.
func CacheKey(message string, raw []domain.RawTurn, limit int) string {
	if limit <= 0 {
		limit = defaultKeyHistoryLimit
	}
	return cache.Fingerprint(message, normalizeHistory(raw, limit))
}
