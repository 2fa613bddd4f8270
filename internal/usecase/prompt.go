package usecase

import (
	"strings"

	"reply-gateway/internal/domain"
)

func systemPreamble() string {
	return strings.Join([]string{
		"你是小凼，出行陪伴助手。",
		"回答要简洁友好，不超过100字。",
		"如果用户询问附近商户，要结合提供的商户信息给出具体推荐。",
	}, "")
}

// buildPromptMessages assembles the upstream conversation: the fixed
// preamble, normalized history, then the user turn with any enrichment
// already appended.
func buildPromptMessages(history []domain.ChatMessage, userTurn string) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: systemPreamble()})
	messages = append(messages, history...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: userTurn})
	return messages
}
