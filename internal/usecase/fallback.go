package usecase

import "math/rand/v2"

const invalidRequestReply = "抱歉，我现在遇到了一点问题，无法正常回复。请稍后再试。"

var backupReplies = []string{
	"网络似乎不太顺畅，请再发一次你的问题吧",
	"我需要休息一下，稍后再聊",
	"服务暂时不可用，请稍候",
}

var pickIndex = rand.IntN

func fallbackReply() string {
	return backupReplies[pickIndex(len(backupReplies))]
}
