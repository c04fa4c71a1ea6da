package groq

import (
	openai "github.com/sashabaranov/go-openai"
)

// conversationHistory 有界会话历史。以一组固定示例对话为种子，
// 超出上限时从最旧的消息开始淘汰（保留最近的N条）。
type conversationHistory struct {
	max      int
	messages []openai.ChatCompletionMessage
}

// newConversationHistory 创建以示例对话为种子的历史
func newConversationHistory(sample []string, max int) *conversationHistory {
	h := &conversationHistory{max: max}
	h.seed(sample)
	return h
}

// seed 重置历史为示例对话种子
func (h *conversationHistory) seed(sample []string) {
	h.messages = h.messages[:0]
	if len(sample) >= 2 {
		h.messages = append(h.messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: sample[0]},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: sample[1]},
		)
	}
}

// snapshot 返回当前历史的副本
func (h *conversationHistory) snapshot() []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(h.messages))
	copy(out, h.messages)
	return out
}

// append 追加消息并截断到最近的 max 条
func (h *conversationHistory) append(msgs ...openai.ChatCompletionMessage) {
	h.messages = append(h.messages, msgs...)
	if h.max > 0 && len(h.messages) > h.max {
		trimmed := make([]openai.ChatCompletionMessage, h.max)
		copy(trimmed, h.messages[len(h.messages)-h.max:])
		h.messages = trimmed
	}
}

// len 当前保留的消息条数
func (h *conversationHistory) len() int {
	return len(h.messages)
}

// atSeed 判断历史是否仍处于种子状态（没有保留过真实对话）
func (h *conversationHistory) atSeed() bool {
	return len(h.messages) <= 2
}
