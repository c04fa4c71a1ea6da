package groq

import (
	"testing"

	"github.com/nerdneilsfield/manga-translator-go/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestParseTranslationStrictJSON(t *testing.T) {
	result, recovered := parseTranslation(`{"translated": "Hello"}`, logger.NewNop())

	assert.False(t, recovered)
	assert.Equal(t, "Hello", result["translated"])
}

func TestParseTranslationBraceExtraction(t *testing.T) {
	// 模型在JSON前后追加了闲聊文本
	result, recovered := parseTranslation(`Here you go: {"translated": "hi"} thanks`, logger.NewNop())

	assert.True(t, recovered)
	assert.Equal(t, "hi", result["translated"])
}

func TestParseTranslationMultilineJSON(t *testing.T) {
	raw := "Sure!\n{\n  \"translated\": \"line one\\nline two\"\n}\nDone."
	result, recovered := parseTranslation(raw, logger.NewNop())

	assert.True(t, recovered)
	assert.Equal(t, "line one\nline two", result["translated"])
}

func TestParseTranslationKeyPrefixFallback(t *testing.T) {
	// 没有花括号片段，但以键标记开头
	result, recovered := parseTranslation(`"translated": "hi"`, logger.NewNop())

	assert.True(t, recovered)
	assert.Equal(t, "hi", result["translated"])
}

func TestParseTranslationPlainTextFallback(t *testing.T) {
	// 完全无法解析的文本原样包装
	result, recovered := parseTranslation("oops", logger.NewNop())

	assert.True(t, recovered)
	assert.Equal(t, "oops", result["translated"])
}

func TestParseTranslationUnparseableBraceSpan(t *testing.T) {
	// 花括号片段本身不是合法JSON，退回包装整段原始文本
	raw := "{not json at all}"
	result, recovered := parseTranslation(raw, logger.NewNop())

	assert.True(t, recovered)
	assert.Equal(t, raw, result["translated"])
}

func TestParseTranslationMissingKey(t *testing.T) {
	result, recovered := parseTranslation(`{"other": "value"}`, logger.NewNop())

	assert.False(t, recovered)
	assert.Equal(t, "", result["translated"])
}
