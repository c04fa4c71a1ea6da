package groq

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/nerdneilsfield/manga-translator-go/internal/logger"
	"go.uber.org/zap"
)

// TranslationResult 单个片段的解析结果，期望只有一个 "translated" 键
type TranslationResult map[string]string

var (
	// braceSpanRe 贪婪匹配第一个花括号片段（含换行）
	braceSpanRe = regexp.MustCompile(`(?s)\{.*\}`)

	// keyPrefixRe 匹配文本开头的 "translated": 键标记（引号可选）
	keyPrefixRe = regexp.MustCompile(`^\s*"?translated"?\s*:\s*"?`)
)

// parseTranslation 从模型原始输出中解析翻译结果。
// 先做严格JSON解析；失败后提取第一个花括号片段再次解析；
// 仍失败或不存在花括号片段时，把整段原始文本包装为兜底结果。
// 返回值第二项标记结果是否经过恢复路径。
func parseTranslation(raw string, log logger.Logger) (TranslationResult, bool) {
	var result TranslationResult
	if err := json.Unmarshal([]byte(raw), &result); err == nil {
		return result, false
	}

	span := braceSpanRe.FindString(raw)
	if span == "" {
		log.Error("响应中未找到JSON对象", zap.String("text", raw))
		return wrapRawText(raw), true
	}

	var extracted TranslationResult
	if err := json.Unmarshal([]byte(span), &extracted); err != nil {
		log.Error("解析提取的JSON失败", zap.String("text", span), zap.Error(err))
		return wrapRawText(raw), true
	}

	return extracted, true
}

// wrapRawText 兜底包装。若原始文本以 "translated": 键标记开头，
// 先剥离键标记和一个尾部引号。
func wrapRawText(raw string) TranslationResult {
	cleaned := raw
	if loc := keyPrefixRe.FindStringIndex(raw); loc != nil {
		cleaned = strings.TrimSuffix(raw[loc[1]:], `"`)
	}
	return TranslationResult{"translated": cleaned}
}
