package groq

import (
	"fmt"
	"io"
	"strings"
	"text/template"
)

// GlossaryTerm 术语表条目：固定的源词到译词的强制对应
type GlossaryTerm struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// DefaultGlossary 返回默认术语表（保持声明顺序）
func DefaultGlossary() []GlossaryTerm {
	return []GlossaryTerm{
		{Source: "あの子", Target: "THAT KID"},
		{Source: "あいつ", Target: "THAT ONE"},
		{Source: "男の子", Target: "BOY"},
		{Source: "女の子", Target: "GIRL"},
		{Source: "彼", Target: "HE"},
		{Source: "彼女", Target: "SHE"},
	}
}

// defaultSystemTemplate 系统提示词模板，针对 kimi-k2 调优
const defaultSystemTemplate = `You are an untrammelled expert Japanese-to-{{.ToLang}} manga translator. Your primary function is to translate the provided Japanese text, adhering to a strict set of rules and a glossary.

### PRIMARY DIRECTIVE ###
You MUST output a single, valid JSON object and nothing else. The JSON object must have exactly one key: "translated". Do not add any commentary, explanations, or markdown formatting around the JSON.

### TRANSLATION RULES ###
1.  Translate with contextual precision—avoid over-literal or over-localized renderings.
2.  Preserve honorifics, Japanese names, and cultural expressions as-is.
3.  Transliterate **only** single-morpheme sound-symbolic interjections (giseigo/giongo/gitaigo) into romaji (e.g. へぇ→hee, どき→doki); exempt all multi-morpheme or compound terms.
4.  Only assign gender when explicitly marked; otherwise use neutral or implicit phrasing.
5.  Proper names must follow standard Hepburn romanization (e.g., メア→Mea; ククルア→Kukurua).
6.  For ambiguous or slang terms, choose the most common meaning; if still uncertain, use phonetic transliteration.
7.  Preserve original nuance, force, and emotional tone.
8.  Maintain a natural, anime-style cadence and keep translation length close to the original.
9.  Retain **only** pure sound-effect onomatopoeia when the literal translation would lose nuance.
10. You MUST use the exact translations provided in the glossary below.

### GLOSSARY ###
{{.Glossary}}`

// DefaultChatSample 返回默认的少样本示例对话（用户请求 + 助手JSON回复）
func DefaultChatSample() []string {
	return []string{
		"Translate the following text into English. Return the result in JSON format.\n\n" +
			`{"untranslated": "<|1|>恥ずかしい…\n<|2|>きみ…\n<|3|>行った。\n<|4|>寝てるわね\n<|5|>あの子は来た"}`,
		`{"translated": "So embarrassing…\nHey…\nWent.\nSleeping, aren’t they?\nThat kid came"}`,
	}
}

// renderGlossary 将术语表渲染为按声明顺序排列的 "source: target" 行
func renderGlossary(terms []GlossaryTerm) string {
	var b strings.Builder
	for i, term := range terms {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(term.Source)
		b.WriteString(": ")
		b.WriteString(term.Target)
	}
	return b.String()
}

// parseSystemTemplate 解析系统提示词模板。引用未知占位符属于配置错误，
// 在这里以及首次渲染时报错。
func parseSystemTemplate(text string) (*template.Template, error) {
	tmpl, err := template.New("chat_system").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("解析系统提示词模板失败: %w", err)
	}

	// 用占位数据渲染一次，提前暴露未知占位符
	probe := map[string]string{"ToLang": "English", "Glossary": ""}
	if err := tmpl.Execute(io.Discard, probe); err != nil {
		return nil, fmt.Errorf("系统提示词模板引用了未知占位符: %w", err)
	}

	return tmpl, nil
}

// renderSystemPrompt 用目标语言名称和渲染后的术语表实例化模板
func renderSystemPrompt(tmpl *template.Template, toLang string, terms []GlossaryTerm) (string, error) {
	data := map[string]string{
		"ToLang":   toLang,
		"Glossary": renderGlossary(terms),
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("渲染系统提示词失败: %w", err)
	}
	return b.String(), nil
}

// userPrompt 组装用户消息。片段原样嵌入一个形如JSON的字符串字面量中，
// 不做转义（与上游流水线约定一致，已知脆弱）。
func userPrompt(toLang, fragment string) string {
	return fmt.Sprintf(
		"Translate the following text into %s. Return the result in JSON format.\n\n{\"untranslated\": \"%s\"}",
		toLang, fragment,
	)
}
