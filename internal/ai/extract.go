package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Модель не всегда возвращает чистый JSON: бывает markdown-обёртка,
// пояснительный текст вокруг объекта и т.п. ExtractJSON прогоняет ответ
// через упорядоченную цепочку стратегий извлечения — побеждает первая,
// давшая валидный JSON. За один вызов извлекается ровно один объект.

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	fencedAnyPattern  = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

type extractStrategy struct {
	name string
	fn   func(string) (string, bool)
}

var extractStrategies = []extractStrategy{
	{name: "fenced_json_block", fn: extractFencedJSONBlock},
	{name: "fenced_code_block", fn: extractFencedCodeBlock},
	{name: "balanced_brace_span", fn: extractBalancedBraceSpan},
}

// ExtractJSON возвращает первый валидный JSON-объект из текста ответа.
// Сначала пробуем строгий парсинг, затем стратегии восстановления.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty response text")
	}

	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed), nil
	}

	for _, strategy := range extractStrategies {
		candidate, ok := strategy.fn(trimmed)
		if !ok {
			continue
		}
		candidate = strings.TrimSpace(candidate)
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, fmt.Errorf("no valid JSON found in response (%d chars)", len(trimmed))
}

// extractFencedJSONBlock ищет блок ```json ... ```.
func extractFencedJSONBlock(text string) (string, bool) {
	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// extractFencedCodeBlock ищет любой fenced-блок, содержимое которого
// похоже на JSON (начинается с '{' или '[').
func extractFencedCodeBlock(text string) (string, bool) {
	if m := fencedAnyPattern.FindStringSubmatch(text); m != nil {
		inner := strings.TrimSpace(m[1])
		if strings.HasPrefix(inner, "{") || strings.HasPrefix(inner, "[") {
			return inner, true
		}
	}
	return "", false
}

// extractBalancedBraceSpan находит первую сбалансированную подстроку
// {...}, считая глубину скобок. Скобки внутри строковых литералов
// не учитываются.
func extractBalancedBraceSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}

	return "", false
}
