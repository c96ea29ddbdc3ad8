package ai

import (
	"errors"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// defaultRetryDelaySeconds — запасное время ожидания, когда провайдер не
// прислал подсказку. Лимиты обычно сбрасываются раз в минуту.
const defaultRetryDelaySeconds = 20

var (
	// "Please retry in 19.309954926s"
	retryInPattern = regexp.MustCompile(`(?i)retry\s+in\s+(\d+\.?\d*)\s*s`)
	// "retryDelay": "19s" (в том числе внутри JSON тела ошибки)
	retryDelayPattern = regexp.MustCompile(`(?i)retryDelay["']?\s*[:=]\s*["']?(\d+\.?\d*)\s*s?`)
	// "espera 20 segundos" / "wait 20 seconds"
	secondsPattern = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(?:seconds?|segundos?)`)
)

// isRateLimitError определяет, сигнализирует ли ошибка провайдера о
// превышении лимита запросов (429).
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "quota exceeded") ||
		strings.Contains(msg, "rate limit")
}

// isAuthError определяет, отклонил ли провайдер учетные данные (401/403).
func isAuthError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) &&
		(apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "401") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "incorrect api key")
}

// extractRetryDelaySeconds извлекает рекомендуемое время ожидания из текста
// ошибки провайдера. Провайдер сам говорит, сколько ждать — это надёжнее
// фиксированного или экспоненциального расписания. Округляем вверх до
// целых секунд; если подсказки нет, возвращаем значение по умолчанию.
func extractRetryDelaySeconds(err error) int {
	if err == nil {
		return defaultRetryDelaySeconds
	}

	msg := err.Error()
	for _, re := range []*regexp.Regexp{retryInPattern, retryDelayPattern, secondsPattern} {
		if m := re.FindStringSubmatch(msg); m != nil {
			if seconds, parseErr := strconv.ParseFloat(m[1], 64); parseErr == nil && seconds > 0 {
				return int(math.Ceil(seconds))
			}
		}
	}

	return defaultRetryDelaySeconds
}
