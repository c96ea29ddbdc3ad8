package model

import (
	"errors"
	"fmt"
)

// Базовые ошибки сервиса. Хендлеры маппят их на HTTP статусы
// через errors.Is, поэтому сервисы должны оборачивать их с %w.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrNotFound         = errors.New("story not found")
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrGenerationFailed = errors.New("generation failed")
	ErrNoSampleFound    = errors.New("no audio sample found")
)

// QuotaExceededError возвращается, когда провайдер исчерпал лимит запросов
// и внутренние ретраи клиента не помогли. RetryAfterSeconds — подсказка
// из последней ошибки провайдера (сколько ждать перед повтором).
type QuotaExceededError struct {
	RetryAfterSeconds int
	Err               error
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: provider rate limit reached, retry in %d seconds", e.RetryAfterSeconds)
}

func (e *QuotaExceededError) Unwrap() error { return e.Err }

// IsQuotaExceeded проверяет, является ли ошибка (или её причина) ошибкой квоты.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
