package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"narrative-server/internal/model"
)

// APIError — единый формат тела ошибки для всех эндпоинтов.
type APIError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// handleServiceError транслирует доменные ошибки в HTTP-статусы.
// Неклассифицированные ошибки маскируются как internal_error, детали
// остаются только в логе.
func handleServiceError(c *gin.Context, logger *zap.Logger, err error) {
	var quotaErr *model.QuotaExceededError
	switch {
	case errors.Is(err, model.ErrBadRequest):
		c.JSON(http.StatusBadRequest, APIError{
			Success: false,
			Error:   "bad_request",
			Message: err.Error(),
		})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, APIError{
			Success: false,
			Error:   "not_found",
			Message: "Historia no encontrada",
		})
	case errors.As(err, &quotaErr):
		logger.Warn("Provider quota exhausted", zap.Int("retryAfterSeconds", quotaErr.RetryAfterSeconds))
		c.JSON(http.StatusInternalServerError, APIError{
			Success: false,
			Error:   "quota_exceeded",
			Message: fmt.Sprintf("Límite de solicitudes alcanzado. Intenta de nuevo en %d segundos.", quotaErr.RetryAfterSeconds),
		})
	case errors.Is(err, model.ErrInvalidAPIKey):
		logger.Error("Provider rejected API key", zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{
			Success: false,
			Error:   "invalid_api_key",
			Message: "El proveedor de generación rechazó las credenciales",
		})
	case errors.Is(err, model.ErrGenerationFailed):
		logger.Error("Generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{
			Success: false,
			Error:   "generation_failed",
			Message: "No se pudo generar el contenido de la historia",
		})
	default:
		logger.Error("Unhandled service error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{
			Success: false,
			Error:   "internal_error",
		})
	}
}
