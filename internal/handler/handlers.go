package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"narrative-server/internal/model"
	"narrative-server/internal/service"
)

// SampleSearcher — контракт поиска аудиосэмплов, нужный обработчикам.
// Выделен в интерфейс ради тестовых дублёров.
type SampleSearcher interface {
	SearchSample(ctx context.Context, genre, mood string, duration int) (*model.AudioSample, error)
}

// Handler связывает HTTP-маршруты с сервисами истории, музыки и
// поиска сэмплов.
type Handler struct {
	stories *service.StoryService
	music   *service.MusicDirector
	samples SampleSearcher
	logger  *zap.Logger
}

// NewHandler создает HTTP-обработчики.
func NewHandler(stories *service.StoryService, music *service.MusicDirector, samples SampleSearcher, logger *zap.Logger) *Handler {
	return &Handler{
		stories: stories,
		music:   music,
		samples: samples,
		logger:  logger.Named("Handler"),
	}
}

// RegisterRoutes регистрирует все маршруты API на роутере.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	api := router.Group("/api")
	{
		story := api.Group("/story")
		{
			story.POST("/create", h.CreateStory)
			story.GET("/:storyId", h.GetStory)
			story.POST("/:storyId/continue", h.ContinueStory)
			story.POST("/:storyId/character", h.GenerateCharacter)
			story.GET("/:storyId/music", h.StoryMusic)
		}
		api.GET("/music/samples/:genre", h.SearchSample)
	}
}

// Health подтверждает живость сервиса.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Servidor de historias interactivas funcionando",
	})
}

// createStoryRequest — тело POST /api/story/create.
type createStoryRequest struct {
	Genre         string                   `json:"genre" binding:"required"`
	Theme         string                   `json:"theme" binding:"required"`
	InitialPrompt string                   `json:"initialPrompt"`
	Preferences   service.StoryPreferences `json:"userPreferences"`
}

// CreateStory создает новую историю с первой сгенерированной главой.
func (h *Handler) CreateStory(c *gin.Context) {
	var req createStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{
			Success: false,
			Error:   "bad_request",
			Message: "Se requieren los campos genre y theme",
		})
		return
	}

	story, err := h.stories.CreateStory(c.Request.Context(), req.Genre, req.Theme, req.InitialPrompt, req.Preferences)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"storyId": story.ID,
		"story":   story,
	})
}

// GetStory возвращает текущее состояние истории.
func (h *Handler) GetStory(c *gin.Context) {
	story, err := h.stories.GetStory(c.Request.Context(), c.Param("storyId"))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"story":   story,
	})
}

// continueStoryRequest — тело POST /api/story/:storyId/continue.
type continueStoryRequest struct {
	Decision   string `json:"decision" binding:"required"`
	UserAction string `json:"userAction"`
}

// ContinueStory генерирует следующую главу по решению пользователя.
func (h *Handler) ContinueStory(c *gin.Context) {
	var req continueStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{
			Success: false,
			Error:   "bad_request",
			Message: "Se requiere el campo decision",
		})
		return
	}

	story, chapter, err := h.stories.ContinueStory(c.Request.Context(), c.Param("storyId"), req.Decision, req.UserAction)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"story":      story,
		"newChapter": chapter,
	})
}

// generateCharacterRequest — тело POST /api/story/:storyId/character.
type generateCharacterRequest struct {
	CharacterPrompt string `json:"characterPrompt" binding:"required"`
}

// GenerateCharacter добавляет в историю нового сгенерированного персонажа.
func (h *Handler) GenerateCharacter(c *gin.Context) {
	var req generateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{
			Success: false,
			Error:   "bad_request",
			Message: "Se requiere el campo characterPrompt",
		})
		return
	}

	character, err := h.stories.GenerateCharacter(c.Request.Context(), c.Param("storyId"), req.CharacterPrompt)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"character": character,
	})
}

// StoryMusic возвращает музыкальный профиль текущей главы истории.
func (h *Handler) StoryMusic(c *gin.Context) {
	profile, err := h.music.ProfileForStory(c.Request.Context(), c.Param("storyId"))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"music":   profile,
	})
}

// SearchSample ищет аудиосэмпл под жанр. Отсутствие результата — не
// ошибка транспорта: клиент получает 200 с success=false и откатывается
// на локальный синтез.
func (h *Handler) SearchSample(c *gin.Context) {
	genre := c.Param("genre")
	mood := c.Query("mood")

	duration := 60
	if raw := c.Query("duration"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, APIError{
				Success: false,
				Error:   "bad_request",
				Message: "El parámetro duration debe ser un entero positivo",
			})
			return
		}
		duration = parsed
	}

	sample, err := h.samples.SearchSample(c.Request.Context(), genre, mood, duration)
	if err != nil {
		if errors.Is(err, model.ErrNoSampleFound) {
			c.JSON(http.StatusOK, gin.H{
				"success": false,
				"message": "No se encontraron muestras adecuadas",
			})
			return
		}
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"sample":  sample,
	})
}
