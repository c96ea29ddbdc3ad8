package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"narrative-server/internal/ai"
	"narrative-server/internal/model"
)

// Generator — контракт клиента генерации, нужный нарративному агенту.
// Выделен в интерфейс ради тестовых дублёров.
type Generator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, opts ai.Options) (json.RawMessage, error)
}

// NarrativeAgent строит промпты, вызывает клиент генерации и нормализует
// структурированный вывод модели. Состояние историй он НЕ мутирует —
// это зона ответственности StoryService.
type NarrativeAgent struct {
	generator Generator
	logger    *zap.Logger
}

// NewNarrativeAgent создает нарративного агента.
func NewNarrativeAgent(generator Generator, logger *zap.Logger) *NarrativeAgent {
	return &NarrativeAgent{
		generator: generator,
		logger:    logger.Named("NarrativeAgent"),
	}
}

// generatedChapter — структура ответа модели до нормализации. Помимо
// контрактного поля content модель иногда кладёт текст главы в text,
// story или narrative — ход не должен падать из-за переименованного поля.
type generatedChapter struct {
	Title       string                 `json:"title"`
	Number      int                    `json:"chapter"`
	Content     string                 `json:"content"`
	Text        string                 `json:"text"`
	Story       string                 `json:"story"`
	Narrative   string                 `json:"narrative"`
	Characters  []model.Character      `json:"characters"`
	Decisions   []model.DecisionOption `json:"decisions"`
	Atmosphere  string                 `json:"atmosphere"`
	Cliffhanger string                 `json:"cliffhanger"`
}

// defaultDecisions — фиксированный набор вариантов, подставляемый когда
// модель не сгенерировала ни одного: история никогда не остаётся без
// путей продолжения.
func defaultDecisions() []model.DecisionOption {
	return []model.DecisionOption{
		{Text: "Explorar los alrededores", Hint: "Investiga qué hay cerca"},
		{Text: "Hablar con alguien", Hint: "Busca información"},
		{Text: "Continuar el camino", Hint: "Sigue adelante"},
	}
}

// CreateStory генерирует первую главу новой истории.
func (a *NarrativeAgent) CreateStory(ctx context.Context, genre, theme, initialPrompt string, prefs StoryPreferences) (*model.Chapter, error) {
	a.logger.Info("Generating initial chapter", zap.String("genre", genre), zap.String("theme", theme))

	raw, err := a.generator.GenerateJSON(ctx,
		createStorySystemPrompt,
		buildCreateStoryUserPrompt(genre, theme, initialPrompt, prefs),
		ai.Options{Temperature: 0.9, MaxTokens: 8192},
	)
	if err != nil {
		return nil, err
	}

	chapter, err := a.decodeChapter(raw, 1, "")
	if err != nil {
		return nil, err
	}

	a.logger.Info("Initial chapter generated",
		zap.Int("contentLength", len(chapter.Content)),
		zap.Int("decisions", len(chapter.Decisions)),
		zap.Int("characters", len(chapter.Characters)))
	return chapter, nil
}

// ContinueStory генерирует следующую главу по накопленному состоянию и
// решению пользователя, с проходом валидации/ремонта поверх ответа модели.
func (a *NarrativeAgent) ContinueStory(ctx context.Context, story *model.Story, userDecision, userAction string) (*model.Chapter, error) {
	nextNumber := len(story.Chapters) + 1
	a.logger.Info("Continuing story",
		zap.String("storyID", story.ID),
		zap.Int("nextChapter", nextNumber),
		zap.String("decision", userDecision))

	raw, err := a.generator.GenerateJSON(ctx,
		buildContinueStorySystemPrompt(nextNumber),
		buildContinueStoryUserPrompt(story, userDecision, userAction),
		ai.Options{Temperature: 0.85, MaxTokens: 8192},
	)
	if err != nil {
		return nil, err
	}

	chapter, err := a.decodeChapter(raw, nextNumber, userDecision)
	if err != nil {
		return nil, err
	}

	a.logger.Info("Chapter generated",
		zap.Int("chapter", chapter.Number),
		zap.Int("contentLength", len(chapter.Content)),
		zap.Int("decisions", len(chapter.Decisions)))
	return chapter, nil
}

// GenerateCharacter генерирует одного нового персонажа. Ремонта здесь нет:
// персонаж без имени — жёсткая ошибка генерации.
func (a *NarrativeAgent) GenerateCharacter(ctx context.Context, story *model.Story, characterPrompt string) (*model.Character, error) {
	a.logger.Info("Generating character", zap.String("storyID", story.ID))

	raw, err := a.generator.GenerateJSON(ctx,
		generateCharacterSystemPrompt,
		buildGenerateCharacterUserPrompt(story, characterPrompt),
		ai.Options{Temperature: 0.8, MaxTokens: 2048},
	)
	if err != nil {
		return nil, err
	}

	var character model.Character
	if err := json.Unmarshal(raw, &character); err != nil {
		return nil, fmt.Errorf("%w: character payload is not decodable: %v", model.ErrGenerationFailed, err)
	}
	if strings.TrimSpace(character.Name) == "" {
		return nil, fmt.Errorf("%w: generated character has no name", model.ErrGenerationFailed)
	}

	a.logger.Info("Character generated", zap.String("name", character.Name), zap.String("role", character.Role))
	return &character, nil
}

// decodeChapter декодирует ответ модели и применяет проход ремонта:
// фолбэк-поля для контента, плейсхолдер при полном отсутствии текста,
// дефолтные решения при пустом списке. Номер главы выставляется
// принудительно — модели случается его перепутать.
func (a *NarrativeAgent) decodeChapter(raw json.RawMessage, number int, userDecision string) (*model.Chapter, error) {
	var gen generatedChapter
	if err := json.Unmarshal(raw, &gen); err != nil {
		return nil, fmt.Errorf("%w: chapter payload is not decodable: %v", model.ErrGenerationFailed, err)
	}

	content := firstNonEmpty(gen.Content, gen.Text, gen.Story, gen.Narrative)
	if content == "" {
		a.logger.Warn("Generated chapter has no content in any known field, synthesizing placeholder",
			zap.Int("chapter", number))
		if userDecision != "" {
			content = fmt.Sprintf("El capítulo continúa la historia basándose en tu decisión: %q.\n\nLa trama se desarrolla con nuevas revelaciones y desafíos.", userDecision)
		} else {
			content = "La historia comienza y la trama se desarrolla con nuevas revelaciones y desafíos."
		}
	} else if content != gen.Content {
		a.logger.Warn("Chapter content recovered from fallback field", zap.Int("chapter", number))
	}

	decisions := gen.Decisions
	if len(decisions) == 0 {
		a.logger.Warn("Generated chapter has no decisions, substituting defaults", zap.Int("chapter", number))
		decisions = defaultDecisions()
	}

	return &model.Chapter{
		Title:       gen.Title,
		Number:      number,
		Content:     content,
		Characters:  gen.Characters,
		Decisions:   decisions,
		Atmosphere:  gen.Atmosphere,
		Cliffhanger: gen.Cliffhanger,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
