package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"narrative-server/internal/model"
	"narrative-server/internal/repository"
)

// StoryService владеет жизненным циклом историй: агент генерирует главы,
// сервис присваивает идентификаторы и мутирует состояние в хранилище.
type StoryService struct {
	agent  *NarrativeAgent
	repo   repository.StoryRepository
	logger *zap.Logger

	// Переопределяется в тестах для детерминированных таймстампов.
	now func() time.Time
}

// NewStoryService создает сервис историй.
func NewStoryService(agent *NarrativeAgent, repo repository.StoryRepository, logger *zap.Logger) *StoryService {
	return &StoryService{
		agent:  agent,
		repo:   repo,
		logger: logger.Named("StoryService"),
		now:    time.Now,
	}
}

// CreateStory генерирует первую главу и сохраняет новую историю.
// Возвращаемая история всегда содержит ровно одну главу и currentChapter == 0.
func (s *StoryService) CreateStory(ctx context.Context, genre, theme, initialPrompt string, prefs StoryPreferences) (*model.Story, error) {
	if strings.TrimSpace(genre) == "" || strings.TrimSpace(theme) == "" {
		return nil, fmt.Errorf("%w: genre and theme are required", model.ErrBadRequest)
	}

	chapter, err := s.agent.CreateStory(ctx, genre, theme, initialPrompt, prefs)
	if err != nil {
		return nil, err
	}

	story := &model.Story{
		ID:             uuid.NewString(),
		Genre:          genre,
		Theme:          theme,
		CurrentChapter: 0,
		Chapters:       []model.Chapter{*chapter},
		Decisions:      []model.DecisionRecord{},
		Characters:     chapter.Characters,
		CreatedAt:      s.now().UTC(),
	}
	if story.Characters == nil {
		story.Characters = []model.Character{}
	}

	if err := s.repo.Create(ctx, story); err != nil {
		return nil, fmt.Errorf("failed to persist new story: %w", err)
	}

	s.logger.Info("Story created",
		zap.String("storyID", story.ID),
		zap.String("genre", genre),
		zap.String("theme", theme))
	return story, nil
}

// GetStory возвращает текущее состояние истории.
func (s *StoryService) GetStory(ctx context.Context, storyID string) (*model.Story, error) {
	return s.repo.Get(ctx, storyID)
}

// ContinueStory генерирует следующую главу по решению пользователя и
// атомарно дописывает её в историю. Генерация выполняется по снимку
// состояния, запись — под per-story сериализацией хранилища.
func (s *StoryService) ContinueStory(ctx context.Context, storyID, decision, userAction string) (*model.Story, *model.Chapter, error) {
	if strings.TrimSpace(decision) == "" {
		return nil, nil, fmt.Errorf("%w: decision is required", model.ErrBadRequest)
	}

	snapshot, err := s.repo.Get(ctx, storyID)
	if err != nil {
		return nil, nil, err
	}

	chapter, err := s.agent.ContinueStory(ctx, snapshot, decision, userAction)
	if err != nil {
		return nil, nil, err
	}

	updated, err := s.repo.Update(ctx, storyID, func(story *model.Story) error {
		// Номер главы пересчитывается по актуальному состоянию: между
		// снимком и записью могло пройти конкурентное продолжение.
		chapter.Number = len(story.Chapters) + 1
		previousCurrent := story.CurrentChapter

		story.Chapters = append(story.Chapters, *chapter)
		story.CurrentChapter = len(story.Chapters) - 1
		story.Decisions = append(story.Decisions, model.DecisionRecord{
			Chapter:   previousCurrent,
			Decision:  decision,
			Timestamp: s.now().UTC(),
		})
		// Непустой список персонажей главы заменяет состав истории
		// целиком — стабильных идентификаторов персонажей нет.
		if len(chapter.Characters) > 0 {
			story.Characters = chapter.Characters
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Story continued",
		zap.String("storyID", storyID),
		zap.Int("chapters", len(updated.Chapters)),
		zap.Int("currentChapter", updated.CurrentChapter))
	return updated, chapter, nil
}

// GenerateCharacter генерирует нового персонажа и добавляет его в состав.
func (s *StoryService) GenerateCharacter(ctx context.Context, storyID, characterPrompt string) (*model.Character, error) {
	snapshot, err := s.repo.Get(ctx, storyID)
	if err != nil {
		return nil, err
	}

	character, err := s.agent.GenerateCharacter(ctx, snapshot, characterPrompt)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Update(ctx, storyID, func(story *model.Story) error {
		story.Characters = append(story.Characters, *character)
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("Character added to story",
		zap.String("storyID", storyID),
		zap.String("name", character.Name))
	return character, nil
}
