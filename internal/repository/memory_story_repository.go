package repository

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"narrative-server/internal/model"
)

// Compile-time check.
var _ StoryRepository = (*memoryStoryRepository)(nil)

// memoryStoryRepository хранит истории в памяти процесса. Без персистентности
// и без вытеснения — время жизни записи равно времени жизни процесса.
type memoryStoryRepository struct {
	mu      sync.RWMutex
	stories map[string]*model.Story
	locks   *lockTable
	logger  *zap.Logger
}

// NewMemoryStoryRepository создает in-memory хранилище историй.
func NewMemoryStoryRepository(logger *zap.Logger) StoryRepository {
	return &memoryStoryRepository{
		stories: make(map[string]*model.Story),
		locks:   newLockTable(),
		logger:  logger.Named("MemoryStoryRepo"),
	}
}

func (r *memoryStoryRepository) Create(_ context.Context, story *model.Story) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stories[story.ID]; exists {
		return fmt.Errorf("story %s already exists", story.ID)
	}
	r.stories[story.ID] = cloneStory(story)

	r.logger.Debug("Story stored", zap.String("storyID", story.ID), zap.Int("totalStories", len(r.stories)))
	return nil
}

func (r *memoryStoryRepository) Get(_ context.Context, id string) (*model.Story, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	story, ok := r.stories[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneStory(story), nil
}

func (r *memoryStoryRepository) Update(_ context.Context, id string, mutate func(*model.Story) error) (*model.Story, error) {
	// Сериализация per-story: конкурентные продолжения одной истории
	// выполняются по очереди и не теряют записи друг друга.
	idLock := r.locks.get(id)
	idLock.Lock()
	defer idLock.Unlock()

	r.mu.RLock()
	stored, ok := r.stories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, model.ErrNotFound
	}

	updated := cloneStory(stored)
	if err := mutate(updated); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.stories[id] = updated
	r.mu.Unlock()

	return cloneStory(updated), nil
}
