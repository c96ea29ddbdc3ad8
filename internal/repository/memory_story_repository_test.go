package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"narrative-server/internal/model"
)

func newStory(id string) *model.Story {
	return &model.Story{
		ID:    id,
		Genre: "misterio",
		Theme: "una carta perdida",
		Chapters: []model.Chapter{
			{Number: 1, Content: "Primer capítulo"},
		},
		Decisions:  []model.DecisionRecord{},
		Characters: []model.Character{},
	}
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryStoryRepository(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newStory("s1")))

	loaded, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", loaded.ID)
	assert.Len(t, loaded.Chapters, 1)
}

func TestMemoryRepository_CreateDuplicate(t *testing.T) {
	repo := NewMemoryStoryRepository(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newStory("s1")))
	assert.Error(t, repo.Create(ctx, newStory("s1")))
}

func TestMemoryRepository_GetUnknown(t *testing.T) {
	repo := NewMemoryStoryRepository(zap.NewNop())

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryRepository_GetReturnsCopy(t *testing.T) {
	repo := NewMemoryStoryRepository(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newStory("s1")))

	first, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	// Мутация снимка не должна протекать в хранилище.
	first.Chapters[0].Content = "изменено снаружи"
	first.Chapters = append(first.Chapters, model.Chapter{Number: 2})

	second, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, second.Chapters, 1)
	assert.Equal(t, "Primer capítulo", second.Chapters[0].Content)
}

func TestMemoryRepository_Update(t *testing.T) {
	repo := NewMemoryStoryRepository(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newStory("s1")))

	updated, err := repo.Update(ctx, "s1", func(story *model.Story) error {
		story.Chapters = append(story.Chapters, model.Chapter{Number: 2, Content: "Segundo"})
		story.CurrentChapter = 1
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, updated.Chapters, 2)
	assert.Equal(t, 1, updated.CurrentChapter)

	loaded, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, loaded.Chapters, 2)
}

func TestMemoryRepository_UpdateUnknown(t *testing.T) {
	repo := NewMemoryStoryRepository(zap.NewNop())

	_, err := repo.Update(context.Background(), "missing", func(story *model.Story) error {
		return nil
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryRepository_ConcurrentUpdatesSerialized(t *testing.T) {
	repo := NewMemoryStoryRepository(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newStory("s1")))

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, "s1", func(story *model.Story) error {
				story.Chapters = append(story.Chapters, model.Chapter{Number: len(story.Chapters) + 1})
				story.CurrentChapter = len(story.Chapters) - 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := repo.Get(ctx, "s1")
	require.NoError(t, err)

	// Ни одно обновление не потеряно, номера глав монотонны.
	require.Len(t, loaded.Chapters, workers+1)
	for i, ch := range loaded.Chapters {
		assert.Equal(t, i+1, ch.Number)
	}
	assert.Equal(t, workers, loaded.CurrentChapter)
}
