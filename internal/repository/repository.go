package repository

import (
	"context"
	"sync"

	"narrative-server/internal/model"
)

// StoryRepository — хранилище активных историй. Интерфейс позволяет
// подменить in-memory реализацию на Redis (или иной бэкенд) без изменений
// в сервисном слое.
//
// Update выполняет мутацию под сериализацией per-story: два конкурентных
// продолжения одной истории не могут потерять запись друг друга.
type StoryRepository interface {
	Create(ctx context.Context, story *model.Story) error
	Get(ctx context.Context, id string) (*model.Story, error)
	Update(ctx context.Context, id string, mutate func(*model.Story) error) (*model.Story, error)
}

// lockTable выдаёт мьютекс на идентификатор истории. Мьютексы не
// освобождаются — историй в процессе столько же, сколько записей в
// хранилище, отдельного роста это не добавляет.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *lockTable) get(id string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[id]
	if !ok {
		l = &sync.Mutex{}
		t.locks[id] = l
	}
	return l
}

// cloneStory возвращает глубокую копию истории, чтобы вызывающий код не
// мог менять состояние хранилища мимо Update.
func cloneStory(s *model.Story) *model.Story {
	if s == nil {
		return nil
	}
	c := *s
	c.Chapters = make([]model.Chapter, len(s.Chapters))
	for i, ch := range s.Chapters {
		c.Chapters[i] = cloneChapter(ch)
	}
	c.Decisions = append([]model.DecisionRecord(nil), s.Decisions...)
	c.Characters = append([]model.Character(nil), s.Characters...)
	return &c
}

func cloneChapter(ch model.Chapter) model.Chapter {
	c := ch
	c.Characters = append([]model.Character(nil), ch.Characters...)
	c.Decisions = append([]model.DecisionOption(nil), ch.Decisions...)
	return c
}
