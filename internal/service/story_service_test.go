package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"narrative-server/internal/model"
	"narrative-server/internal/repository"
)

func newTestStoryService(gen *stubGenerator) *StoryService {
	logger := zap.NewNop()
	agent := NewNarrativeAgent(gen, logger)
	repo := repository.NewMemoryStoryRepository(logger)
	svc := NewStoryService(agent, repo, logger)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

var chapterResponse = json.RawMessage(`{
	"title": "La carta perdida",
	"content": "Elena encontró la carta bajo la puerta.",
	"characters": [{"name": "Elena", "role": "Protagonista", "personality": "Curiosa"}],
	"decisions": [
		{"id": 1, "text": "Abrir la carta"},
		{"id": 2, "text": "Guardarla"},
		{"id": 3, "text": "Quemarla"}
	],
	"atmosphere": "misteriosa"
}`)

func TestStoryService_CreateStory(t *testing.T) {
	svc := newTestStoryService(&stubGenerator{responses: []json.RawMessage{chapterResponse}})

	story, err := svc.CreateStory(context.Background(), "misterio", "una carta perdida", "", StoryPreferences{})
	require.NoError(t, err)

	assert.NotEmpty(t, story.ID)
	assert.Equal(t, "misterio", story.Genre)
	assert.Equal(t, 0, story.CurrentChapter)
	require.Len(t, story.Chapters, 1)
	assert.Equal(t, 1, story.Chapters[0].Number)
	assert.Empty(t, story.Decisions)
	require.Len(t, story.Characters, 1)
	assert.Equal(t, "Elena", story.Characters[0].Name)

	// История действительно сохранена.
	loaded, err := svc.GetStory(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Equal(t, story.ID, loaded.ID)
}

func TestStoryService_CreateStory_Validation(t *testing.T) {
	gen := &stubGenerator{responses: []json.RawMessage{chapterResponse}}
	svc := newTestStoryService(gen)

	_, err := svc.CreateStory(context.Background(), "", "tema", "", StoryPreferences{})
	assert.ErrorIs(t, err, model.ErrBadRequest)

	_, err = svc.CreateStory(context.Background(), "misterio", "   ", "", StoryPreferences{})
	assert.ErrorIs(t, err, model.ErrBadRequest)

	// Валидация срабатывает до обращения к генератору.
	assert.Zero(t, gen.calls)
}

func TestStoryService_ContinueStory(t *testing.T) {
	svc := newTestStoryService(&stubGenerator{responses: []json.RawMessage{chapterResponse}})

	story, err := svc.CreateStory(context.Background(), "misterio", "una carta perdida", "", StoryPreferences{})
	require.NoError(t, err)

	updated, chapter, err := svc.ContinueStory(context.Background(), story.ID, "Abrir la carta", "")
	require.NoError(t, err)

	require.Len(t, updated.Chapters, 2)
	assert.Equal(t, 2, chapter.Number)
	assert.Equal(t, 1, updated.CurrentChapter)

	require.Len(t, updated.Decisions, 1)
	record := updated.Decisions[0]
	assert.Equal(t, "Abrir la carta", record.Decision)
	// Решение привязывается к главе, В КОТОРОЙ оно было принято.
	assert.Equal(t, 0, record.Chapter)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), record.Timestamp)
}

func TestStoryService_ContinueStory_Validation(t *testing.T) {
	svc := newTestStoryService(&stubGenerator{responses: []json.RawMessage{chapterResponse}})

	_, _, err := svc.ContinueStory(context.Background(), "any", "   ", "")
	assert.ErrorIs(t, err, model.ErrBadRequest)
}

func TestStoryService_ContinueStory_UnknownStory(t *testing.T) {
	svc := newTestStoryService(&stubGenerator{responses: []json.RawMessage{chapterResponse}})

	_, _, err := svc.ContinueStory(context.Background(), "missing", "Seguir", "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStoryService_ContinueStory_ReplacesCharacters(t *testing.T) {
	gen := &stubGenerator{responses: []json.RawMessage{
		chapterResponse,
		json.RawMessage(`{
			"content": "Un extraño apareció.",
			"characters": [
				{"name": "Elena", "role": "Protagonista"},
				{"name": "El extraño", "role": "Secundario"}
			],
			"decisions": [{"id": 1, "text": "Huir"}, {"id": 2, "text": "Preguntar"}, {"id": 3, "text": "Esperar"}]
		}`),
	}}
	svc := newTestStoryService(gen)

	story, err := svc.CreateStory(context.Background(), "misterio", "una carta perdida", "", StoryPreferences{})
	require.NoError(t, err)

	updated, _, err := svc.ContinueStory(context.Background(), story.ID, "Abrir la carta", "")
	require.NoError(t, err)

	require.Len(t, updated.Characters, 2)
	assert.Equal(t, "El extraño", updated.Characters[1].Name)
}

func TestStoryService_ContinueStory_KeepsCharactersWhenChapterHasNone(t *testing.T) {
	gen := &stubGenerator{responses: []json.RawMessage{
		chapterResponse,
		json.RawMessage(`{"content": "Nada nuevo.", "decisions": [{"id": 1, "text": "Seguir"}]}`),
	}}
	svc := newTestStoryService(gen)

	story, err := svc.CreateStory(context.Background(), "misterio", "tema", "", StoryPreferences{})
	require.NoError(t, err)

	updated, _, err := svc.ContinueStory(context.Background(), story.ID, "Seguir", "")
	require.NoError(t, err)

	// Глава без персонажей не стирает состав истории.
	require.Len(t, updated.Characters, 1)
	assert.Equal(t, "Elena", updated.Characters[0].Name)
}

func TestStoryService_GenerateCharacter_UnknownStory(t *testing.T) {
	gen := &stubGenerator{responses: []json.RawMessage{chapterResponse}}
	svc := newTestStoryService(gen)

	_, err := svc.GenerateCharacter(context.Background(), "missing", "un aliado")
	assert.ErrorIs(t, err, model.ErrNotFound)

	// Генератор не вызывается для несуществующей истории.
	assert.Zero(t, gen.calls)
}

func TestStoryService_GenerateCharacter(t *testing.T) {
	gen := &stubGenerator{responses: []json.RawMessage{
		chapterResponse,
		json.RawMessage(`{"name": "Don Ramiro", "role": "Antagonista"}`),
	}}
	svc := newTestStoryService(gen)

	story, err := svc.CreateStory(context.Background(), "misterio", "tema", "", StoryPreferences{})
	require.NoError(t, err)

	character, err := svc.GenerateCharacter(context.Background(), story.ID, "un antagonista")
	require.NoError(t, err)
	assert.Equal(t, "Don Ramiro", character.Name)

	loaded, err := svc.GetStory(context.Background(), story.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Characters, 2)
	assert.Equal(t, "Don Ramiro", loaded.Characters[1].Name)
}
