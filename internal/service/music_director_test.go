package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"narrative-server/internal/model"
	"narrative-server/internal/repository"
)

func TestProfileForChapter_GenreProfile(t *testing.T) {
	director := NewMusicDirector(nil, zap.NewNop())

	chapter := &model.Chapter{
		Title:      "El umbral",
		Content:    "Todo estaba en silencio y calma.",
		Atmosphere: "paz serena",
	}
	profile := director.ProfileForChapter(chapter, "terror")

	assert.Equal(t, "A", profile.Key)
	assert.Equal(t, "minor", profile.Scale)
	assert.Equal(t, "terror", profile.Genre)
	assert.Equal(t, "El umbral", profile.ChapterTitle)
	assert.Contains(t, profile.Instruments, "drone")
}

func TestProfileForChapter_UnknownGenreFallsBack(t *testing.T) {
	director := NewMusicDirector(nil, zap.NewNop())

	profile := director.ProfileForChapter(&model.Chapter{}, "western espacial")

	// Неизвестный жанр получает профиль приключений, но сохраняет имя.
	assert.Equal(t, "western espacial", profile.Genre)
	assert.Equal(t, "G", profile.Key)
	assert.Equal(t, "major", profile.Scale)
}

func TestProfileForChapter_NilChapter(t *testing.T) {
	director := NewMusicDirector(nil, zap.NewNop())

	profile := director.ProfileForChapter(nil, "misterio")
	assert.Equal(t, "Capítulo", profile.ChapterTitle)
	assert.Equal(t, "calmo", profile.Mood)
}

func TestDetectMood(t *testing.T) {
	testCases := []struct {
		name       string
		atmosphere string
		content    string
		expected   string
	}{
		{"terror keywords", "oscuro y escalofriante", "la sombra trajo miedo y horror", "aterrador"},
		{"epic keywords", "", "la batalla fue heroica, un triunfo grandioso", "épico"},
		{"romance keywords", "", "el amor y la pasión llenaban su corazón", "romántico"},
		{"no keywords defaults to calm", "", "texto neutro sin carga", "calmo"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, detectMood(tc.atmosphere, tc.content))
		})
	}
}

func TestCalculateIntensity(t *testing.T) {
	// Нейтральный текст — базовый уровень.
	assert.InDelta(t, 5.0, calculateIntensity("", "un día cualquiera"), 0.001)

	// Слова действия поднимают интенсивность.
	high := calculateIntensity("", "explosión, hubo que correr y luchar, todo fue violento")
	assert.Greater(t, high, 5.0)

	// Спокойная лексика опускает.
	low := calculateIntensity("", "todo lento, suave, tranquilo, en calma y silencio")
	assert.Less(t, low, 5.0)
	assert.GreaterOrEqual(t, low, 0.0)
}

func TestProfileForChapter_TempoClamped(t *testing.T) {
	director := NewMusicDirector(nil, zap.NewNop())

	// aventura tempo 100 + épico +20 = 120, в пределах [40, 140].
	profile := director.ProfileForChapter(&model.Chapter{
		Content: "la batalla heroica terminó en victoria y triunfo épico",
	}, "aventura")

	assert.Equal(t, "épico", profile.Mood)
	assert.Equal(t, 120, profile.Tempo)
	assert.GreaterOrEqual(t, profile.Tempo, 40)
	assert.LessOrEqual(t, profile.Tempo, 140)
	assert.GreaterOrEqual(t, profile.Density, 0.1)
	assert.LessOrEqual(t, profile.Density, 1.0)
}

func TestProfileForStory(t *testing.T) {
	logger := zap.NewNop()
	repo := repository.NewMemoryStoryRepository(logger)
	director := NewMusicDirector(repo, logger)

	story := &model.Story{
		ID:    "s1",
		Genre: "misterio",
		Chapters: []model.Chapter{
			{Number: 1, Content: "inicio"},
			{Number: 2, Content: "el secreto oculto era un enigma extraño", Atmosphere: "misterio"},
		},
		CurrentChapter: 1,
	}
	require.NoError(t, repo.Create(context.Background(), story))

	profile, err := director.ProfileForStory(context.Background(), "s1")
	require.NoError(t, err)

	// Профиль строится по последней главе.
	assert.Equal(t, "misterioso", profile.Mood)
	assert.Equal(t, "E", profile.Key)
}

func TestProfileForStory_UnknownStory(t *testing.T) {
	logger := zap.NewNop()
	director := NewMusicDirector(repository.NewMemoryStoryRepository(logger), logger)

	_, err := director.ProfileForStory(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
