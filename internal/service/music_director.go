package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"narrative-server/internal/model"
	"narrative-server/internal/repository"
)

// MusicDirector выводит адаптивные параметры фоновой музыки из
// нарративного контекста главы: базовый профиль жанра, модифицированный
// обнаруженным настроением и интенсивностью текста.
type MusicDirector struct {
	repo   repository.StoryRepository
	logger *zap.Logger
}

// NewMusicDirector создает музыкального директора.
func NewMusicDirector(repo repository.StoryRepository, logger *zap.Logger) *MusicDirector {
	return &MusicDirector{
		repo:   repo,
		logger: logger.Named("MusicDirector"),
	}
}

// genreProfile — базовая музыкальная характеристика жанра.
type genreProfile struct {
	baseKey         string
	scale           string
	tempo           int
	instruments     []string
	effects         []string
	density         float64
	characteristics string
}

const fallbackGenre = "aventura"

var genreProfiles = map[string]genreProfile{
	"ciencia ficción": {
		baseKey: "C", scale: "minor", tempo: 80,
		instruments:     []string{"synth", "pad", "ambient"},
		effects:         []string{"reverb", "delay", "chorus"},
		density:         0.6,
		characteristics: "Sintetizadores espaciales, tonos electrónicos, reverb profundo",
	},
	"fantasía": {
		baseKey: "D", scale: "major", tempo: 90,
		instruments:     []string{"pad", "strings", "harp"},
		effects:         []string{"reverb", "shimmer"},
		density:         0.7,
		characteristics: "Pads orquestales, arpegios etéreos, atmósfera mágica",
	},
	"terror": {
		baseKey: "A", scale: "minor", tempo: 60,
		instruments:     []string{"drone", "dissonance", "bass"},
		effects:         []string{"reverb", "distortion", "lowpass"},
		density:         0.4,
		characteristics: "Disonancias, tonos bajos, efectos inquietantes",
	},
	"misterio": {
		baseKey: "E", scale: "minor", tempo: 70,
		instruments:     []string{"piano", "pad", "strings"},
		effects:         []string{"reverb", "delay"},
		density:         0.5,
		characteristics: "Piano minimalista, tensión sostenida, tonos menores",
	},
	"aventura": {
		baseKey: "G", scale: "major", tempo: 100,
		instruments:     []string{"strings", "brass", "percussion"},
		effects:         []string{"reverb"},
		density:         0.8,
		characteristics: "Épico, energético, melodías ascendentes",
	},
	"romance": {
		baseKey: "F", scale: "major", tempo: 75,
		instruments:     []string{"piano", "strings", "pad"},
		effects:         []string{"reverb", "chorus"},
		density:         0.6,
		characteristics: "Tonos cálidos, melodías suaves, atmósfera íntima",
	},
	"drama": {
		baseKey: "Bb", scale: "minor", tempo: 85,
		instruments:     []string{"strings", "piano", "pad"},
		effects:         []string{"reverb"},
		density:         0.65,
		characteristics: "Emotivo, dinámico, tensión dramática",
	},
	"thriller": {
		baseKey: "C", scale: "minor", tempo: 95,
		instruments:     []string{"synth", "percussion", "bass"},
		effects:         []string{"reverb", "delay"},
		density:         0.7,
		characteristics: "Percusión sutil, tensión creciente, ritmo pulsante",
	},
	"histórico": {
		baseKey: "D", scale: "major", tempo: 80,
		instruments:     []string{"strings", "harpsichord", "flute"},
		effects:         []string{"reverb"},
		density:         0.6,
		characteristics: "Instrumentos clásicos, atmósfera épica",
	},
	"distopía": {
		baseKey: "A", scale: "minor", tempo: 75,
		instruments:     []string{"synth", "drone", "industrial"},
		effects:         []string{"reverb", "distortion", "delay"},
		density:         0.5,
		characteristics: "Oscuro, industrial, tonos sintéticos fríos",
	},
}

// moodModifier — поправки к профилю по эмоциональному состоянию текста.
type moodModifier struct {
	tempoMod     int
	intensityMod float64
	filterFreq   int
}

var moodModifiers = map[string]moodModifier{
	"calmo":      {tempoMod: -10, intensityMod: -0.2, filterFreq: 800},
	"tenso":      {tempoMod: 15, intensityMod: 0.3, filterFreq: 2000},
	"épico":      {tempoMod: 20, intensityMod: 0.4, filterFreq: 3000},
	"misterioso": {tempoMod: -5, intensityMod: 0.1, filterFreq: 1200},
	"alegre":     {tempoMod: 10, intensityMod: 0.2, filterFreq: 2500},
	"triste":     {tempoMod: -15, intensityMod: -0.1, filterFreq: 600},
	"aterrador":  {tempoMod: -20, intensityMod: 0.3, filterFreq: 400},
	"romántico":  {tempoMod: -5, intensityMod: -0.1, filterFreq: 1500},
}

var moodKeywords = map[string][]string{
	"aterrador":  {"terror", "miedo", "oscuro", "sombra", "muerte", "sangre", "horror", "escalofriante"},
	"tenso":      {"tensión", "peligro", "amenaza", "nervioso", "alerta", "urgente", "crítico"},
	"épico":      {"batalla", "heroico", "grandioso", "épico", "triunfo", "victoria", "poder"},
	"misterioso": {"misterio", "secreto", "oculto", "enigma", "extraño", "desconocido"},
	"triste":     {"tristeza", "melancolía", "pérdida", "dolor", "lágrimas", "soledad"},
	"alegre":     {"alegría", "feliz", "risa", "celebración", "diversión", "esperanza"},
	"romántico":  {"amor", "romance", "corazón", "pasión", "beso", "ternura"},
	"calmo":      {"paz", "tranquilo", "sereno", "calma", "silencio", "quieto"},
}

var highIntensityWords = []string{
	"explosión", "grito", "correr", "luchar", "atacar", "huir",
	"rápido", "súbito", "repentino", "violento", "intenso",
}

var lowIntensityWords = []string{
	"lento", "suave", "tranquilo", "pausado", "silencio",
	"calma", "sereno", "quieto", "descanso",
}

// ProfileForStory строит музыкальный профиль для текущей главы истории.
func (m *MusicDirector) ProfileForStory(ctx context.Context, storyID string) (*model.MusicProfile, error) {
	story, err := m.repo.Get(ctx, storyID)
	if err != nil {
		return nil, err
	}

	chapter := story.LastChapter()
	profile := m.ProfileForChapter(chapter, story.Genre)

	m.logger.Debug("Music profile built",
		zap.String("storyID", storyID),
		zap.String("mood", profile.Mood),
		zap.Float64("intensity", profile.Intensity),
		zap.Int("tempo", profile.Tempo))
	return profile, nil
}

// ProfileForChapter анализирует атмосферу и контент главы и возвращает
// параметры синтеза. Неизвестный жанр получает профиль приключений.
func (m *MusicDirector) ProfileForChapter(chapter *model.Chapter, genre string) *model.MusicProfile {
	base, ok := genreProfiles[strings.ToLower(genre)]
	if !ok {
		base = genreProfiles[fallbackGenre]
	}

	atmosphere, content, title := "", "", "Capítulo"
	if chapter != nil {
		atmosphere = chapter.Atmosphere
		content = chapter.Content
		if chapter.Title != "" {
			title = chapter.Title
		}
	}

	mood := detectMood(atmosphere, content)
	intensity := calculateIntensity(atmosphere, content)
	mod, ok := moodModifiers[mood]
	if !ok {
		mod = moodModifier{filterFreq: 1000}
	}

	return &model.MusicProfile{
		Key:             base.baseKey,
		Scale:           base.scale,
		Tempo:           clampInt(base.tempo+mod.tempoMod, 40, 140),
		Instruments:     base.instruments,
		Effects:         base.effects,
		Density:         clampFloat(base.density+mod.intensityMod, 0.1, 1),
		FilterFrequency: mod.filterFreq,
		ReverbAmount:    reverbAmount(base, intensity),
		DelayTime:       delayTime(base, mood),
		MasterVolume:    0.3,
		DynamicRange:    intensity / 10,
		Genre:           genre,
		Mood:            mood,
		Intensity:       intensity,
		ChapterTitle:    title,
		Characteristics: base.characteristics,
	}
}

// detectMood выбирает настроение с наибольшим числом совпадений ключевых
// слов; при нулевом счёте — "calmo".
func detectMood(atmosphere, content string) string {
	text := strings.ToLower(atmosphere + " " + content)

	maxScore := 0
	detected := "calmo"
	// Фиксированный порядок обхода: при равном счёте побеждает более
	// ранний мод, результат детерминирован.
	for _, mood := range []string{"aterrador", "tenso", "épico", "misterioso", "triste", "alegre", "romántico", "calmo"} {
		score := 0
		for _, keyword := range moodKeywords[mood] {
			if strings.Contains(text, keyword) {
				score++
			}
		}
		if score > maxScore {
			maxScore = score
			detected = mood
		}
	}
	return detected
}

// calculateIntensity оценивает нарративную интенсивность по шкале 0-10.
func calculateIntensity(atmosphere, content string) float64 {
	text := strings.ToLower(atmosphere + " " + content)

	intensity := 5.0
	for _, word := range highIntensityWords {
		if strings.Contains(text, word) {
			intensity += 0.5
		}
	}
	for _, word := range lowIntensityWords {
		if strings.Contains(text, word) {
			intensity -= 0.5
		}
	}
	return clampFloat(intensity, 0, 10)
}

// reverbAmount: чем выше интенсивность, тем меньше реверберации (яснее микс).
func reverbAmount(base genreProfile, intensity float64) float64 {
	baseReverb := 0.2
	if containsString(base.effects, "reverb") {
		baseReverb = 0.4
	}
	return clampFloat(baseReverb-intensity/50, 0.1, 1)
}

func delayTime(base genreProfile, mood string) float64 {
	if !containsString(base.effects, "delay") {
		return 0
	}
	delays := map[string]float64{
		"calmo":      0.5,
		"misterioso": 0.4,
		"tenso":      0.2,
		"épico":      0.3,
		"aterrador":  0.6,
	}
	if d, ok := delays[mood]; ok {
		return d
	}
	return 0.3
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
