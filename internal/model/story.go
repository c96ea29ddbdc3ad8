package model

import "time"

// KnownGenres перечисляет жанры, для которых есть музыкальные профили и
// термины поиска сэмплов. Неизвестные жанры не отклоняются — для них
// используются generic-фолбэки.
var KnownGenres = []string{
	"terror",
	"ciencia ficción",
	"fantasía",
	"romance",
	"thriller",
	"misterio",
	"aventura",
	"drama",
	"histórico",
	"distopía",
}

// Story — активная интерактивная история со всем накопленным состоянием.
type Story struct {
	ID             string           `json:"id"`
	Genre          string           `json:"genre"`
	Theme          string           `json:"theme"`
	CurrentChapter int              `json:"currentChapter"`
	Chapters       []Chapter        `json:"chapters"`
	Decisions      []DecisionRecord `json:"decisions"`
	Characters     []Character      `json:"characters"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Chapter — один сгенерированный нарративный блок истории.
type Chapter struct {
	Title       string           `json:"title,omitempty"`
	Number      int              `json:"chapter"`
	Content     string           `json:"content"`
	Characters  []Character      `json:"characters,omitempty"`
	Decisions   []DecisionOption `json:"decisions"`
	Atmosphere  string           `json:"atmosphere,omitempty"`
	Cliffhanger string           `json:"cliffhanger,omitempty"`
}

// DecisionOption — вариант выбора, предложенный внутри главы.
type DecisionOption struct {
	ID   int    `json:"id,omitempty"`
	Text string `json:"text"`
	Hint string `json:"hint,omitempty"`
}

// DecisionRecord — исторический факт: что реально выбрал пользователь.
// Chapter указывает индекс главы, ИЗ которой было принято решение.
type DecisionRecord struct {
	Chapter   int       `json:"chapter"`
	Decision  string    `json:"decision"`
	Timestamp time.Time `json:"timestamp"`
}

// Character — персонаж истории. Идентичности за пределами имени нет:
// глава с непустым списком персонажей заменяет весь состав целиком.
type Character struct {
	Name          string `json:"name"`
	Role          string `json:"role"`
	Personality   string `json:"personality"`
	Description   string `json:"description,omitempty"`
	Motivations   string `json:"motivations,omitempty"`
	Relationships string `json:"relationships,omitempty"`
	Secrets       string `json:"secrets,omitempty"`
}

// AudioSample — ссылка на аудиоклип из внешней библиотеки (не сами данные).
type AudioSample struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	PreviewURL string   `json:"previewUrl"`
	Duration   float64  `json:"duration"`
	Tags       []string `json:"tags"`
}

// MusicProfile — адаптивные параметры синтеза фоновой музыки для главы.
type MusicProfile struct {
	Key             string   `json:"key"`
	Scale           string   `json:"scale"`
	Tempo           int      `json:"tempo"`
	Instruments     []string `json:"instruments"`
	Effects         []string `json:"effects"`
	Density         float64  `json:"density"`
	FilterFrequency int      `json:"filterFrequency"`
	ReverbAmount    float64  `json:"reverbAmount"`
	DelayTime       float64  `json:"delayTime"`
	MasterVolume    float64  `json:"masterVolume"`
	DynamicRange    float64  `json:"dynamicRange"`
	Genre           string   `json:"genre"`
	Mood            string   `json:"mood"`
	Intensity       float64  `json:"intensity"`
	ChapterTitle    string   `json:"chapterTitle"`
	Characteristics string   `json:"characteristics"`
}

// LastChapter возвращает главу, на которую указывает CurrentChapter.
func (s *Story) LastChapter() *Chapter {
	if len(s.Chapters) == 0 || s.CurrentChapter < 0 || s.CurrentChapter >= len(s.Chapters) {
		return nil
	}
	return &s.Chapters[s.CurrentChapter]
}
