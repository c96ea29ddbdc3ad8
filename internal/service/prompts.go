package service

import (
	"fmt"
	"strings"

	"narrative-server/internal/model"
)

// Промпты — на испанском, как и сами истории: контракт формата JSON
// прописан прямо в системной инструкции, модель обязана вернуть ровно
// 3 варианта решения.

const createStorySystemPrompt = `Eres un maestro narrador de historias interactivas. Tu tarea es crear historias inmersivas, emocionantes y con múltiples ramificaciones basadas en las decisiones del usuario.

Características importantes:
- Crea personajes memorables con personalidades únicas
- Desarrolla tramas complejas con conflictos interesantes
- Presenta decisiones significativas que afecten el curso de la historia
- Mantén la coherencia narrativa
- Crea atmósferas vívidas y descripciones detalladas
- Responde siempre en español

IMPORTANTE: Responde ÚNICAMENTE con un objeto JSON válido. No incluyas texto adicional, explicaciones, ni formateo markdown. Solo el JSON puro.

Formato de respuesta requerido (JSON válido):
{
  "title": "Título de la historia",
  "chapter": 1,
  "content": "Contenido narrativo detallado (mínimo 300 palabras)",
  "characters": [
    {
      "name": "Nombre",
      "role": "Protagonista/Antagonista/Secundario",
      "personality": "Descripción de personalidad",
      "description": "Descripción física y de fondo"
    }
  ],
  "decisions": [
    {
      "id": 1,
      "text": "Texto de la decisión",
      "hint": "Pista sobre las consecuencias"
    }
  ],
  "atmosphere": "Descripción del ambiente y tono",
  "cliffhanger": "Final intrigante que motive a continuar"
}`

const generateCharacterSystemPrompt = `Eres un creador de personajes para historias interactivas. Crea personajes memorables, complejos y que encajen perfectamente en la narrativa existente.

IMPORTANTE: Responde ÚNICAMENTE con un objeto JSON válido, sin texto adicional.

Formato: JSON con:
{
  "name": "Nombre del personaje",
  "role": "Protagonista/Antagonista/Secundario/Aliado",
  "personality": "Descripción detallada de la personalidad",
  "description": "Descripción física y de fondo",
  "motivations": "Qué motiva a este personaje",
  "relationships": "Relaciones con otros personajes",
  "secrets": "Secretos o información oculta (opcional)"
}`

const (
	// Сколько символов контента каждой главы попадает в контекст продолжения.
	chapterSummaryLength = 200
	// Сколько последних решений попадает в контекст.
	recentDecisionCount = 3
)

// StoryPreferences — необязательные пользовательские настройки стиля.
type StoryPreferences struct {
	Style string `json:"style,omitempty"`
	Tone  string `json:"tone,omitempty"`
}

func buildCreateStoryUserPrompt(genre, theme, initialPrompt string, prefs StoryPreferences) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Crea una historia interactiva con las siguientes especificaciones:\n\n")
	fmt.Fprintf(&b, "Género: %s\n", genre)
	fmt.Fprintf(&b, "Tema: %s\n", theme)
	if initialPrompt != "" {
		fmt.Fprintf(&b, "Prompt inicial: %s\n", initialPrompt)
	}
	if prefs.Style != "" {
		fmt.Fprintf(&b, "Estilo: %s\n", prefs.Style)
	}
	if prefs.Tone != "" {
		fmt.Fprintf(&b, "Tono: %s\n", prefs.Tone)
	}
	b.WriteString("\nCrea el primer capítulo de esta historia. Debe ser atractivo, inmersivo y presentar OBLIGATORIAMENTE 3 decisiones importantes y distintas que el usuario pueda tomar. Los personajes deben ser interesantes y la trama debe tener potencial para múltiples ramificaciones.\n\n")
	b.WriteString("RECUERDA: Responde SOLO con el objeto JSON, sin texto adicional ni explicaciones.")
	return b.String()
}

func buildContinueStorySystemPrompt(nextChapterNumber int) string {
	return fmt.Sprintf(`Eres un maestro narrador que continúa historias interactivas. Debes:
- Mantener la coherencia con los capítulos anteriores
- Desarrollar las consecuencias de las decisiones del usuario
- Crear nuevas situaciones interesantes
- Presentar nuevas decisiones significativas
- Mantener el tono y estilo de la historia original
- Responde siempre en español

IMPORTANTE: Responde ÚNICAMENTE con un objeto JSON válido. No incluyas texto adicional, explicaciones, ni formateo markdown. Solo el JSON puro.

Formato de respuesta requerido (JSON válido):
{
  "title": "Título opcional del capítulo",
  "chapter": %d,
  "content": "Contenido narrativo detallado del capítulo (OBLIGATORIO, mínimo 300 palabras). Este campo ES OBLIGATORIO y debe contener el texto completo del capítulo.",
  "characters": [
    {
      "name": "Nombre",
      "role": "Protagonista/Antagonista/Secundario",
      "personality": "Descripción de personalidad",
      "description": "Descripción física y de fondo"
    }
  ],
  "decisions": [
    {
      "id": 1,
      "text": "Texto de la decisión",
      "hint": "Pista sobre las consecuencias"
    }
  ],
  "atmosphere": "Descripción del ambiente y tono (opcional)",
  "cliffhanger": "Final intrigante que motive a continuar (opcional)"
}

RECUERDA: El campo "content" es OBLIGATORIO y debe contener el texto narrativo completo del capítulo.`, nextChapterNumber)
}

func buildContinueStoryUserPrompt(story *model.Story, userDecision, userAction string) string {
	// Контекст: усечённые главы + состав персонажей + последние решения.
	summaries := make([]string, 0, len(story.Chapters))
	for i, ch := range story.Chapters {
		content := ch.Content
		if content == "" {
			content = "Sin contenido"
		} else if runes := []rune(content); len(runes) > chapterSummaryLength {
			content = string(runes[:chapterSummaryLength])
		}
		summaries = append(summaries, fmt.Sprintf("Capítulo %d: %s...", i+1, content))
	}

	roster := make([]string, 0, len(story.Characters))
	for _, c := range story.Characters {
		roster = append(roster, fmt.Sprintf("%s (%s): %s", c.Name, c.Role, c.Personality))
	}

	decisions := story.Decisions
	if len(decisions) > recentDecisionCount {
		decisions = decisions[len(decisions)-recentDecisionCount:]
	}
	recent := make([]string, 0, len(decisions))
	for _, d := range decisions {
		recent = append(recent, fmt.Sprintf("Decisión en capítulo %d: %s", d.Chapter, d.Decision))
	}

	var b strings.Builder
	b.WriteString("Continúa esta historia interactiva:\n\n")
	fmt.Fprintf(&b, "GÉNERO: %s\nTEMA: %s\n\n", story.Genre, story.Theme)
	fmt.Fprintf(&b, "CONTEXTO DE LA HISTORIA:\n%s\n\n", strings.Join(summaries, "\n\n"))
	fmt.Fprintf(&b, "PERSONAJES:\n%s\n\n", strings.Join(roster, "\n"))
	fmt.Fprintf(&b, "DECISIONES RECIENTES:\n%s\n\n", strings.Join(recent, "\n"))
	fmt.Fprintf(&b, "DECISIÓN ACTUAL DEL USUARIO: %s\n", userDecision)
	if userAction != "" {
		fmt.Fprintf(&b, "ACCIÓN ADICIONAL: %s\n", userAction)
	}
	fmt.Fprintf(&b, `
Genera el siguiente capítulo (capítulo %d) que:
1. Desarrolla las consecuencias de la decisión del usuario
2. Mantiene la coherencia con la historia anterior
3. Introduce nuevos elementos interesantes
4. OBLIGATORIO: Presenta SIEMPRE 3 decisiones claras y distintas que permitan avanzar la trama
5. Termina con un cliffhanger que motive a continuar
6. Actualiza o introduce nuevos personajes si es necesario`, len(story.Chapters)+1)
	return b.String()
}

func buildGenerateCharacterUserPrompt(story *model.Story, characterPrompt string) string {
	names := make([]string, 0, len(story.Characters))
	for _, c := range story.Characters {
		names = append(names, c.Name)
	}
	existing := strings.Join(names, ", ")
	if existing == "" {
		existing = "Ninguno"
	}

	return fmt.Sprintf(`Crea un nuevo personaje para esta historia:

Género: %s, Tema: %s

Personajes existentes: %s

Solicitud: %s

El personaje debe ser coherente con el género y tema, y tener potencial para crear situaciones interesantes en la narrativa.`,
		story.Genre, story.Theme, existing, characterPrompt)
}
