package markdown

import (
	"maps"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	// WordsPerMinute is the reading speed used for ReadingMinutes.
	WordsPerMinute = 200
	// pauseThreshold separates active writing from idle time.
	pauseThreshold = 30 * time.Second

	wordPunctuation = ".,!?;:()[]{}\"'`*_~"
	markupOnly      = "*_~`#-+=|"
)

// WordCount is an entry of MostFrequent.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Session tracks what was written since the editor was loaded.
type Session struct {
	Start          time.Time     `json:"start"`
	Words          int           `json:"words"`
	Active         time.Duration `json:"active"`
	LastActivity   time.Time     `json:"last_activity"`
	WordsPerMinute float64       `json:"words_per_minute"`
}

func (s *Session) add(words int, now time.Time) {
	if words <= 0 {
		return
	}
	s.Words += words
	if since := now.Sub(s.LastActivity); since >= 0 && since < pauseThreshold {
		s.Active += since
	}
	s.LastActivity = now
	if minutes := s.Active.Minutes(); minutes > 0 {
		s.WordsPerMinute = float64(s.Words) / minutes
	}
}

// WritingStats holds counts computed from Markdown text. Words ignore
// Markdown markup; Frequency counts lowercase words longer than two
// characters.
type WritingStats struct {
	Words              int            `json:"words"`
	Characters         int            `json:"characters"`
	CharactersNoSpaces int            `json:"characters_no_spaces"`
	Paragraphs         int            `json:"paragraphs"`
	Sentences          int            `json:"sentences"`
	WordsPerSentence   float64        `json:"words_per_sentence"`
	CharactersPerWord  float64        `json:"characters_per_word"`
	ReadingMinutes     float64        `json:"reading_minutes"`
	Frequency          map[string]int `json:"frequency"`
	Session            Session        `json:"session"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// NewWritingStats returns empty stats with a session starting now.
func NewWritingStats() *WritingStats {
	now := time.Now()
	return &WritingStats{
		Frequency: make(map[string]int),
		Session:   Session{Start: now, LastActivity: now},
	}
}

// Analyze returns the stats of text.
func Analyze(text string) WritingStats {
	s := NewWritingStats()
	s.Update(text)
	return *s
}

// Update recomputes every count from text. Words added since the previous
// update count towards the session.
func (s *WritingStats) Update(text string) { s.update(text, time.Now()) }

func (s *WritingStats) update(text string, now time.Time) {
	previous := s.Words

	s.Words = countWords(text)
	s.Characters = utf8.RuneCountInString(text)
	s.CharactersNoSpaces = s.Characters - strings.Count(text, " ")
	s.Paragraphs = countParagraphs(text)
	s.Sentences = countSentences(text)
	s.WordsPerSentence = 0
	if s.Sentences > 0 {
		s.WordsPerSentence = float64(s.Words) / float64(s.Sentences)
	}
	s.CharactersPerWord = 0
	if s.Words > 0 {
		s.CharactersPerWord = float64(s.CharactersNoSpaces) / float64(s.Words)
	}
	s.ReadingMinutes = float64(s.Words) / WordsPerMinute
	s.Frequency = wordFrequency(text)

	s.Session.add(s.Words-previous, now)
	s.UpdatedAt = now
}

// reload recomputes the counts for freshly loaded text without crediting
// its words to the session.
func (s *WritingStats) reload(text string) {
	s.Words = countWords(text)
	s.update(text, time.Now())
}

// ResetSession starts a new session, keeping the document counts.
func (s *WritingStats) ResetSession() {
	now := time.Now()
	s.Session = Session{Start: now, LastActivity: now}
}

// MostFrequent returns up to n words by descending count. Ties are broken
// alphabetically.
func (s *WritingStats) MostFrequent(n int) []WordCount {
	out := make([]WordCount, 0, len(s.Frequency))
	for w, c := range s.Frequency {
		out = append(out, WordCount{Word: w, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Clone returns a copy that shares no memory with s.
func (s *WritingStats) Clone() WritingStats {
	c := *s
	c.Frequency = maps.Clone(s.Frequency)
	return c
}

func countWords(text string) int {
	n := 0
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, wordPunctuation)
		for _, prefix := range []string{"#", "-", "+", ">"} {
			w = strings.TrimLeft(w, prefix)
		}
		w = strings.TrimSpace(w)
		if w == "" || strings.Trim(w, markupOnly) == "" {
			continue
		}
		n++
	}
	return n
}

func countParagraphs(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	n := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return max(n, 1)
}

// countSentences counts terminal punctuation followed by whitespace or the
// end of text. Non-empty text has at least one sentence.
func countSentences(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	n := 0
	runes := []rune(text)
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
			n++
		}
	}
	return max(n, 1)
}

func wordFrequency(text string) map[string]int {
	freq := make(map[string]int)
	for _, w := range strings.Fields(text) {
		w = strings.ToLower(w)
		w = strings.Trim(w, wordPunctuation)
		w = strings.TrimSpace(strings.TrimLeft(w, "#"))
		if utf8.RuneCountInString(w) > 2 {
			freq[w]++
		}
	}
	return freq
}
