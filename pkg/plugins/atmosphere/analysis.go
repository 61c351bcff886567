package atmosphere

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// WindowSize is the number of bytes analysed around the cursor.
	WindowSize = 1000
	// decayDistance is where a word stops contributing.
	decayDistance = 500.0
	// closeDistance marks the immediate context, weighted double.
	closeDistance = 50.0
	// gain scales the raw score so one strong word moves the sentiment by
	// most of the range.
	gain = 0.8
)

// Lexicon words, English and French.
var (
	positive = wordSet(
		"joy", "happy", "sun", "light", "laugh", "smile", "love", "hope",
		"bright", "warm", "day", "morning", "gold", "white",
		"joie", "heureux", "soleil", "lumière", "rire", "sourire", "amour", "espoir",
		"brillant", "chaud", "jour", "matin", "or", "blanc", "belle", "beau",
	)
	negative = wordSet(
		"death", "sad", "dark", "night", "fear", "pain", "cold", "blood",
		"shadow", "cry", "tear", "black", "grey", "kill", "die",
		"mort", "triste", "sombre", "nuit", "peur", "douleur", "froid", "sang",
		"ombre", "pleurer", "larme", "noir", "gris", "tuer", "mourir",
	)
)

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Window returns the slice of content centred on cursor, at most
// WindowSize bytes and aligned to rune boundaries, with the cursor offset
// relative to the slice.
func Window(content string, cursor int) (string, int) {
	cursor = max(0, min(cursor, len(content)))
	start := max(0, cursor-WindowSize/2)
	end := min(len(content), cursor+WindowSize/2)
	for start < len(content) && !utf8.RuneStart(content[start]) {
		start++
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}
	if start > end {
		return "", 0
	}
	return content[start:end], max(0, cursor-start)
}

// Score returns the sentiment of text in [-1, 1]. Each lexicon word
// counts with a weight that falls linearly to zero at decayDistance bytes
// from cursor and doubles within closeDistance.
func Score(text string, cursor int) float64 {
	score := 0.0
	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isWordRune(r) {
			i += size
			continue
		}
		start := i
		for i < len(text) {
			r, size = utf8.DecodeRuneInString(text[i:])
			if !isWordRune(r) {
				break
			}
			i += size
		}

		word := strings.ToLower(text[start:i])
		polarity := 0.0
		if _, ok := positive[word]; ok {
			polarity = 1
		} else if _, ok := negative[word]; ok {
			polarity = -1
		}
		if polarity == 0 {
			continue
		}

		distance := math.Abs(float64((start+i)/2 - cursor))
		weight := math.Max(0, 1-distance/decayDistance)
		if distance < closeDistance {
			weight *= 2
		}
		score += polarity * weight
	}
	return math.Max(-1, math.Min(1, score*gain))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Mood is the presentation hint derived from a sentiment: a hue in
// degrees and a saturation in [0, 1].
type Mood struct {
	Label      string  `json:"label"`
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
}

const neutralBand = 0.05

// MoodOf maps a sentiment to warm gold for positive text and cold blue
// for negative text.
func MoodOf(sentiment float64) Mood {
	switch {
	case math.Abs(sentiment) < neutralBand:
		return Mood{Label: "neutral"}
	case sentiment > 0:
		return Mood{Label: "warm", Hue: 45, Saturation: 0.6 * sentiment}
	default:
		return Mood{Label: "cold", Hue: 220, Saturation: 0.5 * -sentiment}
	}
}
