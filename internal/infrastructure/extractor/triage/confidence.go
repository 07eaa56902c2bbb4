package triage

import "strings"

// Confidence score weights. Each component saturates at its cap so a
// short but dense menu page still clears the threshold:
//   - characters present      (cap 50 chars,  weight 0.15)
//   - words present           (cap 10 words,  weight 0.15)
//   - chars-per-page density  (cap 250 c/p,   weight 0.30)
//   - multi-character tokens  (ratio,         weight 0.25)
//   - whitespace structure    (ratio,         weight 0.15)
const (
	charSaturation    = 50
	wordSaturation    = 10
	densitySaturation = 250

	charWeight       = 0.15
	wordWeight       = 0.15
	densityWeight    = 0.30
	multiTokenWeight = 0.25
	whitespaceWeight = 0.15
)

func countText(text string) (chars, words int) {
	chars = len(strings.TrimSpace(text))
	words = len(strings.Fields(text))
	return chars, words
}

func scoreText(text string, pages int) float64 {
	chars, words := countText(text)
	if chars == 0 {
		return 0
	}
	if pages < 1 {
		pages = 1
	}

	score := saturate(float64(chars), charSaturation) * charWeight
	score += saturate(float64(words), wordSaturation) * wordWeight
	score += saturate(float64(chars)/float64(pages), densitySaturation) * densityWeight

	fields := strings.Fields(text)
	multi := 0
	for _, f := range fields {
		if len(f) >= 3 {
			multi++
		}
	}
	if len(fields) > 0 {
		score += float64(multi) / float64(len(fields)) * multiTokenWeight
	}

	whitespace := strings.Count(text, " ") + strings.Count(text, "\n") + strings.Count(text, "\t")
	if words > 0 {
		score += saturate(float64(whitespace), float64(words)) * whitespaceWeight
	}
	return score
}

func saturate(value, limit float64) float64 {
	if value >= limit {
		return 1
	}
	return value / limit
}
