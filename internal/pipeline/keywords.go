package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/civicflow/civicflow/internal/models"
)

// Keyword classification confidence never reaches the review threshold.
const (
	keywordBaseConfidence = 0.2
	keywordHitConfidence  = 0.1
	keywordMaxConfidence  = 0.5
)

// inflections may follow a keyword without breaking the match, so
// "potholes" and "leaking" count while "wireless" and "dumpling" do not.
var inflections = []string{"s", "es", "ed", "ing"}

// KeywordClassify picks the category whose keywords occur as words in
// text most often. Ties go to the category listed first by models.Categories. Text
// with no hits is classified OTHER with zero confidence.
func KeywordClassify(text string) ClassificationResult {
	lower := strings.ToLower(text)

	best := ClassificationResult{Category: models.CategoryOther, Fallback: true}
	bestHits := 0
	for _, cat := range models.Categories() {
		hits := 0
		first := ""
		for _, kw := range cat.Keywords() {
			if containsWord(lower, kw) {
				if hits == 0 {
					first = kw
				}
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			best.Category = cat
			best.Subcategory = first
		}
	}

	if bestHits > 0 {
		best.Confidence = min(keywordBaseConfidence+keywordHitConfidence*float64(bestHits), keywordMaxConfidence)
	}
	return best
}

// containsWord reports whether kw occurs in text starting at a word
// boundary and ending at one, optionally after an inflection.
func containsWord(text, kw string) bool {
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], kw)
		if i < 0 {
			return false
		}
		start := from + i
		if startsWord(text[:start]) && endsWord(text[start+len(kw):]) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return false
}

func startsWord(before string) bool {
	r, _ := utf8.DecodeLastRuneInString(before)
	return before == "" || !isWordRune(r)
}

func endsWord(after string) bool {
	if r, _ := utf8.DecodeRuneInString(after); after == "" || !isWordRune(r) {
		return true
	}
	for _, suffix := range inflections {
		if rest, ok := strings.CutPrefix(after, suffix); ok {
			if r, _ := utf8.DecodeRuneInString(rest); rest == "" || !isWordRune(r) {
				return true
			}
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
