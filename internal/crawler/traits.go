package crawler

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"sjsage522/gloomfloor/helpers"
)

// ParseTraits turns "Label: Value" lines into a trait record keyed by the
// camel-cased label. Blank lines, lines without a colon and labels with no
// letters or digits are skipped; a repeated label keeps the last value.
func ParseTraits(lines []string) map[string]string {
	traits := make(map[string]string, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		label, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key := Camelize(label)
		if key == "" {
			continue
		}
		traits[key] = strings.TrimSpace(value)
	}
	return traits
}

// Camelize converts a label such as "Face Accessory" into "faceAccessory".
// Whitespace and punctuation separate words and are dropped; only the first
// letter of each word is touched.
func Camelize(label string) string {
	words := strings.FieldsFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder
	for i, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		if i == 0 {
			b.WriteRune(unicode.ToLower(first))
		} else {
			b.WriteRune(unicode.ToUpper(first))
		}
		b.WriteString(word[size:])
	}
	return b.String()
}

// ParseRank returns the text between the first and second '#' of the rank
// element, e.g. "Rank #42" -> "42". Empty when there is no '#'.
func ParseRank(text string) string {
	rank, err := helpers.GetSplitPart(text, "#", 1)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(rank)
}
