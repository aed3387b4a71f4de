package crawler

import "regexp"

// listingPattern matches "#<number>...Club<price>" in a listing card's text
var listingPattern = regexp.MustCompile(`#(\d+).*Club([0-9.]+)`)

// ExtractIdentifier pulls the item number and price out of a listing card's text.
// ok is false when the text does not look like a card.
func ExtractIdentifier(text string) (number, price string, ok bool) {
	m := listingPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ParseListing turns raw card texts into items, dropping cards that do not
// match and repeated numbers (the first card wins).
func ParseListing(texts []string, rarityBaseURL string) []Item {
	items := make([]Item, 0, len(texts))
	seen := make(map[string]struct{}, len(texts))
	for _, text := range texts {
		number, price, ok := ExtractIdentifier(text)
		if !ok {
			continue
		}
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}
		items = append(items, NewItem(number, price, rarityBaseURL))
	}
	return items
}
