package domain

import "strings"

// leadingPhrases are stripped from the front of a directory query, longest
// first, before searching.
var leadingPhrases = []string{
	"contact information for",
	"contact details for",
	"what is the",
	"what's the",
	"phone number of",
	"phone number for",
	"contact info for",
	"mobile number of",
	"email address of",
	"extension of",
	"give me the",
	"tell me the",
	"can you",
	"give me",
	"i need",
	"please",
	"who is",
	"find me",
	"look up",
	"lookup",
	"search for",
	"search",
	"contact",
	"find",
	"call",
	"the",
}

// SearchTerm strips documented leading phrases and trailing noise words from
// a raw directory query.
func SearchTerm(query string) string {
	term := strings.Join(strings.Fields(strings.TrimSpace(query)), " ")
	lower := strings.ToLower(term)

	for changed := true; changed; {
		changed = false
		for _, phrase := range leadingPhrases {
			if strings.HasPrefix(lower, phrase+" ") {
				term = strings.TrimSpace(term[len(phrase):])
				lower = strings.ToLower(term)
				changed = true
			}
		}
	}

	for _, suffix := range []string{"phone number", "mobile number", "contact number", "email address", "extension", "number"} {
		if strings.HasSuffix(lower, " "+suffix) {
			term = strings.TrimSpace(term[:len(term)-len(suffix)])
			lower = strings.ToLower(term)
		}
	}

	return term
}
