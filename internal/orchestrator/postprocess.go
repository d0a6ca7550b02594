package orchestrator

import (
	"regexp"
	"strings"
)

// SourcesDelimiter frames the terminal sources payload in a raw text stream.
const SourcesDelimiter = "__SOURCES__"

var (
	codeFencePattern  = regexp.MustCompile("(?s)```[a-zA-Z]*\n?(.*?)```")
	inlineCodePattern = regexp.MustCompile("`([^`]*)`")
	boldPattern       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicPattern     = regexp.MustCompile(`(^|[^*])\*([^*]+)\*`)
	headingPattern    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	envelopePattern   = regexp.MustCompile(`__SOURCES__.*?__SOURCES__`)

	currencyReplacer = strings.NewReplacer(
		"৳", "BDT ",
		"Tk.", "BDT",
		"Tk ", "BDT ",
		"TK.", "BDT",
	)
)

// bankNamePattern matches the informal spellings the model produces for the
// bank's name; one pass rewrites them to the canonical form and is
// idempotent.
var bankNamePattern = regexp.MustCompile(`(?i)\bedge ?bank(,? (plc|limited|ltd\.?))?\b`)

const canonicalBankName = "EdgeBank PLC"

// Postprocess cleans the accumulated model output for persistence and
// non-streaming responses: markdown artifacts out, domain lexical rules
// applied, any model-fabricated sources envelope removed.
func Postprocess(text string) string {
	out := envelopePattern.ReplaceAllString(text, "")

	out = codeFencePattern.ReplaceAllString(out, "$1")
	out = inlineCodePattern.ReplaceAllString(out, "$1")
	out = boldPattern.ReplaceAllString(out, "$1")
	out = italicPattern.ReplaceAllString(out, "$1$2")
	out = headingPattern.ReplaceAllString(out, "")

	out = currencyReplacer.Replace(out)
	out = bankNamePattern.ReplaceAllString(out, canonicalBankName)

	return strings.TrimSpace(out)
}
