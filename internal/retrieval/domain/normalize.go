package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize lowercases, collapses internal whitespace and trims the query.
// It is idempotent, so analytics can normalize already-normalized text.
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Fingerprint derives the cache key for a (namespace, query) pair.
func Fingerprint(namespace Namespace, query string) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(Normalize(query)))
	return hex.EncodeToString(h.Sum(nil))
}

// financialDocPatterns matches source identifiers of published financial
// documents (annual reports, statements, quarterly disclosures).
var financialDocPatterns = []string{
	"annual-report",
	"annual_report",
	"annualreport",
	"financial-statement",
	"financial_statement",
	"financial-report",
	"financial_report",
	"quarterly-report",
	"quarterly_report",
	"balance-sheet",
	"balance_sheet",
	"disclosure",
	"price-sensitive",
	"psi-",
}

// IsFinancialDocument reports whether a source identifier belongs to the
// published financial-document set.
func IsFinancialDocument(sourceID string) bool {
	id := strings.ToLower(sourceID)
	for _, pattern := range financialDocPatterns {
		if strings.Contains(id, pattern) {
			return true
		}
	}
	return false
}
