package classifier

import (
	"regexp"
	"strconv"
	"strings"
)

// Entities are the structured values pulled out of a free-text query. Empty
// fields were not mentioned.
type Entities struct {
	CardProduct  string
	CardNetwork  string
	CardCategory string

	LoanProduct   string
	ChargeType    string
	ChargeContext string

	Amount   *float64
	Currency string

	SearchTerm string
}

var cardNetworks = map[string]string{
	"mastercard":  "MASTERCARD",
	"master card": "MASTERCARD",
	"visa":        "VISA",
	"unionpay":    "UNIONPAY",
	"diners":      "DINERS",
}

var cardCategories = map[string]string{
	"debit card":   "DEBIT",
	"credit card":  "CREDIT",
	"prepaid card": "PREPAID",
	"debit":        "DEBIT",
	"credit":       "CREDIT",
	"prepaid":      "PREPAID",
}

var cardProducts = map[string]string{
	"world rfcd": "World RFCD",
	"rfcd":       "RFCD",
	"world":      "World",
	"platinum":   "Platinum",
	"signature":  "Signature",
	"infinite":   "Infinite",
	"titanium":   "Titanium",
	"gold":       "Gold",
	"classic":    "Classic",
}

var loanProducts = map[string]string{
	"fast cash":      "FAST_CASH_OD",
	"fast loan":      "FAST_LOAN",
	"home loan":      "HOME_LOAN",
	"auto loan":      "AUTO_LOAN",
	"car loan":       "AUTO_LOAN",
	"personal loan":  "PERSONAL_LOAN",
	"executive loan": "EXECUTIVE_LOAN",
}

var chargeContexts = map[string]string{
	"on limit":           "ON_LIMIT",
	"on the limit":       "ON_LIMIT",
	"enhanced amount":    "ON_ENHANCED_AMOUNT",
	"on enhanced":        "ON_ENHANCED_AMOUNT",
	"enhancement amount": "ON_ENHANCED_AMOUNT",
}

var amountPattern = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*(lakh|lac|crore|k)?\s*(bdt|taka|tk|usd|dollar|dollars)?`)

// ExtractEntities pulls card, loan and amount entities from a normalized
// query. Longer markers are checked first so "world rfcd" is not read as
// "world".
func ExtractEntities(q string) Entities {
	e := Entities{SearchTerm: q}

	e.CardProduct = matchLongest(q, cardProducts)
	e.CardNetwork = matchLongest(q, cardNetworks)
	e.CardCategory = matchLongest(q, cardCategories)
	e.LoanProduct = matchLongest(q, loanProducts)
	e.ChargeContext = matchLongest(q, chargeContexts)
	e.ChargeType = chargeTypeOf(q, e)
	e.Amount, e.Currency = extractAmount(q)

	return e
}

func chargeTypeOf(q string, e Entities) string {
	switch {
	case strings.Contains(q, "late payment"):
		return "LATE_PAYMENT_FEE"
	case strings.Contains(q, "replacement"):
		return "CARD_REPLACEMENT_FEE"
	case strings.Contains(q, "atm") && (strings.Contains(q, "withdraw") || strings.Contains(q, "cash")):
		return "CASH_WITHDRAWAL_EBL_ATM"
	case strings.Contains(q, "withdraw"):
		return "CASH_WITHDRAWAL"
	case strings.Contains(q, "processing"):
		return "PROCESSING_FEE"
	case strings.Contains(q, "annual") || strings.Contains(q, "issuance") || strings.Contains(q, "yearly"):
		return "ISSUANCE_ANNUAL_PRIMARY"
	case strings.Contains(q, "renewal"):
		return "RENEWAL_FEE"
	}
	return ""
}

func matchLongest(q string, table map[string]string) string {
	best := ""
	value := ""
	for marker, canonical := range table {
		if len(marker) > len(best) && strings.Contains(q, marker) {
			best = marker
			value = canonical
		}
	}
	return value
}

func extractAmount(q string) (*float64, string) {
	matches := amountPattern.FindStringSubmatch(q)
	if matches == nil || matches[1] == "" {
		return nil, ""
	}
	raw := strings.ReplaceAll(matches[1], ",", "")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, ""
	}

	switch matches[2] {
	case "lakh", "lac":
		value *= 100_000
	case "crore":
		value *= 10_000_000
	case "k":
		value *= 1_000
	}

	currency := ""
	switch matches[3] {
	case "bdt", "taka", "tk":
		currency = "BDT"
	case "usd", "dollar", "dollars":
		currency = "USD"
	}

	// A bare small number with no unit is more likely a count than an
	// amount.
	if matches[2] == "" && matches[3] == "" && value < 100 {
		return nil, currency
	}
	return &value, currency
}
