package classifier

import (
	"strings"

	"github.com/edgebank/assist/internal/config"
	retrievaldomain "github.com/edgebank/assist/internal/retrieval/domain"
)

// Route is the routing decision class for a user turn.
type Route string

const (
	RouteSmallTalk Route = "small_talk"
	RouteDirectory Route = "directory"
	RouteCardFees  Route = "card_fees"
	RouteRetrieval Route = "retrieval"
	RouteUnknown   Route = "unknown"
)

// Decision is the classifier output: a route plus extracted entities. For
// retrieval routes it also carries the namespace and filter flags.
type Decision struct {
	Route           Route
	Namespace       retrievaldomain.Namespace
	FilterFinancial bool
	Entities        Entities
}

// Classifier is a deterministic, ordered pattern matcher. Stages run in a
// fixed priority; the first matching stage wins. Classification never fails:
// an unmatched query falls through to the default retrieval namespace.
type Classifier struct {
	assistant *config.AssistantConfigHolder
	stages    []stage
}

type stage struct {
	enabled func(config.ClassifierFlags) bool
	match   func(normalized string) (Decision, bool)
}

func New(assistant *config.AssistantConfigHolder) *Classifier {
	c := &Classifier{assistant: assistant}
	c.stages = []stage{
		{enabled: func(f config.ClassifierFlags) bool { return f.SmallTalk }, match: matchSmallTalk},
		{enabled: func(f config.ClassifierFlags) bool { return f.Directory }, match: matchDirectory},
		{enabled: func(f config.ClassifierFlags) bool { return f.CardFees }, match: matchFees},
		{enabled: func(f config.ClassifierFlags) bool { return f.Retrieval }, match: matchRetrieval},
	}
	return c
}

func (c *Classifier) Classify(query string) Decision {
	normalized := retrievaldomain.Normalize(query)
	flags := c.assistant.Get().Classifier

	for _, s := range c.stages {
		if !s.enabled(flags) {
			continue
		}
		if decision, ok := s.match(normalized); ok {
			return decision
		}
	}

	return Decision{
		Route:     RouteUnknown,
		Namespace: retrievaldomain.NamespaceDefault,
		Entities:  Entities{SearchTerm: strings.TrimSpace(query)},
	}
}

var smallTalkExact = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "yo": {}, "thanks": {}, "thank you": {},
	"bye": {}, "goodbye": {}, "ok": {}, "okay": {},
}

var smallTalkPrefixes = []string{
	"good morning", "good afternoon", "good evening", "good night",
	"how are you", "what time is it", "what is the time",
	"what is today", "what day is it", "what is the date",
}

func matchSmallTalk(q string) (Decision, bool) {
	if _, ok := smallTalkExact[q]; ok {
		return Decision{Route: RouteSmallTalk}, true
	}
	for _, prefix := range smallTalkPrefixes {
		if q == prefix || strings.HasPrefix(q, prefix+" ") || strings.HasPrefix(q, prefix+"?") {
			return Decision{Route: RouteSmallTalk}, true
		}
	}
	return Decision{}, false
}

var directoryMarkers = []string{
	"phone number", "mobile number", "contact number", "contact info",
	"contact details", "email address", "email of", "extension of",
	"employee id", "reach ", "find ", "who is ", "look up ", "lookup ",
}

// directoryExclusions keep role and org questions out of the directory and
// in the management knowledge base.
var directoryExclusions = []string{
	"chairman", "managing director", "board of directors", "ceo",
	"the bank", "company",
}

func matchDirectory(q string) (Decision, bool) {
	for _, exclusion := range directoryExclusions {
		if strings.Contains(q, exclusion) {
			return Decision{}, false
		}
	}
	for _, marker := range directoryMarkers {
		if strings.Contains(q, marker) {
			return Decision{
				Route:    RouteDirectory,
				Entities: Entities{SearchTerm: q},
			}, true
		}
	}
	return Decision{}, false
}

var feeKeywords = []string{
	"fee", "fees", "charge", "charges", "cost", "costs", "tariff",
	"annual fee", "issuance", "renewal fee", "late payment", "interest rate",
	"processing fee", "withdrawal charge",
}

func matchFees(q string) (Decision, bool) {
	entities := ExtractEntities(q)
	hasSubject := entities.CardProduct != "" || entities.CardNetwork != "" ||
		entities.CardCategory != "" || entities.LoanProduct != "" ||
		strings.Contains(q, "card")
	if !hasSubject {
		return Decision{}, false
	}
	for _, keyword := range feeKeywords {
		if strings.Contains(q, keyword) {
			return Decision{Route: RouteCardFees, Entities: entities}, true
		}
	}
	return Decision{}, false
}

type retrievalRule struct {
	markers         []string
	namespace       retrievaldomain.Namespace
	filterFinancial bool
}

// retrievalRules run in order. The overview rule precedes the milestones
// rule on purpose: "about the bank" must not be swallowed by history
// patterns.
var retrievalRules = []retrievalRule{
	{
		markers:         []string{"about the bank", "about edgebank", "bank overview", "overview of", "tell me about the bank", "what does the bank do"},
		namespace:       retrievaldomain.NamespaceOrgWebsite,
		filterFinancial: true,
	},
	{
		markers:   []string{"annual report", "financial statement", "financial report", "quarterly report", "balance sheet", "disclosure"},
		namespace: retrievaldomain.NamespaceFinancialReports,
	},
	{
		markers:   []string{"history", "milestone", "founded", "established", "award", "anniversary"},
		namespace: retrievaldomain.NamespaceMilestones,
	},
	{
		markers:   []string{"chairman", "managing director", "board of directors", "ceo", "management team", "leadership"},
		namespace: retrievaldomain.NamespaceManagement,
	},
	{
		markers:   []string{"policy", "policies", "terms and conditions", "kyc", "schedule of charges", "regulation"},
		namespace: retrievaldomain.NamespacePolicies,
	},
	{
		markers:   []string{"account", "deposit", "loan", "dps", "savings", "current account", "fd ", "fixed deposit", "card", "banking service"},
		namespace: retrievaldomain.NamespaceProducts,
	},
	{
		markers:   []string{"how do i", "how to", "how can i", "app", "login", "register", "activate"},
		namespace: retrievaldomain.NamespaceUserDocs,
	},
}

func matchRetrieval(q string) (Decision, bool) {
	for _, rule := range retrievalRules {
		for _, marker := range rule.markers {
			if strings.Contains(q, marker) {
				return Decision{
					Route:           RouteRetrieval,
					Namespace:       rule.namespace,
					FilterFinancial: rule.filterFinancial,
					Entities:        Entities{SearchTerm: q},
				}, true
			}
		}
	}
	return Decision{}, false
}
