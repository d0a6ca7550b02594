package domain

import (
	"context"
	"errors"
)

// Namespace names a knowledge-base partition in the remote store.
type Namespace string

const (
	NamespaceOrgWebsite       Namespace = "org-website"
	NamespaceProducts         Namespace = "products"
	NamespacePolicies         Namespace = "policies"
	NamespaceFinancialReports Namespace = "financial-reports"
	NamespaceMilestones       Namespace = "milestones"
	NamespaceManagement       Namespace = "management"
	NamespaceUserDocs         Namespace = "user-docs"
)

// NamespaceDefault backs queries the classifier could not place.
const NamespaceDefault = NamespaceUserDocs

func (n Namespace) Valid() bool {
	switch n {
	case NamespaceOrgWebsite, NamespaceProducts, NamespacePolicies,
		NamespaceFinancialReports, NamespaceMilestones, NamespaceManagement,
		NamespaceUserDocs:
		return true
	}
	return false
}

// Passage is one retrieved chunk with its source identifier.
type Passage struct {
	Text     string  `json:"text"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// Request is a retrieval call.
type Request struct {
	Namespace Namespace
	Query     string
	// FilterFinancial drops passages sourced from published financial
	// documents. Set for organizational-overview queries.
	FilterFinancial bool
	TopK            int
}

// Result is the retrieved context for a turn.
type Result struct {
	Passages []Passage `json:"passages"`
	// Sources lists the distinct source identifiers, in passage order.
	Sources  []string `json:"sources"`
	CacheHit bool     `json:"-"`
}

type Service interface {
	Retrieve(ctx context.Context, req Request) (Result, error)
}

// Client talks to the remote knowledge store.
type Client interface {
	Fetch(ctx context.Context, namespace Namespace, query string, topK int) ([]Passage, error)
}

var ErrUpstream = errors.New("knowledge_store_unavailable")
