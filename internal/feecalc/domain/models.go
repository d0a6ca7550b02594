package domain

import (
	"context"
	"errors"
	"time"

	"github.com/edgebank/assist/internal/disambig"
	feeruledomain "github.com/edgebank/assist/internal/feerule/domain"
)

// ResultKind is the outcome class of a fee resolution.
type ResultKind string

const (
	ResultCalculated     ResultKind = "CALCULATED"
	ResultText           ResultKind = "TEXT" // verbatim schedule text in Remark
	ResultNoteResolution ResultKind = "REQUIRES_NOTE_RESOLUTION"
	ResultDisambiguation ResultKind = "NEEDS_DISAMBIGUATION"
	ResultFxRequired     ResultKind = "FX_RATE_REQUIRED"
	ResultNotFound       ResultKind = "NOT_FOUND"
)

// ResolveRequest is a typed fee query.
type ResolveRequest struct {
	ProductLine    feeruledomain.ProductLine
	Discriminators feeruledomain.Discriminators
	AsOf           time.Time
	// Amount is the transaction or loan amount percent and tiered rules
	// apply to.
	Amount *float64
	// Currency the caller wants the answer in. Rules in other currencies
	// are never converted.
	Currency string
	// UsageIndex is the 1-based count of the current use for
	// free-entitlement rules.
	UsageIndex *int
}

// FeeResult is the resolver's answer.
type FeeResult struct {
	Kind ResultKind `json:"kind"`

	Amount   float64                `json:"amount,omitempty"`
	Currency string                 `json:"currency,omitempty"`
	Basis    feeruledomain.FeeBasis `json:"basis,omitempty"`
	RuleID   string                 `json:"rule_id,omitempty"`
	// Remark carries a verbatim textual fee or a qualifier.
	Remark string `json:"remark,omitempty"`

	NoteReference string `json:"note_reference,omitempty"`

	Token   string            `json:"token,omitempty"`
	Options []disambig.Option `json:"options,omitempty"`
}

type Service interface {
	Resolve(ctx context.Context, req ResolveRequest) (FeeResult, error)
	// ResolveToken consumes a disambiguation token with the user's choice.
	// The choice matches an option label, case-insensitively.
	ResolveToken(ctx context.Context, token, choice string, req ResolveRequest) (FeeResult, error)
}

var (
	ErrInvalidRequest = errors.New("invalid_fee_request")
	ErrAmountRequired = errors.New("amount_required")
	ErrTokenExpired   = errors.New("token_expired_or_consumed")
	ErrUnknownChoice  = errors.New("unknown_choice")
)

// FallbackChargeTypes maps specialized charge types to the declared generic
// retry target. The charge context of the original query is preserved.
var FallbackChargeTypes = map[string]string{
	"PROCESSING_FEE_FAST_CASH":   "PROCESSING_FEE",
	"PROCESSING_FEE_ENHANCEMENT": "PROCESSING_FEE",
	"LOAN_PROCESSING_FEE":        "PROCESSING_FEE",
}
