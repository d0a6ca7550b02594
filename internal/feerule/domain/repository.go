package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edgebank/assist/pkg/db/pagination"
	"gorm.io/gorm"
)

// LookupOutcome classifies a rule lookup.
type LookupOutcome string

const (
	LookupUnique    LookupOutcome = "unique"
	LookupAmbiguous LookupOutcome = "ambiguous"
	LookupNotFound  LookupOutcome = "not_found"
)

// LookupResult carries the single applicable rule, or the ambiguous
// candidate set.
type LookupResult struct {
	Outcome    LookupOutcome
	Rule       *FeeRule
	Candidates []FeeRule
	// All holds every in-range match ordered by descending priority,
	// including lower-priority rules a free-entitlement fallback may need.
	All []FeeRule
}

// ListFilter narrows the admin rule listing.
type ListFilter struct {
	ProductLine ProductLine
	ChargeType  string
	Status      string
	AsOf        *time.Time
}

type Repository interface {
	// Lookup returns active rules whose effective range contains asOf and
	// whose stored discriminators equal the query or are wildcards. Higher
	// priority wins; a surviving set larger than one is Ambiguous.
	Lookup(ctx context.Context, db *gorm.DB, line ProductLine, disc Discriminators, asOf time.Time) (LookupResult, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FeeRule, error)
	Insert(ctx context.Context, db *gorm.DB, rule *FeeRule) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*FeeRule, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
}

var (
	ErrInvalidProductLine = errors.New("invalid_product_line")
	ErrInvalidRule        = errors.New("invalid_rule")
	ErrOverlappingRange   = errors.New("overlapping_effective_range")
	ErrDuplicateRule      = errors.New("duplicate_rule")
)
