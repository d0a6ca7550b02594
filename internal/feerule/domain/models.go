package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ProductLine identifies the master schedule a rule belongs to.
type ProductLine string

const (
	ProductLineCreditCard      ProductLine = "credit-card"
	ProductLineRetailAsset     ProductLine = "retail-asset"
	ProductLineSkybanking      ProductLine = "skybanking"
	ProductLinePriorityBanking ProductLine = "priority-banking"
)

func (p ProductLine) Valid() bool {
	switch p {
	case ProductLineCreditCard, ProductLineRetailAsset, ProductLineSkybanking, ProductLinePriorityBanking:
		return true
	default:
		return false
	}
}

// FeeKind discriminates the fee value union.
type FeeKind string

const (
	FeeKindFixed    FeeKind = "fixed"
	FeeKindPercent  FeeKind = "percent"
	FeeKindTiered   FeeKind = "tiered"
	FeeKindFreeUpto FeeKind = "free_upto"
	FeeKindNote     FeeKind = "note"
	FeeKindText     FeeKind = "text"
)

// FeeBasis states what the fee is charged against.
type FeeBasis string

const (
	BasisPerTransaction FeeBasis = "PER_TRANSACTION"
	BasisPerYear        FeeBasis = "PER_YEAR"
	BasisPerVisit       FeeBasis = "PER_VISIT"
	BasisOnOutstanding  FeeBasis = "ON_OUTSTANDING"
	BasisPerRequest     FeeBasis = "PER_REQUEST"
)

// Condition modifies how the fee value is applied.
type Condition string

const (
	ConditionNone            Condition = "none"
	ConditionWhicheverHigher Condition = "whichever_higher"
	ConditionFreeUpto        Condition = "free_upto"
	ConditionNoteBased       Condition = "note_based"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Tier is one band of a tiered fee. Thresholds ascend; the lower bound is
// inclusive.
type Tier struct {
	Threshold float64  `json:"threshold"`
	Rate      float64  `json:"rate"`
	Cap       *float64 `json:"cap,omitempty"`
	Unit      string   `json:"unit"`
}

// FeeRule is one row of a product-line schedule.
type FeeRule struct {
	ID snowflake.ID `gorm:"primaryKey" json:"rule_id"`

	ProductLine ProductLine `gorm:"type:text;not null;index:idx_fee_rules_line_charge" json:"product_line"`
	ChargeType  string      `gorm:"type:text;not null;index:idx_fee_rules_line_charge" json:"charge_type"`

	// Card discriminators. Empty string is a wildcard.
	CardCategory string `gorm:"type:text;not null;default:''" json:"card_category,omitempty"`
	CardNetwork  string `gorm:"type:text;not null;default:''" json:"card_network,omitempty"`
	CardProduct  string `gorm:"type:text;not null;default:''" json:"card_product,omitempty"`

	// Retail-asset discriminators.
	LoanProduct   string `gorm:"type:text;not null;default:''" json:"loan_product,omitempty"`
	ChargeContext string `gorm:"type:text;not null;default:''" json:"charge_context,omitempty"`

	FeeKind  FeeKind  `gorm:"type:text;not null" json:"fee_kind"`
	Amount   *float64 `gorm:"type:numeric" json:"amount,omitempty"`
	Currency string   `gorm:"type:text;not null;default:'BDT'" json:"currency"`
	Percent  *float64 `gorm:"type:numeric" json:"percent,omitempty"`
	// Minimum and maximum caps for percent fees.
	MinAmount *float64 `gorm:"type:numeric" json:"min_amount,omitempty"`
	MaxAmount *float64 `gorm:"type:numeric" json:"max_amount,omitempty"`

	Tiers datatypes.JSON `gorm:"type:jsonb" json:"tiers,omitempty"`

	FreeLimit     *int   `gorm:"type:int" json:"free_limit,omitempty"`
	NoteReference string `gorm:"type:text;not null;default:''" json:"note_reference,omitempty"`
	FeeText       string `gorm:"type:text;not null;default:''" json:"fee_text,omitempty"`

	FeeBasis  FeeBasis  `gorm:"type:text;not null;default:'PER_TRANSACTION'" json:"fee_basis"`
	Condition Condition `gorm:"type:text;not null;default:'none'" json:"condition"`

	Priority int    `gorm:"not null;default:0" json:"priority"`
	Status   string `gorm:"type:text;not null;default:'active'" json:"status"`

	EffectiveFrom time.Time  `gorm:"not null" json:"effective_from"`
	EffectiveTo   *time.Time `gorm:"" json:"effective_to,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (FeeRule) TableName() string { return "fee_rules" }

// Discriminators is the tuple selecting a rule inside a product line.
// Empty fields are unconstrained in a lookup.
type Discriminators struct {
	ChargeType    string `json:"charge_type"`
	CardCategory  string `json:"card_category,omitempty"`
	CardNetwork   string `json:"card_network,omitempty"`
	CardProduct   string `json:"card_product,omitempty"`
	LoanProduct   string `json:"loan_product,omitempty"`
	ChargeContext string `json:"charge_context,omitempty"`
}

// DiscriminatorsOf extracts the stored discriminator tuple of a rule.
func DiscriminatorsOf(r FeeRule) Discriminators {
	return Discriminators{
		ChargeType:    r.ChargeType,
		CardCategory:  r.CardCategory,
		CardNetwork:   r.CardNetwork,
		CardProduct:   r.CardProduct,
		LoanProduct:   r.LoanProduct,
		ChargeContext: r.ChargeContext,
	}
}
