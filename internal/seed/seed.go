package seed

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	directorydomain "github.com/edgebank/assist/internal/directory/domain"
	feeruledomain "github.com/edgebank/assist/internal/feerule/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EnsureDemoData loads a small schedule of charges and an employee roster
// into an empty database. Non-empty tables are left untouched so redeploys
// never clobber operator edits.
func EnsureDemoData(conn *gorm.DB, node *snowflake.Node, log *zap.Logger) error {
	seededRules, err := ensureFeeRules(conn, node)
	if err != nil {
		return err
	}
	seededEmployees, err := ensureEmployees(conn, node)
	if err != nil {
		return err
	}
	if seededRules || seededEmployees {
		log.Info("demo data loaded",
			zap.Bool("fee_rules", seededRules),
			zap.Bool("employees", seededEmployees),
		)
	}
	return nil
}

func ensureFeeRules(conn *gorm.DB, node *snowflake.Node) (bool, error) {
	var count int64
	if err := conn.Model(&feeruledomain.FeeRule{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	from := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	rules := demoFeeRules(node, from)
	if err := conn.Create(&rules).Error; err != nil {
		return false, err
	}
	return true, nil
}

func demoFeeRules(node *snowflake.Node, from time.Time) []feeruledomain.FeeRule {
	return []feeruledomain.FeeRule{
		{
			ID:            node.Generate(),
			ProductLine:   feeruledomain.ProductLineCreditCard,
			ChargeType:    "ISSUANCE_ANNUAL_PRIMARY",
			CardCategory:  "DEBIT",
			CardNetwork:   "MASTERCARD",
			CardProduct:   "World RFCD",
			FeeKind:       feeruledomain.FeeKindFixed,
			Amount:        f(11.5),
			Currency:      "USD",
			FeeBasis:      feeruledomain.BasisPerYear,
			Priority:      10,
			EffectiveFrom: from,
		},
		{
			ID:            node.Generate(),
			ProductLine:   feeruledomain.ProductLineCreditCard,
			ChargeType:    "CASH_WITHDRAWAL_EBL_ATM",
			FeeKind:       feeruledomain.FeeKindPercent,
			Percent:       f(2.5),
			MinAmount:     f(345),
			Currency:      "BDT",
			Condition:     feeruledomain.ConditionWhicheverHigher,
			FeeBasis:      feeruledomain.BasisPerTransaction,
			EffectiveFrom: from,
		},
		{
			ID:            node.Generate(),
			ProductLine:   feeruledomain.ProductLineRetailAsset,
			ChargeType:    "PROCESSING_FEE",
			LoanProduct:   "FAST_CASH_OD",
			ChargeContext: "ON_LIMIT",
			FeeKind:       feeruledomain.FeeKindTiered,
			Currency:      "BDT",
			Tiers: tiersJSON([]feeruledomain.Tier{
				{Threshold: 5_000_000, Rate: 0.575, Cap: f(17_250), Unit: "BDT"},
				{Threshold: 999_999_999_999, Rate: 0.345, Cap: f(23_000), Unit: "BDT"},
			}),
			FeeBasis:      feeruledomain.BasisPerRequest,
			EffectiveFrom: from,
		},
		{
			ID:            node.Generate(),
			ProductLine:   feeruledomain.ProductLineRetailAsset,
			ChargeType:    "PROCESSING_FEE",
			LoanProduct:   "FAST_CASH_OD",
			ChargeContext: "ON_ENHANCED_AMOUNT",
			FeeKind:       feeruledomain.FeeKindPercent,
			Percent:       f(0.575),
			MaxAmount:     f(17_250),
			Currency:      "BDT",
			FeeBasis:      feeruledomain.BasisPerRequest,
			EffectiveFrom: from,
		},
		{
			ID:            node.Generate(),
			ProductLine:   feeruledomain.ProductLinePriorityBanking,
			ChargeType:    "AIRPORT_LOUNGE_VISIT",
			FeeKind:       feeruledomain.FeeKindFreeUpto,
			FreeLimit:     n(2),
			Currency:      "BDT",
			Condition:     feeruledomain.ConditionFreeUpto,
			FeeBasis:      feeruledomain.BasisPerVisit,
			Priority:      10,
			EffectiveFrom: from,
		},
		{
			ID:            node.Generate(),
			ProductLine:   feeruledomain.ProductLinePriorityBanking,
			ChargeType:    "AIRPORT_LOUNGE_VISIT",
			FeeKind:       feeruledomain.FeeKindFixed,
			Amount:        f(500),
			Currency:      "BDT",
			FeeBasis:      feeruledomain.BasisPerVisit,
			EffectiveFrom: from,
		},
		{
			ID:            node.Generate(),
			ProductLine:   feeruledomain.ProductLineCreditCard,
			ChargeType:    "LATE_PAYMENT_FEE",
			FeeKind:       feeruledomain.FeeKindNote,
			NoteReference: "Note 7",
			Currency:      "BDT",
			Condition:     feeruledomain.ConditionNoteBased,
			FeeBasis:      feeruledomain.BasisPerTransaction,
			EffectiveFrom: from,
		},
		{
			ID:            node.Generate(),
			ProductLine:   feeruledomain.ProductLineSkybanking,
			ChargeType:    "FUND_TRANSFER",
			FeeKind:       feeruledomain.FeeKindText,
			FeeText:       "Free",
			Currency:      "BDT",
			FeeBasis:      feeruledomain.BasisPerTransaction,
			EffectiveFrom: from,
		},
	}
}

func ensureEmployees(conn *gorm.DB, node *snowflake.Node) (bool, error) {
	var count int64
	if err := conn.Model(&directorydomain.Employee{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	employees := []directorydomain.Employee{
		{
			ID:          node.Generate(),
			EmployeeID:  "EB1024",
			Name:        "Rajib Bhowmik",
			Designation: "Senior Officer",
			Department:  "Card Operations",
			Branch:      "Head Office",
			Email:       "rajib.bhowmik@edgebank.example",
			Mobile:      "+880 1711-000024",
			Extension:   "2410",
		},
		{
			ID:          node.Generate(),
			EmployeeID:  "EB2048",
			Name:        "Farhana Akter",
			Designation: "Relationship Manager",
			Department:  "Priority Banking",
			Branch:      "Gulshan",
			Email:       "farhana.akter@edgebank.example",
			Mobile:      "+880 1811-000048",
			Extension:   "3120",
		},
		{
			ID:          node.Generate(),
			EmployeeID:  "EB3072",
			Name:        "Tanvir Hasan",
			Designation: "Assistant Vice President",
			Department:  "Retail Assets",
			Branch:      "Motijheel",
			Email:       "tanvir.hasan@edgebank.example",
			Mobile:      "+880 1911-000072",
			Extension:   "1870",
		},
		{
			ID:          node.Generate(),
			EmployeeID:  "EB4096",
			Name:        "Nusrat Jahan",
			Designation: "Officer",
			Department:  "Card Operations",
			Branch:      "Chattogram",
			Email:       "nusrat.jahan@edgebank.example",
			Mobile:      "+880 1611-000096",
			Extension:   "2455",
		},
	}
	if err := conn.Create(&employees).Error; err != nil {
		return false, err
	}
	return true, nil
}

func tiersJSON(tiers []feeruledomain.Tier) datatypes.JSON {
	raw, _ := json.Marshal(tiers)
	return datatypes.JSON(raw)
}

func f(v float64) *float64 { return &v }
func n(v int) *int         { return &v }
