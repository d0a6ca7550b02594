package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edgebank/assist/internal/cache"
	"github.com/edgebank/assist/internal/clock"
	"github.com/edgebank/assist/internal/config"
	"github.com/edgebank/assist/internal/disambig"
	"github.com/edgebank/assist/internal/feecalc/domain"
	feeruledomain "github.com/edgebank/assist/internal/feerule/domain"
	feerulerepo "github.com/edgebank/assist/internal/feerule/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ruleEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc  domain.Service
	db   *gorm.DB
	node *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&feeruledomain.FeeRule{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		Rules:     feerulerepo.Provide(),
		Disambig:  disambig.NewStore(cache.NewMemoryKV()),
		Assistant: config.NewStaticAssistantConfigHolder(config.DefaultAssistantConfig()),
		Clock:     clock.NewFakeClock(ruleEpoch.AddDate(0, 6, 0)),
	})
	return &fixture{svc: svc, db: conn, node: node}
}

func (f *fixture) create(t *testing.T, rule feeruledomain.FeeRule) feeruledomain.FeeRule {
	t.Helper()
	rule.ID = f.node.Generate()
	if rule.Status == "" {
		rule.Status = feeruledomain.StatusActive
	}
	if rule.EffectiveFrom.IsZero() {
		rule.EffectiveFrom = ruleEpoch
	}
	require.NoError(t, f.db.Create(&rule).Error)
	return rule
}

func f64(v float64) *float64 { return &v }

func TestResolveFixedAnnualFee(t *testing.T) {
	fx := newFixture(t)
	rule := fx.create(t, feeruledomain.FeeRule{
		ProductLine: feeruledomain.ProductLineCreditCard,
		ChargeType:  "ISSUANCE_ANNUAL_PRIMARY",
		CardProduct: "World RFCD",
		FeeKind:     feeruledomain.FeeKindFixed,
		Amount:      f64(11.5),
		Currency:    "USD",
		FeeBasis:    feeruledomain.BasisPerYear,
	})

	result, err := fx.svc.Resolve(context.Background(), domain.ResolveRequest{
		ProductLine: feeruledomain.ProductLineCreditCard,
		Discriminators: feeruledomain.Discriminators{
			ChargeType:  "ISSUANCE_ANNUAL_PRIMARY",
			CardProduct: "World RFCD",
		},
	})
	require.NoError(t, err)
	require.Equal(t, domain.ResultCalculated, result.Kind)
	require.Equal(t, 11.5, result.Amount)
	require.Equal(t, "USD", result.Currency)
	require.Equal(t, feeruledomain.BasisPerYear, result.Basis)
	require.Equal(t, rule.ID.String(), result.RuleID)
}

func TestResolveTextFee(t *testing.T) {
	fx := newFixture(t)
	rule := fx.create(t, feeruledomain.FeeRule{
		ProductLine: feeruledomain.ProductLineSkybanking,
		ChargeType:  "FUND_TRANSFER",
		FeeKind:     feeruledomain.FeeKindText,
		FeeText:     "BDT 575 plus 15% VAT per statement",
		Currency:    "BDT",
		FeeBasis:    feeruledomain.BasisPerTransaction,
	})

	result, err := fx.svc.Resolve(context.Background(), domain.ResolveRequest{
		ProductLine:    feeruledomain.ProductLineSkybanking,
		Discriminators: feeruledomain.Discriminators{ChargeType: "FUND_TRANSFER"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.ResultText, result.Kind)
	require.Equal(t, "BDT 575 plus 15% VAT per statement", result.Remark)
	require.Zero(t, result.Amount)
	require.Equal(t, rule.ID.String(), result.RuleID)
}

func TestResolveWhicheverHigher(t *testing.T) {
	fx := newFixture(t)
	fx.create(t, feeruledomain.FeeRule{
		ProductLine: feeruledomain.ProductLineCreditCard,
		ChargeType:  "CASH_WITHDRAWAL_EBL_ATM",
		FeeKind:     feeruledomain.FeeKindPercent,
		Percent:     f64(2.5),
		MinAmount:   f64(345),
		Currency:    "BDT",
		Condition:   feeruledomain.ConditionWhicheverHigher,
	})

	req := domain.ResolveRequest{
		ProductLine:    feeruledomain.ProductLineCreditCard,
		Discriminators: feeruledomain.Discriminators{ChargeType: "CASH_WITHDRAWAL_EBL_ATM"},
	}

	// 2.5% of 10,000 is 250, below the 345 floor.
	req.Amount = f64(10_000)
	result, err := fx.svc.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 345.0, result.Amount)

	// 2.5% of 50,000 is 1,250, above the floor.
	req.Amount = f64(50_000)
	result, err = fx.svc.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1250.0, result.Amount)
}

func TestResolvePercentRequiresAmount(t *testing.T) {
	fx := newFixture(t)
	fx.create(t, feeruledomain.FeeRule{
		ProductLine: feeruledomain.ProductLineCreditCard,
		ChargeType:  "CASH_WITHDRAWAL",
		FeeKind:     feeruledomain.FeeKindPercent,
		Percent:     f64(1.0),
		Currency:    "BDT",
	})

	_, err := fx.svc.Resolve(context.Background(), domain.ResolveRequest{
		ProductLine:    feeruledomain.ProductLineCreditCard,
		Discriminators: feeruledomain.Discriminators{ChargeType: "CASH_WITHDRAWAL"},
	})
	require.ErrorIs(t, err, domain.ErrAmountRequired)
}

func TestResolveTieredWithCaps(t *testing.T) {
	fx := newFixture(t)
	tiers, err := feeruledomain.EncodeTiers([]feeruledomain.Tier{
		{Threshold: 5_000_000, Rate: 0.575, Cap: f64(17_250), Unit: "BDT"},
		{Threshold: 999_999_999_999, Rate: 0.345, Cap: f64(23_000), Unit: "BDT"},
	})
	require.NoError(t, err)
	fx.create(t, feeruledomain.FeeRule{
		ProductLine: feeruledomain.ProductLineRetailAsset,
		ChargeType:  "PROCESSING_FEE",
		LoanProduct: "FAST_CASH_OD",
		FeeKind:     feeruledomain.FeeKindTiered,
		Tiers:       tiers,
		Currency:    "BDT",
	})

	req := domain.ResolveRequest{
		ProductLine: feeruledomain.ProductLineRetailAsset,
		Discriminators: feeruledomain.Discriminators{
			ChargeType:  "PROCESSING_FEE",
			LoanProduct: "FAST_CASH_OD",
		},
	}

	// 0.575% of 1,000,000 = 5,750, under the cap.
	req.Amount = f64(1_000_000)
	result, err := fx.svc.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 5750.0, result.Amount)

	// The boundary amount still belongs to the first tier and hits its cap.
	req.Amount = f64(5_000_000)
	result, err = fx.svc.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 17_250.0, result.Amount)

	// Above the boundary the second tier applies: 0.345% of 6,000,000 =
	// 20,700, under the 23,000 cap.
	req.Amount = f64(6_000_000)
	result, err = fx.svc.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 20_700.0, result.Amount)
}

func TestResolveFreeUptoEntitlement(t *testing.T) {
	fx := newFixture(t)
	limit := 2
	fx.create(t, feeruledomain.FeeRule{
		ProductLine: feeruledomain.ProductLinePriorityBanking,
		ChargeType:  "AIRPORT_LOUNGE_VISIT",
		FeeKind:     feeruledomain.FeeKindFreeUpto,
		FreeLimit:   &limit,
		Currency:    "BDT",
		Condition:   feeruledomain.ConditionFreeUpto,
		FeeBasis:    feeruledomain.BasisPerVisit,
		Priority:    10,
	})
	fx.create(t, feeruledomain.FeeRule{
		ProductLine: feeruledomain.ProductLinePriorityBanking,
		ChargeType:  "AIRPORT_LOUNGE_VISIT",
		FeeKind:     feeruledomain.FeeKindFixed,
		Amount:      f64(500),
		Currency:    "BDT",
		FeeBasis:    feeruledomain.BasisPerVisit,
	})

	req := domain.ResolveRequest{
		ProductLine:    feeruledomain.ProductLinePriorityBanking,
		Discriminators: feeruledomain.Discriminators{ChargeType: "AIRPORT_LOUNGE_VISIT"},
	}

	for _, visit := range []int{1, 2} {
		idx := visit
		req.UsageIndex = &idx
		result, err := fx.svc.Resolve(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, domain.ResultCalculated, result.Kind)
		require.Equal(t, 0.0, result.Amount)
	}

	third := 3
	req.UsageIndex = &third
	result, err := fx.svc.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 500.0, result.Amount)
}

func TestResolveNoteBasedNeverInventsValue(t *testing.T) {
	fx := newFixture(t)
	fx.create(t, feeruledomain.FeeRule{
		ProductLine:   feeruledomain.ProductLineCreditCard,
		ChargeType:    "LATE_PAYMENT_FEE",
		FeeKind:       feeruledomain.FeeKindNote,
		NoteReference: "Note 7",
		Currency:      "BDT",
		Condition:     feeruledomain.ConditionNoteBased,
	})

	result, err := fx.svc.Resolve(context.Background(), domain.ResolveRequest{
		ProductLine:    feeruledomain.ProductLineCreditCard,
		Discriminators: feeruledomain.Discriminators{ChargeType: "LATE_PAYMENT_FEE"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.ResultNoteResolution, result.Kind)
	require.Equal(t, "Note 7", result.NoteReference)
	require.Zero(t, result.Amount)
}

func TestResolveCurrencyMismatch(t *testing.T) {
	fx := newFixture(t)
	fx.create(t, feeruledomain.FeeRule{
		ProductLine: feeruledomain.ProductLineCreditCard,
		ChargeType:  "ISSUANCE_ANNUAL_PRIMARY",
		FeeKind:     feeruledomain.FeeKindFixed,
		Amount:      f64(11.5),
		Currency:    "USD",
	})

	result, err := fx.svc.Resolve(context.Background(), domain.ResolveRequest{
		ProductLine:    feeruledomain.ProductLineCreditCard,
		Discriminators: feeruledomain.Discriminators{ChargeType: "ISSUANCE_ANNUAL_PRIMARY"},
		Currency:       "BDT",
	})
	require.NoError(t, err)
	require.Equal(t, domain.ResultFxRequired, result.Kind)
	require.Equal(t, "USD", result.Currency)
}

func TestResolveFallbackChargeType(t *testing.T) {
	fx := newFixture(t)
	fx.create(t, feeruledomain.FeeRule{
		ProductLine:   feeruledomain.ProductLineRetailAsset,
		ChargeType:    "PROCESSING_FEE",
		LoanProduct:   "FAST_CASH_OD",
		ChargeContext: "ON_LIMIT",
		FeeKind:       feeruledomain.FeeKindPercent,
		Percent:       f64(0.575),
		Currency:      "BDT",
	})

	// The specialized charge type has no rule; its generic fallback does.
	// The charge context from the original request survives the retry.
	result, err := fx.svc.Resolve(context.Background(), domain.ResolveRequest{
		ProductLine: feeruledomain.ProductLineRetailAsset,
		Discriminators: feeruledomain.Discriminators{
			ChargeType:    "PROCESSING_FEE_FAST_CASH",
			LoanProduct:   "FAST_CASH_OD",
			ChargeContext: "ON_LIMIT",
		},
		Amount: f64(100_000),
	})
	require.NoError(t, err)
	require.Equal(t, domain.ResultCalculated, result.Kind)
	require.Equal(t, 575.0, result.Amount)
}

func TestResolveDisambiguationRoundTrip(t *testing.T) {
	fx := newFixture(t)
	onLimit := fx.create(t, feeruledomain.FeeRule{
		ProductLine:   feeruledomain.ProductLineRetailAsset,
		ChargeType:    "PROCESSING_FEE",
		LoanProduct:   "FAST_CASH_OD",
		ChargeContext: "ON_LIMIT",
		FeeKind:       feeruledomain.FeeKindPercent,
		Percent:       f64(0.575),
		Currency:      "BDT",
	})
	fx.create(t, feeruledomain.FeeRule{
		ProductLine:   feeruledomain.ProductLineRetailAsset,
		ChargeType:    "PROCESSING_FEE",
		LoanProduct:   "FAST_CASH_OD",
		ChargeContext: "ON_ENHANCED_AMOUNT",
		FeeKind:       feeruledomain.FeeKindPercent,
		Percent:       f64(0.345),
		Currency:      "BDT",
	})

	req := domain.ResolveRequest{
		ProductLine: feeruledomain.ProductLineRetailAsset,
		Discriminators: feeruledomain.Discriminators{
			ChargeType:  "PROCESSING_FEE",
			LoanProduct: "FAST_CASH_OD",
		},
		Amount: f64(1_000_000),
	}
	result, err := fx.svc.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, domain.ResultDisambiguation, result.Kind)
	require.NotEmpty(t, result.Token)
	require.Len(t, result.Options, 2)

	labels := []string{result.Options[0].Label, result.Options[1].Label}
	require.ElementsMatch(t, []string{"ON_LIMIT", "ON_ENHANCED_AMOUNT"}, labels)

	resolved, err := fx.svc.ResolveToken(context.Background(), result.Token, "ON_LIMIT", domain.ResolveRequest{
		Amount: f64(1_000_000),
	})
	require.NoError(t, err)
	require.Equal(t, domain.ResultCalculated, resolved.Kind)
	require.Equal(t, onLimit.ID.String(), resolved.RuleID)
	require.Equal(t, 5750.0, resolved.Amount)

	// The token is single-use.
	_, err = fx.svc.ResolveToken(context.Background(), result.Token, "ON_LIMIT", domain.ResolveRequest{
		Amount: f64(1_000_000),
	})
	require.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestResolveTokenUnknownChoice(t *testing.T) {
	fx := newFixture(t)
	fx.create(t, feeruledomain.FeeRule{
		ProductLine:   feeruledomain.ProductLineRetailAsset,
		ChargeType:    "PROCESSING_FEE",
		LoanProduct:   "FAST_CASH_OD",
		ChargeContext: "ON_LIMIT",
		FeeKind:       feeruledomain.FeeKindPercent,
		Percent:       f64(0.575),
		Currency:      "BDT",
	})
	fx.create(t, feeruledomain.FeeRule{
		ProductLine:   feeruledomain.ProductLineRetailAsset,
		ChargeType:    "PROCESSING_FEE",
		LoanProduct:   "FAST_CASH_OD",
		ChargeContext: "ON_ENHANCED_AMOUNT",
		FeeKind:       feeruledomain.FeeKindPercent,
		Percent:       f64(0.345),
		Currency:      "BDT",
	})

	result, err := fx.svc.Resolve(context.Background(), domain.ResolveRequest{
		ProductLine: feeruledomain.ProductLineRetailAsset,
		Discriminators: feeruledomain.Discriminators{
			ChargeType:  "PROCESSING_FEE",
			LoanProduct: "FAST_CASH_OD",
		},
	})
	require.NoError(t, err)
	require.Equal(t, domain.ResultDisambiguation, result.Kind)

	_, err = fx.svc.ResolveToken(context.Background(), result.Token, "something else", domain.ResolveRequest{})
	require.ErrorIs(t, err, domain.ErrUnknownChoice)
}

func TestResolveNotFoundAndValidation(t *testing.T) {
	fx := newFixture(t)

	result, err := fx.svc.Resolve(context.Background(), domain.ResolveRequest{
		ProductLine:    feeruledomain.ProductLineCreditCard,
		Discriminators: feeruledomain.Discriminators{ChargeType: "RENEWAL_FEE"},
	})
	require.NoError(t, err)
	require.Equal(t, domain.ResultNotFound, result.Kind)

	_, err = fx.svc.Resolve(context.Background(), domain.ResolveRequest{
		ProductLine:    "mortgage",
		Discriminators: feeruledomain.Discriminators{ChargeType: "RENEWAL_FEE"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = fx.svc.Resolve(context.Background(), domain.ResolveRequest{
		ProductLine: feeruledomain.ProductLineCreditCard,
	})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}
