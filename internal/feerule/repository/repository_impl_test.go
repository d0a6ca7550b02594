package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edgebank/assist/internal/feerule/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.FeeRule{}))
	return conn
}

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func baseRule(node *snowflake.Node, from time.Time) domain.FeeRule {
	amount := 500.0
	return domain.FeeRule{
		ID:            node.Generate(),
		ProductLine:   domain.ProductLineCreditCard,
		ChargeType:    "CARD_REPLACEMENT_FEE",
		FeeKind:       domain.FeeKindFixed,
		Amount:        &amount,
		Currency:      "BDT",
		FeeBasis:      domain.BasisPerRequest,
		Status:        domain.StatusActive,
		EffectiveFrom: from,
	}
}

func TestLookupWildcardDiscriminators(t *testing.T) {
	db := newTestDB(t)
	node := newNode(t)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	wildcard := baseRule(node, from)
	require.NoError(t, db.Create(&wildcard).Error)

	specific := baseRule(node, from)
	specific.CardProduct = "Platinum"
	specific.Priority = 5
	require.NoError(t, db.Create(&specific).Error)

	repo := Provide()

	// A request naming the product matches both rows; the prioritized
	// specific rule wins.
	result, err := repo.Lookup(context.Background(), db, domain.ProductLineCreditCard,
		domain.Discriminators{ChargeType: "CARD_REPLACEMENT_FEE", CardProduct: "Platinum"},
		from.AddDate(0, 6, 0))
	require.NoError(t, err)
	require.Equal(t, domain.LookupUnique, result.Outcome)
	require.Equal(t, specific.ID, result.Rule.ID)
	require.Len(t, result.All, 2)

	// A request without the product only sees the wildcard row constrained
	// by nothing.
	result, err = repo.Lookup(context.Background(), db, domain.ProductLineCreditCard,
		domain.Discriminators{ChargeType: "CARD_REPLACEMENT_FEE", CardProduct: "Gold"},
		from.AddDate(0, 6, 0))
	require.NoError(t, err)
	require.Equal(t, domain.LookupUnique, result.Outcome)
	require.Equal(t, wildcard.ID, result.Rule.ID)
}

func TestLookupHalfOpenEffectiveRange(t *testing.T) {
	db := newTestDB(t)
	node := newNode(t)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rule := baseRule(node, from)
	rule.EffectiveTo = &to
	require.NoError(t, db.Create(&rule).Error)

	repo := Provide()
	disc := domain.Discriminators{ChargeType: "CARD_REPLACEMENT_FEE"}

	for _, tc := range []struct {
		name  string
		asOf  time.Time
		found bool
	}{
		{"before range", from.Add(-time.Second), false},
		{"at lower bound", from, true},
		{"inside range", from.AddDate(0, 6, 0), true},
		{"just before upper bound", to.Add(-time.Second), true},
		{"at upper bound", to, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result, err := repo.Lookup(context.Background(), db, domain.ProductLineCreditCard, disc, tc.asOf)
			require.NoError(t, err)
			if tc.found {
				require.Equal(t, domain.LookupUnique, result.Outcome)
			} else {
				require.Equal(t, domain.LookupNotFound, result.Outcome)
			}
		})
	}
}

func TestLookupAmbiguousCandidates(t *testing.T) {
	db := newTestDB(t)
	node := newNode(t)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	percent := 0.575
	onLimit := domain.FeeRule{
		ID:            node.Generate(),
		ProductLine:   domain.ProductLineRetailAsset,
		ChargeType:    "PROCESSING_FEE",
		LoanProduct:   "FAST_CASH_OD",
		ChargeContext: "ON_LIMIT",
		FeeKind:       domain.FeeKindPercent,
		Percent:       &percent,
		Currency:      "BDT",
		Status:        domain.StatusActive,
		EffectiveFrom: from,
	}
	onEnhanced := onLimit
	onEnhanced.ID = node.Generate()
	onEnhanced.ChargeContext = "ON_ENHANCED_AMOUNT"
	require.NoError(t, db.Create(&onLimit).Error)
	require.NoError(t, db.Create(&onEnhanced).Error)

	repo := Provide()

	// No context: both top-priority rules compete.
	result, err := repo.Lookup(context.Background(), db, domain.ProductLineRetailAsset,
		domain.Discriminators{ChargeType: "PROCESSING_FEE", LoanProduct: "FAST_CASH_OD"},
		from.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Equal(t, domain.LookupAmbiguous, result.Outcome)
	require.Len(t, result.Candidates, 2)

	// Naming the context settles it.
	result, err = repo.Lookup(context.Background(), db, domain.ProductLineRetailAsset,
		domain.Discriminators{ChargeType: "PROCESSING_FEE", LoanProduct: "FAST_CASH_OD", ChargeContext: "ON_LIMIT"},
		from.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Equal(t, domain.LookupUnique, result.Outcome)
	require.Equal(t, onLimit.ID, result.Rule.ID)
}

func TestLookupSkipsInactiveAndOtherLines(t *testing.T) {
	db := newTestDB(t)
	node := newNode(t)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	inactive := baseRule(node, from)
	inactive.Status = domain.StatusInactive
	require.NoError(t, db.Create(&inactive).Error)

	otherLine := baseRule(node, from)
	otherLine.ProductLine = domain.ProductLineSkybanking
	require.NoError(t, db.Create(&otherLine).Error)

	repo := Provide()
	result, err := repo.Lookup(context.Background(), db, domain.ProductLineCreditCard,
		domain.Discriminators{ChargeType: "CARD_REPLACEMENT_FEE"}, from.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Equal(t, domain.LookupNotFound, result.Outcome)
}

func TestInsertRejectsOverlapAndDuplicate(t *testing.T) {
	db := newTestDB(t)
	node := newNode(t)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := Provide()

	to := from.AddDate(1, 0, 0)
	first := baseRule(node, from)
	first.EffectiveTo = &to
	require.NoError(t, repo.Insert(context.Background(), db, &first))

	duplicate := baseRule(node, from)
	require.ErrorIs(t, repo.Insert(context.Background(), db, &duplicate), domain.ErrDuplicateRule)

	overlapping := baseRule(node, from.AddDate(0, 3, 0))
	require.ErrorIs(t, repo.Insert(context.Background(), db, &overlapping), domain.ErrOverlappingRange)

	// The upper bound is exclusive, so a successor may start exactly there.
	successor := baseRule(node, to)
	require.NoError(t, repo.Insert(context.Background(), db, &successor))
}

func TestInsertAllowsFallbackAtLowerPriority(t *testing.T) {
	db := newTestDB(t)
	node := newNode(t)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := Provide()

	limit := 2
	primary := baseRule(node, from)
	primary.ChargeType = "AIRPORT_LOUNGE_VISIT"
	primary.FeeKind = domain.FeeKindFreeUpto
	primary.Amount = nil
	primary.FreeLimit = &limit
	primary.Condition = domain.ConditionFreeUpto
	primary.Priority = 10
	require.NoError(t, repo.Insert(context.Background(), db, &primary))

	// Same tuple and window at a lower priority is the over-limit fallback,
	// not an overlap.
	fallback := baseRule(node, from)
	fallback.ChargeType = "AIRPORT_LOUNGE_VISIT"
	require.NoError(t, repo.Insert(context.Background(), db, &fallback))

	conflicting := baseRule(node, from.AddDate(0, 2, 0))
	conflicting.ChargeType = "AIRPORT_LOUNGE_VISIT"
	require.ErrorIs(t, repo.Insert(context.Background(), db, &conflicting), domain.ErrOverlappingRange)
}

func TestFindByIDMissingIsNil(t *testing.T) {
	db := newTestDB(t)
	node := newNode(t)
	repo := Provide()

	rule, err := repo.FindByID(context.Background(), db, node.Generate())
	require.NoError(t, err)
	require.Nil(t, rule)
}
