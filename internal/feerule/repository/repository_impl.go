package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edgebank/assist/internal/feerule/domain"
	pkgdb "github.com/edgebank/assist/pkg/db"
	"github.com/edgebank/assist/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Lookup(ctx context.Context, db *gorm.DB, line domain.ProductLine, disc domain.Discriminators, asOf time.Time) (domain.LookupResult, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.FeeRule{}).
		Where("status = ?", domain.StatusActive).
		Where("product_line = ?", line).
		Where("charge_type = ?", disc.ChargeType).
		Where("effective_from <= ?", asOf).
		Where("effective_to IS NULL OR effective_to > ?", asOf)

	stmt = discriminatorClause(stmt, "card_category", disc.CardCategory)
	stmt = discriminatorClause(stmt, "card_network", disc.CardNetwork)
	stmt = discriminatorClause(stmt, "card_product", disc.CardProduct)
	stmt = discriminatorClause(stmt, "loan_product", disc.LoanProduct)
	stmt = discriminatorClause(stmt, "charge_context", disc.ChargeContext)

	var rules []domain.FeeRule
	if err := stmt.Order("priority desc, id").Find(&rules).Error; err != nil {
		return domain.LookupResult{}, err
	}

	if len(rules) == 0 {
		return domain.LookupResult{Outcome: domain.LookupNotFound}, nil
	}
	all := rules

	// Higher priority wins; the result set is already ordered.
	top := rules[0].Priority
	winners := rules[:0:0]
	for _, rule := range rules {
		if rule.Priority == top {
			winners = append(winners, rule)
		}
	}

	if len(winners) == 1 {
		rule := winners[0]
		return domain.LookupResult{Outcome: domain.LookupUnique, Rule: &rule, All: all}, nil
	}
	return domain.LookupResult{Outcome: domain.LookupAmbiguous, Candidates: winners, All: all}, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.FeeRule, error) {
	var rule domain.FeeRule
	err := db.WithContext(ctx).
		Model(&domain.FeeRule{}).
		Where("id = ?", id).
		First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// discriminatorClause matches the requested value or a stored wildcard
// (empty string). An empty request leaves the column unconstrained.
func discriminatorClause(stmt *gorm.DB, column, value string) *gorm.DB {
	if value == "" {
		return stmt
	}
	return stmt.Where(column+" = ? OR "+column+" = ''", value)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rule *domain.FeeRule) error {
	if err := domain.ValidateRule(*rule); err != nil {
		return err
	}

	// Reject overlapping effective ranges for the same active tuple before
	// hitting the database constraint, so sqlite and mysql deployments keep
	// the invariant too. Priority is part of the tuple: rules that differ
	// only by priority coexist, which is how free-upto fallbacks are stored.
	if rule.Status == domain.StatusActive {
		var existing []domain.FeeRule
		err := db.WithContext(ctx).
			Model(&domain.FeeRule{}).
			Where("status = ?", domain.StatusActive).
			Where("product_line = ? AND charge_type = ?", rule.ProductLine, rule.ChargeType).
			Where("card_category = ? AND card_network = ? AND card_product = ?", rule.CardCategory, rule.CardNetwork, rule.CardProduct).
			Where("loan_product = ? AND charge_context = ? AND priority = ?", rule.LoanProduct, rule.ChargeContext, rule.Priority).
			Find(&existing).Error
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.ID == rule.ID {
				continue
			}
			if other.EffectiveFrom.Equal(rule.EffectiveFrom) {
				return domain.ErrDuplicateRule
			}
			if domain.RangesOverlap(rule.EffectiveFrom, rule.EffectiveTo, other.EffectiveFrom, other.EffectiveTo) {
				return domain.ErrOverlappingRange
			}
		}
	}

	if err := db.WithContext(ctx).Create(rule).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.ErrDuplicateRule
		}
		return err
	}
	return nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.FeeRule, error) {
	stmt := db.WithContext(ctx).Model(&domain.FeeRule{})
	if filter.ProductLine != "" {
		stmt = stmt.Where("product_line = ?", filter.ProductLine)
	}
	if filter.ChargeType != "" {
		stmt = stmt.Where("charge_type = ?", filter.ChargeType)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.AsOf != nil {
		stmt = stmt.
			Where("effective_from <= ?", *filter.AsOf).
			Where("effective_to IS NULL OR effective_to > ?", *filter.AsOf)
	}

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("id > ?", cursor.ID)
	}
	limit := page.PageSize
	if limit <= 0 {
		limit = 10
	}

	var rules []*domain.FeeRule
	err := stmt.
		Order("id").
		Limit(limit + 1).
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.FeeRule{}).Count(&count).Error
	return count, err
}
