package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/edgebank/assist/internal/directory/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByEmployeeID(ctx context.Context, db *gorm.DB, id string) (*domain.Employee, error) {
	return findOne(ctx, db, "employee_id = ?", id)
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Employee, error) {
	return findOne(ctx, db, "lower(email) = ?", strings.ToLower(email))
}

func (r *repo) FindByMobile(ctx context.Context, db *gorm.DB, mobile string) (*domain.Employee, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, mobile)
	if digits == "" {
		return nil, nil
	}
	return findOne(ctx, db, "replace(replace(mobile, '-', ''), ' ', '') LIKE ?", "%"+digits)
}

func (r *repo) FindByExactName(ctx context.Context, db *gorm.DB, name string) ([]domain.Employee, error) {
	var employees []domain.Employee
	err := db.WithContext(ctx).
		Model(&domain.Employee{}).
		Where("lower(name) = ?", strings.ToLower(name)).
		Order("name").
		Find(&employees).Error
	return employees, err
}

// SearchRanked orders hits by where the term matched: name prefix, then
// name substring, then department, then designation.
func (r *repo) SearchRanked(ctx context.Context, db *gorm.DB, term string, limit int) ([]domain.Employee, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	prefix := strings.ToLower(term) + "%"

	var employees []domain.Employee
	err := db.WithContext(ctx).
		Model(&domain.Employee{}).
		Where("lower(name) LIKE ? OR lower(department) LIKE ? OR lower(designation) LIKE ?", pattern, pattern, pattern).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL: "CASE WHEN lower(name) LIKE ? THEN 0 WHEN lower(name) LIKE ? THEN 1 WHEN lower(department) LIKE ? THEN 2 ELSE 3 END, name",
			Vars: []interface{}{prefix, pattern, pattern},
		}}).
		Limit(limit).
		Find(&employees).Error
	return employees, err
}

func findOne(ctx context.Context, db *gorm.DB, query string, arg interface{}) (*domain.Employee, error) {
	var employee domain.Employee
	err := db.WithContext(ctx).
		Model(&domain.Employee{}).
		Where(query, arg).
		First(&employee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &employee, nil
}
