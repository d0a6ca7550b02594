package repository

import (
	"context"

	"github.com/edgebank/assist/internal/convmem/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Append(ctx context.Context, db *gorm.DB, turn *domain.Turn) error {
	return db.WithContext(ctx).Create(turn).Error
}

func (r *repo) Recent(ctx context.Context, db *gorm.DB, sessionID string, n int) ([]domain.Turn, error) {
	var turns []domain.Turn
	err := db.WithContext(ctx).
		Model(&domain.Turn{}).
		Where("session_id = ?", sessionID).
		Order("created_at desc, id desc").
		Limit(n).
		Find(&turns).Error
	if err != nil {
		return nil, err
	}

	// The query walks backwards from the newest turn; callers want
	// chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (r *repo) CountByRole(ctx context.Context, db *gorm.DB, sessionID string, role domain.Role) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Turn{}).
		Where("session_id = ? AND role = ?", sessionID, role).
		Count(&count).Error
	return count, err
}

func (r *repo) Clear(ctx context.Context, db *gorm.DB, sessionID string) error {
	return db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&domain.Turn{}).Error
}
