package repository

import (
	"context"
	"time"

	"github.com/edgebank/assist/internal/analytics/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Record(ctx context.Context, db *gorm.DB, rec *domain.TurnRecord) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "turn_seq"}},
			DoNothing: true,
		}).
		Create(rec).Error
}

func (r *repo) DailyMetrics(ctx context.Context, db *gorm.DB, since time.Time) ([]domain.DailyMetric, error) {
	var metrics []domain.DailyMetric
	err := db.WithContext(ctx).
		Model(&domain.TurnRecord{}).
		Select(`day,
			count(*) as turns,
			sum(case when was_answered then 1 else 0 end) as answered,
			sum(case when was_answered then 0 else 1 end) as unanswered,
			avg(latency_millis) as avg_latency_ms,
			count(distinct session_id) as unique_users`).
		Where("created_at >= ?", since).
		Group("day").
		Order("day desc").
		Scan(&metrics).Error
	return metrics, err
}

func (r *repo) MostAsked(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]domain.QueryCount, error) {
	return topQueries(ctx, db, since, limit, nil)
}

func (r *repo) Unanswered(ctx context.Context, db *gorm.DB, since time.Time, limit int) ([]domain.QueryCount, error) {
	unanswered := false
	return topQueries(ctx, db, since, limit, &unanswered)
}

func topQueries(ctx context.Context, db *gorm.DB, since time.Time, limit int, answered *bool) ([]domain.QueryCount, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.TurnRecord{}).
		Select("normalized_query as query, count(*) as count").
		Where("created_at >= ?", since).
		Where("normalized_query <> ''")
	if answered != nil {
		stmt = stmt.Where("was_answered = ?", *answered)
	}

	var counts []domain.QueryCount
	err := stmt.
		Group("normalized_query").
		Order("count desc, normalized_query").
		Limit(limit).
		Scan(&counts).Error
	return counts, err
}

func (r *repo) BySession(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.TurnRecord, error) {
	var records []domain.TurnRecord
	err := db.WithContext(ctx).
		Model(&domain.TurnRecord{}).
		Where("session_id = ?", sessionID).
		Order("turn_seq").
		Find(&records).Error
	return records, err
}
