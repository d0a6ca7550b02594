package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edgebank/assist/internal/analytics/domain"
	retrievaldomain "github.com/edgebank/assist/internal/retrieval/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("analytics.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) Record(ctx context.Context, rec domain.TurnRecord) error {
	if strings.TrimSpace(rec.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if rec.ID == 0 {
		rec.ID = s.genID.Generate()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	// Aggregates group by the normalized form, the same normalization the
	// retrieval cache keys on.
	rec.NormalizedQuery = retrievaldomain.Normalize(rec.Query)
	rec.Day = rec.CreatedAt.UTC().Format("2006-01-02")

	return s.repo.Record(ctx, s.db, &rec)
}

func (s *Service) DailyMetrics(ctx context.Context, days int) ([]domain.DailyMetric, error) {
	return s.repo.DailyMetrics(ctx, s.db, sinceDays(days))
}

func (s *Service) MostAsked(ctx context.Context, days, limit int) ([]domain.QueryCount, error) {
	return s.repo.MostAsked(ctx, s.db, sinceDays(days), normalizeLimit(limit))
}

func (s *Service) Unanswered(ctx context.Context, days, limit int) ([]domain.QueryCount, error) {
	return s.repo.Unanswered(ctx, s.db, sinceDays(days), normalizeLimit(limit))
}

func (s *Service) BySession(ctx context.Context, sessionID string) ([]domain.TurnRecord, error) {
	return s.repo.BySession(ctx, s.db, sessionID)
}

func sinceDays(days int) time.Time {
	if days <= 0 {
		days = 7
	}
	day := time.Now().UTC().AddDate(0, 0, -days)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 10
	}
	return limit
}
