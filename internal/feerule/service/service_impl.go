package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edgebank/assist/internal/feerule/domain"
	"github.com/edgebank/assist/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("feerule.service"),
		repo: p.Repo,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRulesRequest) (domain.ListRulesResponse, error) {
	filter := domain.ListFilter{
		ChargeType: strings.TrimSpace(req.ChargeType),
		Status:     strings.TrimSpace(req.Status),
	}

	if line := strings.TrimSpace(req.ProductLine); line != "" {
		pl := domain.ProductLine(line)
		if !pl.Valid() {
			return domain.ListRulesResponse{}, domain.ErrInvalidProductLine
		}
		filter.ProductLine = pl
	}

	if asOf := strings.TrimSpace(req.AsOf); asOf != "" {
		parsed, err := time.Parse("2006-01-02", asOf)
		if err != nil {
			return domain.ListRulesResponse{}, fmt.Errorf("%w: invalid as_of date", domain.ErrInvalidRule)
		}
		filter.AsOf = &parsed
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	rules, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListRulesResponse{}, err
	}

	pageInfo, rules := pagination.BuildCursorPageInfo(rules, pageSize, func(r *domain.FeeRule) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: r.ID.String()})
		return token
	})

	return domain.ListRulesResponse{
		PageInfo: *pageInfo,
		Rules:    rules,
	}, nil
}
