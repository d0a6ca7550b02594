package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/edgebank/assist/internal/clock"
	"github.com/edgebank/assist/internal/convmem/domain"
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
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("convmem.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Append(ctx context.Context, sessionID string, role domain.Role, content string) (*domain.Turn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	turn := &domain.Turn{
		ID:        s.genID.Generate(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Append(ctx, s.db, turn); err != nil {
		return nil, err
	}
	return turn, nil
}

func (s *Service) Recent(ctx context.Context, sessionID string, n int) ([]domain.Turn, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.repo.Recent(ctx, s.db, sessionID, n)
}

func (s *Service) UserTurnCount(ctx context.Context, sessionID string) (int64, error) {
	return s.repo.CountByRole(ctx, s.db, sessionID, domain.RoleUser)
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.repo.Clear(ctx, s.db, sessionID)
}
