package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/edgebank/assist/internal/config"
	"github.com/edgebank/assist/internal/directory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	employeeIDPattern = regexp.MustCompile(`^[A-Za-z]{0,3}\d{3,8}$`)
	emailPattern      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	mobilePattern     = regexp.MustCompile(`^\+?[\d\s-]{6,16}$`)
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	Assistant *config.AssistantConfigHolder
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	assistant *config.AssistantConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("directory.service"),
		repo:      p.Repo,
		assistant: p.Assistant,
	}
}

// Search runs the staged lookup: exact identifier, exact email, mobile,
// exact name, then ranked substring match.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]domain.Hit, error) {
	term := domain.SearchTerm(query)
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.assistant.Get().DirectoryMaxResults
	}

	if employeeIDPattern.MatchString(term) {
		employee, err := s.repo.FindByEmployeeID(ctx, s.db, strings.ToUpper(term))
		if err != nil {
			return nil, wrap(err)
		}
		if employee != nil {
			return []domain.Hit{{Employee: *employee, Match: domain.MatchEmployeeID}}, nil
		}
	}

	if emailPattern.MatchString(term) {
		employee, err := s.repo.FindByEmail(ctx, s.db, term)
		if err != nil {
			return nil, wrap(err)
		}
		if employee != nil {
			return []domain.Hit{{Employee: *employee, Match: domain.MatchEmail}}, nil
		}
	}

	if mobilePattern.MatchString(term) {
		employee, err := s.repo.FindByMobile(ctx, s.db, term)
		if err != nil {
			return nil, wrap(err)
		}
		if employee != nil {
			return []domain.Hit{{Employee: *employee, Match: domain.MatchMobile}}, nil
		}
	}

	exact, err := s.repo.FindByExactName(ctx, s.db, term)
	if err != nil {
		return nil, wrap(err)
	}
	if len(exact) > 0 {
		hits := make([]domain.Hit, 0, len(exact))
		for _, employee := range exact {
			hits = append(hits, domain.Hit{Employee: employee, Match: domain.MatchExactName})
		}
		return clip(hits, limit), nil
	}

	ranked, err := s.repo.SearchRanked(ctx, s.db, term, limit)
	if err != nil {
		return nil, wrap(err)
	}
	hits := make([]domain.Hit, 0, len(ranked))
	for _, employee := range ranked {
		hits = append(hits, domain.Hit{Employee: employee, Match: domain.MatchRanked})
	}
	return hits, nil
}

func wrap(err error) error {
	return errors.Join(domain.ErrDirectoryUnavailable, err)
}

func clip(hits []domain.Hit, limit int) []domain.Hit {
	if len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
