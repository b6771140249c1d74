package service

import (
	"context"

	aggregatedomain "github.com/hivelabs/hivetally/internal/aggregate/domain"
	"github.com/hivelabs/hivetally/internal/cache"
	"github.com/hivelabs/hivetally/internal/config"
	querydomain "github.com/hivelabs/hivetally/internal/query/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxTopLimit = 100

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Policy  *config.TallyPolicyHolder
	AggRepo aggregatedomain.Repository
	Cache   cache.QueryCache `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	policy  *config.TallyPolicyHolder
	aggRepo aggregatedomain.Repository
	cache   cache.QueryCache
}

func New(p Params) querydomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("query.service"),
		policy:  p.Policy,
		aggRepo: p.AggRepo,
		cache:   p.Cache,
	}
}

func (s *Service) GetTotal(ctx context.Context, chatID int64) (int64, error) {
	if s.cache != nil {
		if total, ok := s.cache.GetChatTotal(chatID); ok {
			return total, nil
		}
	}

	total, err := s.aggRepo.SumByChat(ctx, s.db, chatID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		s.cache.SetChatTotal(chatID, total)
	}
	return total, nil
}

func (s *Service) GetTop(ctx context.Context, chatID int64, limit int) ([]aggregatedomain.Row, error) {
	if limit < 0 {
		return nil, querydomain.ErrInvalidLimit
	}
	if limit == 0 {
		limit = s.policy.Get().TopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}

	if s.cache != nil {
		if rows, ok := s.cache.GetTop(chatID, limit); ok {
			return rows, nil
		}
	}

	rows, err := s.aggRepo.TopByChat(ctx, s.db, chatID, limit)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetTop(chatID, limit, rows)
	}
	return rows, nil
}

func (s *Service) GetUserTotal(ctx context.Context, chatID, userID int64) (int64, error) {
	if s.cache != nil {
		if total, ok := s.cache.GetUserTotal(chatID, userID); ok {
			return total, nil
		}
	}

	total, err := s.aggRepo.FindTotal(ctx, s.db, chatID, userID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		s.cache.SetUserTotal(chatID, userID, total)
	}
	return total, nil
}
