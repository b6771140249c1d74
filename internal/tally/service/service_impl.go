package service

import (
	"context"
	"strings"
	"time"

	aggregatedomain "github.com/hivelabs/hivetally/internal/aggregate/domain"
	"github.com/hivelabs/hivetally/internal/config"
	exclusiondomain "github.com/hivelabs/hivetally/internal/exclusion/domain"
	ledgerdomain "github.com/hivelabs/hivetally/internal/ledger/domain"
	obscontext "github.com/hivelabs/hivetally/internal/observability/context"
	"github.com/hivelabs/hivetally/internal/observability/metrics"
	tallydomain "github.com/hivelabs/hivetally/internal/tally/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// editRetryLimit bounds how often an edit re-reads after losing the guarded
// ledger write to a concurrent edit of the same message.
const editRetryLimit = 3

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Policy        *config.TallyPolicyHolder
	LedgerRepo    ledgerdomain.Repository
	AggRepo       aggregatedomain.Repository
	ExclusionRepo exclusiondomain.Repository
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	policy        *config.TallyPolicyHolder
	ledgerRepo    ledgerdomain.Repository
	aggRepo       aggregatedomain.Repository
	exclusionRepo exclusiondomain.Repository
	metrics       *metrics.Metrics
}

func New(p Params) tallydomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("tally.service"),
		policy:        p.Policy,
		ledgerRepo:    p.LedgerRepo,
		aggRepo:       p.AggRepo,
		exclusionRepo: p.ExclusionRepo,
		metrics:       p.Metrics,
	}
}

func (s *Service) OnMessageCreated(ctx context.Context, event tallydomain.Event) error {
	if err := validate(event); err != nil {
		s.metrics.RecordEventDropped(ctx, "invalid_event")
		return err
	}

	count := s.countSymbols(event.Surfaces)
	outcome := "recorded"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.ledgerRepo.Insert(ctx, tx, newRecord(event, count))
		if err != nil {
			return err
		}
		if !inserted {
			// Duplicate delivery. The first write won; nothing to correct.
			outcome = "duplicate"
			return nil
		}
		return s.applyAggregate(ctx, tx, event, count, "created")
	})
	if err != nil {
		return err
	}

	s.metrics.RecordMessageProcessed(ctx, transportFromContext(ctx), outcome)
	s.log.Debug("message recorded",
		zap.Int64("chat_id", event.ChatID),
		zap.Int64("message_id", event.MessageID),
		zap.Int64("symbol_count", count),
		zap.String("outcome", outcome),
	)
	return nil
}

func (s *Service) OnMessageEdited(ctx context.Context, event tallydomain.Event) error {
	if err := validate(event); err != nil {
		s.metrics.RecordEventDropped(ctx, "invalid_event")
		return err
	}

	count := s.countSymbols(event.Surfaces)
	outcome := "applied"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for attempt := 0; attempt < editRetryLimit; attempt++ {
			record, err := s.ledgerRepo.Find(ctx, tx, event.ChatID, event.MessageID)
			if err != nil {
				return err
			}

			if record == nil {
				// Edit arrived before (or instead of) the creation event.
				outcome = "created"
				inserted, err := s.ledgerRepo.Insert(ctx, tx, newRecord(event, count))
				if err != nil {
					return err
				}
				if !inserted {
					outcome = "duplicate"
					return nil
				}
				return s.applyAggregate(ctx, tx, event, count, "edited")
			}

			oldCount := record.SymbolCount
			delta := count - oldCount
			record.SymbolCount = count
			record.UserID = event.UserID
			record.Surfaces = surfacesMap(event.Surfaces)

			// Guarded write: the delta is only valid against the count we
			// read. A concurrent edit to the same message invalidates it, so
			// re-read and recompute instead of applying a stale delta.
			swapped, err := s.ledgerRepo.UpdateRecord(ctx, tx, record, oldCount)
			if err != nil {
				return err
			}
			if !swapped {
				continue
			}
			if delta == 0 {
				outcome = "noop"
				return nil
			}
			return s.applyAggregate(ctx, tx, event, delta, "edited")
		}
		return tallydomain.ErrEditContention
	})
	if err != nil {
		return err
	}

	s.metrics.RecordEditApplied(ctx, transportFromContext(ctx), outcome)
	s.log.Debug("edit processed",
		zap.Int64("chat_id", event.ChatID),
		zap.Int64("message_id", event.MessageID),
		zap.Int64("symbol_count", count),
		zap.String("outcome", outcome),
	)
	return nil
}

// applyAggregate moves the running total by delta unless the sender is frozen
// or unknown. Runs inside the ledger transaction.
func (s *Service) applyAggregate(ctx context.Context, tx *gorm.DB, event tallydomain.Event, delta int64, eventType string) error {
	if event.UserID == nil {
		s.log.Debug("event without user id, ledger row only",
			zap.Int64("chat_id", event.ChatID),
			zap.Int64("message_id", event.MessageID),
		)
		return nil
	}

	frozen, err := s.exclusionRepo.IsFrozen(ctx, tx, *event.UserID)
	if err != nil {
		return err
	}
	if frozen {
		s.metrics.RecordFreezeSuppressed(ctx, eventType)
		return nil
	}

	if err := s.aggRepo.ApplyDelta(ctx, tx, event.ChatID, *event.UserID, delta, event.SenderName); err != nil {
		return err
	}
	s.metrics.RecordDeltaApplied(ctx, eventType)
	return nil
}

func (s *Service) countSymbols(surfaces tallydomain.ContentSurfaces) int64 {
	symbol := s.policy.Get().Symbol
	if symbol == "" {
		return 0
	}
	total := strings.Count(surfaces.Text, symbol) +
		strings.Count(surfaces.Caption, symbol) +
		strings.Count(surfaces.StickerEmoji, symbol)
	return int64(total)
}

func transportFromContext(ctx context.Context) string {
	if transport := obscontext.TransportFromContext(ctx); transport != "" {
		return transport
	}
	return "unknown"
}

func validate(event tallydomain.Event) error {
	if event.ChatID == 0 {
		return tallydomain.ErrInvalidChat
	}
	if event.MessageID == 0 {
		return tallydomain.ErrInvalidMessage
	}
	return nil
}

func newRecord(event tallydomain.Event, count int64) *ledgerdomain.MessageRecord {
	now := time.Now().UTC()
	return &ledgerdomain.MessageRecord{
		ChatID:      event.ChatID,
		MessageID:   event.MessageID,
		UserID:      event.UserID,
		SymbolCount: count,
		Surfaces:    surfacesMap(event.Surfaces),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func surfacesMap(surfaces tallydomain.ContentSurfaces) datatypes.JSONMap {
	return datatypes.JSONMap{
		"text":          surfaces.Text,
		"caption":       surfaces.Caption,
		"sticker_emoji": surfaces.StickerEmoji,
	}
}
