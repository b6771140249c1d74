// Package telegram runs the long-polling transport that feeds chat events
// into the tally engine.
package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hivelabs/hivetally/internal/config"
	exclusiondomain "github.com/hivelabs/hivetally/internal/exclusion/domain"
	obscontext "github.com/hivelabs/hivetally/internal/observability/context"
	"github.com/hivelabs/hivetally/internal/observability/metrics"
	querydomain "github.com/hivelabs/hivetally/internal/query/domain"
	tallydomain "github.com/hivelabs/hivetally/internal/tally/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const updateTimeoutSeconds = 30

type Params struct {
	fx.In

	Config       config.Config
	Policy       *config.TallyPolicyHolder
	Log          *zap.Logger
	TallySvc     tallydomain.Service
	QuerySvc     querydomain.Service
	ExclusionSvc exclusiondomain.Service
	Metrics      *metrics.Metrics `optional:"true"`
}

type Bot struct {
	api          *tgbotapi.BotAPI
	cfg          config.Config
	policy       *config.TallyPolicyHolder
	log          *zap.Logger
	tallySvc     tallydomain.Service
	querySvc     querydomain.Service
	exclusionSvc exclusiondomain.Service
	metrics      *metrics.Metrics

	done chan struct{}
}

// Register starts the polling loop when a bot token is configured. Without a
// token the transport stays off and the HTTP surface is the only ingress.
func Register(lc fx.Lifecycle, p Params) error {
	if !p.Config.TelegramEnabled() {
		p.Log.Info("telegram transport disabled, no bot token configured")
		return nil
	}

	api, err := tgbotapi.NewBotAPI(p.Config.TelegramToken)
	if err != nil {
		return err
	}

	bot := &Bot{
		api:          api,
		cfg:          p.Config,
		policy:       p.Policy,
		log:          p.Log.Named("telegram.bot"),
		tallySvc:     p.TallySvc,
		querySvc:     p.QuerySvc,
		exclusionSvc: p.ExclusionSvc,
		metrics:      p.Metrics,
		done:         make(chan struct{}),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			bot.log.Info("telegram transport starting", zap.String("bot", api.Self.UserName))
			go bot.poll()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = ctx
			api.StopReceivingUpdates()
			<-bot.done
			bot.log.Info("telegram transport stopped")
			return nil
		},
	})

	return nil
}

func (b *Bot) poll() {
	defer close(b.done)

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = updateTimeoutSeconds
	updateCfg.AllowedUpdates = []string{"message", "edited_message"}

	for update := range b.api.GetUpdatesChan(updateCfg) {
		b.handleUpdate(update)
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	ctx := obscontext.WithTransport(context.Background(), "telegram")

	switch {
	case update.Message != nil:
		if update.Message.IsCommand() {
			b.handleCommand(ctx, update.Message)
			return
		}
		if err := b.tallySvc.OnMessageCreated(ctx, eventFromMessage(update.Message)); err != nil {
			b.log.Warn("message event failed",
				zap.Int64("chat_id", update.Message.Chat.ID),
				zap.Error(err),
			)
		}
	case update.EditedMessage != nil:
		if update.EditedMessage.IsCommand() {
			return
		}
		if err := b.tallySvc.OnMessageEdited(ctx, eventFromMessage(update.EditedMessage)); err != nil {
			b.log.Warn("edit event failed",
				zap.Int64("chat_id", update.EditedMessage.Chat.ID),
				zap.Error(err),
			)
		}
	}
}

func eventFromMessage(msg *tgbotapi.Message) tallydomain.Event {
	event := tallydomain.Event{
		ChatID:    msg.Chat.ID,
		MessageID: int64(msg.MessageID),
		Surfaces: tallydomain.ContentSurfaces{
			Text:    msg.Text,
			Caption: msg.Caption,
		},
	}
	if msg.Sticker != nil {
		event.Surfaces.StickerEmoji = msg.Sticker.Emoji
	}
	if msg.From != nil {
		userID := msg.From.ID
		event.UserID = &userID
		event.SenderName = displayName(msg.From)
	}
	return event
}

func displayName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}
	if user.LastName != "" {
		return user.FirstName + " " + user.LastName
	}
	return user.FirstName
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
