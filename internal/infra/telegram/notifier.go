// Package telegram delivers operator alerts to Telegram chats.
package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"ai-image-billing/internal/config"
	"ai-image-billing/internal/domain/ports/adapter"
	"ai-image-billing/internal/infra/worker"
)

var (
	_ adapter.Notifier = (*AlertNotifier)(nil)
	_ adapter.Notifier = (*NoopNotifier)(nil)
)

// maxMessageLen is Telegram's limit for a single text message.
const maxMessageLen = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AlertNotifier sends each alert to every configured chat. With a pool the
// sends happen in the background and Notify only reports queueing errors.
type AlertNotifier struct {
	bot     sender
	chatIDs []int64
	pool    *worker.Pool
	log     *zerolog.Logger
}

func NewAlertNotifier(cfg config.AlertsConfig, pool *worker.Pool, logger *zerolog.Logger) (*AlertNotifier, error) {
	if cfg.TelegramToken == "" {
		return nil, errors.New("telegram token is empty")
	}
	if len(cfg.ChatIDs) == 0 {
		return nil, errors.New("no alert chat ids configured")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newAlertNotifier(bot, cfg.ChatIDs, pool, logger), nil
}

func newAlertNotifier(bot sender, chatIDs []int64, pool *worker.Pool, logger *zerolog.Logger) *AlertNotifier {
	l := logger.With().Str("component", "AlertNotifier").Logger()
	return &AlertNotifier{bot: bot, chatIDs: chatIDs, pool: pool, log: &l}
}

func (n *AlertNotifier) Notify(ctx context.Context, text string) error {
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen-3] + "..."
	}
	if n.pool == nil {
		return n.send(text)
	}
	err := n.pool.Submit(func(ctx context.Context) error { return n.send(text) })
	if err != nil {
		n.log.Warn().Err(err).Int("pending", n.pool.Pending()).Msg("alert dropped")
	}
	return err
}

func (n *AlertNotifier) send(text string) error {
	var errs error
	for _, id := range n.chatIDs {
		msg := tgbotapi.NewMessage(id, text)
		msg.DisableWebPagePreview = true
		if _, err := n.bot.Send(msg); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errs
}

// NoopNotifier logs alerts instead of sending them. Used when no bot token is set.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{log: logger}
}

func (n *NoopNotifier) Notify(ctx context.Context, text string) error {
	n.log.Warn().Str("alert", text).Msg("operator alert (telegram disabled)")
	return nil
}
