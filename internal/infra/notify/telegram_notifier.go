package notify

import (
	"context"
	"fmt"

	"resume-checkout/internal/domain/model"
	"resume-checkout/internal/domain/ports/adapter"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var _ adapter.OpsNotifier = (*TelegramNotifier)(nil)

// TelegramNotifier pushes terminal payment outcomes to the operations chat.
// Notification is best-effort; a delivery failure never affects the intent.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram notifier: %w", err)
	}
	l := logger.With().Str("component", "TelegramNotifier").Logger()
	return &TelegramNotifier{bot: bot, chatID: chatID, log: &l}, nil
}

func (n *TelegramNotifier) NotifyTerminal(ctx context.Context, p *model.PaymentIntent) {
	text := fmt.Sprintf("payment %s: deposit=%s plan=%s amount=%d %s provider=%s",
		p.Status, p.DepositID, p.Plan, p.Amount, p.Currency, p.Provider)
	if p.FailureReason != "" {
		text += " reason=" + p.FailureReason
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Str("deposit_id", p.DepositID).Msg("ops notification failed")
	}
}

// NopNotifier is used when no ops chat is configured.
type NopNotifier struct{}

var _ adapter.OpsNotifier = (*NopNotifier)(nil)

func (NopNotifier) NotifyTerminal(context.Context, *model.PaymentIntent) {}
