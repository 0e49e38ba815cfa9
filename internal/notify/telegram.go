package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/exitmonitor"
	"equity-signal-lab/internal/observability"
)

// Telegram allows ~30 messages per second per bot; stay well under it.
const (
	telegramMessagesPerSec = 10
	telegramSendRetries    = 3
)

// botSender is the slice of the Telegram bot API the sink needs.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink delivers signals and exit alerts to one Telegram chat.
// Sends are rate-limited and retried with exponential backoff.
type TelegramSink struct {
	bot     botSender
	chatID  int64
	limiter *rate.Limiter
	log     zerolog.Logger
}

// Compile-time interface check.
var _ exitmonitor.AlertSink = (*TelegramSink)(nil)

// NewTelegramSink authenticates the bot and returns a sink bound to
// chatID.
func NewTelegramSink(token string, chatID int64, log zerolog.Logger) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram auth: %w", err)
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("telegram bot authorized")
	return newTelegramSink(bot, chatID, log), nil
}

func newTelegramSink(bot botSender, chatID int64, log zerolog.Logger) *TelegramSink {
	return &TelegramSink{
		bot:     bot,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Every(time.Second/telegramMessagesPerSec), telegramMessagesPerSec),
		log:     log,
	}
}

// Deliver sends an exit or advisory alert. Closing alerts carry no
// keyboard; advisories get EXIT NOW / HOLD buttons so the user can act
// from the chat.
func (s *TelegramSink) Deliver(ctx context.Context, alert *domain.ExitAlert) error {
	msg := tgbotapi.NewMessage(s.chatID, FormatExitAlert(alert))
	msg.ParseMode = tgbotapi.ModeHTML

	if alert.IsAlertOnly {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("EXIT NOW", "exit:"+alert.Trade.TradeID),
				tgbotapi.NewInlineKeyboardButtonData("HOLD", "hold:"+alert.Trade.TradeID),
			),
		)
	}
	return s.send(ctx, msg)
}

// NotifySignals sends one message per final signal, in rank order.
// Delivery stops at the first signal that exhausts its retries.
func (s *TelegramSink) NotifySignals(ctx context.Context, signals []*domain.FinalSignal) error {
	for _, sig := range signals {
		msg := tgbotapi.NewMessage(s.chatID, FormatSignal(sig))
		msg.ParseMode = tgbotapi.ModeHTML
		if err := s.send(ctx, msg); err != nil {
			return fmt.Errorf("notify: signal %s: %w", sig.Candidate.SignalID, err)
		}
	}
	return nil
}

func (s *TelegramSink) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify: rate limit wait: %w", err)
	}

	op := func() error {
		_, err := s.bot.Send(msg)
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), telegramSendRetries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		observability.RecordNotifyError()
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	return nil
}
