package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gdcoding/IntakeBot/internal/models"
)

// DefaultPollTimeout is the long-polling timeout in seconds.
const DefaultPollTimeout = 30

// TelegramOpts holds configuration options for the Telegram service.
type TelegramOpts struct {
	Token string
	Debug bool
}

// TelegramOption configures Telegram service creation.
type TelegramOption func(*TelegramOpts)

// WithToken sets the bot API token.
func WithToken(token string) TelegramOption {
	return func(o *TelegramOpts) { o.Token = token }
}

// WithDebug enables verbose bot API logging.
func WithDebug(debug bool) TelegramOption {
	return func(o *TelegramOpts) { o.Debug = debug }
}

// TelegramService implements Service over the Telegram Bot API with long
// polling. User IDs are decimal chat IDs.
type TelegramService struct {
	bot     *tgbotapi.BotAPI
	events  chan models.Event
	done    chan struct{}
	mu      sync.RWMutex
	stopped bool
}

// NewTelegramService creates a Telegram service from the given options. The
// token is required.
func NewTelegramService(opts ...TelegramOption) (*TelegramService, error) {
	var cfg TelegramOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		slog.Error("Telegram bot token not set")
		return nil, fmt.Errorf("telegram bot token not set")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		slog.Error("Failed to create Telegram bot API", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	return &TelegramService{
		bot:    bot,
		events: make(chan models.Event, DefaultChannelBufferSize),
		done:   make(chan struct{}),
	}, nil
}

// Start begins long polling and decoding updates into events.
func (s *TelegramService) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = DefaultPollTimeout
	updates := s.bot.GetUpdatesChan(u)
	slog.Debug("Telegram long polling started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if ev, ok := s.decode(update); ok {
					select {
					case s.events <- ev:
					case <-s.done:
						return
					}
				}
			}
		}
	}()
	return nil
}

// decode translates one Telegram update into a transport-neutral event.
func (s *TelegramService) decode(update tgbotapi.Update) (models.Event, bool) {
	if cb := update.CallbackQuery; cb != nil {
		// Acknowledge the button press so the client stops the spinner.
		if _, err := s.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			slog.Debug("Telegram callback answer failed", "error", err)
		}
		action, ok := DecodeAction(cb.Data)
		if !ok {
			slog.Debug("Unknown callback data ignored", "data", cb.Data)
			return models.Event{}, false
		}
		return models.Event{
			UserID:   strconv.FormatInt(cb.From.ID, 10),
			Username: cb.From.UserName,
			Type:     models.EventAction,
			Action:   action,
			Time:     int64(update.UpdateID),
		}, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return models.Event{}, false
	}
	ev := models.Event{
		UserID:   strconv.FormatInt(msg.Chat.ID, 10),
		Username: msg.From.UserName,
		Time:     int64(msg.Date),
	}
	if msg.IsCommand() {
		cmd, ok := slashCommands[msg.Command()]
		if !ok {
			return models.Event{}, false
		}
		ev.Type = models.EventCommand
		ev.Command = cmd
		return ev, true
	}
	if cmd, ok := CaptionCommand(msg.Text); ok {
		ev.Type = models.EventCommand
		ev.Command = cmd
		return ev, true
	}
	ev.Type = models.EventText
	ev.Text = msg.Text
	return ev, true
}

// Stop stops polling and closes the event channel.
func (s *TelegramService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)
	s.bot.StopReceivingUpdates()

	// Let the poll goroutine parked on the events channel observe done first.
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.events)
	}()

	slog.Debug("Telegram service stopped")
	return nil
}

// Events returns the inbound event channel.
func (s *TelegramService) Events() <-chan models.Event {
	return s.events
}

// Send delivers one message, rendering choices as inline buttons and menus
// as reply keyboards.
func (s *TelegramService) Send(ctx context.Context, userID string, msg models.Message) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", userID, err)
	}

	out := tgbotapi.NewMessage(chatID, msg.Text)
	switch {
	case len(msg.Choices) > 0:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(msg.Choices))
		for _, c := range msg.Choices {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(c.Label, EncodeAction(c.Action)),
			))
		}
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	case !msg.Menu.IsZero():
		rows := make([][]tgbotapi.KeyboardButton, 0, len(msg.Menu.Rows))
		for _, row := range msg.Menu.Rows {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, cmd := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(CommandCaption(cmd)))
			}
			rows = append(rows, buttons)
		}
		out.ReplyMarkup = tgbotapi.NewReplyKeyboard(rows...)
	}

	if _, err := s.bot.Send(out); err != nil {
		slog.Error("Telegram send failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to send telegram message to %d: %w", chatID, err)
	}
	slog.Debug("Telegram message sent", "chatID", chatID)
	return nil
}
