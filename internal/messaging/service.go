// Package messaging defines the pluggable chat transport abstraction and its
// Telegram and Twilio implementations. Adapters decode platform input
// (captions, callback data, numbered replies) into models.Event exactly once
// at the boundary and render models.Message back out.
package messaging

import (
	"context"
	"errors"

	"github.com/gdcoding/IntakeBot/internal/models"
)

// DefaultChannelBufferSize defines the default buffer size for the inbound
// event channel.
const DefaultChannelBufferSize = 100

// ErrServiceStopped is returned when operations are attempted on a stopped
// service.
var ErrServiceStopped = errors.New("messaging service is stopped")

// Service is a pluggable chat transport.
type Service interface {
	// Start begins background processing (e.g. long polling).
	Start(ctx context.Context) error

	// Stop stops background processing and closes the event channel.
	Stop() error

	// Events returns the channel of decoded inbound events.
	Events() <-chan models.Event

	// Send delivers one reply to the user.
	Send(ctx context.Context, userID string, msg models.Message) error
}

// commandCaptions maps menu commands to their chat button captions.
var commandCaptions = map[models.Command]string{
	models.CmdHelp:           "ℹ️ Помощь",
	models.CmdRegister:       "📝 Регистрация",
	models.CmdDelivery:       "🚚 Доставка",
	models.CmdCheckin:        "🏎️ Заезд",
	models.CmdRefund:         "🔙 Возврат",
	models.CmdPainting:       "🎨 Покраска",
	models.CmdSettings:       "⚙️ Настройки",
	models.CmdAdminPanel:     "⚙️ Админ-панель",
	models.CmdUserManagement: "👥 Управление пользователями",
	models.CmdApplications:   "📋 Заявки",
	models.CmdStats:          "📊 Статистика",
	models.CmdExport:         "📥 Выгрузка данных",
	models.CmdMainMenu:       "🔙 На главную",
	models.CmdCancel:         "❌ Отмена",
	models.CmdPrev:           "⬅️ Назад",
	models.CmdNext:           "Вперёд ➡️",
}

var captionCommands = func() map[string]models.Command {
	m := make(map[string]models.Command, len(commandCaptions))
	for c, caption := range commandCaptions {
		m[caption] = c
	}
	return m
}()

// slashCommands maps Telegram-style slash commands to menu commands.
var slashCommands = map[string]models.Command{
	"start":    models.CmdStart,
	"help":     models.CmdHelp,
	"register": models.CmdRegister,
	"cancel":   models.CmdCancel,
	"admin":    models.CmdAdminPanel,
}

// CommandCaption returns the button caption for a command, falling back to
// the command name itself.
func CommandCaption(c models.Command) string {
	if caption, ok := commandCaptions[c]; ok {
		return caption
	}
	return string(c)
}

// CaptionCommand decodes a button caption back into a command.
func CaptionCommand(caption string) (models.Command, bool) {
	c, ok := captionCommands[caption]
	return c, ok
}
