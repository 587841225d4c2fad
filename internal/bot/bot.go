// Package bot wires the chat transport, the form workflow engine and the
// admin surface into one event loop.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gdcoding/IntakeBot/internal/engine"
	"github.com/gdcoding/IntakeBot/internal/messaging"
	"github.com/gdcoding/IntakeBot/internal/models"
	"github.com/gdcoding/IntakeBot/internal/session"
	"github.com/gdcoding/IntakeBot/internal/store"
)

// Config carries the bot-level settings.
type Config struct {
	// AdminIDs are transport user IDs with admin rights regardless of the
	// stored admin flag.
	AdminIDs []string
	// OwnerFullName is the full name admin-submitted forms are attributed
	// to in Bitrix24.
	OwnerFullName string
}

// inputHook consumes the next free-text message of one user. Hooks drive the
// registration wizard and admin field edits.
type inputHook func(ctx context.Context, ev models.Event) []models.Message

// Bot is the top-level dispatcher.
type Bot struct {
	svc      messaging.Service
	store    store.Store
	engine   *engine.Engine
	adminIDs map[string]struct{}
	cfg      Config

	mu    sync.Mutex
	hooks map[string]inputHook
	nav   map[string]*navState
}

// New creates a bot. The engine is constructed internally so terminal engine
// replies carry the bot's role-dependent main menu.
func New(svc messaging.Service, st store.Store, sessions *session.Manager, sink engine.TaskSink, cfg Config) *Bot {
	b := &Bot{
		svc:      svc,
		store:    st,
		cfg:      cfg,
		adminIDs: make(map[string]struct{}, len(cfg.AdminIDs)),
		hooks:    make(map[string]inputHook),
		nav:      make(map[string]*navState),
	}
	for _, id := range cfg.AdminIDs {
		b.adminIDs[id] = struct{}{}
	}
	b.engine = engine.New(sessions, st, sink, b.mainMenu)
	return b
}

// Engine exposes the workflow engine, mainly for tests.
func (b *Bot) Engine() *engine.Engine { return b.engine }

// Run processes inbound events until the context is cancelled or the event
// channel closes.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	slog.Info("Bot event loop started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Bot event loop stopping", "reason", ctx.Err())
			return b.svc.Stop()
		case ev, ok := <-b.svc.Events():
			if !ok {
				slog.Info("Event channel closed, bot stopping")
				return nil
			}
			b.handle(ctx, ev)
		}
	}
}

// handle dispatches one event and sends the replies.
func (b *Bot) handle(ctx context.Context, ev models.Event) {
	msgs := b.Dispatch(ctx, ev)
	for _, m := range msgs {
		if err := b.svc.Send(ctx, ev.UserID, m); err != nil {
			slog.Error("Failed to send reply", "error", err, "userID", ev.UserID)
		}
	}
}

// Dispatch routes one decoded event and returns the replies.
func (b *Bot) Dispatch(ctx context.Context, ev models.Event) []models.Message {
	switch ev.Type {
	case models.EventCommand:
		return b.dispatchCommand(ctx, ev)
	case models.EventAction:
		return b.dispatchAction(ctx, ev)
	case models.EventText:
		return b.dispatchText(ctx, ev)
	}
	return nil
}

func (b *Bot) dispatchCommand(ctx context.Context, ev models.Event) []models.Message {
	userID := ev.UserID
	cmd := ev.Command
	slog.Debug("Command received", "userID", userID, "command", cmd)

	if kind := models.FormCommand(cmd); kind != "" {
		if !b.isApproved(userID) && !b.isAdmin(userID) {
			return []models.Message{{
				Text: "❌ Вы не зарегистрированы. Пожалуйста, пройдите регистрацию.",
				Menu: b.mainMenu(userID),
			}}
		}
		b.clearHook(userID)
		return b.engine.Start(userID, kind)
	}

	switch cmd {
	case models.CmdStart:
		return b.handleStart(userID)
	case models.CmdHelp:
		return b.handleHelp(userID)
	case models.CmdRegister:
		return b.startRegistration(userID, ev.Username)
	case models.CmdCancel:
		return b.handleCancel(userID)
	case models.CmdSettings:
		return b.showSettings(userID)
	case models.CmdAdminPanel:
		if !b.isAdmin(userID) {
			return b.notAdmin(userID)
		}
		return []models.Message{{Text: "⚙️ Админ-панель:", Menu: adminMenu()}}
	case models.CmdUserManagement:
		if !b.isAdmin(userID) {
			return b.notAdmin(userID)
		}
		return b.showUserList(userID)
	case models.CmdApplications:
		if !b.isAdmin(userID) {
			return b.notAdmin(userID)
		}
		return b.showKindPicker()
	case models.CmdStats:
		if !b.isAdmin(userID) {
			return b.notAdmin(userID)
		}
		return b.showStats()
	case models.CmdExport:
		if !b.isAdmin(userID) {
			return b.notAdmin(userID)
		}
		return b.exportForms()
	case models.CmdPrev:
		return b.navigate(userID, -1)
	case models.CmdNext:
		return b.navigate(userID, +1)
	case models.CmdMainMenu:
		b.clearNav(userID)
		b.clearHook(userID)
		return []models.Message{{Text: "Вы вернулись в главное меню", Menu: b.mainMenu(userID)}}
	}
	return []models.Message{{Text: "Неизвестная команда.", Menu: b.mainMenu(userID)}}
}

func (b *Bot) dispatchAction(ctx context.Context, ev models.Event) []models.Message {
	userID := ev.UserID
	a := ev.Action
	slog.Debug("Action received", "userID", userID, "action", a.Kind)

	switch a.Kind {
	case models.ActionConfirm:
		return b.engine.Confirm(ctx, userID, b.userFullName(userID))
	case models.ActionCancel:
		return b.engine.Cancel(userID, a.Form)
	case models.ActionEditMenu:
		return b.engine.EditMenu(userID)
	case models.ActionEditField:
		return b.engine.EditField(userID, a.Field)
	case models.ActionBack:
		return b.engine.Back(userID)
	case models.ActionRetry:
		return b.engine.Retry(ctx, userID, a.Form, a.Number)
	case models.ActionToggleNumbering:
		return b.toggleNumbering(userID)
	}

	if !b.isAdmin(userID) {
		return b.notAdmin(userID)
	}
	return b.dispatchAdminAction(ctx, userID, a)
}

func (b *Bot) dispatchText(ctx context.Context, ev models.Event) []models.Message {
	if handled, msgs := b.engine.Input(ctx, ev.UserID, ev.Text); handled {
		return msgs
	}
	if hook := b.takeHook(ev.UserID); hook != nil {
		return hook(ctx, ev)
	}
	return []models.Message{{
		Text: "Пожалуйста, используйте кнопки меню.",
		Menu: b.mainMenu(ev.UserID),
	}}
}

func (b *Bot) handleStart(userID string) []models.Message {
	if b.isApproved(userID) || b.isAdmin(userID) {
		return []models.Message{{
			Text: "Здравствуйте! Выберите нужный тип заявки в меню.",
			Menu: b.mainMenu(userID),
		}}
	}
	return []models.Message{{
		Text: "Здравствуйте! Это бот приёма заявок.\nДля начала работы пройдите регистрацию.",
		Menu: b.mainMenu(userID),
	}}
}

func (b *Bot) handleHelp(userID string) []models.Message {
	text := "ℹ️ Помощь\n\n" +
		"🚚 Доставка — заявка на доставку материалов\n" +
		"🏎️ Заезд — заявка на заезд бригады\n" +
		"🔙 Возврат — заявка на возврат материалов\n" +
		"🎨 Покраска — заявка на покраску\n\n" +
		"Заполните поля заявки по шагам, проверьте данные и подтвердите отправку.\n" +
		"Кнопка «❌ Отмена» прерывает заполнение в любой момент.\n\n" +
		"По всем вопросам обращайтесь к администратору."
	return []models.Message{{Text: text, Menu: b.mainMenu(userID)}}
}

func (b *Bot) handleCancel(userID string) []models.Message {
	if b.engine.Active(userID) {
		return b.engine.Cancel(userID, "")
	}
	if b.takeHook(userID) != nil {
		return []models.Message{{Text: "❌ Действие отменено.", Menu: b.mainMenu(userID)}}
	}
	return []models.Message{{Text: "Вы вернулись в главное меню", Menu: b.mainMenu(userID)}}
}

func (b *Bot) notAdmin(userID string) []models.Message {
	return []models.Message{{Text: "❌ У вас нет прав администратора.", Menu: b.mainMenu(userID)}}
}

// userFullName resolves the display name used for task attribution. Admins
// without a stored profile fall back to the configured owner name.
func (b *Bot) userFullName(userID string) string {
	u, err := b.store.GetUser(userID)
	if err != nil {
		slog.Error("Failed to load user", "error", err, "userID", userID)
	}
	if u != nil && u.FullName != "" {
		return u.FullName
	}
	if _, ok := b.adminIDs[userID]; ok {
		return b.cfg.OwnerFullName
	}
	return ""
}

func (b *Bot) setHook(userID string, h inputHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks[userID] = h
}

func (b *Bot) takeHook(userID string) inputHook {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.hooks[userID]
	delete(b.hooks, userID)
	return h
}

func (b *Bot) clearHook(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.hooks, userID)
}
