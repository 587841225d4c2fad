package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdcoding/IntakeBot/internal/models"
	"github.com/gdcoding/IntakeBot/internal/session"
	"github.com/gdcoding/IntakeBot/internal/store"
)

type sentMessage struct {
	To  string
	Msg models.Message
}

// fakeService records outbound messages and lets tests inject events.
type fakeService struct {
	mu     sync.Mutex
	sent   []sentMessage
	events chan models.Event
}

func newFakeService() *fakeService {
	return &fakeService{events: make(chan models.Event, 16)}
}

func (f *fakeService) Start(ctx context.Context) error     { return nil }
func (f *fakeService) Stop() error                         { close(f.events); return nil }
func (f *fakeService) Events() <-chan models.Event         { return f.events }
func (f *fakeService) Send(_ context.Context, to string, msg models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{To: to, Msg: msg})
	return nil
}

func (f *fakeService) sentTo(to string) []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var msgs []models.Message
	for _, s := range f.sent {
		if s.To == to {
			msgs = append(msgs, s.Msg)
		}
	}
	return msgs
}

type fakeSink struct {
	pushed []models.Form
	err    error
}

func (f *fakeSink) Push(_ context.Context, form models.Form) error {
	f.pushed = append(f.pushed, form)
	return f.err
}

func newTestBot(sink *fakeSink) (*Bot, *fakeService, *store.InMemoryStore) {
	svc := newFakeService()
	st := store.NewInMemoryStore()
	b := New(svc, st, session.NewManager(time.Hour), sink, Config{
		AdminIDs:      []string{"1"},
		OwnerFullName: "Владелец Бот",
	})
	return b, svc, st
}

func command(userID string, cmd models.Command) models.Event {
	return models.Event{UserID: userID, Type: models.EventCommand, Command: cmd}
}

func text(userID, t string) models.Event {
	return models.Event{UserID: userID, Type: models.EventText, Text: t}
}

func action(userID string, a models.Action) models.Event {
	return models.Event{UserID: userID, Type: models.EventAction, Action: a}
}

func allText(msgs []models.Message) string {
	var parts []string
	for _, m := range msgs {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n")
}

func approveUser(t *testing.T, st *store.InMemoryStore, id, fullname string) {
	t.Helper()
	err := st.UpsertUser(models.User{ID: id, FullName: fullname, Approved: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUnregisteredUserCannotStartForm(t *testing.T) {
	b, _, _ := newTestBot(&fakeSink{})
	msgs := b.Dispatch(context.Background(), command("100", models.CmdDelivery))
	if !strings.Contains(allText(msgs), "не зарегистрированы") {
		t.Fatalf("expected registration required, got %q", allText(msgs))
	}
}

func TestRegistrationFlow(t *testing.T) {
	b, svc, st := newTestBot(&fakeSink{})
	ctx := context.Background()

	msgs := b.Dispatch(ctx, command("100", models.CmdRegister))
	if !strings.Contains(allText(msgs), "ФИО") {
		t.Fatalf("expected fullname prompt, got %q", allText(msgs))
	}

	// Invalid full name is rejected and the step repeats.
	msgs = b.Dispatch(ctx, text("100", "Иван"))
	if !strings.Contains(allText(msgs), "❌") {
		t.Fatalf("expected validation error, got %q", allText(msgs))
	}

	b.Dispatch(ctx, text("100", "Иванов Иван Петрович"))
	b.Dispatch(ctx, text("100", "89991234567"))
	b.Dispatch(ctx, text("100", "прораб"))
	msgs = b.Dispatch(ctx, text("100", "СМУ-1"))
	if !strings.Contains(allText(msgs), "отправлена администратору") {
		t.Fatalf("expected pending message, got %q", allText(msgs))
	}

	u, _ := st.GetUser("100")
	if u == nil || u.Approved {
		t.Fatalf("user should be saved unapproved: %+v", u)
	}
	if u.Phone != "+79991234567" {
		t.Errorf("phone should be normalized, got %q", u.Phone)
	}

	// The admin got an approve/reject notification.
	admin := svc.sentTo("1")
	if len(admin) == 0 || !strings.Contains(admin[0].Text, "Новая заявка на регистрацию") {
		t.Fatalf("admin not notified: %+v", admin)
	}

	// Approval flips the flag and notifies the user.
	msgs = b.Dispatch(ctx, action("1", models.Action{Kind: models.ActionApprove, UserID: "100"}))
	if !strings.Contains(allText(msgs), "подтверждена") {
		t.Fatalf("expected approve ack, got %q", allText(msgs))
	}
	u, _ = st.GetUser("100")
	if !u.Approved {
		t.Error("user should be approved")
	}
	userMsgs := svc.sentTo("100")
	if len(userMsgs) == 0 || !strings.Contains(userMsgs[len(userMsgs)-1].Text, "подтверждена") {
		t.Errorf("user not notified of approval: %+v", userMsgs)
	}
}

func TestAdminIsTurnedAwayFromRegistration(t *testing.T) {
	b, _, st := newTestBot(&fakeSink{})
	ctx := context.Background()

	// Configured admin without a stored profile.
	msgs := b.Dispatch(ctx, command("1", models.CmdRegister))
	if !strings.Contains(allText(msgs), "администратором бота") {
		t.Fatalf("expected admin turn-away, got %q", allText(msgs))
	}
	if msgs := b.Dispatch(ctx, text("1", "Иванов Иван Петрович")); strings.Contains(allText(msgs), "телефон") {
		t.Error("wizard should not have started for an admin")
	}

	// Stored admin flag counts too.
	st.UpsertUser(models.User{ID: "200", FullName: "Петров Петр", Admin: true})
	msgs = b.Dispatch(ctx, command("200", models.CmdRegister))
	if !strings.Contains(allText(msgs), "администратором бота") {
		t.Fatalf("expected admin turn-away for stored admin, got %q", allText(msgs))
	}
}

func TestRejectionDeletesApplication(t *testing.T) {
	b, svc, st := newTestBot(&fakeSink{})
	ctx := context.Background()

	st.UpsertUser(models.User{ID: "100", FullName: "Иванов Иван"})
	b.Dispatch(ctx, action("1", models.Action{Kind: models.ActionReject, UserID: "100"}))

	u, _ := st.GetUser("100")
	if u != nil {
		t.Error("rejected application should be removed")
	}
	userMsgs := svc.sentTo("100")
	if len(userMsgs) == 0 || !strings.Contains(userMsgs[0].Text, "отклонена") {
		t.Errorf("user not notified of rejection: %+v", userMsgs)
	}
}

func TestFullDeliveryScenario(t *testing.T) {
	sink := &fakeSink{}
	b, _, st := newTestBot(sink)
	ctx := context.Background()
	approveUser(t, st, "100", "Иванов Иван")

	b.Dispatch(ctx, command("100", models.CmdDelivery))
	b.Dispatch(ctx, text("100", "A-1"))
	msgs := b.Dispatch(ctx, text("100", "кирпич 500 шт"))
	if !strings.Contains(allText(msgs), "Ваша заявка на доставку") {
		t.Fatalf("expected summary, got %q", allText(msgs))
	}

	msgs = b.Dispatch(ctx, action("100", models.Action{Kind: models.ActionConfirm}))
	if !strings.Contains(allText(msgs), "№1 успешно создана") {
		t.Fatalf("expected success, got %q", allText(msgs))
	}
	if len(sink.pushed) != 1 || sink.pushed[0].CreatorFullName != "Иванов Иван" {
		t.Fatalf("pushed form wrong: %+v", sink.pushed)
	}
	saved, _ := st.GetFormByKindAndNumber(models.FormKindDelivery, 1)
	if saved == nil {
		t.Fatal("form not persisted")
	}
}

func TestCancelCommandDuringForm(t *testing.T) {
	b, _, st := newTestBot(&fakeSink{})
	ctx := context.Background()
	approveUser(t, st, "100", "Иванов Иван")

	b.Dispatch(ctx, command("100", models.CmdCheckin))
	b.Dispatch(ctx, text("100", "D-4"))
	msgs := b.Dispatch(ctx, command("100", models.CmdCancel))
	if !strings.Contains(allText(msgs), "заезд отменено") {
		t.Fatalf("expected cancel message, got %q", allText(msgs))
	}
	if b.Engine().Active("100") {
		t.Error("session should be cleared")
	}
}

func TestSettingsToggle(t *testing.T) {
	b, _, st := newTestBot(&fakeSink{})
	ctx := context.Background()
	approveUser(t, st, "100", "Иванов Иван")

	msgs := b.Dispatch(ctx, command("100", models.CmdSettings))
	if !strings.Contains(allText(msgs), "Настройки") {
		t.Fatalf("expected settings, got %q", allText(msgs))
	}

	b.Dispatch(ctx, action("100", models.Action{Kind: models.ActionToggleNumbering}))
	set, _ := st.GetUserSettings("100")
	if !set.AutoNumbering {
		t.Error("toggle should enable auto numbering")
	}
}

func TestAdminPanelRequiresRights(t *testing.T) {
	b, _, _ := newTestBot(&fakeSink{})
	msgs := b.Dispatch(context.Background(), command("100", models.CmdAdminPanel))
	if !strings.Contains(allText(msgs), "нет прав") {
		t.Fatalf("expected rights error, got %q", allText(msgs))
	}
}

func TestUserListNavigation(t *testing.T) {
	b, _, st := newTestBot(&fakeSink{})
	ctx := context.Background()
	approveUser(t, st, "100", "Иванов Иван")
	approveUser(t, st, "200", "Петров Петр")

	msgs := b.Dispatch(ctx, command("1", models.CmdUserManagement))
	joined := allText(msgs)
	if !strings.Contains(joined, "Пользователь 1 из 2") || !strings.Contains(joined, "Иванов Иван") {
		t.Fatalf("expected first user card, got %q", joined)
	}

	msgs = b.Dispatch(ctx, command("1", models.CmdNext))
	joined = allText(msgs)
	if !strings.Contains(joined, "Пользователь 2 из 2") || !strings.Contains(joined, "Петров Петр") {
		t.Fatalf("expected second user card, got %q", joined)
	}

	// Past the end there is nothing to show.
	if msgs := b.Dispatch(ctx, command("1", models.CmdNext)); len(msgs) != 0 {
		t.Errorf("navigation past the end should be silent, got %+v", msgs)
	}
}

func TestAdminEditUserField(t *testing.T) {
	b, _, st := newTestBot(&fakeSink{})
	ctx := context.Background()
	approveUser(t, st, "100", "Иванов Иван")

	b.Dispatch(ctx, action("1", models.Action{Kind: models.ActionEditUserField, UserID: "100", Field: "phone"}))

	// Invalid phone re-arms the hook.
	msgs := b.Dispatch(ctx, text("1", "12345"))
	if !strings.Contains(allText(msgs), "❌") {
		t.Fatalf("expected validation error, got %q", allText(msgs))
	}
	msgs = b.Dispatch(ctx, text("1", "89991112233"))
	if !strings.Contains(allText(msgs), "обновлены") {
		t.Fatalf("expected update ack, got %q", allText(msgs))
	}
	u, _ := st.GetUser("100")
	if u.Phone != "+79991112233" {
		t.Errorf("phone not updated/normalized: %q", u.Phone)
	}
}

func TestAdminApplicationLifecycle(t *testing.T) {
	b, _, st := newTestBot(&fakeSink{})
	ctx := context.Background()
	st.SaveForm(models.Form{Kind: models.FormKindDelivery, Number: 1, UserID: "100", Values: map[string]string{"contract": "A-1", "text": "кирпич"}})

	msgs := b.Dispatch(ctx, action("1", models.Action{Kind: models.ActionPickKind, Form: models.FormKindDelivery}))
	if !strings.Contains(allText(msgs), "Заявка 1 из 1") {
		t.Fatalf("expected app card, got %q", allText(msgs))
	}

	saved, _ := st.GetFormByKindAndNumber(models.FormKindDelivery, 1)
	b.Dispatch(ctx, action("1", models.Action{Kind: models.ActionEditAppField, AppID: saved.ID, Field: "text"}))
	b.Dispatch(ctx, text("1", "бетон"))
	saved, _ = st.GetFormByKindAndNumber(models.FormKindDelivery, 1)
	if saved.Values["text"] != "бетон" {
		t.Errorf("app field not updated: %+v", saved.Values)
	}

	b.Dispatch(ctx, action("1", models.Action{Kind: models.ActionConfirmDeleteApp, AppID: saved.ID}))
	saved, _ = st.GetFormByKindAndNumber(models.FormKindDelivery, 1)
	if saved != nil {
		t.Error("application should be deleted")
	}
}

func TestStats(t *testing.T) {
	b, _, st := newTestBot(&fakeSink{})
	approveUser(t, st, "100", "Иванов Иван")
	st.SaveForm(models.Form{Kind: models.FormKindPainting, Number: 1, UserID: "100"})

	msgs := b.Dispatch(context.Background(), command("1", models.CmdStats))
	joined := allText(msgs)
	if !strings.Contains(joined, "Пользователей: 1") || !strings.Contains(joined, "Заявок всего: 1") {
		t.Fatalf("stats wrong: %q", joined)
	}
}

func TestRunLoopDeliversReplies(t *testing.T) {
	b, svc, st := newTestBot(&fakeSink{})
	approveUser(t, st, "100", "Иванов Иван")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	svc.events <- command("100", models.CmdHelp)

	deadline := time.After(2 * time.Second)
	for {
		if msgs := svc.sentTo("100"); len(msgs) > 0 {
			if !strings.Contains(msgs[0].Text, "Помощь") {
				t.Errorf("unexpected reply: %q", msgs[0].Text)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("no reply delivered by the run loop")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run loop returned error: %v", err)
	}
}
