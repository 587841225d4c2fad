package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/gdcoding/IntakeBot/internal/forms"
	"github.com/gdcoding/IntakeBot/internal/models"
)

// navState is the per-admin pagination cursor over users or applications.
type navState struct {
	users []models.User
	apps  []models.Form
	page  int
}

func (b *Bot) setNav(userID string, n *navState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nav[userID] = n
}

func (b *Bot) getNav(userID string) *navState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nav[userID]
}

func (b *Bot) clearNav(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.nav, userID)
}

func (b *Bot) dispatchAdminAction(ctx context.Context, adminID string, a models.Action) []models.Message {
	switch a.Kind {
	case models.ActionApprove:
		return b.handleApprove(ctx, a.UserID)
	case models.ActionReject:
		return b.handleReject(ctx, a.UserID)
	case models.ActionEditUser:
		return b.showUserEditMenu(a.UserID)
	case models.ActionEditUserField:
		return b.startUserFieldEdit(adminID, a.UserID, a.Field)
	case models.ActionDeleteUser:
		return confirmUserDelete(a.UserID)
	case models.ActionConfirmDelete:
		return b.deleteUser(adminID, a.UserID)
	case models.ActionToggleAdmin:
		return b.toggleAdmin(a.UserID)
	case models.ActionUserApps:
		return b.showUserApplications(a.UserID)
	case models.ActionPickKind:
		return b.showApplicationList(adminID, a.Form)
	case models.ActionEditApp:
		return b.showAppEditMenu(a.AppID)
	case models.ActionEditAppField:
		return b.startAppFieldEdit(adminID, a.AppID, a.Field)
	case models.ActionDeleteApp:
		return confirmAppDelete(a.AppID)
	case models.ActionConfirmDeleteApp:
		return b.deleteApplication(adminID, a.AppID)
	case models.ActionBackToAdmin:
		b.clearNav(adminID)
		return []models.Message{{Text: "⚙️ Админ-панель:", Menu: adminMenu()}}
	}
	return []models.Message{{Text: "Неизвестное действие.", Menu: adminMenu()}}
}

// Users

func (b *Bot) showUserList(adminID string) []models.Message {
	users, err := b.store.ListUsers()
	if err != nil {
		slog.Error("Failed to list users", "error", err)
		return []models.Message{{Text: "❌ Не удалось загрузить пользователей.", Menu: adminMenu()}}
	}
	if len(users) == 0 {
		return []models.Message{{Text: "Список пользователей пуст", Menu: adminMenu()}}
	}
	b.setNav(adminID, &navState{users: users})
	return b.userCard(adminID)
}

func (b *Bot) userCard(adminID string) []models.Message {
	n := b.getNav(adminID)
	if n == nil || len(n.users) == 0 {
		return []models.Message{{Text: "Список пользователей пуст", Menu: adminMenu()}}
	}
	u := n.users[n.page]

	adminMark, approvedMark := "Нет", "Нет"
	if u.Admin {
		adminMark = "Да"
	}
	if u.Approved {
		approvedMark = "Да"
	}
	text := fmt.Sprintf("Пользователь %d из %d:\n\n"+
		"👤 Имя: %s\n🆔 ID: %s\n\n"+
		"📱 Телефон: %s\n👨‍💼 ФИО: %s\n🏢 Должность: %s\n🏢 Отдел: %s\n\n"+
		"👑 Админ: %s\n✅ Подтвержден: %s",
		n.page+1, len(n.users),
		orDash(u.Username), u.ID,
		orDash(u.Phone), orDash(u.FullName), orDash(u.Position), orDash(u.Department),
		adminMark, approvedMark)

	return []models.Message{{
		Text: text,
		Menu: navMenu(n.page, len(n.users)),
	}, {
		Text: "Действия с пользователем:",
		Choices: []models.Choice{
			{Label: "✏️ Редактировать", Action: models.Action{Kind: models.ActionEditUser, UserID: u.ID}},
			{Label: "❌ Удалить", Action: models.Action{Kind: models.ActionDeleteUser, UserID: u.ID}},
			{Label: "📋 Заявки пользователя", Action: models.Action{Kind: models.ActionUserApps, UserID: u.ID}},
		},
	}}
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// titleRu upper-cases the first rune.
func titleRu(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// navigate moves the active user or application cursor.
func (b *Bot) navigate(adminID string, delta int) []models.Message {
	n := b.getNav(adminID)
	if n == nil {
		return []models.Message{{Text: "Вы вернулись в главное меню", Menu: b.mainMenu(adminID)}}
	}
	total := len(n.users)
	if total == 0 {
		total = len(n.apps)
	}
	page := n.page + delta
	if page < 0 || page >= total {
		return nil
	}
	n.page = page
	if len(n.users) > 0 {
		return b.userCard(adminID)
	}
	return b.appCard(adminID)
}

func (b *Bot) showUserEditMenu(userID string) []models.Message {
	u, err := b.store.GetUser(userID)
	if err != nil || u == nil {
		return []models.Message{{Text: "❌ Пользователь не найден."}}
	}
	adminLabel := "👑 Сделать админом"
	if u.Admin {
		adminLabel = "👑 Снять права админа"
	}
	return []models.Message{{
		Text: fmt.Sprintf("✏️ Редактирование пользователя %s.\nВыберите поле:", orDash(u.FullName)),
		Choices: []models.Choice{
			{Label: "👨‍💼 ФИО", Action: models.Action{Kind: models.ActionEditUserField, UserID: userID, Field: "fullname"}},
			{Label: "📱 Телефон", Action: models.Action{Kind: models.ActionEditUserField, UserID: userID, Field: "phone"}},
			{Label: "🏢 Должность", Action: models.Action{Kind: models.ActionEditUserField, UserID: userID, Field: "position"}},
			{Label: "🏢 Отдел", Action: models.Action{Kind: models.ActionEditUserField, UserID: userID, Field: "department"}},
			{Label: adminLabel, Action: models.Action{Kind: models.ActionToggleAdmin, UserID: userID}},
			{Label: "🔙 Назад", Action: models.Action{Kind: models.ActionBackToAdmin}},
		},
	}}
}

// startUserFieldEdit hooks the admin's next message as the new field value.
// Invalid input re-arms the hook so the admin can try again.
func (b *Bot) startUserFieldEdit(adminID, userID, field string) []models.Message {
	validate := userFieldValidator(field)
	var hook inputHook
	hook = func(ctx context.Context, ev models.Event) []models.Message {
		value, err := validate(ev.Text)
		if err != nil {
			b.setHook(adminID, hook)
			return []models.Message{{Text: err.Error()}}
		}
		if err := b.store.UpdateUserField(userID, field, value); err != nil {
			slog.Error("Failed to update user field", "error", err, "userID", userID, "field", field)
			return []models.Message{{Text: "❌ Не удалось обновить данные.", Menu: adminMenu()}}
		}
		slog.Info("User field updated", "userID", userID, "field", field)
		return []models.Message{{Text: "✅ Данные пользователя обновлены.", Menu: adminMenu()}}
	}
	b.setHook(adminID, hook)
	return []models.Message{{
		Text: "Введите новое значение:",
		Menu: models.Menu{Rows: [][]models.Command{{models.CmdCancel}}},
	}}
}

// userFieldValidator picks the validator shared with the registration
// wizard; unknown fields accept anything.
func userFieldValidator(field string) func(string) (string, error) {
	for _, f := range forms.RegistrationFields {
		if f.Name == field {
			return f.Validate
		}
	}
	return forms.AcceptAny
}

func confirmUserDelete(userID string) []models.Message {
	return []models.Message{{
		Text: "⚠️ Удалить пользователя? Это действие необратимо.",
		Choices: []models.Choice{
			{Label: "✅ Да, удалить", Action: models.Action{Kind: models.ActionConfirmDelete, UserID: userID}},
			{Label: "🔙 Назад", Action: models.Action{Kind: models.ActionBackToAdmin}},
		},
	}}
}

func (b *Bot) deleteUser(adminID, userID string) []models.Message {
	if err := b.store.DeleteUser(userID); err != nil {
		slog.Error("Failed to delete user", "error", err, "userID", userID)
		return []models.Message{{Text: "❌ Не удалось удалить пользователя.", Menu: adminMenu()}}
	}
	slog.Info("User deleted", "userID", userID, "by", adminID)
	b.clearNav(adminID)
	return []models.Message{{Text: "✅ Пользователь удалён.", Menu: adminMenu()}}
}

func (b *Bot) toggleAdmin(userID string) []models.Message {
	u, err := b.store.GetUser(userID)
	if err != nil || u == nil {
		return []models.Message{{Text: "❌ Пользователь не найден."}}
	}
	if err := b.store.SetUserAdmin(userID, !u.Admin); err != nil {
		slog.Error("Failed to toggle admin", "error", err, "userID", userID)
		return []models.Message{{Text: "❌ Не удалось изменить права."}}
	}
	slog.Info("Admin flag toggled", "userID", userID, "admin", !u.Admin)
	if u.Admin {
		return []models.Message{{Text: fmt.Sprintf("✅ Права администратора сняты с %s.", orDash(u.FullName))}}
	}
	return []models.Message{{Text: fmt.Sprintf("✅ Пользователь %s назначен администратором.", orDash(u.FullName))}}
}

func (b *Bot) showUserApplications(userID string) []models.Message {
	apps, err := b.store.ListFormsByUser(userID)
	if err != nil {
		slog.Error("Failed to list user applications", "error", err, "userID", userID)
		return []models.Message{{Text: "❌ Не удалось загрузить заявки."}}
	}
	if len(apps) == 0 {
		return []models.Message{{Text: "У пользователя нет заявок"}}
	}
	var bld strings.Builder
	fmt.Fprintf(&bld, "Заявки пользователя (всего %d):\n", len(apps))
	for _, app := range apps {
		fmt.Fprintf(&bld, "\n--- %s #%d от %s ---\n%s\n",
			app.Kind, app.Number, app.CreatedAt.Format("02.01.2006"),
			forms.Summary(app.Kind, app.Values))
	}
	return []models.Message{{Text: bld.String()}}
}

// Applications

func (b *Bot) showKindPicker() []models.Message {
	choices := make([]models.Choice, 0, len(models.FormKinds)+1)
	for _, kind := range models.FormKinds {
		d := forms.Get(kind)
		choices = append(choices, models.Choice{
			Label:  d.Emoji + " " + titleRu(d.Accusative),
			Action: models.Action{Kind: models.ActionPickKind, Form: kind},
		})
	}
	choices = append(choices, models.Choice{Label: "🔙 Назад", Action: models.Action{Kind: models.ActionBackToAdmin}})
	return []models.Message{{Text: "📋 Выберите тип заявок:", Choices: choices}}
}

func (b *Bot) showApplicationList(adminID string, kind models.FormKind) []models.Message {
	apps, err := b.store.ListFormsByKind(kind)
	if err != nil {
		slog.Error("Failed to list applications", "error", err, "kind", kind)
		return []models.Message{{Text: "❌ Не удалось загрузить заявки.", Menu: adminMenu()}}
	}
	if len(apps) == 0 {
		return []models.Message{{Text: "Заявок этого типа нет.", Menu: adminMenu()}}
	}
	b.setNav(adminID, &navState{apps: apps})
	return b.appCard(adminID)
}

func (b *Bot) appCard(adminID string) []models.Message {
	n := b.getNav(adminID)
	if n == nil || len(n.apps) == 0 {
		return []models.Message{{Text: "Заявок этого типа нет.", Menu: adminMenu()}}
	}
	app := n.apps[n.page]
	text := fmt.Sprintf("📋 Заявка %d из %d\n\n%s #%d от %s\n👤 %s\n\n%s",
		n.page+1, len(n.apps),
		app.Kind, app.Number, app.CreatedAt.Format("02.01.2006"),
		orDash(app.CreatorFullName),
		forms.Summary(app.Kind, app.Values))

	return []models.Message{{
		Text: text,
		Menu: navMenu(n.page, len(n.apps)),
	}, {
		Text: "Действия с заявкой:",
		Choices: []models.Choice{
			{Label: "✏️ Редактировать", Action: models.Action{Kind: models.ActionEditApp, AppID: app.ID}},
			{Label: "❌ Удалить", Action: models.Action{Kind: models.ActionDeleteApp, AppID: app.ID}},
			{Label: "🔙 Назад", Action: models.Action{Kind: models.ActionBackToAdmin}},
		},
	}}
}

func (b *Bot) showAppEditMenu(appID int64) []models.Message {
	app, err := b.store.GetFormByID(appID)
	if err != nil || app == nil {
		return []models.Message{{Text: "❌ Заявка не найдена."}}
	}
	var choices []models.Choice
	for _, f := range forms.Fields(app.Kind) {
		choices = append(choices, models.Choice{
			Label:  f.Label,
			Action: models.Action{Kind: models.ActionEditAppField, AppID: appID, Field: f.Name},
		})
	}
	choices = append(choices, models.Choice{Label: "🔙 Назад", Action: models.Action{Kind: models.ActionBackToAdmin}})
	return []models.Message{{
		Text:    fmt.Sprintf("✏️ Редактирование заявки %s #%d.\nВыберите поле:", app.Kind, app.Number),
		Choices: choices,
	}}
}

func (b *Bot) startAppFieldEdit(adminID string, appID int64, field string) []models.Message {
	b.setHook(adminID, func(ctx context.Context, ev models.Event) []models.Message {
		value := strings.TrimSpace(ev.Text)
		if value == "" {
			return []models.Message{{Text: "❌ Значение не может быть пустым.", Menu: adminMenu()}}
		}
		if err := b.store.UpdateFormField(appID, field, value); err != nil {
			slog.Error("Failed to update application field", "error", err, "appID", appID, "field", field)
			return []models.Message{{Text: "❌ Не удалось обновить заявку.", Menu: adminMenu()}}
		}
		slog.Info("Application field updated", "appID", appID, "field", field)
		return []models.Message{{Text: "✅ Заявка обновлена.", Menu: adminMenu()}}
	})
	return []models.Message{{
		Text: "Введите новое значение:",
		Menu: models.Menu{Rows: [][]models.Command{{models.CmdCancel}}},
	}}
}

func confirmAppDelete(appID int64) []models.Message {
	return []models.Message{{
		Text: "⚠️ Удалить заявку? Это действие необратимо.",
		Choices: []models.Choice{
			{Label: "✅ Да, удалить", Action: models.Action{Kind: models.ActionConfirmDeleteApp, AppID: appID}},
			{Label: "🔙 Назад", Action: models.Action{Kind: models.ActionBackToAdmin}},
		},
	}}
}

func (b *Bot) deleteApplication(adminID string, appID int64) []models.Message {
	if err := b.store.DeleteForm(appID); err != nil {
		slog.Error("Failed to delete application", "error", err, "appID", appID)
		return []models.Message{{Text: "❌ Не удалось удалить заявку.", Menu: adminMenu()}}
	}
	slog.Info("Application deleted", "appID", appID, "by", adminID)
	b.clearNav(adminID)
	return []models.Message{{Text: "✅ Заявка удалена.", Menu: adminMenu()}}
}

// Stats and export

func (b *Bot) showStats() []models.Message {
	stats, err := b.store.UsageStats()
	if err != nil {
		slog.Error("Failed to compute stats", "error", err)
		return []models.Message{{Text: "❌ Не удалось получить статистику.", Menu: adminMenu()}}
	}
	var bld strings.Builder
	bld.WriteString("📊 Статистика\n\n")
	fmt.Fprintf(&bld, "👥 Пользователей: %d\n", stats.TotalUsers)
	fmt.Fprintf(&bld, "✅ Подтверждённых: %d\n", stats.ApprovedUsers)
	fmt.Fprintf(&bld, "👑 Администраторов: %d\n\n", stats.AdminUsers)
	fmt.Fprintf(&bld, "📋 Заявок всего: %d\n", stats.TotalForms)
	for _, kind := range models.FormKinds {
		if n := stats.FormsByKind[kind]; n > 0 {
			d := forms.Get(kind)
			fmt.Fprintf(&bld, "%s %s: %d\n", d.Emoji, titleRu(d.Accusative), n)
		}
	}
	return []models.Message{{Text: bld.String(), Menu: adminMenu()}}
}

// exportForms renders every stored form as indented JSON, grouped by kind.
func (b *Bot) exportForms() []models.Message {
	grouped := make(map[models.FormKind][]models.Form, len(models.FormKinds))
	for _, kind := range models.FormKinds {
		apps, err := b.store.ListFormsByKind(kind)
		if err != nil {
			slog.Error("Failed to export forms", "error", err, "kind", kind)
			return []models.Message{{Text: "❌ Не удалось выгрузить данные.", Menu: adminMenu()}}
		}
		grouped[kind] = apps
	}
	raw, err := json.MarshalIndent(grouped, "", "  ")
	if err != nil {
		slog.Error("Failed to encode export", "error", err)
		return []models.Message{{Text: "❌ Не удалось выгрузить данные.", Menu: adminMenu()}}
	}
	return []models.Message{{Text: "📥 Выгрузка данных:\n\n" + string(raw), Menu: adminMenu()}}
}
