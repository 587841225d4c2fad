package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gdcoding/IntakeBot/internal/forms"
	"github.com/gdcoding/IntakeBot/internal/models"
)

// startRegistration launches the registration wizard: the fields are asked
// one by one through one-shot input hooks, then the application goes to the
// admins for approval.
func (b *Bot) startRegistration(userID, username string) []models.Message {
	if b.isAdmin(userID) {
		return []models.Message{{Text: "Вы являетесь администратором бота, регистрация не требуется.", Menu: b.mainMenu(userID)}}
	}
	if b.isApproved(userID) {
		return []models.Message{{Text: "Вы уже зарегистрированы.", Menu: b.mainMenu(userID)}}
	}
	values := make(map[string]string)
	b.setHook(userID, b.registrationStep(0, username, values))
	return []models.Message{{
		Text: "📝 Регистрация\n\n" + forms.RegistrationFields[0].Prompt,
		Menu: models.Menu{Rows: [][]models.Command{{models.CmdCancel}}},
	}}
}

// registrationStep builds the hook collecting field i.
func (b *Bot) registrationStep(i int, username string, values map[string]string) inputHook {
	return func(ctx context.Context, ev models.Event) []models.Message {
		field := forms.RegistrationFields[i]
		value, err := field.Validate(ev.Text)
		if err != nil {
			b.setHook(ev.UserID, b.registrationStep(i, username, values))
			return []models.Message{{Text: err.Error(), Menu: models.Menu{Rows: [][]models.Command{{models.CmdCancel}}}}}
		}
		values[field.Name] = value

		if i+1 < len(forms.RegistrationFields) {
			b.setHook(ev.UserID, b.registrationStep(i+1, username, values))
			return []models.Message{{
				Text: forms.RegistrationFields[i+1].Prompt,
				Menu: models.Menu{Rows: [][]models.Command{{models.CmdCancel}}},
			}}
		}
		return b.finishRegistration(ev.UserID, username, values)
	}
}

func (b *Bot) finishRegistration(userID, username string, values map[string]string) []models.Message {
	u := models.User{
		ID:         userID,
		Username:   username,
		FullName:   values["fullname"],
		Phone:      values["phone"],
		Position:   values["position"],
		Department: values["department"],
	}
	if err := b.store.UpsertUser(u); err != nil {
		slog.Error("Failed to save registration", "error", err, "userID", userID)
		return []models.Message{{
			Text: "❌ Произошла ошибка при сохранении. Пожалуйста, попробуйте позже.",
			Menu: b.mainMenu(userID),
		}}
	}
	slog.Info("Registration application saved", "userID", userID, "fullname", u.FullName)

	b.notifyAdmins(u)

	return []models.Message{{
		Text: "✅ Ваша заявка на регистрацию отправлена администратору.\nВы получите уведомление после подтверждения.",
		Menu: b.mainMenu(userID),
	}}
}

// notifyAdmins sends the pending application to every configured admin with
// approve and reject buttons.
func (b *Bot) notifyAdmins(u models.User) {
	text := fmt.Sprintf("📝 Новая заявка на регистрацию:\n\n"+
		"👤 ФИО: %s\n📱 Телефон: %s\n🏢 Должность: %s\n🏢 Подразделение: %s\n🆔 ID: %s",
		u.FullName, u.Phone, u.Position, u.Department, u.ID)
	msg := models.Message{
		Text: text,
		Choices: []models.Choice{
			{Label: "✅ Подтвердить", Action: models.Action{Kind: models.ActionApprove, UserID: u.ID}},
			{Label: "❌ Отклонить", Action: models.Action{Kind: models.ActionReject, UserID: u.ID}},
		},
	}
	for _, adminID := range b.cfg.AdminIDs {
		if err := b.svc.Send(context.Background(), adminID, msg); err != nil {
			slog.Error("Failed to notify admin", "error", err, "adminID", adminID)
		}
	}
}

// handleApprove confirms a pending registration and notifies the user.
func (b *Bot) handleApprove(ctx context.Context, userID string) []models.Message {
	u, err := b.store.GetUser(userID)
	if err != nil || u == nil {
		slog.Error("Approve failed: user not found", "error", err, "userID", userID)
		return []models.Message{{Text: "❌ Заявка на регистрацию не найдена."}}
	}
	if err := b.store.SetUserApproved(userID, true); err != nil {
		slog.Error("Approve failed", "error", err, "userID", userID)
		return []models.Message{{Text: "❌ Не удалось подтвердить регистрацию."}}
	}
	slog.Info("Registration approved", "userID", userID)

	notice := models.Message{
		Text: "✅ Ваша регистрация подтверждена администратором!\nТеперь вам доступно создание заявок.",
		Menu: b.mainMenu(userID),
	}
	if err := b.svc.Send(ctx, userID, notice); err != nil {
		slog.Error("Failed to notify approved user", "error", err, "userID", userID)
	}
	return []models.Message{{Text: fmt.Sprintf("✅ Регистрация пользователя %s подтверждена.", u.FullName)}}
}

// handleReject declines a pending registration, removes the record and
// notifies the user.
func (b *Bot) handleReject(ctx context.Context, userID string) []models.Message {
	u, err := b.store.GetUser(userID)
	if err != nil || u == nil {
		slog.Error("Reject failed: user not found", "error", err, "userID", userID)
		return []models.Message{{Text: "❌ Заявка на регистрацию не найдена."}}
	}
	if err := b.store.DeleteUser(userID); err != nil {
		slog.Error("Reject failed", "error", err, "userID", userID)
		return []models.Message{{Text: "❌ Не удалось отклонить регистрацию."}}
	}
	slog.Info("Registration rejected", "userID", userID)

	notice := models.Message{Text: "❌ Ваша регистрация отклонена администратором."}
	if err := b.svc.Send(ctx, userID, notice); err != nil {
		slog.Error("Failed to notify rejected user", "error", err, "userID", userID)
	}
	return []models.Message{{Text: fmt.Sprintf("❌ Регистрация пользователя %s отклонена.", u.FullName)}}
}
