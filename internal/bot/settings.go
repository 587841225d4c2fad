package bot

import (
	"log/slog"

	"github.com/gdcoding/IntakeBot/internal/models"
)

func settingsMessage(set models.UserSettings) models.Message {
	status := "❌ Выключен"
	if set.AutoNumbering {
		status = "✅ Включен"
	}
	text := "⚙️ Настройки\n\n" +
		"Автонумерация в Доставке — автоматически добавляет номера к каждой строке " +
		"в списке товаров, если нумерация отсутствует."
	return models.Message{
		Text: text,
		Choices: []models.Choice{
			{Label: "Автонумерация в Доставке: " + status, Action: models.Action{Kind: models.ActionToggleNumbering}},
		},
	}
}

func (b *Bot) showSettings(userID string) []models.Message {
	set, err := b.store.GetUserSettings(userID)
	if err != nil {
		slog.Error("Failed to load settings", "error", err, "userID", userID)
		return []models.Message{{Text: "❌ Не удалось загрузить настройки.", Menu: b.mainMenu(userID)}}
	}
	return []models.Message{settingsMessage(set)}
}

func (b *Bot) toggleNumbering(userID string) []models.Message {
	set, err := b.store.GetUserSettings(userID)
	if err != nil {
		slog.Error("Failed to load settings", "error", err, "userID", userID)
		return []models.Message{{Text: "❌ Не удалось загрузить настройки.", Menu: b.mainMenu(userID)}}
	}
	set.AutoNumbering = !set.AutoNumbering
	if err := b.store.UpdateUserSettings(userID, set); err != nil {
		slog.Error("Failed to update settings", "error", err, "userID", userID)
		return []models.Message{{Text: "❌ Не удалось сохранить настройки.", Menu: b.mainMenu(userID)}}
	}
	slog.Info("Auto numbering toggled", "userID", userID, "enabled", set.AutoNumbering)
	return []models.Message{settingsMessage(set)}
}
