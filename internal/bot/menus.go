package bot

import (
	"log/slog"

	"github.com/gdcoding/IntakeBot/internal/models"
)

// mainMenu builds the role-dependent persistent keyboard.
func (b *Bot) mainMenu(userID string) models.Menu {
	registered := b.isApproved(userID)
	admin := b.isAdmin(userID)

	var rows [][]models.Command
	if registered || admin {
		rows = [][]models.Command{
			{models.CmdDelivery, models.CmdCheckin},
			{models.CmdRefund, models.CmdPainting},
			{models.CmdSettings},
			{models.CmdHelp},
		}
	} else {
		rows = [][]models.Command{
			{models.CmdRegister, models.CmdHelp},
		}
	}
	if admin {
		rows = append(rows, []models.Command{models.CmdAdminPanel})
	}
	return models.Menu{Rows: rows}
}

// adminMenu is the admin panel keyboard.
func adminMenu() models.Menu {
	return models.Menu{Rows: [][]models.Command{
		{models.CmdUserManagement},
		{models.CmdStats, models.CmdApplications},
		{models.CmdExport},
		{models.CmdMainMenu},
	}}
}

// navMenu builds prev/back/next for paginated lists.
func navMenu(page, total int) models.Menu {
	var row []models.Command
	if page > 0 {
		row = append(row, models.CmdPrev)
	}
	row = append(row, models.CmdMainMenu)
	if page < total-1 {
		row = append(row, models.CmdNext)
	}
	return models.Menu{Rows: [][]models.Command{row}}
}

func (b *Bot) isAdmin(userID string) bool {
	if _, ok := b.adminIDs[userID]; ok {
		return true
	}
	u, err := b.store.GetUser(userID)
	if err != nil {
		slog.Error("Admin check failed", "error", err, "userID", userID)
		return false
	}
	return u != nil && u.Admin
}

func (b *Bot) isApproved(userID string) bool {
	u, err := b.store.GetUser(userID)
	if err != nil {
		slog.Error("Registration check failed", "error", err, "userID", userID)
		return false
	}
	return u != nil && u.Approved
}
