package bitrix

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdcoding/IntakeBot/internal/models"
)

// Routing carries the per-kind task assignment pulled from configuration.
type Routing struct {
	ResponsibleID int
	Auditors      []int
}

// Sink pushes confirmed forms to Bitrix24 as tasks. It resolves the creator
// profile by full name, so the submitter must exist as an active Bitrix24
// user.
type Sink struct {
	client        *Client
	routing       map[models.FormKind]Routing
	ownerFullName string
	adminIDs      map[string]struct{}
}

// NewSink creates a task sink. Forms submitted by the listed admin IDs are
// attributed to ownerFullName instead of the submitter, because admins are
// not required to have a Bitrix24 profile of their own.
func NewSink(client *Client, routing map[models.FormKind]Routing, ownerFullName string, adminIDs []string) *Sink {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Sink{
		client:        client,
		routing:       routing,
		ownerFullName: ownerFullName,
		adminIDs:      admins,
	}
}

// Push creates a Bitrix24 task for the form. The returned error is meant for
// the user-facing retry path; it is safe to call Push again with the same
// form.
func (s *Sink) Push(ctx context.Context, f models.Form) error {
	fullname := f.CreatorFullName
	if _, ok := s.adminIDs[f.UserID]; ok && s.ownerFullName != "" {
		fullname = s.ownerFullName
		slog.Debug("Attributing form to bot owner", "kind", f.Kind, "number", f.Number)
	}

	user, err := s.client.SearchUser(ctx, fullname)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("пользователь с ФИО '%s' не найден в Битрикс24", fullname)
	}
	if user.ID == "" {
		return fmt.Errorf("не удалось получить ID пользователя из Битрикс24")
	}

	route := s.routing[f.Kind]
	task := Task{
		Title:         TaskTitle(f),
		Description:   TaskDescription(f, fullname),
		ResponsibleID: route.ResponsibleID,
		CreatedBy:     user.ID,
		Auditors:      route.Auditors,
	}
	if err := s.client.CreateTask(ctx, task); err != nil {
		return err
	}
	slog.Info("Form pushed to Bitrix24", "kind", f.Kind, "number", f.Number, "creator", fullname)
	return nil
}

// TaskTitle renders the Bitrix24 task title for a form.
func TaskTitle(f models.Form) string {
	contract := f.Values["contract"]
	switch f.Kind {
	case models.FormKindDelivery:
		return "Доставка Договор: " + contract
	case models.FormKindRefund:
		return "Возврат материалов Договор: " + contract
	case models.FormKindPainting:
		return "Покраска Договор: " + contract
	case models.FormKindCheckin:
		return "Заезд Договор: " + contract
	}
	return "Заявка Договор: " + contract
}

// TaskDescription renders the Bitrix24 task description. Every description
// ends with the form number, submission date and the creator's full name.
func TaskDescription(f models.Form, fullname string) string {
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	trailer := fmt.Sprintf("\n\nЗаявка #%d от %s\n%s", f.Number, created.Format("02.01.2006"), fullname)

	if f.Kind == models.FormKindCheckin {
		return fmt.Sprintf(
			"Договор: %s\nДата Заезда: %s\nФИО Бригадира: %s\nНомер бригадира: %s\nГрузоподъёмность: %s",
			f.Values["contract"], f.Values["date"], f.Values["brig_name"], f.Values["brig_phone"], f.Values["capacity"],
		) + trailer
	}
	return f.Values["text"] + trailer
}
