// Package engine runs the form submission workflow: collect fields in order,
// confirm or edit, allocate the form number, persist and push to the task
// sink. It is transport-neutral and produces reply messages for the adapter
// to render.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/gdcoding/IntakeBot/internal/forms"
	"github.com/gdcoding/IntakeBot/internal/models"
	"github.com/gdcoding/IntakeBot/internal/session"
	"github.com/gdcoding/IntakeBot/internal/store"
)

// TaskSink receives confirmed forms. Push must be safe to call again with
// the same form after a failure.
type TaskSink interface {
	Push(ctx context.Context, f models.Form) error
}

// MenuFunc renders the main menu keyboard for a user. The engine attaches it
// to terminal replies so the user lands back in the menu.
type MenuFunc func(userID string) models.Menu

// Engine drives form collection sessions.
type Engine struct {
	sessions *session.Manager
	store    store.Store
	sink     TaskSink
	menuFor  MenuFunc
}

// New creates an engine. menuFor may be nil, in which case terminal replies
// carry no keyboard.
func New(sessions *session.Manager, st store.Store, sink TaskSink, menuFor MenuFunc) *Engine {
	if menuFor == nil {
		menuFor = func(string) models.Menu { return models.Menu{} }
	}
	return &Engine{sessions: sessions, store: st, sink: sink, menuFor: menuFor}
}

// Active reports whether the user has a form session in progress.
func (e *Engine) Active(userID string) bool {
	return e.sessions.Get(userID) != nil
}

var cancelMenu = models.Menu{Rows: [][]models.Command{{models.CmdCancel}}}

// Start begins a new form session, discarding any previous one.
func (e *Engine) Start(userID string, kind models.FormKind) []models.Message {
	e.sessions.Create(userID, kind)
	d := forms.Get(kind)
	slog.Debug("Form session started", "userID", userID, "kind", kind)
	return []models.Message{{
		Text: d.Emoji + " " + strings.TrimPrefix(d.Fields[0].Prompt, emojiPrefix(d.Fields[0].Prompt)),
		Menu: cancelMenu,
	}}
}

// emojiPrefix returns the leading emoji token of a prompt, including the
// trailing space, or "" when the prompt starts with text.
func emojiPrefix(prompt string) string {
	i := strings.IndexByte(prompt, ' ')
	if i <= 0 {
		return ""
	}
	for _, r := range prompt[:i] {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return ""
		}
	}
	return prompt[:i+1]
}

// Input feeds free-form text into the active session. The returned bool is
// false when the user has no session and the text belongs to someone else.
func (e *Engine) Input(ctx context.Context, userID, text string) (bool, []models.Message) {
	s := e.sessions.Get(userID)
	if s == nil {
		return false, nil
	}
	d := forms.Get(s.Kind)

	var field forms.FieldSpec
	switch s.Phase {
	case models.PhaseCollecting:
		field = d.Fields[s.Index]
	case models.PhaseEditing:
		f, ok := forms.Field(s.Kind, s.EditField)
		if !ok {
			e.sessions.Clear(userID)
			return true, []models.Message{{Text: "❌ Произошла ошибка. Пожалуйста, начните заново.", Menu: e.menuFor(userID)}}
		}
		field = f
	default:
		// Free text while the confirmation screen is up.
		return true, []models.Message{{Text: "Пожалуйста, проверьте данные и выберите действие:", Choices: confirmChoices()}}
	}

	value, err := field.Validate(strings.TrimSpace(text))
	if err != nil {
		return true, []models.Message{{Text: err.Error(), Menu: cancelMenu}}
	}
	if s.Kind == models.FormKindDelivery && field.Name == "text" {
		value = e.applyAutoNumbering(userID, value)
	}
	s.Values[field.Name] = value

	updated := false
	if s.Phase == models.PhaseEditing {
		s.EditField = ""
		s.Phase = models.PhaseConfirming
		updated = true
	} else {
		s.Index++
		if s.Index < len(d.Fields) {
			e.sessions.Touch(userID)
			return true, []models.Message{{Text: d.Fields[s.Index].Prompt, Menu: cancelMenu}}
		}
		s.Phase = models.PhaseConfirming
	}
	e.sessions.Touch(userID)
	return true, []models.Message{e.summaryMessage(s, updated)}
}

// applyAutoNumbering prepends line numbers to the delivery item list when
// the user enabled the setting and the text is not numbered already.
func (e *Engine) applyAutoNumbering(userID, text string) string {
	set, err := e.store.GetUserSettings(userID)
	if err != nil {
		slog.Error("Failed to load user settings", "error", err, "userID", userID)
		return text
	}
	if !set.AutoNumbering {
		return text
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if len(t) >= 3 && t[0] >= '0' && t[0] <= '9' && (t[1:3] == ". " || t[1:3] == ") ") {
			return text
		}
	}
	numbered := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			numbered[i] = line
			continue
		}
		numbered[i] = fmt.Sprintf("%d. %s", i+1, line)
	}
	return strings.Join(numbered, "\n")
}

func confirmChoices() []models.Choice {
	return []models.Choice{
		{Label: "✏️ Изменить", Action: models.Action{Kind: models.ActionEditMenu}},
		{Label: "✅ Подтвердить", Action: models.Action{Kind: models.ActionConfirm}},
		{Label: "❌ Отменить", Action: models.Action{Kind: models.ActionCancel}},
	}
}

func (e *Engine) summaryMessage(s *models.Session, updated bool) models.Message {
	d := forms.Get(s.Kind)
	suffix := ""
	if updated {
		suffix = " (обновлено)"
	}
	text := fmt.Sprintf("%s Ваша заявка на %s%s:\n\n%s\n\nПожалуйста, проверьте данные и выберите действие:",
		d.Emoji, d.Accusative, suffix, forms.Summary(s.Kind, s.Values))
	return models.Message{Text: text, Choices: confirmChoices()}
}

// EditMenu offers the list of fields to revise.
func (e *Engine) EditMenu(userID string) []models.Message {
	s := e.sessions.Get(userID)
	if s == nil {
		return e.noSession(userID)
	}
	var choices []models.Choice
	for _, f := range forms.Fields(s.Kind) {
		choices = append(choices, models.Choice{
			Label:  f.Label,
			Action: models.Action{Kind: models.ActionEditField, Field: f.Name},
		})
	}
	choices = append(choices, models.Choice{Label: "🔙 Назад", Action: models.Action{Kind: models.ActionBack}})
	e.sessions.Touch(userID)
	return []models.Message{{Text: "✏️ Выберите, что хотите изменить:", Choices: choices}}
}

// EditField switches the session into revising one field.
func (e *Engine) EditField(userID, field string) []models.Message {
	s := e.sessions.Get(userID)
	if s == nil {
		return e.noSession(userID)
	}
	spec, ok := forms.Field(s.Kind, field)
	if !ok {
		return []models.Message{{Text: "❌ Неизвестное поле.", Choices: confirmChoices()}}
	}
	s.Phase = models.PhaseEditing
	s.EditField = field
	e.sessions.Touch(userID)
	return []models.Message{{Text: spec.EditPrompt}}
}

// Back returns from the edit menu to the confirmation screen.
func (e *Engine) Back(userID string) []models.Message {
	s := e.sessions.Get(userID)
	if s == nil {
		return e.noSession(userID)
	}
	s.Phase = models.PhaseConfirming
	s.EditField = ""
	e.sessions.Touch(userID)
	return []models.Message{e.summaryMessage(s, false)}
}

// Cancel abandons the session. It is also used for the cancel branch of the
// retry prompt, where no session exists and the kind comes from the action.
func (e *Engine) Cancel(userID string, kind models.FormKind) []models.Message {
	if s := e.sessions.Get(userID); s != nil {
		kind = s.Kind
		e.sessions.Clear(userID)
	}
	name := "заявки"
	if kind != "" {
		name = forms.Get(kind).Accusative
	}
	slog.Debug("Form session cancelled", "userID", userID, "kind", kind)
	return []models.Message{
		{Text: fmt.Sprintf("❌ Создание заявки на %s отменено.", name)},
		{Text: "Вы вернулись в главное меню", Menu: e.menuFor(userID)},
	}
}

// Confirm finalizes the session: allocate the number, persist, push. The
// number is allocated exactly once; a failed push keeps it and offers a
// retry by (kind, number) lookup.
func (e *Engine) Confirm(ctx context.Context, userID, fullName string) []models.Message {
	s := e.sessions.Get(userID)
	if s == nil {
		return e.noSession(userID)
	}
	if s.Phase != models.PhaseConfirming {
		return []models.Message{{Text: "Пожалуйста, сначала заполните все поля заявки."}}
	}
	kind := s.Kind
	values := s.Values
	e.sessions.Clear(userID)

	number, err := e.store.NextFormNumber(kind)
	if err != nil {
		slog.Error("Form number allocation failed", "error", err, "userID", userID, "kind", kind)
		return []models.Message{
			{Text: "❌ Произошла ошибка при сохранении заявки. Пожалуйста, попробуйте позже."},
			{Text: "Вы вернулись в главное меню", Menu: e.menuFor(userID)},
		}
	}

	form := models.Form{
		Kind:            kind,
		Number:          number,
		UserID:          userID,
		CreatorFullName: fullName,
		Values:          values,
		CreatedAt:       time.Now(),
	}
	// Persist before the push so a retry can re-read the exact same form.
	if err := e.store.SaveForm(form); err != nil {
		slog.Error("Speculative form save failed", "error", err, "kind", kind, "number", number)
	}

	return e.push(ctx, form, false)
}

// Retry re-reads a previously numbered form and pushes it again.
func (e *Engine) Retry(ctx context.Context, userID string, kind models.FormKind, number int) []models.Message {
	form, err := e.store.GetFormByKindAndNumber(kind, number)
	if err != nil {
		slog.Error("Retry lookup failed", "error", err, "kind", kind, "number", number)
	}
	if form == nil {
		return []models.Message{
			{Text: "❌ Заявка не найдена. Пожалуйста, создайте новую заявку."},
			{Text: "Вы вернулись в главное меню", Menu: e.menuFor(userID)},
		}
	}
	return e.push(ctx, *form, true)
}

func (e *Engine) push(ctx context.Context, form models.Form, isRetry bool) []models.Message {
	if err := e.sink.Push(ctx, form); err != nil {
		slog.Error("Form push failed", "error", err, "kind", form.Kind, "number", form.Number, "retry", isRetry)
		intro := "❌ Произошла ошибка при отправке заявки в Битрикс24."
		if isRetry {
			intro = "❌ Снова произошла ошибка при отправке заявки в Битрикс24."
		}
		text := fmt.Sprintf("%s\n\nНомер заявки: #%d\nТип заявки: %s\nОшибка: %s\n\nПожалуйста, попробуйте отправить заявку повторно или отмените её.",
			intro, form.Number, form.Kind, err.Error())
		return []models.Message{{
			Text: text,
			Choices: []models.Choice{
				{Label: "🔄 Отправить повторно", Action: models.Action{Kind: models.ActionRetry, Form: form.Kind, Number: form.Number}},
				{Label: "❌ Отменить", Action: models.Action{Kind: models.ActionCancel, Form: form.Kind}},
			},
		}}
	}

	verb := "создана"
	if isRetry {
		verb = "отправлена"
	}
	slog.Info("Form submitted", "kind", form.Kind, "number", form.Number, "userID", form.UserID, "retry", isRetry)
	return []models.Message{
		{Text: fmt.Sprintf("✅ Ваша заявка на %s №%d успешно %s!", forms.Get(form.Kind).Accusative, form.Number, verb)},
		{Text: "Вы вернулись в главное меню", Menu: e.menuFor(form.UserID)},
	}
}

func (e *Engine) noSession(userID string) []models.Message {
	return []models.Message{{Text: "У вас нет активной заявки.", Menu: e.menuFor(userID)}}
}
