// Package forms declares the form definition registry: the ordered field
// lists, validation rules and summary/task templates for every form kind.
//
// The registry is pure and side-effect free. An unrecognized kind is a
// programmer error, not a runtime failure.
package forms

import (
	"fmt"
	"strings"

	"github.com/gdcoding/IntakeBot/internal/models"
)

// FieldSpec describes one field collected from the user.
type FieldSpec struct {
	// Name is the stable identifier the value is stored under.
	Name string
	// Label is the caption used in summaries and task descriptions.
	Label string
	// Prompt is the question shown when the field is requested.
	Prompt string
	// EditPrompt is the question shown when the field is revised from the
	// confirmation screen.
	EditPrompt string
	// Validate checks raw input and returns the normalized value, or an
	// error whose message is shown to the user verbatim.
	Validate func(raw string) (string, error)
}

// Definition is the complete declaration of one form kind.
type Definition struct {
	Kind models.FormKind
	// Accusative is the Russian accusative form name used in messages
	// ("заявка на доставку").
	Accusative string
	// Emoji prefixes the prompts and summaries of this kind.
	Emoji  string
	Fields []FieldSpec
}

var definitions = map[models.FormKind]Definition{}

func register(d Definition) {
	definitions[d.Kind] = d
}

func init() {
	register(Definition{
		Kind:       models.FormKindDelivery,
		Accusative: "доставку",
		Emoji:      "🚚",
		Fields: []FieldSpec{
			{Name: "contract", Label: "📄 Номер договора", Prompt: "📄 Пожалуйста, введите номер договора:", EditPrompt: "📄 Введите новый номер договора:", Validate: AcceptAny},
			{Name: "text", Label: "📝 Текст заявки", Prompt: "📝 Теперь введите текст заявки:", EditPrompt: "📝 Введите новый текст заявки:", Validate: NonEmpty("❌ Текст заявки не может быть пустым. Пожалуйста, введите информацию:")},
		},
	})
	register(Definition{
		Kind:       models.FormKindRefund,
		Accusative: "возврат",
		Emoji:      "🔙",
		Fields: []FieldSpec{
			{Name: "contract", Label: "📄 Номер договора", Prompt: "📄 Пожалуйста, введите номер договора:", EditPrompt: "📄 Введите новый номер договора:", Validate: AcceptAny},
			{Name: "text", Label: "📝 Текст заявки", Prompt: "📝 Теперь введите текст заявки:", EditPrompt: "📝 Введите новый текст заявки:", Validate: NonEmpty("❌ Текст заявки не может быть пустым. Пожалуйста, введите информацию:")},
		},
	})
	register(Definition{
		Kind:       models.FormKindPainting,
		Accusative: "покраску",
		Emoji:      "🎨",
		Fields: []FieldSpec{
			{Name: "contract", Label: "📄 Номер договора", Prompt: "📄 Пожалуйста, введите номер договора:", EditPrompt: "📄 Введите новый номер договора:", Validate: AcceptAny},
			{Name: "text", Label: "📝 Текст заявки", Prompt: "📝 Теперь введите текст заявки:", EditPrompt: "📝 Введите новый текст заявки:", Validate: NonEmpty("❌ Текст заявки не может быть пустым. Пожалуйста, введите информацию:")},
		},
	})
	register(Definition{
		Kind:       models.FormKindCheckin,
		Accusative: "заезд",
		Emoji:      "🏎️",
		Fields: []FieldSpec{
			{Name: "contract", Label: "📄 Номер договора", Prompt: "📄 Пожалуйста, введите номер договора:", EditPrompt: "📄 Введите новый номер договора:", Validate: AcceptAny},
			{Name: "date", Label: "📅 Дата заезда", Prompt: "📅 Введите дату заезда (например, 01.01.2023):", EditPrompt: "📅 Введите новую дату заезда:", Validate: AcceptAny},
			{Name: "brig_name", Label: "👤 ФИО бригадира", Prompt: "👤 Введите ФИО бригадира:", EditPrompt: "👤 Введите новое ФИО бригадира:", Validate: ValidateFullName},
			{Name: "brig_phone", Label: "📱 Номер бригадира", Prompt: "📱 Введите номер телефона бригадира:", EditPrompt: "📱 Введите новый номер телефона бригадира:", Validate: ValidatePhone},
			{Name: "capacity", Label: "⚖️ Грузоподъёмность", Prompt: "⚖️ Введите грузоподъёмность:", EditPrompt: "⚖️ Введите новую информацию о грузоподъёмности:", Validate: AcceptAny},
		},
	})
}

// Get returns the definition for the given kind. Passing an unknown kind
// panics: kinds are a closed enumeration decoded at the transport boundary.
func Get(kind models.FormKind) Definition {
	d, ok := definitions[kind]
	if !ok {
		panic(fmt.Sprintf("forms: no definition for kind %q", kind))
	}
	return d
}

// Fields returns the ordered field list for the given kind.
func Fields(kind models.FormKind) []FieldSpec {
	return Get(kind).Fields
}

// Field returns the spec with the given name, or false if the kind has no
// such field.
func Field(kind models.FormKind, name string) (FieldSpec, bool) {
	for _, f := range Get(kind).Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Summary renders the human-readable field listing shown before confirmation.
// Lines follow the registry field order; missing values render as a dash.
func Summary(kind models.FormKind, values map[string]string) string {
	var b strings.Builder
	for i, f := range Get(kind).Fields {
		if i > 0 {
			b.WriteByte('\n')
		}
		v := values[f.Name]
		if v == "" {
			v = "—"
		}
		fmt.Fprintf(&b, "%s: %s", f.Label, v)
	}
	return b.String()
}

// RegistrationFields is the ordered field list of the registration wizard.
// It shares the validator set with the form definitions.
var RegistrationFields = []FieldSpec{
	{Name: "fullname", Label: "ФИО", Prompt: "Пожалуйста, введите ваше ФИО полностью (Фамилия Имя Отчество):", Validate: ValidateFullName},
	{Name: "phone", Label: "Телефон", Prompt: "Теперь введите ваш номер телефона в формате +7XXXXXXXXXX или 8XXXXXXXXXX:", Validate: ValidatePhone},
	{Name: "position", Label: "Должность", Prompt: "Укажите вашу должность (не менее 3 символов):", Validate: MinLen(3, "❌ Пожалуйста, введите корректную должность (не менее 3 символов).")},
	{Name: "department", Label: "Подразделение", Prompt: "Укажите ваше подразделение (не менее 2 символов):", Validate: MinLen(2, "❌ Пожалуйста, введите корректное название подразделения (не менее 2 символов).")},
}
