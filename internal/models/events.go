// Package models defines the transport-neutral event and reply types.
//
// Transport adapters decode platform input (button captions, callback data)
// into these closed types exactly once at the boundary; the bot core never
// branches on presentation strings.
package models

// Command is a menu-level command selected by the user.
type Command string

const (
	CmdStart          Command = "start"
	CmdHelp           Command = "help"
	CmdRegister       Command = "register"
	CmdDelivery       Command = "delivery"
	CmdCheckin        Command = "checkin"
	CmdRefund         Command = "refund"
	CmdPainting       Command = "painting"
	CmdSettings       Command = "settings"
	CmdAdminPanel     Command = "admin_panel"
	CmdUserManagement Command = "user_management"
	CmdApplications   Command = "applications"
	CmdStats          Command = "stats"
	CmdExport         Command = "export"
	CmdMainMenu       Command = "main_menu"
	CmdCancel         Command = "cancel"
	CmdPrev           Command = "prev"
	CmdNext           Command = "next"
)

// FormCommand maps a form-kind menu command to its FormKind, or "" if the
// command does not start a form.
func FormCommand(c Command) FormKind {
	switch c {
	case CmdDelivery:
		return FormKindDelivery
	case CmdCheckin:
		return FormKindCheckin
	case CmdRefund:
		return FormKindRefund
	case CmdPainting:
		return FormKindPainting
	default:
		return ""
	}
}

// ActionKind identifies an inline action attached to a bot message.
type ActionKind string

const (
	ActionConfirm          ActionKind = "confirm"
	ActionCancel           ActionKind = "cancel"
	ActionEditMenu         ActionKind = "edit_menu"
	ActionEditField        ActionKind = "edit_field"
	ActionBack             ActionKind = "back"
	ActionRetry            ActionKind = "retry"
	ActionApprove          ActionKind = "approve"
	ActionReject           ActionKind = "reject"
	ActionEditUser         ActionKind = "edit_user"
	ActionEditUserField    ActionKind = "edit_user_field"
	ActionDeleteUser       ActionKind = "delete_user"
	ActionConfirmDelete    ActionKind = "confirm_delete"
	ActionToggleAdmin      ActionKind = "toggle_admin"
	ActionUserApps         ActionKind = "user_apps"
	ActionPickKind         ActionKind = "pick_kind"
	ActionEditApp          ActionKind = "edit_app"
	ActionEditAppField     ActionKind = "edit_app_field"
	ActionDeleteApp        ActionKind = "delete_app"
	ActionConfirmDeleteApp ActionKind = "confirm_delete_app"
	ActionToggleNumbering  ActionKind = "toggle_numbering"
	ActionBackToAdmin      ActionKind = "back_to_admin"
)

// Action is a decoded inline action. Only the arguments relevant to the
// action kind are populated.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Form   FormKind   `json:"form,omitempty"`   // retry, pick_kind
	Number int        `json:"number,omitempty"` // retry
	Field  string     `json:"field,omitempty"`  // edit_field, edit_user_field, edit_app_field
	UserID string     `json:"user_id,omitempty"`
	AppID  int64      `json:"app_id,omitempty"`
}

// EventType distinguishes the shapes of inbound events.
type EventType string

const (
	// EventCommand is a menu command (button press or slash command).
	EventCommand EventType = "command"
	// EventText is free-form text input.
	EventText EventType = "text"
	// EventAction is an inline action (callback button press).
	EventAction EventType = "action"
)

// Event is one inbound chat event, already decoded by the transport adapter.
type Event struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username,omitempty"`
	Type     EventType `json:"type"`
	Text     string    `json:"text,omitempty"`
	Command  Command   `json:"command,omitempty"`
	Action   Action    `json:"action,omitempty"`
	Time     int64     `json:"time"`
}

// Choice is one selectable inline action offered with a message.
type Choice struct {
	Label  string `json:"label"`
	Action Action `json:"action"`
}

// Menu is a persistent keyboard of menu commands. Adapters render the
// platform captions for each command.
type Menu struct {
	Rows [][]Command `json:"rows,omitempty"`
}

// IsZero reports whether the menu carries no rows.
func (m Menu) IsZero() bool { return len(m.Rows) == 0 }

// Message is one outbound reply: plain text, optionally with inline choices
// or a replacement menu keyboard.
type Message struct {
	Text    string   `json:"text"`
	Choices []Choice `json:"choices,omitempty"`
	Menu    Menu     `json:"menu,omitempty"`
}
