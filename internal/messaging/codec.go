package messaging

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdcoding/IntakeBot/internal/models"
)

// EncodeAction serializes an inline action into compact callback data, e.g.
// "retry_delivery_42" or "edit_user_field_100_phone". DecodeAction is its
// inverse.
func EncodeAction(a models.Action) string {
	switch a.Kind {
	case models.ActionConfirm:
		return "confirm"
	case models.ActionCancel:
		if a.Form != "" {
			return "cancel_" + string(a.Form)
		}
		return "cancel"
	case models.ActionEditMenu:
		return "edit_menu"
	case models.ActionEditField:
		return "edit_field_" + a.Field
	case models.ActionBack:
		return "back_to_form"
	case models.ActionRetry:
		return fmt.Sprintf("retry_%s_%d", a.Form, a.Number)
	case models.ActionApprove:
		return "approve_" + a.UserID
	case models.ActionReject:
		return "reject_" + a.UserID
	case models.ActionEditUser:
		return "edit_user_" + a.UserID
	case models.ActionEditUserField:
		return "edit_user_field_" + a.UserID + "_" + a.Field
	case models.ActionDeleteUser:
		return "delete_user_" + a.UserID
	case models.ActionConfirmDelete:
		return "confirm_delete_" + a.UserID
	case models.ActionToggleAdmin:
		return "toggle_admin_" + a.UserID
	case models.ActionUserApps:
		return "user_applications_" + a.UserID
	case models.ActionPickKind:
		return "pick_kind_" + string(a.Form)
	case models.ActionEditApp:
		return "edit_app_" + strconv.FormatInt(a.AppID, 10)
	case models.ActionEditAppField:
		return "edit_app_field_" + strconv.FormatInt(a.AppID, 10) + "_" + a.Field
	case models.ActionDeleteApp:
		return "delete_app_" + strconv.FormatInt(a.AppID, 10)
	case models.ActionConfirmDeleteApp:
		return "confirm_delete_app_" + strconv.FormatInt(a.AppID, 10)
	case models.ActionToggleNumbering:
		return "toggle_auto_numbering"
	case models.ActionBackToAdmin:
		return "back_to_admin"
	}
	return string(a.Kind)
}

// DecodeAction parses callback data produced by EncodeAction. It reports
// false for unknown or malformed data.
func DecodeAction(data string) (models.Action, bool) {
	// Longest prefixes first: several action names share a prefix.
	switch {
	case data == "confirm":
		return models.Action{Kind: models.ActionConfirm}, true
	case data == "cancel":
		return models.Action{Kind: models.ActionCancel}, true
	case data == "edit_menu":
		return models.Action{Kind: models.ActionEditMenu}, true
	case data == "back_to_form":
		return models.Action{Kind: models.ActionBack}, true
	case data == "back_to_admin":
		return models.Action{Kind: models.ActionBackToAdmin}, true
	case data == "toggle_auto_numbering":
		return models.Action{Kind: models.ActionToggleNumbering}, true
	}

	if rest, ok := strings.CutPrefix(data, "confirm_delete_app_"); ok {
		return appAction(models.ActionConfirmDeleteApp, rest)
	}
	if rest, ok := strings.CutPrefix(data, "confirm_delete_"); ok {
		return models.Action{Kind: models.ActionConfirmDelete, UserID: rest}, rest != ""
	}
	if rest, ok := strings.CutPrefix(data, "edit_app_field_"); ok {
		id, field, ok := splitIDField(rest)
		if !ok {
			return models.Action{}, false
		}
		return models.Action{Kind: models.ActionEditAppField, AppID: id, Field: field}, true
	}
	if rest, ok := strings.CutPrefix(data, "edit_app_"); ok {
		return appAction(models.ActionEditApp, rest)
	}
	if rest, ok := strings.CutPrefix(data, "delete_app_"); ok {
		return appAction(models.ActionDeleteApp, rest)
	}
	if rest, ok := strings.CutPrefix(data, "edit_user_field_"); ok {
		i := strings.IndexByte(rest, '_')
		if i <= 0 || i == len(rest)-1 {
			return models.Action{}, false
		}
		return models.Action{Kind: models.ActionEditUserField, UserID: rest[:i], Field: rest[i+1:]}, true
	}
	if rest, ok := strings.CutPrefix(data, "edit_user_"); ok {
		return models.Action{Kind: models.ActionEditUser, UserID: rest}, rest != ""
	}
	if rest, ok := strings.CutPrefix(data, "edit_field_"); ok {
		return models.Action{Kind: models.ActionEditField, Field: rest}, rest != ""
	}
	if rest, ok := strings.CutPrefix(data, "delete_user_"); ok {
		return models.Action{Kind: models.ActionDeleteUser, UserID: rest}, rest != ""
	}
	if rest, ok := strings.CutPrefix(data, "toggle_admin_"); ok {
		return models.Action{Kind: models.ActionToggleAdmin, UserID: rest}, rest != ""
	}
	if rest, ok := strings.CutPrefix(data, "user_applications_"); ok {
		return models.Action{Kind: models.ActionUserApps, UserID: rest}, rest != ""
	}
	if rest, ok := strings.CutPrefix(data, "approve_"); ok {
		return models.Action{Kind: models.ActionApprove, UserID: rest}, rest != ""
	}
	if rest, ok := strings.CutPrefix(data, "reject_"); ok {
		return models.Action{Kind: models.ActionReject, UserID: rest}, rest != ""
	}
	if rest, ok := strings.CutPrefix(data, "pick_kind_"); ok {
		kind, err := models.ParseFormKind(rest)
		if err != nil {
			return models.Action{}, false
		}
		return models.Action{Kind: models.ActionPickKind, Form: kind}, true
	}
	if rest, ok := strings.CutPrefix(data, "cancel_"); ok {
		kind, err := models.ParseFormKind(rest)
		if err != nil {
			return models.Action{}, false
		}
		return models.Action{Kind: models.ActionCancel, Form: kind}, true
	}
	if rest, ok := strings.CutPrefix(data, "retry_"); ok {
		i := strings.LastIndexByte(rest, '_')
		if i <= 0 {
			return models.Action{}, false
		}
		kind, err := models.ParseFormKind(rest[:i])
		if err != nil {
			return models.Action{}, false
		}
		number, err := strconv.Atoi(rest[i+1:])
		if err != nil {
			return models.Action{}, false
		}
		return models.Action{Kind: models.ActionRetry, Form: kind, Number: number}, true
	}
	return models.Action{}, false
}

func appAction(kind models.ActionKind, rest string) (models.Action, bool) {
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return models.Action{}, false
	}
	return models.Action{Kind: kind, AppID: id}, true
}

func splitIDField(rest string) (int64, string, bool) {
	i := strings.IndexByte(rest, '_')
	if i <= 0 || i == len(rest)-1 {
		return 0, "", false
	}
	id, err := strconv.ParseInt(rest[:i], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return id, rest[i+1:], true
}
