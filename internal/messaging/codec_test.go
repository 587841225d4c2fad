package messaging

import (
	"testing"

	"github.com/gdcoding/IntakeBot/internal/models"
)

func TestActionRoundTrip(t *testing.T) {
	actions := []models.Action{
		{Kind: models.ActionConfirm},
		{Kind: models.ActionCancel},
		{Kind: models.ActionCancel, Form: models.FormKindDelivery},
		{Kind: models.ActionEditMenu},
		{Kind: models.ActionEditField, Field: "contract"},
		{Kind: models.ActionBack},
		{Kind: models.ActionRetry, Form: models.FormKindDelivery, Number: 42},
		{Kind: models.ActionRetry, Form: models.FormKindCheckin, Number: 7},
		{Kind: models.ActionApprove, UserID: "100"},
		{Kind: models.ActionReject, UserID: "100"},
		{Kind: models.ActionEditUser, UserID: "100"},
		{Kind: models.ActionEditUserField, UserID: "100", Field: "phone"},
		{Kind: models.ActionDeleteUser, UserID: "100"},
		{Kind: models.ActionConfirmDelete, UserID: "100"},
		{Kind: models.ActionToggleAdmin, UserID: "100"},
		{Kind: models.ActionUserApps, UserID: "100"},
		{Kind: models.ActionPickKind, Form: models.FormKindPainting},
		{Kind: models.ActionEditApp, AppID: 15},
		{Kind: models.ActionEditAppField, AppID: 15, Field: "text"},
		{Kind: models.ActionDeleteApp, AppID: 15},
		{Kind: models.ActionConfirmDeleteApp, AppID: 15},
		{Kind: models.ActionToggleNumbering},
		{Kind: models.ActionBackToAdmin},
	}
	for _, a := range actions {
		data := EncodeAction(a)
		got, ok := DecodeAction(data)
		if !ok {
			t.Errorf("DecodeAction(%q) failed", data)
			continue
		}
		if got != a {
			t.Errorf("round trip of %+v via %q yielded %+v", a, data, got)
		}
	}
}

func TestDecodeActionKnownShapes(t *testing.T) {
	a, ok := DecodeAction("retry_delivery_42")
	if !ok || a.Kind != models.ActionRetry || a.Form != models.FormKindDelivery || a.Number != 42 {
		t.Errorf("retry_delivery_42 decoded wrong: %+v", a)
	}
	a, ok = DecodeAction("edit_user_field_100_phone")
	if !ok || a.UserID != "100" || a.Field != "phone" {
		t.Errorf("edit_user_field decoded wrong: %+v", a)
	}
}

func TestDecodeActionRejectsGarbage(t *testing.T) {
	for _, data := range []string{"", "retry_", "retry_delivery_", "retry_unknown_1", "cancel_unknown", "edit_app_xx", "something_else"} {
		if a, ok := DecodeAction(data); ok {
			t.Errorf("DecodeAction(%q) should fail, got %+v", data, a)
		}
	}
}

func TestCaptionMappingIsInvertible(t *testing.T) {
	for cmd, caption := range commandCaptions {
		got, ok := CaptionCommand(caption)
		if !ok || got != cmd {
			t.Errorf("caption %q maps to %q, want %q", caption, got, cmd)
		}
	}
}
