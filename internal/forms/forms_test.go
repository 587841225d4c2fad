package forms

import (
	"strings"
	"testing"

	"github.com/gdcoding/IntakeBot/internal/models"
)

func TestValidateFullName(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"Ivanov Petr", true},
		{"Ivanov Petr Sergeevich", true},
		{"Иванов Пётр Сергеевич", true},
		{"  Ivanov   Petr  ", true},
		{"Ivanov123", false},
		{"Ivanov", false},
		{"Ivanov Petr2", false},
		{"", false},
	}
	for _, c := range cases {
		v, err := ValidateFullName(c.in)
		if c.ok && err != nil {
			t.Errorf("ValidateFullName(%q): unexpected error: %v", c.in, err)
		}
		if !c.ok && err == nil {
			t.Errorf("ValidateFullName(%q): expected rejection, got %q", c.in, v)
		}
	}
}

func TestValidatePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"89991234567", "+79991234567", true},
		{"+79991234567", "+79991234567", true},
		{"+7 999 123 45 67", "+79991234567", true},
		{"123", "", false},
		{"9991234567", "", false},
		{"8999123456", "", false},
		{"+7999123456789", "", false},
		{"8999123456a", "", false},
	}
	for _, c := range cases {
		got, err := ValidatePhone(c.in)
		if c.ok {
			if err != nil {
				t.Errorf("ValidatePhone(%q): unexpected error: %v", c.in, err)
				continue
			}
			if got != c.want {
				t.Errorf("ValidatePhone(%q) = %q, want %q", c.in, got, c.want)
			}
		} else if err == nil {
			t.Errorf("ValidatePhone(%q): expected rejection, got %q", c.in, got)
		}
	}
}

func TestValidatePhoneIdempotent(t *testing.T) {
	once, err := ValidatePhone("8 999 123 45 67")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := ValidatePhone(once)
	if err != nil {
		t.Fatalf("normalizing normalized value failed: %v", err)
	}
	if once != twice {
		t.Errorf("normalization not idempotent: %q != %q", once, twice)
	}
}

func TestFieldOrder(t *testing.T) {
	want := map[models.FormKind][]string{
		models.FormKindDelivery: {"contract", "text"},
		models.FormKindRefund:   {"contract", "text"},
		models.FormKindPainting: {"contract", "text"},
		models.FormKindCheckin:  {"contract", "date", "brig_name", "brig_phone", "capacity"},
	}
	for kind, names := range want {
		fields := Fields(kind)
		if len(fields) != len(names) {
			t.Fatalf("%s: expected %d fields, got %d", kind, len(names), len(fields))
		}
		for i, f := range fields {
			if f.Name != names[i] {
				t.Errorf("%s: field %d = %q, want %q", kind, i, f.Name, names[i])
			}
		}
	}
}

func TestSummaryFollowsFieldOrder(t *testing.T) {
	values := map[string]string{"contract": "A-1", "text": "items"}
	s := Summary(models.FormKindDelivery, values)
	ci := strings.Index(s, "A-1")
	ti := strings.Index(s, "items")
	if ci < 0 || ti < 0 || ci > ti {
		t.Errorf("summary out of order: %q", s)
	}
}

func TestSummaryMissingValue(t *testing.T) {
	s := Summary(models.FormKindCheckin, map[string]string{"contract": "B-2"})
	if !strings.Contains(s, "B-2") {
		t.Errorf("summary missing contract: %q", s)
	}
	if !strings.Contains(s, "—") {
		t.Errorf("summary should render dash for missing values: %q", s)
	}
}

func TestMinLenCountsRunes(t *testing.T) {
	v := MinLen(3, "too short")
	if _, err := v("аб"); err == nil {
		t.Error("expected rejection for 2-rune input")
	}
	if _, err := v("або"); err != nil {
		t.Errorf("unexpected error for 3-rune input: %v", err)
	}
}
