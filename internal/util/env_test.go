package util

import (
	"reflect"
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		val  string
		def  bool
		want bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"garbage", true, true},
		{"garbage", false, false},
	}
	for _, c := range cases {
		t.Setenv("TEST_BOOL", c.val)
		if got := ParseBoolEnv("TEST_BOOL", c.def); got != c.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", c.val, c.def, got, c.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := ParseIntEnv("TEST_INT", 7); got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	t.Setenv("TEST_INT", "not a number")
	if got := ParseIntEnv("TEST_INT", 7); got != 7 {
		t.Errorf("got %d, want default 7", got)
	}
	t.Setenv("TEST_INT", "")
	if got := ParseIntEnv("TEST_INT", 7); got != 7 {
		t.Errorf("got %d, want default 7", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	cases := []struct {
		val  string
		want time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"1h", time.Hour},
		{"90", 90 * time.Second},
		{"", 5 * time.Minute},
		{"soon", 5 * time.Minute},
	}
	for _, c := range cases {
		t.Setenv("TEST_DUR", c.val)
		if got := ParseDurationEnv("TEST_DUR", 5*time.Minute); got != c.want {
			t.Errorf("ParseDurationEnv(%q) = %v, want %v", c.val, got, c.want)
		}
	}
}

func TestParseIntList(t *testing.T) {
	cases := []struct {
		val  string
		want []int
		ok   bool
	}{
		{"[1, 2]", []int{1, 2}, true},
		{"1,2,3", []int{1, 2, 3}, true},
		{"[7]", []int{7}, true},
		{" 5 ", []int{5}, true},
		{"[]", nil, true},
		{"[1, two]", nil, false},
	}
	for _, c := range cases {
		got, err := ParseIntList(c.val)
		if c.ok != (err == nil) {
			t.Errorf("ParseIntList(%q): error = %v, want ok=%v", c.val, err, c.ok)
			continue
		}
		if c.ok && !reflect.DeepEqual(got, c.want) {
			t.Errorf("ParseIntList(%q) = %v, want %v", c.val, got, c.want)
		}
	}
}

func TestParseIntListEnvFallsBack(t *testing.T) {
	t.Setenv("TEST_LIST", "[1, x]")
	if got := ParseIntListEnv("TEST_LIST", []int{9}); !reflect.DeepEqual(got, []int{9}) {
		t.Errorf("got %v, want default [9]", got)
	}
	t.Setenv("TEST_LIST", "[2, 3]")
	if got := ParseIntListEnv("TEST_LIST", []int{9}); !reflect.DeepEqual(got, []int{2, 3}) {
		t.Errorf("got %v, want [2 3]", got)
	}
}

func TestParseStringListEnv(t *testing.T) {
	t.Setenv("TEST_IDS", "123, 456 ,789")
	want := []string{"123", "456", "789"}
	if got := ParseStringListEnv("TEST_IDS"); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	t.Setenv("TEST_IDS", " ")
	if got := ParseStringListEnv("TEST_IDS"); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}
