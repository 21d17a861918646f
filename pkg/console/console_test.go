package console

import (
	"testing"

	"github.com/sushiljain1989/yeoman-ui/pkg/prompt"
)

func TestParseBack(t *testing.T) {
	u := &UI{steps: []string{"Project Name", "Db Kind", "Port"}}

	cases := []struct {
		line   string
		target int
		ok     bool
	}{
		{":back", 1, true}, // previous step: one before the current tail
		{":back 0", 0, true},
		{":back 2", 2, true},
		{":back x", 0, false},
		{"back", 0, false},
		{"hello", 0, false},
	}
	for _, tc := range cases {
		target, ok := u.parseBack(tc.line)
		if ok != tc.ok || (ok && target != tc.target) {
			t.Errorf("parseBack(%q) = %d, %v; want %d, %v", tc.line, target, ok, tc.target, tc.ok)
		}
	}
}

func TestParseBackOnFirstStep(t *testing.T) {
	u := &UI{steps: []string{"Project Name"}}
	if _, ok := u.parseBack(":back"); ok {
		t.Error("bare :back on the first step should have nowhere to go")
	}
}

func TestCoerceConfirm(t *testing.T) {
	q := prompt.SerializableQuestion{Name: "useDb", Type: "confirm"}
	cases := []struct {
		line string
		want any
		err  bool
	}{
		{"y", true, false},
		{"Yes", true, false},
		{"n", false, false},
		{"false", false, false},
		{"", false, false},
		{"maybe", nil, true},
	}
	for _, tc := range cases {
		got, err := coerce(q, tc.line)
		if (err != nil) != tc.err {
			t.Errorf("coerce(%q) error = %v", tc.line, err)
			continue
		}
		if !tc.err && got != tc.want {
			t.Errorf("coerce(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}

func TestCoerceList(t *testing.T) {
	q := prompt.SerializableQuestion{Name: "dbKind", Type: "list", Choices: []string{"sqlite", "postgres"}}

	if got, err := coerce(q, "2"); err != nil || got != "postgres" {
		t.Errorf("coerce by number = %v, %v", got, err)
	}
	if got, err := coerce(q, "sqlite"); err != nil || got != "sqlite" {
		t.Errorf("coerce by value = %v, %v", got, err)
	}
	if _, err := coerce(q, "3"); err == nil {
		t.Error("out-of-range choice accepted")
	}
	if _, err := coerce(q, "mysql"); err == nil {
		t.Error("unknown choice accepted")
	}
}

func TestCoerceDefault(t *testing.T) {
	q := prompt.SerializableQuestion{Name: "port", Type: "input", Default: "8080"}
	if got, err := coerce(q, ""); err != nil || got != "8080" {
		t.Errorf("empty input = %v, %v, want the default", got, err)
	}
	if got, err := coerce(q, "9090"); err != nil || got != "9090" {
		t.Errorf("explicit input = %v, %v", got, err)
	}
}

func TestValidationFailure(t *testing.T) {
	cases := []struct {
		res  any
		bad  bool
		want string
	}{
		{true, false, ""},
		{false, true, "invalid value"},
		{"", false, ""},
		{"too short", true, "too short"},
		{nil, false, ""},
		{42, false, ""},
	}
	for _, tc := range cases {
		msg, bad := validationFailure(tc.res)
		if bad != tc.bad || msg != tc.want {
			t.Errorf("validationFailure(%v) = %q, %v; want %q, %v", tc.res, msg, bad, tc.want, tc.bad)
		}
	}
}
