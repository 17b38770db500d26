package app

import (
	"testing"
	"time"
)

func TestEnvString(t *testing.T) {
	t.Setenv("RIPPLE_TEST_STRING", "  value  ")
	if got := EnvString("RIPPLE_TEST_STRING", "def"); got != "value" {
		t.Fatalf("EnvString=%q want=%q", got, "value")
	}
	if got := EnvString("RIPPLE_TEST_STRING_UNSET", "def"); got != "def" {
		t.Fatalf("EnvString default=%q want=%q", got, "def")
	}
}

func TestEnvBool(t *testing.T) {
	cases := []struct {
		val  string
		def  bool
		want bool
	}{
		{val: "true", def: false, want: true},
		{val: "1", def: false, want: true},
		{val: "false", def: true, want: false},
		{val: "garbage", def: true, want: true},
		{val: "", def: true, want: true},
	}

	for _, tc := range cases {
		t.Setenv("RIPPLE_TEST_BOOL", tc.val)
		if got := EnvBool("RIPPLE_TEST_BOOL", tc.def); got != tc.want {
			t.Fatalf("EnvBool(%q, %v)=%v want=%v", tc.val, tc.def, got, tc.want)
		}
	}
}

func TestEnvInt(t *testing.T) {
	cases := []struct {
		val  string
		want int
	}{
		{val: "42", want: 42},
		{val: "0", want: 7},
		{val: "-3", want: 7},
		{val: "nope", want: 7},
		{val: "", want: 7},
	}

	for _, tc := range cases {
		t.Setenv("RIPPLE_TEST_INT", tc.val)
		if got := EnvInt("RIPPLE_TEST_INT", 7); got != tc.want {
			t.Fatalf("EnvInt(%q)=%d want=%d", tc.val, got, tc.want)
		}
	}
}

func TestEnvDuration(t *testing.T) {
	cases := []struct {
		val  string
		want time.Duration
	}{
		{val: "30s", want: 30 * time.Second},
		{val: "2m", want: 2 * time.Minute},
		{val: "-5s", want: time.Second},
		{val: "soon", want: time.Second},
		{val: "", want: time.Second},
	}

	for _, tc := range cases {
		t.Setenv("RIPPLE_TEST_DURATION", tc.val)
		if got := EnvDuration("RIPPLE_TEST_DURATION", time.Second); got != tc.want {
			t.Fatalf("EnvDuration(%q)=%v want=%v", tc.val, got, tc.want)
		}
	}
}
