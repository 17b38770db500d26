package chat

import "testing"

func TestConversationID_OrderIndependent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want string
	}{
		{a: "alice", b: "bob", want: "alice:bob"},
		{a: "bob", b: "alice", want: "alice:bob"},
		{a: "01HA", b: "01HB", want: "01HA:01HB"},
		{a: "x", b: "x", want: "x:x"},
	}

	for _, tc := range cases {
		got := ConversationID(tc.a, tc.b)
		if got != tc.want {
			t.Fatalf("ConversationID(%q,%q)=%q want=%q", tc.a, tc.b, got, tc.want)
		}
		if got != ConversationID(tc.b, tc.a) {
			t.Fatalf("ConversationID not symmetric for (%q,%q)", tc.a, tc.b)
		}
	}
}

func TestParticipantsFromID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in     string
		lo, hi string
		ok     bool
	}{
		{in: "alice:bob", lo: "alice", hi: "bob", ok: true},
		{in: "a:b", lo: "a", hi: "b", ok: true},
		{in: "alice", ok: false},
		{in: ":bob", ok: false},
		{in: "alice:", ok: false},
		{in: "", ok: false},
	}

	for _, tc := range cases {
		lo, hi, ok := ParticipantsFromID(tc.in)
		if ok != tc.ok {
			t.Fatalf("ParticipantsFromID(%q) ok=%v want=%v", tc.in, ok, tc.ok)
		}
		if ok && (lo != tc.lo || hi != tc.hi) {
			t.Fatalf("ParticipantsFromID(%q)=(%q,%q) want=(%q,%q)", tc.in, lo, hi, tc.lo, tc.hi)
		}
	}
}

func TestValidateUserID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "alice", want: "alice"},
		{in: "  alice  ", want: "alice"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "al:ice", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ValidateUserID("userId", tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ValidateUserID(%q): expected error", tc.in)
			}
			if ErrorCode(err) != CodeValidation {
				t.Fatalf("ValidateUserID(%q): code=%q want=%q", tc.in, ErrorCode(err), CodeValidation)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ValidateUserID(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ValidateUserID(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}
