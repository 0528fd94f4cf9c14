package redact

import "testing"

func TestTextRedactsWhenEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)

	got := Text("reach me at bob@example.com or +1 415 555 0100 please")
	want := "reach me at [REDACTED_EMAIL] or [REDACTED_PHONE] please"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTextPassthroughWhenDisabled(t *testing.T) {
	SetEnabled(false)
	in := "bob@example.com"
	if got := Text(in); got != in {
		t.Fatalf("got %q, want untouched input", got)
	}
}
