package redact

import (
	"strings"
	"testing"
)

func TestRedactDisabled(t *testing.T) {
	SetEnabled(false)
	in := "email a@b.com and phone +62 812 3456 7890"
	if got := Text(in); got != in {
		t.Fatalf("expected no redaction, got %q", got)
	}
}

func TestRedactEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "email a@b.com and phone +62 812 3456 7890"
	got := Text(in)
	if got == in {
		t.Fatalf("expected redaction")
	}
	if want := "[REDACTED_EMAIL]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output", want)
	}
	if want := "[REDACTED_PHONE]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output", want)
	}
}

func TestRedactKeepsPhoneAndCardApart(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	got := Text("call +62 812 3456 7890 about card 4111 1111 1111 1111")
	if !strings.Contains(got, "[REDACTED_PHONE]") {
		t.Fatalf("expected phone redaction, got %q", got)
	}
	if !strings.Contains(got, "[REDACTED_NUMBER]") {
		t.Fatalf("expected card redaction, got %q", got)
	}
}

func TestRedactCardNumber(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	got := Text("my card is 4111 1111 1111 1111 thanks")
	if !strings.Contains(got, "[REDACTED_NUMBER]") {
		t.Fatalf("expected card redaction, got %q", got)
	}
}
