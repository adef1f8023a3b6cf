package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestMessage(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"script block", "<script>alert(1)</script>hallo", "hallo"},
		{"multiline script", "<SCRIPT type=\"text/javascript\">\nx()\n</script >Termin?", "Termin?"},
		{"plain tags", "Ich <b>brauche</b> einen <i>Termin</i>", "Ich brauche einen Termin"},
		{"encoded tags", "&lt;img src=x onerror=alert(1)&gt;Hallo", "Hallo"},
		{"javascript scheme", "klick javascript:alert(1)", "klick alert(1)"},
		{"event handler", "x onclick=steal() y", "x steal() y"},
		{"umlauts kept", "Ölwechsel für meinen Käfer, schnell!", "Ölwechsel für meinen Käfer, schnell!"},
		{"email and phone kept", "test@x.de +49 (30) 123-456", "test@x.de +49 (30) 123-456"},
		{"disallowed symbols", "Preis: 100€ #1 $$", "Preis 100 1"},
		{"trim", "   hallo   ", "hallo"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Message(tc.in); got != tc.want {
				t.Fatalf("Message(%q) = %q; want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMessage_Truncates(t *testing.T) {
	in := strings.Repeat("ä", MaxMessageRunes+50)
	if got := Message(in); utf8.RuneCountInString(got) != MaxMessageRunes {
		t.Fatalf("want %d runes, got %d", MaxMessageRunes, utf8.RuneCountInString(got))
	}
}

func TestValue_NonString(t *testing.T) {
	if Message(Value(nil)) != "" {
		t.Fatalf("nil should sanitize to empty")
	}
	if Value(42) != "" || Value([]string{"x"}) != "" {
		t.Fatalf("non-strings should map to empty")
	}
	if Value("ok") != "ok" {
		t.Fatalf("strings pass through")
	}
}

func TestText(t *testing.T) {
	if got := Text("<p>Notiz: 50% & mehr</p>"); got != "Notiz: 50% & mehr" {
		t.Fatalf("Text kept punctuation wrong: %q", got)
	}
	if got := Text(strings.Repeat("a", 600)); utf8.RuneCountInString(got) != MaxTextRunes {
		t.Fatalf("Text should cap at %d runes", MaxTextRunes)
	}
}

func TestEmail(t *testing.T) {
	cases := map[string]string{
		"Foo@Bar.COM":            "foo@bar.com",
		"  <anna@example.de>  ":  "anna@example.de",
		"not-an-email":           "",
		"a@b":                    "",
		"javascript:x@evil.com":  "x@evil.com",
		"two words@example.com":  "",
		"":                       "",
	}
	for in, want := range cases {
		if got := Email(in); got != want {
			t.Fatalf("Email(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestPhone(t *testing.T) {
	if got := Phone("Tel: +49 (0)30 123-4567 ext."); got != "+49 (0)30 123-4567" {
		t.Fatalf("Phone = %q", got)
	}
	if got := Phone("0123456789012345678901234"); utf8.RuneCountInString(got) != MaxPhoneRunes {
		t.Fatalf("Phone should cap at %d runes, got %q", MaxPhoneRunes, got)
	}
}

func TestSessionID(t *testing.T) {
	if got := SessionID("sess_123-abc<script>"); got != "sess_123-abcscript" {
		t.Fatalf("SessionID = %q", got)
	}
}

func TestName(t *testing.T) {
	if got := Name("  max   müller "); got != "Max Müller" {
		t.Fatalf("Name = %q", got)
	}
	if Name("<b></b>") != "" {
		t.Fatalf("markup-only name should be empty")
	}
}
