package email

import (
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	c := Config{Host: "smtp.example.com", Username: "u", Password: "p", From: "noreply@example.com"}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if c.Port != "587" {
		t.Fatalf("default port = %q", c.Port)
	}
	for _, bad := range []Config{
		{},
		{Host: "h"},
		{Host: "h", Username: "u"},
		{Host: "h", Username: "u", Password: "p"},
	} {
		if err := bad.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", bad)
		}
	}
}

func TestOTPEmail(t *testing.T) {
	for _, reason := range []string{"login", "verification", "reset", "unknown"} {
		subject, body := OTPEmail(reason, "123456")
		if subject == "" {
			t.Errorf("%s: empty subject", reason)
		}
		if !strings.Contains(body, "123456") {
			t.Errorf("%s: code missing from body %q", reason, body)
		}
	}
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("from@example.com", []string{"a@example.com", "b@example.com"}, "Hi", "Body")
	for _, want := range []string{
		"From: from@example.com\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: Hi\r\n",
		"\r\n\r\nBody",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
