// Provides the one-time code email templates.

package email

import "fmt"

// otpTemplate holds the subject and body for one delivery reason. The body
// is a format string taking the code.
type otpTemplate struct {
	Subject string
	Body    string
}

var otpTemplates = map[string]otpTemplate{
	"login": {
		Subject: "Your sign-in code",
		Body: "Your sign-in code is: %s\n\n" +
			"It expires in 10 minutes. If you did not try to sign in, you can ignore this email.",
	},
	"verification": {
		Subject: "Verify your email address",
		Body: "Your verification code is: %s\n\n" +
			"Enter it to confirm your email address. It expires in 10 minutes.",
	},
	"reset": {
		Subject: "Reset your password",
		Body: "Your password reset code is: %s\n\n" +
			"It expires in 10 minutes. If you did not request a reset, you can ignore this email.",
	},
}

// OTPEmail returns the subject and body for a one-time code email. Unknown
// reasons fall back to the login template.
func OTPEmail(reason, code string) (subject, body string) {
	t, ok := otpTemplates[reason]
	if !ok {
		t = otpTemplates["login"]
	}
	return t.Subject, fmt.Sprintf(t.Body, code)
}
