package notification

import (
	"bytes"
	"fmt"
	"html/template"
)

// OTPEmail is the data rendered into the verification email.
type OTPEmail struct {
	AppName   string
	FirstName string
	OTP       string
}

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Helvetica, Arial, sans-serif; color: #1f2933;">
    <div style="max-width: 480px; margin: 0 auto; padding: 24px;">
      <h2 style="margin: 0 0 16px;">{{.AppName}}</h2>
      <p>Hi {{.FirstName}},</p>
      <p>Use the following OTP to verify your account.</p>
      <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.OTP}}</p>
      <p style="color: #7b8794;">If you did not sign up for {{.AppName}}, you can ignore this email.</p>
    </div>
  </body>
</html>
`))

// OTPMessage renders the verification email for to.
func OTPMessage(to string, data OTPEmail) (Message, error) {
	var buf bytes.Buffer
	if err := otpTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render otp email: %w", err)
	}
	return Message{
		To:       to,
		Subject:  fmt.Sprintf("Verify your %s account", data.AppName),
		HTMLBody: buf.String(),
	}, nil
}
