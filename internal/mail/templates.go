package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
)

const verificationSubject = "Verify your MediMate account"

var verificationText = texttemplate.Must(texttemplate.New("verify.txt").Parse(
	`Hi {{.FirstName}},

Please verify your MediMate account by visiting the following link:
{{.Link}}

Or enter this verification token: {{.Token}}

If you didn't request this, please ignore this email.
`))

var verificationHTML = htmltemplate.Must(htmltemplate.New("verify.html").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"></head>
<body style="margin:0;padding:32px 16px;background:#F3F4F6;font-family:-apple-system,'Segoe UI',Roboto,Arial,sans-serif;color:#0F1724">
  <div style="max-width:600px;margin:0 auto;background:#fff;border-radius:12px;padding:28px">
    <div style="font-weight:700;color:#2D9CDB;font-size:20px">MediMate</div>
    <h1 style="font-size:22px;margin:8px 0 12px">Verify your email</h1>
    <p style="font-size:16px;line-height:1.5">Hi {{.FirstName}},<br>Thanks for creating a MediMate account. To complete your registration, please verify your email address.</p>
    <p style="text-align:center;margin:18px 0"><a href="{{.Link}}" style="display:inline-block;background:#2D9CDB;color:#fff;padding:12px 20px;border-radius:8px;text-decoration:none;font-weight:600">Verify my email</a></p>
    <p style="color:#6B7280;font-size:13px;text-align:center">If the button doesn't work, copy and paste this link into your browser:</p>
    <p style="word-break:break-all;font-size:13px;text-align:center;color:#2D9CDB">{{.Link}}</p>
    <div>Alternatively use this verification token:</div>
    <div style="margin-top:8px;font-family:monospace;font-size:13px;word-break:break-all">{{.Token}}</div>
    <p style="font-size:12px;color:#6B7280;margin-top:20px">If you didn't create an account with us, you can safely ignore this email. For help visit our <a href="{{.Home}}">website</a>.</p>
  </div>
</body>
</html>
`))

type verificationData struct {
	FirstName string
	Link      string
	Token     string
	Home      string
}

// VerificationLink builds FRONTEND_URL/verify-email?token=<raw>.
func VerificationLink(frontendURL, rawToken string) string {
	return strings.TrimRight(frontendURL, "/") + "/verify-email?token=" + url.QueryEscape(rawToken)
}

// VerificationEmail renders the verification message for one recipient.
func VerificationEmail(to, firstName, frontendURL, rawToken string) (Message, error) {
	data := verificationData{
		FirstName: firstName,
		Link:      VerificationLink(frontendURL, rawToken),
		Token:     rawToken,
		Home:      frontendURL,
	}
	var text, html bytes.Buffer
	if err := verificationText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render verification text: %w", err)
	}
	if err := verificationHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render verification html: %w", err)
	}
	return Message{To: to, Subject: verificationSubject, Text: text.String(), HTML: html.String()}, nil
}
