package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

const verificationSubject = "Action Required: Verify Your Chatbot Account Email"

var namePolicy = bluemonday.StrictPolicy()

var verificationTmpl = template.Must(template.New("verify").Parse(`<div style="font-family: 'Segoe UI', Tahoma, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 20px auto;">
  <h1 style="color: #0056b3;">Welcome to {{.Product}}!</h1>
  <p>Hello <strong>{{.Name}}</strong>,</p>
  <p>Thank you for creating an account. To complete your registration, please verify your email address:</p>
  <p style="text-align: center; margin: 30px 0;">
    <a href="{{.Link}}" style="background-color: #28a745; color: white; padding: 15px 30px; text-decoration: none; border-radius: 8px;">Verify My Email</a>
  </p>
  <p style="color: #555;">If you didn't create an account, please disregard this email.</p>
  <p style="font-size: 13px; color: #777;">&copy; {{.Year}} {{.Product}}</p>
</div>
`))

// VerificationLink builds the link the user follows to verify their address.
func VerificationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/verify-email?token=" + url.QueryEscape(token)
}

// VerificationMessage renders the verification mail for a newly registered user.
// Markup in the user-supplied name is stripped.
func VerificationMessage(product, to, name, link string) (Message, error) {
	var buf bytes.Buffer
	err := verificationTmpl.Execute(&buf, struct {
		Product string
		Name    string
		Link    string
		Year    int
	}{
		Product: product,
		Name:    strings.TrimSpace(namePolicy.Sanitize(name)),
		Link:    link,
		Year:    time.Now().Year(),
	})
	if err != nil {
		return Message{}, fmt.Errorf("render verification mail: %w", err)
	}
	return Message{To: to, Subject: verificationSubject, HTML: buf.String()}, nil
}
