package email

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var magicLinkHTML = template.Must(template.New("magic-link").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
	<h2>Sign in to Orgbase</h2>
	<p>Click the button below to sign in. No password needed.</p>
	<p><a href="{{.URL}}" style="background-color: #1a73e8; color: white; padding: 12px 30px; text-decoration: none; border-radius: 4px; display: inline-block;">Sign in</a></p>
	<p>This link expires in {{.TTL}}.</p>
	<p>If you didn't request this email, you can safely ignore it.</p>
</body>
</html>
`))

// MagicLink renders the sign-in mail for a login URL. TTL is shown to the
// user rounded to whole minutes.
func MagicLink(to, url string, ttl time.Duration) (Message, error) {
	data := struct {
		URL string
		TTL string
	}{
		URL: url,
		TTL: fmt.Sprintf("%d minutes", int(ttl.Round(time.Minute).Minutes())),
	}

	var buf bytes.Buffer
	if err := magicLinkHTML.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("failed to render magic link mail: %w", err)
	}

	return Message{
		To:      to,
		Subject: "Sign in to Orgbase",
		Text:    fmt.Sprintf("Sign in to Orgbase: %s\n\nThis link expires in %s.", url, data.TTL),
		HTML:    buf.String(),
	}, nil
}
