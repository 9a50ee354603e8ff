package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Every mail is a title, a greeting, a few lines and one call-to-action button.
var layout = template.Must(template.New("layout").Parse(`<!doctype html>
<html>
  <body style="font-family:Arial,Helvetica,sans-serif; line-height:1.4;">
    <h2>{{.Title}}</h2>
    <p>Hi {{.FirstName}},</p>
    {{range .Lines}}<p>{{.}}</p>
    {{end}}
    <p>
      <a href="{{.URL}}" style="display:inline-block; padding:10px 14px; text-decoration:none; border-radius:6px; background:#111; color:#fff;">
        {{.Button}}
      </a>
    </p>
    {{if .Footer}}<p>{{.Footer}}</p>{{end}}
    <p style="color:#555; font-size:12px;">
      If the button doesn't work, open this link:<br/>
      <a href="{{.URL}}">{{.URL}}</a>
    </p>
  </body>
</html>`))

type mailView struct {
	Title     string
	FirstName string
	Lines     []string
	Button    string
	URL       string
	Footer    string
}

type rendered struct {
	Subject string
	Text    string
	HTML    string
}

func render(subject string, v mailView) (rendered, error) {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, v); err != nil {
		return rendered{}, fmt.Errorf("render %q: %w", subject, err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n", v.FirstName)
	for _, l := range v.Lines {
		text.WriteString(l + "\n\n")
	}
	fmt.Fprintf(&text, "%s: %s\n", v.Button, v.URL)
	if v.Footer != "" {
		text.WriteString("\n" + v.Footer + "\n")
	}

	return rendered{Subject: subject, Text: text.String(), HTML: buf.String()}, nil
}

func renderWelcome(name, url string) (rendered, error) {
	return render("Welcome to Notes App", mailView{
		Title:     "Welcome to Notes App",
		FirstName: firstName(name),
		Lines: []string{
			"Your account is ready. Keep your notes in one place and reach them from anywhere.",
		},
		Button: "Open Notes App",
		URL:    url,
	})
}

func renderPasswordReset(name, url string, ttl time.Duration) (rendered, error) {
	return render("Your password reset token", mailView{
		Title:     "Reset your password",
		FirstName: firstName(name),
		Lines: []string{
			"Forgot your password? Use the button below to choose a new one.",
			"The link is valid for " + humanize(ttl) + ".",
		},
		Button: "Reset password",
		URL:    url,
		Footer: "If you didn't forget your password, please ignore this email.",
	})
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return "there"
}

// humanize renders a duration the way people say it: "a minute", "10 minutes", "2 hours".
func humanize(d time.Duration) string {
	s := d.Seconds()
	switch {
	case s < 45:
		return "a few seconds"
	case s < 90:
		return "a minute"
	case d < 45*time.Minute:
		return fmt.Sprintf("%d minutes", int(d.Minutes()+0.5))
	case d < 90*time.Minute:
		return "an hour"
	case d < 22*time.Hour:
		return fmt.Sprintf("%d hours", int(d.Hours()+0.5))
	case d < 36*time.Hour:
		return "a day"
	default:
		return fmt.Sprintf("%d days", int(d.Hours()/24+0.5))
	}
}
