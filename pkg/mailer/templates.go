package mailer

import (
	"bytes"
	"html/template"
)

var notificationTmpl = template.Must(template.New("notification").Parse(`<!doctype html>
<html><body style="font-family:sans-serif">
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
{{if .Link}}<p><a href="{{.Link}}">Open in InnoCap Forge</a></p>{{end}}
</body></html>`))

// NotificationEmail is the data rendered into notification emails.
type NotificationEmail struct {
	Title   string
	Message string
	Link    string
}

// RenderNotification returns the escaped HTML body for a notification email.
func RenderNotification(data NotificationEmail) (string, error) {
	var buf bytes.Buffer
	if err := notificationTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
