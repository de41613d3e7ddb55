package mail

import (
	"bytes"
	"html/template"
)

var verificationTmpl = template.Must(template.New("verification").Parse(`
<div style="font-family:sans-serif;max-width:480px;margin:auto">
  <h2>Confirm your email</h2>
  <p>Hi {{.Name}}, use this code to verify your account:</p>
  <p style="font-size:28px;letter-spacing:6px;font-weight:bold">{{.Code}}</p>
  <p>The code expires in {{.ExpiresIn}}. If you didn't sign up, ignore this email.</p>
</div>`))

var securityAlertTmpl = template.Must(template.New("security").Parse(`
<div style="font-family:sans-serif;max-width:480px;margin:auto">
  <h2>{{.Title}}</h2>
  <p>Hi {{.Name}}, we noticed the following on your account:</p>
  <ul>
    <li>Action: {{.Action}}</li>
    {{if .Browser}}<li>Device: {{.Browser}} on {{.OS}}</li>{{end}}
    {{if .IP}}<li>IP: {{.IP}}{{if .Location}} ({{.Location}}){{end}}</li>{{end}}
  </ul>
  <p>If this wasn't you, reset your password immediately.</p>
</div>`))

// VerificationBody renders the OTP verification email.
func VerificationBody(name, code, expiresIn string) string {
	var buf bytes.Buffer
	_ = verificationTmpl.Execute(&buf, map[string]string{
		"Name": name, "Code": code, "ExpiresIn": expiresIn,
	})
	return buf.String()
}

// SecurityAlertBody renders a security notification email.
func SecurityAlertBody(title, name, action, browser, os, ip, location string) string {
	var buf bytes.Buffer
	_ = securityAlertTmpl.Execute(&buf, map[string]string{
		"Title": title, "Name": name, "Action": action,
		"Browser": browser, "OS": os, "IP": ip, "Location": location,
	})
	return buf.String()
}
