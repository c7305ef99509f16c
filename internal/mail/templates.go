package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

//go:embed templates/*
var templateFS embed.FS

// Template names a renderable email.
type Template string

const (
	TemplateOTP           Template = "otp"
	TemplateResendOTP     Template = "resend_otp"
	TemplatePasswordReset Template = "password_reset"
)

var subjects = map[Template]string{
	TemplateOTP:           "Your verification code",
	TemplateResendOTP:     "Your new verification code",
	TemplatePasswordReset: "Your password reset code",
}

// bodies maps each template to its body files; resend reuses the otp body.
var bodies = map[Template]string{
	TemplateOTP:           "otp",
	TemplateResendOTP:     "otp",
	TemplatePasswordReset: "password_reset",
}

// OTPPayload is the data for every code-bearing template.
type OTPPayload struct {
	Name             string
	OTP              string
	ExpiresInMinutes int
	SupportEmail     string
}

type view struct {
	OTPPayload
	AppName   string
	Title     string
	Preheader string
	Year      int
}

// Renderer turns a Template and payload into a Message body.
type Renderer struct {
	appName string
	html    map[Template]*htmltemplate.Template
	text    map[Template]*texttemplate.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer(appName string) (*Renderer, error) {
	layout, err := htmltemplate.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	r := &Renderer{
		appName: appName,
		html:    make(map[Template]*htmltemplate.Template, len(bodies)),
		text:    make(map[Template]*texttemplate.Template, len(bodies)),
	}
	for name, body := range bodies {
		h, err := htmltemplate.Must(layout.Clone()).ParseFS(templateFS, "templates/"+body+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s html: %w", name, err)
		}
		t, err := texttemplate.ParseFS(templateFS, "templates/"+body+".txt")
		if err != nil {
			return nil, fmt.Errorf("parse %s text: %w", name, err)
		}
		r.html[name] = h
		r.text[name] = t
	}
	return r, nil
}

// Render builds a message addressed to to.
func (r *Renderer) Render(to string, name Template, p OTPPayload) (Message, error) {
	h, ok := r.html[name]
	if !ok {
		return Message{}, fmt.Errorf("unknown template %q", name)
	}

	v := view{
		OTPPayload: p,
		AppName:    r.appName,
		Title:      subjects[name],
		Preheader:  fmt.Sprintf("Your code is %s", p.OTP),
		Year:       time.Now().Year(),
	}

	var html, text bytes.Buffer
	if err := h.ExecuteTemplate(&html, "layout", v); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", name, err)
	}
	if err := r.text[name].Execute(&text, v); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", name, err)
	}

	return Message{
		To:      []string{to},
		Subject: v.Title,
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()) + "\n",
	}, nil
}
