package mail

import "context"

// Mailer renders a template and hands the result to a Sender.
type Mailer struct {
	sender       Sender
	renderer     *Renderer
	supportEmail string
}

func NewMailer(sender Sender, renderer *Renderer, supportEmail string) *Mailer {
	return &Mailer{sender: sender, renderer: renderer, supportEmail: supportEmail}
}

// SendTemplate renders name for to and delivers it. Render failures are reported
// the same way as delivery failures.
func (m *Mailer) SendTemplate(ctx context.Context, to string, name Template, p OTPPayload) Result {
	if p.SupportEmail == "" {
		p.SupportEmail = m.supportEmail
	}
	msg, err := m.renderer.Render(to, name, p)
	if err != nil {
		return failed(err)
	}
	return m.sender.Send(ctx, msg)
}
