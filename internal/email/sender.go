package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"cdpi-pass/internal/config"
)

// SMTPSender delivers rendered email jobs. Adapted to plain SMTP so the
// worker has no provider-specific dependency.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	return &SMTPSender{
		addr: cfg.SMTPHost + ":" + cfg.SMTPPort,
		auth: auth,
		from: cfg.From,
	}
}

func (s *SMTPSender) Send(job Job) error {
	subject, html := render(job)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: CDPI Pass <%s>\r\n", s.from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", job.To))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(html)

	return smtp.SendMail(s.addr, s.auth, s.from, []string{job.To}, []byte(msg.String()))
}

func render(job Job) (subject, html string) {
	switch job.Type {
	case JobTypeCourtesyInvite:
		subject = fmt.Sprintf("Seu convite para %s - CDPI Pass", job.EventTitle)
		html = fmt.Sprintf(`<h1>Você recebeu uma cortesia!</h1>
<p>Olá %s,</p>
<p>Você foi convidado para <b>%s</b>.</p>
<p>Resgate seu ingresso com o código <b>%s</b>:</p>
<p><a href="%s">%s</a></p>`,
			job.UserName, job.EventTitle, job.Code, job.RedeemURL, job.RedeemURL)
	default:
		subject = fmt.Sprintf("Seu ingresso para %s - CDPI Pass", job.EventTitle)
		qrSection := fmt.Sprintf(`<p>Apresente o QR code abaixo na entrada:</p>
<img src="%s" alt="QR code do ingresso" width="256" height="256"/>`, job.QRCodeURL)
		if job.QRUnavailable {
			qrSection = `<p>Seu QR code está sendo gerado e será reenviado em breve. Guarde este email como comprovante da compra.</p>`
		}
		html = fmt.Sprintf(`<h1>Ingresso confirmado!</h1>
<p>Olá %s,</p>
<p>Seu ingresso para <b>%s</b> (%s, %s) está confirmado.</p>
%s
<p>Pedido: %s</p>`,
			job.UserName, job.EventTitle,
			job.EventDate.Format("02/01/2006 15:04"), job.EventLocation,
			qrSection, job.OrderID)
	}
	return subject, html
}
