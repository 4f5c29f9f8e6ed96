// Package mail delivers summary reports and configuration test messages
// over SMTP. The transport is built per send from runtime settings, so
// operators can change SMTP credentials without a restart.
package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	gomail "gopkg.in/gomail.v2"

	"github.com/projetosombra/sombra-api/internal/domain"
	"github.com/projetosombra/sombra-api/internal/platform/logger"
)

// ErrSMTPIncomplete is returned when the stored settings are missing one or
// more of the fields required to send mail.
var ErrSMTPIncomplete = errors.New("SMTP configuration is incomplete")

// dialFn builds and sends through a transport; swapped out in tests.
type dialFn func(host string, port int, user, pass string, msg *gomail.Message) error

// Mailer sends HTML mail using SMTP settings resolved at send time.
type Mailer struct {
	logger *slog.Logger
	dial   dialFn
}

// NewMailer creates a Mailer. If logger is nil, the default logger is used.
func NewMailer(logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		logger: logger.With(slog.String("component", "mailer")),
		dial: func(host string, port int, user, pass string, msg *gomail.Message) error {
			return gomail.NewDialer(host, port, user, pass).DialAndSend(msg)
		},
	}
}

// SendSummary mails the consolidated performance PDF to a saleswoman. The
// attachment content is passed in-memory so the caller controls file
// lifetime.
func (m *Mailer) SendSummary(ctx context.Context, settings domain.Settings, saleswoman *domain.Saleswoman, pdfContent []byte) error {
	if !saleswoman.HasDeliverableEmail() {
		return fmt.Errorf("saleswoman %s has no deliverable email", saleswoman.ID)
	}

	body := fmt.Sprintf(`<h1>Olá, %s!</h1>
<p>Seu resumo de desempenho semanal está pronto!</p>
<p>Anexamos o relatório em PDF para sua análise. Continue com o excelente trabalho!</p>
<br>
<p>Atenciosamente,</p>
<p><b>Equipe Projeto Sombra</b></p>`, saleswoman.Name)

	filename := fmt.Sprintf("Resumo_Desempenho_%s.pdf", strings.ReplaceAll(saleswoman.Name, " ", "_"))

	return m.send(ctx, settings, sendRequest{
		to:             *saleswoman.Email,
		subject:        "Seu Resumo de Desempenho Semanal - Projeto Sombra",
		htmlBody:       body,
		attachmentName: filename,
		attachment:     pdfContent,
	})
}

// SendTest sends a plain configuration check to the given address.
func (m *Mailer) SendTest(ctx context.Context, settings domain.Settings, to string) error {
	body := `<h1>Teste de Envio de E-mail</h1>
<p>Olá!</p>
<p>Este é um e-mail de teste enviado a partir da sua configuração no Projeto Sombra.</p>
<p>Se você recebeu esta mensagem, suas configurações de SMTP estão funcionando corretamente.</p>
<br>
<p>Atenciosamente,</p>
<p><b>Equipe Projeto Sombra</b></p>`

	return m.send(ctx, settings, sendRequest{
		to:       to,
		subject:  "Teste de Configuração de E-mail - Projeto Sombra",
		htmlBody: body,
	})
}

type sendRequest struct {
	to             string
	subject        string
	htmlBody       string
	attachmentName string
	attachment     []byte
}

func (m *Mailer) send(ctx context.Context, settings domain.Settings, req sendRequest) error {
	log := logger.FromContextOrDefault(ctx, m.logger)

	if !settings.SMTPComplete() {
		log.Error("SMTP settings incomplete, mail not sent", slog.String("to", req.to))
		return ErrSMTPIncomplete
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(settings[domain.SettingSMTPFrom], "Projeto Sombra"))
	msg.SetHeader("To", req.to)
	msg.SetHeader("Subject", req.subject)
	msg.SetBody("text/html", req.htmlBody)

	if len(req.attachment) > 0 {
		msg.Attach(req.attachmentName, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(req.attachment)
			return err
		}))
	}

	err := m.dial(
		settings[domain.SettingSMTPHost],
		settings.SMTPPort(),
		settings[domain.SettingSMTPUser],
		settings[domain.SettingSMTPPass],
		msg,
	)
	if err != nil {
		log.Error("failed to send mail",
			slog.String("to", req.to),
			slog.String("error", err.Error()))
		return fmt.Errorf("sending mail to %s: %w", req.to, err)
	}

	log.Info("mail sent", slog.String("to", req.to), slog.String("subject", req.subject))
	return nil
}
