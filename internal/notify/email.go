package notify

import (
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/wneessen/go-mail"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
)

//go:embed templates/*.html
var templatesFS embed.FS

var emailTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

type Email struct {
	Subject  string
	Template *template.Template
	Data     any
}

func emailFor(notificationType string, data any) (*Email, error) {
	switch notificationType {
	case domain.NotificationTypeNewShift:
		return &Email{
			Subject:  "班次抽签 - 新班次开放报名",
			Template: emailTemplates.Lookup("new_shift_email.html"),
			Data:     data,
		}, nil
	case domain.NotificationTypeShiftResult:
		return &Email{
			Subject:  "班次抽签 - 抽签结果",
			Template: emailTemplates.Lookup("shift_result_email.html"),
			Data:     data,
		}, nil
	default:
		return nil, fmt.Errorf("不支持的通知类型: %s", notificationType)
	}
}

// SMTPMailer 将通知以 HTML 邮件的形式发给固定的收件人列表
type SMTPMailer struct {
	client     *mail.Client
	from       string
	recipients []string
}

func NewSMTPMailer(client *mail.Client, from string, recipients []string) *SMTPMailer {
	return &SMTPMailer{
		client:     client,
		from:       from,
		recipients: recipients,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, email *Email) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return err
	}
	if err := msg.To(m.recipients...); err != nil {
		return err
	}
	msg.Subject(email.Subject)
	if err := msg.SetBodyHTMLTemplate(email.Template, email.Data); err != nil {
		return err
	}

	return m.client.DialAndSendWithContext(ctx, msg)
}
