package mailsender

import (
	"context"
	"errors"
	"fmt"

	"token_auth/internal/models"

	"gopkg.in/gomail.v2"
)

var ErrNoRecipient = errors.New("mailsender: message has no recipient")

type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// * Send отправляет письмо напрямую через SMTP
func (m *Mailer) Send(ctx context.Context, msg models.Message) error {
	const op = "mailsender.Send"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	gm, err := m.buildMessage(msg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	dialer := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	if err := dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (m *Mailer) buildMessage(msg models.Message) (*gomail.Message, error) {
	if msg.Email == "" {
		return nil, ErrNoRecipient
	}

	from := m.From
	if from == "" {
		from = m.Username
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", from)
	gm.SetAddressHeader("To", msg.Email, msg.Name)
	gm.SetHeader("Subject", msg.Subject)

	if msg.Link != "" {
		gm.SetBody("text/plain", msg.Link)
	}

	if msg.Body != "" {
		if msg.Link != "" {
			gm.AddAlternative("text/html", msg.Body)
		} else {
			gm.SetBody("text/html", msg.Body)
		}
	}

	return gm, nil
}
