package notifier

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	"token_auth/internal/lib/logger/sl"
	"token_auth/internal/lib/verification"
	"token_auth/internal/metrics"
	"token_auth/internal/models"
)

const (
	VerifySubject = "Verify your email address"
	PurposeVerify = "verify_email"

	sendTimeout = 30 * time.Second
)

//go:embed templates/*.html
var templatesFS embed.FS

var verifyTemplate = template.Must(template.ParseFS(templatesFS, "templates/verify_email.html"))

// Transport delivers a rendered message: SMTP, a queue, or the log.
type Transport interface {
	Send(ctx context.Context, msg models.Message) error
}

type Config struct {
	BaseURL   string
	Workers   int
	QueueSize int
}

// Notifier renders verification emails and hands them to a Transport on
// background workers. Callers never wait for delivery.
type Notifier struct {
	log       *slog.Logger
	transport Transport
	metrics   *metrics.Metrics
	baseURL   string

	queue chan models.Message
	done  chan struct{}
	wg    sync.WaitGroup

	// mu держит проверку closed и постановку в очередь вместе с Close
	mu     sync.RWMutex
	closed bool
}

func New(log *slog.Logger, transport Transport, cfg Config, m *metrics.Metrics) *Notifier {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}

	n := &Notifier{
		log:       log.With(slog.String("component", "notifier")),
		transport: transport,
		metrics:   m,
		baseURL:   cfg.BaseURL,
		queue:     make(chan models.Message, cfg.QueueSize),
		done:      make(chan struct{}),
	}

	n.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go n.run()
	}

	return n
}

// * SendVerificationEmail только ставит письмо в очередь. Ошибки логируются, наружу не выходят.
func (n *Notifier) SendVerificationEmail(to, name, token string) {
	const op = "notifier.SendVerificationEmail"

	log := n.log.With(slog.String("op", op))

	msg, err := n.render(to, name, token)
	if err != nil {
		log.Error("failed to render verification email", sl.Err(err))
		n.metrics.Email(metrics.EmailFailed)
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		log.Warn("notifier is closed, email dropped")
		n.metrics.Email(metrics.EmailDropped)
		return
	}

	select {
	case n.queue <- msg:
		n.metrics.Email(metrics.EmailQueued)
	default:
		log.Warn("notifier queue is full, email dropped")
		n.metrics.Email(metrics.EmailDropped)
	}
}

func (n *Notifier) render(to, name, token string) (models.Message, error) {
	link := verification.Link(n.baseURL, token)

	var body bytes.Buffer

	err := verifyTemplate.Execute(&body, struct {
		Name            string
		VerificationURL string
	}{
		Name:            name,
		VerificationURL: link,
	})
	if err != nil {
		return models.Message{}, err
	}

	return models.Message{
		Email:   to,
		Name:    name,
		Subject: VerifySubject,
		Link:    link,
		Body:    body.String(),
		Purpose: PurposeVerify,
	}, nil
}

func (n *Notifier) run() {
	defer n.wg.Done()

	for {
		select {
		case msg := <-n.queue:
			n.deliver(msg)
		case <-n.done:
			for {
				select {
				case msg := <-n.queue:
					n.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

// * deliver: одна попытка, без повторов
func (n *Notifier) deliver(msg models.Message) {
	const op = "notifier.deliver"

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := n.transport.Send(ctx, msg); err != nil {
		n.log.Error("failed to send email",
			slog.String("op", op),
			slog.String("purpose", msg.Purpose),
			sl.Err(fmt.Errorf("%s: %w", op, err)),
		)
		n.metrics.Email(metrics.EmailFailed)
		return
	}

	n.log.Debug("email sent", slog.String("op", op), slog.String("purpose", msg.Purpose))
	n.metrics.Email(metrics.EmailSent)
}

// * Close дожидается отправки уже поставленных в очередь писем
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		n.wg.Wait()
		return
	}
	n.closed = true
	close(n.done)
	n.mu.Unlock()

	n.wg.Wait()
}

// LogTransport only logs outgoing messages. Used for local runs.
type LogTransport struct {
	Log *slog.Logger
}

func (t LogTransport) Send(_ context.Context, msg models.Message) error {
	t.Log.Info("email",
		slog.String("to", msg.Email),
		slog.String("subject", msg.Subject),
		slog.String("link", msg.Link),
	)

	return nil
}
