// Package notify mails the results of a match run.
package notify

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/spigell/matchai/internal/failure"
	"github.com/spigell/matchai/internal/matching"
	"github.com/spigell/matchai/internal/repository"
)

const (
	DefaultHost    = "smtp.gmail.com"
	DefaultPort    = 587
	DefaultTimeout = 30 * time.Second
)

//go:embed email.html.tmpl
var htmlSource string

//go:embed email.txt.tmpl
var textSource string

var funcs = map[string]any{
	"percent": func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
	"join":    strings.Join,
}

var (
	htmlBody = htmltemplate.Must(htmltemplate.New("email.html").Funcs(funcs).Parse(htmlSource))
	textBody = texttemplate.Must(texttemplate.New("email.txt").Funcs(funcs).Parse(textSource))
)

// Config selects the SMTP relay and the recipients. Username defaults to From.
type Config struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	PasswordFile string        `mapstructure:"password_file"`
	From         string        `mapstructure:"from"`
	To           []string      `mapstructure:"to"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Sender delivers composed messages.
type Sender interface {
	Send(ctx context.Context, msgs ...*mail.Msg) error
}

// SMTP sends through an authenticated STARTTLS connection.
type SMTP struct {
	client *mail.Client
}

// NewSMTP builds the client. The password must already be resolved.
func NewSMTP(cfg Config) (*SMTP, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = DefaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = strings.TrimSpace(cfg.From)
	}
	if username == "" || cfg.Password == "" {
		return nil, failure.Configurationf("smtp credentials are not configured")
	}

	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, failure.Configuration(fmt.Errorf("smtp client: %w", err))
	}
	return &SMTP{client: client}, nil
}

func (s *SMTP) Send(ctx context.Context, msgs ...*mail.Msg) error {
	if err := s.client.DialAndSendWithContext(ctx, msgs...); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Notifier mails a digest of ranked results to the configured recipients.
type Notifier struct {
	from   string
	to     []string
	sender Sender
	logger *zap.Logger
}

func New(cfg Config, sender Sender, logger *zap.Logger) (*Notifier, error) {
	if sender == nil {
		return nil, errors.New("notify: sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return nil, failure.Configurationf("notify.from is not configured")
	}
	var to []string
	for _, rcpt := range cfg.To {
		if rcpt = strings.TrimSpace(rcpt); rcpt != "" {
			to = append(to, rcpt)
		}
	}
	if len(to) == 0 {
		return nil, failure.Configurationf("notify.to has no recipients")
	}

	return &Notifier{from: from, to: to, sender: sender, logger: logger.Named("notify")}, nil
}

// Notify mails the results of rep. It reports false without sending when there is nothing to tell.
func (n *Notifier) Notify(ctx context.Context, rep *matching.Report) (bool, error) {
	if rep == nil || len(rep.Results) == 0 {
		n.logger.Debug("no results to mail")
		return false, nil
	}

	msg, err := n.Message(rep)
	if err != nil {
		return false, err
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return false, err
	}

	n.logger.Info("results mailed",
		zap.String("run_id", rep.RunID),
		zap.Int("results", len(rep.Results)),
		zap.Strings("to", n.to),
	)
	return true, nil
}

// Message composes the HTML digest with a plain text alternative.
func (n *Notifier) Message(rep *matching.Report) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, failure.Configuration(fmt.Errorf("notify.from: %w", err))
	}
	if err := msg.To(n.to...); err != nil {
		return nil, failure.Configuration(fmt.Errorf("notify.to: %w", err))
	}
	msg.Subject(Subject(rep.Results))
	msg.SetDate()
	msg.SetMessageID()

	data := digest{RunID: rep.RunID, Count: len(rep.Results), Results: rep.Results}
	if err := msg.SetBodyHTMLTemplate(htmlBody, data); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}
	if err := msg.AddAlternativeTextTemplate(textBody, data); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}
	return msg, nil
}

func Subject(results []repository.MatchResult) string {
	if len(results) == 1 {
		return "[matchai] 1 new job match"
	}
	return fmt.Sprintf("[matchai] %d new job matches", len(results))
}

type digest struct {
	RunID   string
	Count   int
	Results []repository.MatchResult
}
