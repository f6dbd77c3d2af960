package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mkosyakov/admin-auth-service/internal/config"
	"github.com/mkosyakov/admin-auth-service/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const dispatchTimeout = 10 * time.Second

// EmailMessage is a single outbound email
type EmailMessage struct {
	To       string
	Subject  string
	Body     string
	HTMLBody string
}

// EmailSender sends a message to an email destination
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMSSender sends a short text message to a phone number
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// Notifier dispatches OTP codes, reset links and invites. Dispatch is fire
// and forget: it runs on its own goroutine with its own deadline, failures
// are logged and never reach the caller.
type Notifier struct {
	email    EmailSender
	sms      SMSSender
	adminURL string
	logger   *zap.Logger
}

// NewNotifier creates a notifier over the given senders
func NewNotifier(email EmailSender, sms SMSSender, adminURL string, logger *zap.Logger) *Notifier {
	return &Notifier{
		email:    email,
		sms:      sms,
		adminURL: strings.TrimRight(adminURL, "/"),
		logger:   logger,
	}
}

// DispatchOTP sends a one-time code over SMS, falling back to email when
// the user has no phone number on record.
func (n *Notifier) DispatchOTP(user *domain.User, code string) {
	if user.PhoneNumber != "" {
		message := fmt.Sprintf("Your verification code is %s", code)
		n.dispatch("otp_sms", func(ctx context.Context) error {
			return n.sms.Send(ctx, user.PhoneNumber, message)
		})
		return
	}

	n.DispatchOTPEmail(user, code)
}

// DispatchOTPEmail sends a one-time code over email
func (n *Notifier) DispatchOTPEmail(user *domain.User, code string) {
	msg := EmailMessage{
		To:      user.Email,
		Subject: "Your verification code",
		Body:    fmt.Sprintf("Hello %s, your verification code is: %s", user.Firstname, code),
		HTMLBody: fmt.Sprintf("<p>Hello %s,</p><p>Your verification code is: <strong>%s</strong></p>",
			user.Firstname, code),
	}
	n.dispatch("otp_email", func(ctx context.Context) error {
		return n.email.Send(ctx, msg)
	})
}

// DispatchResetPassword emails a password reset link
func (n *Notifier) DispatchResetPassword(user *domain.User, resetToken string) {
	link := fmt.Sprintf("%s/auth/reset-password?code=%s", n.adminURL, url.QueryEscape(resetToken))
	msg := EmailMessage{
		To:      user.Email,
		Subject: "Reset your password",
		Body:    fmt.Sprintf("Hello %s, reset your password here: %s", user.Firstname, link),
		HTMLBody: fmt.Sprintf(`<p>Hello %s,</p><p><a href="%s">Click here</a> to reset your password.</p>`,
			user.Firstname, link),
	}
	n.dispatch("reset_password", func(ctx context.Context) error {
		return n.email.Send(ctx, msg)
	})
}

// DispatchInvite emails a registration invite link
func (n *Notifier) DispatchInvite(user *domain.User, registrationToken string) {
	link := fmt.Sprintf("%s/auth/register?registrationToken=%s", n.adminURL, url.QueryEscape(registrationToken))
	msg := EmailMessage{
		To:      user.Email,
		Subject: "You have been invited",
		Body:    fmt.Sprintf("Hello, complete your registration here: %s", link),
		HTMLBody: fmt.Sprintf(`<p>Hello,</p><p><a href="%s">Click here</a> to complete your registration.</p>`,
			link),
	}
	n.dispatch("invite", func(ctx context.Context) error {
		return n.email.Send(ctx, msg)
	})
}

func (n *Notifier) dispatch(kind string, send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		if err := send(ctx); err != nil {
			n.logger.Error("notification dispatch failed",
				zap.String("kind", kind),
				zap.Error(err),
			)
		}
	}()
}

// SMTPEmailSender delivers email through an SMTP relay
type SMTPEmailSender struct {
	dialer  *gomail.Dialer
	from    string
	replyTo string
}

// NewSMTPEmailSender creates an SMTP email sender
func NewSMTPEmailSender(cfg config.SMTPConfig) *SMTPEmailSender {
	return &SMTPEmailSender{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		replyTo: cfg.ReplyTo,
	}
}

// Send delivers a single email message
func (s *SMTPEmailSender) Send(_ context.Context, msg EmailMessage) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	if s.replyTo != "" {
		m.SetHeader("Reply-To", s.replyTo)
	}
	m.SetHeader("Subject", msg.Subject)

	if msg.HTMLBody != "" {
		m.SetBody("text/html", msg.HTMLBody)
		if msg.Body != "" {
			m.AddAlternative("text/plain", msg.Body)
		}
	} else {
		m.SetBody("text/plain", msg.Body)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}

	return nil
}

// HTTPSMSSender delivers SMS through an HTTP gateway
type HTTPSMSSender struct {
	client *http.Client
	cfg    config.SMSConfig
}

// NewHTTPSMSSender creates an SMS sender over the configured gateway
func NewHTTPSMSSender(cfg config.SMSConfig) *HTTPSMSSender {
	return &HTTPSMSSender{
		client: &http.Client{Timeout: dispatchTimeout},
		cfg:    cfg,
	}
}

// Send posts a message to the SMS gateway
func (s *HTTPSMSSender) Send(ctx context.Context, phone, message string) error {
	if s.cfg.APIURL == "" {
		return fmt.Errorf("sms gateway is not configured")
	}

	form := url.Values{}
	form.Set("username", s.cfg.Username)
	form.Set("password", s.cfg.Password)
	form.Set("sender", s.cfg.Sender)
	form.Set("mobile", phone)
	form.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.APIURL+"/API/send/", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	return nil
}
