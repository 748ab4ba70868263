// Package notify dispatches verification codes to a delivery channel chosen
// by capability tag (EMAIL or SMS).
package notify

import (
	"context"
	"errors"
	"strings"

	"cashflow/internal/log"
)

const (
	MethodEmail = "EMAIL"
	MethodSMS   = "PHONE"
)

// ErrUnsupportedMethod is returned when no registered sender supports the
// requested delivery method.
var ErrUnsupportedMethod = errors.New("unsupported delivery method")

// Sender delivers a verification code over one channel.
type Sender interface {
	// Supports reports whether this sender handles the given method tag.
	Supports(method string) bool
	// SendCode delivers the code to the target (email address or phone number).
	SendCode(ctx context.Context, target, code string) error
}

// Registry selects a Sender by method tag.
type Registry struct {
	senders []Sender
}

func NewRegistry(senders ...Sender) *Registry {
	return &Registry{senders: senders}
}

// Send dispatches the code through the first sender supporting the method.
func (r *Registry) Send(ctx context.Context, method, target, code string) error {
	for _, s := range r.senders {
		if s.Supports(method) {
			return s.SendCode(ctx, target, code)
		}
	}
	return ErrUnsupportedMethod
}

// EmailSender is the mock email channel. The real mailer lives outside this
// service; this mirrors the upstream stub and only logs the delivery.
type EmailSender struct {
	From   string
	logger *log.Logger
}

func NewEmailSender(from string, logger *log.Logger) *EmailSender {
	return &EmailSender{From: from, logger: logger.WithComponent(log.ComponentNotify)}
}

func (e *EmailSender) Supports(method string) bool {
	return strings.EqualFold(method, MethodEmail)
}

func (e *EmailSender) SendCode(ctx context.Context, target, code string) error {
	e.logger.InfoContext(ctx, "Verification email sent (mock)",
		log.FieldTarget, target,
		"from", e.From)
	return nil
}

// SMSSender is the mock SMS channel.
type SMSSender struct {
	Provider string
	logger   *log.Logger
}

func NewSMSSender(provider string, logger *log.Logger) *SMSSender {
	return &SMSSender{Provider: provider, logger: logger.WithComponent(log.ComponentNotify)}
}

func (s *SMSSender) Supports(method string) bool {
	return strings.EqualFold(method, MethodSMS) || strings.EqualFold(method, "SMS")
}

func (s *SMSSender) SendCode(ctx context.Context, target, code string) error {
	s.logger.InfoContext(ctx, "Verification SMS sent (mock)",
		log.FieldTarget, target,
		"provider", s.Provider)
	return nil
}
