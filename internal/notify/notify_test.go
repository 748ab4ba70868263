package notify

import (
	"context"
	"errors"
	"testing"

	"cashflow/internal/log"
)

type recordingSender struct {
	method string
	sent   []string
}

func (r *recordingSender) Supports(method string) bool { return method == r.method }

func (r *recordingSender) SendCode(_ context.Context, target, code string) error {
	r.sent = append(r.sent, target+":"+code)
	return nil
}

func TestRegistry_SelectsByMethod(t *testing.T) {
	email := &recordingSender{method: MethodEmail}
	sms := &recordingSender{method: MethodSMS}
	registry := NewRegistry(email, sms)

	if err := registry.Send(context.Background(), MethodSMS, "555-0100", "123456"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sms.sent) != 1 || len(email.sent) != 0 {
		t.Errorf("SMS sender should receive the code: sms=%v email=%v", sms.sent, email.sent)
	}
}

func TestRegistry_UnsupportedMethod(t *testing.T) {
	registry := NewRegistry(&recordingSender{method: MethodEmail})

	err := registry.Send(context.Background(), "PIGEON", "x", "123456")
	if !errors.Is(err, ErrUnsupportedMethod) {
		t.Errorf("Send(PIGEON) = %v, want ErrUnsupportedMethod", err)
	}
}

func TestBuiltinSenders_Supports(t *testing.T) {
	logger := log.New(log.DefaultConfig())
	email := NewEmailSender("noreply@example.com", logger)
	sms := NewSMSSender("mock", logger)

	tests := []struct {
		sender Sender
		method string
		want   bool
	}{
		{email, "EMAIL", true},
		{email, "email", true},
		{email, "PHONE", false},
		{sms, "PHONE", true},
		{sms, "SMS", true},
		{sms, "EMAIL", false},
	}

	for _, tt := range tests {
		if got := tt.sender.Supports(tt.method); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.method, got, tt.want)
		}
	}
}

func TestBuiltinSenders_SendCode(t *testing.T) {
	logger := log.New(log.DefaultConfig())
	registry := NewRegistry(
		NewEmailSender("noreply@example.com", logger),
		NewSMSSender("mock", logger),
	)

	if err := registry.Send(context.Background(), MethodEmail, "a@b.com", "000111"); err != nil {
		t.Errorf("Send email = %v, want nil", err)
	}
	if err := registry.Send(context.Background(), MethodSMS, "555", "000111"); err != nil {
		t.Errorf("Send sms = %v, want nil", err)
	}
}
