package mail

import (
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendPasswordReset_LogOnlyWhenUnconfigured(t *testing.T) {
	d := NewDispatcher("smtp.example.com", 587, "user", "pass", "noreply@example.com", false, discardLogger())

	sent := false
	d.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = true
		return nil
	}

	if err := d.SendPasswordReset("user@example.com", "https://app/reset?token=abc"); err != nil {
		t.Fatalf("SendPasswordReset() error = %v", err)
	}
	if sent {
		t.Error("no mail should be sent when SMTP is unconfigured")
	}
}

func TestSendPasswordReset_SendsWhenConfigured(t *testing.T) {
	d := NewDispatcher("smtp.example.com", 587, "user", "pass", "noreply@example.com", true, discardLogger())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	d.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	if err := d.SendPasswordReset("user@example.com", "https://app/reset?token=abc"); err != nil {
		t.Fatalf("SendPasswordReset() error = %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "noreply@example.com" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "user@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	for _, want := range []string{
		"Subject: Password Reset Request - DriveX",
		"To: user@example.com",
		"https://app/reset?token=abc",
		"expire in 1 hour",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendPasswordReset_PropagatesSendFailure(t *testing.T) {
	d := NewDispatcher("smtp.example.com", 587, "user", "pass", "noreply@example.com", true, discardLogger())

	d.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("relay refused")
	}

	err := d.SendPasswordReset("user@example.com", "https://app/reset?token=abc")
	if err == nil {
		t.Fatal("SendPasswordReset() should propagate the send failure")
	}
	if !strings.Contains(err.Error(), "relay refused") {
		t.Errorf("error = %v", err)
	}
}
