package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

func TestSMTPSenderIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := NewSMTPSender(tt.config)
			if sender.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", sender.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestSMTPSenderBuildsMultipartMessage(t *testing.T) {
	sender := NewSMTPSender(Config{Host: "smtp.example.com", Port: "587", From: "noreply@example.com", FromName: "Experiencias"})
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	sender.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err := sender.SendHTML(context.Background(), Recipient{Email: "ana@ie.edu.co", Name: "Ana"}, "Hola", "<p>cuerpo</p>")
	if err != nil {
		t.Fatalf("SendHTML failed: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "ana@ie.edu.co" {
		t.Errorf("to = %v", gotTo)
	}
	for _, want := range []string{"To: Ana <ana@ie.edu.co>", "From: Experiencias <noreply@example.com>", "Subject: Hola", "<p>cuerpo</p>", "text/html"} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSMTPSenderNotConfigured(t *testing.T) {
	err := NewSMTPSender(Config{}).SendHTML(context.Background(), Recipient{Email: "a@b.c"}, "s", "b")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestBrevoSenderPostsMessage(t *testing.T) {
	var got brevoMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/smtp/email" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("api-key") != "key-1" {
			t.Errorf("api-key header = %q", r.Header.Get("api-key"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := NewBrevoSender(BrevoConfig{APIKey: "key-1", FromEmail: "noreply@example.com", FromName: "Experiencias", BaseURL: srv.URL}, srv.Client())
	if err := sender.SendHTML(context.Background(), Recipient{Email: "ana@ie.edu.co", Name: "Ana"}, "Asunto", "<b>x</b>"); err != nil {
		t.Fatalf("SendHTML failed: %v", err)
	}
	if got.Subject != "Asunto" || len(got.To) != 1 || got.To[0].Email != "ana@ie.edu.co" || got.Sender.Name != "Experiencias" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestBrevoSenderSurfacesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	sender := NewBrevoSender(BrevoConfig{APIKey: "bad", FromEmail: "noreply@example.com", BaseURL: srv.URL}, srv.Client())
	err := sender.SendHTML(context.Background(), Recipient{Email: "ana@ie.edu.co"}, "s", "b")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

type captureSender struct {
	to      Recipient
	subject string
	body    string
}

func (c *captureSender) IsConfigured() bool { return true }

func (c *captureSender) SendHTML(_ context.Context, to Recipient, subject, body string) error {
	c.to, c.subject, c.body = to, subject, body
	return nil
}

func TestSendEvaluationResultUsesResultColour(t *testing.T) {
	tests := []struct {
		result string
		color  string
	}{
		{"Naciente", "#ff9f43"},
		{"Creciente", "#1793D1"},
		{"Inspiradora", "#27ae60"},
		{"Otro", "#7f8c8d"},
	}
	for _, tt := range tests {
		t.Run(tt.result, func(t *testing.T) {
			capture := &captureSender{}
			if err := NewService(capture).SendEvaluationResult(context.Background(), "ana@ie.edu.co", "Ana", tt.result); err != nil {
				t.Fatalf("SendEvaluationResult failed: %v", err)
			}
			if !strings.Contains(capture.body, tt.color) {
				t.Errorf("body missing colour %s", tt.color)
			}
			if !strings.Contains(capture.body, "Hola Ana") {
				t.Error("body should greet the user")
			}
			if !strings.HasSuffix(capture.subject, tt.result) {
				t.Errorf("subject = %q", capture.subject)
			}
		})
	}
}

func TestUnknownResultIsEscaped(t *testing.T) {
	_, message := ResultStyle("<script>")
	if strings.Contains(string(message), "<script>") {
		t.Fatalf("result was not escaped: %s", message)
	}
}

func TestSendEditApproved(t *testing.T) {
	capture := &captureSender{}
	expires := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	if err := NewService(capture).SendEditApproved(context.Background(), "ana@ie.edu.co", "Ana", "Huerta escolar", expires); err != nil {
		t.Fatalf("SendEditApproved failed: %v", err)
	}
	if !strings.Contains(capture.body, "Huerta escolar") || !strings.Contains(capture.body, "2025-03-01 10:30") {
		t.Fatalf("unexpected body: %s", capture.body)
	}
	if capture.to.Email != "ana@ie.edu.co" {
		t.Fatalf("to = %+v", capture.to)
	}
}

func TestServiceWithoutSender(t *testing.T) {
	if err := NewService(nil).SendEvaluationResult(context.Background(), "a@b.c", "A", "Naciente"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
