package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBrevoURL = "https://api.brevo.com/v3/"

type BrevoConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	BaseURL   string
}

// BrevoSender posts transactional mail to the Brevo HTTP API.
type BrevoSender struct {
	config BrevoConfig
	client *http.Client
}

func NewBrevoSender(config BrevoConfig, client *http.Client) *BrevoSender {
	if config.BaseURL == "" {
		config.BaseURL = defaultBrevoURL
	}
	if !strings.HasSuffix(config.BaseURL, "/") {
		config.BaseURL += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &BrevoSender{config: config, client: client}
}

func (s *BrevoSender) IsConfigured() bool {
	return s.config.APIKey != "" && s.config.FromEmail != ""
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoMessage struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

func (s *BrevoSender) SendHTML(ctx context.Context, to Recipient, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	body, err := json.Marshal(brevoMessage{
		Sender:      brevoContact{Email: s.config.FromEmail, Name: s.config.FromName},
		To:          []brevoContact{{Email: to.Email, Name: to.Name}},
		Subject:     subject,
		HTMLContent: htmlBody,
	})
	if err != nil {
		return fmt.Errorf("marshal brevo message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"smtp/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build brevo request: %w", err)
	}
	req.Header.Set("api-key", s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send brevo email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
