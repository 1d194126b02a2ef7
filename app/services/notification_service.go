package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"net/smtp"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jashub/parcelhub/config"
	"github.com/jashub/parcelhub/utils"
)

// NotificationService handles sending notifications via SMS and email
type NotificationService interface {
	SendSMS(ctx context.Context, mobile, message string) error
	SendEmail(ctx context.Context, email, subject, message string) error
}

// SMSProvider interface for SMS sending
type SMSProvider interface {
	SendSMS(ctx context.Context, mobile, message string) error
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(ctx context.Context, email, subject, message string) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	smsProvider   SMSProvider
	emailProvider EmailProvider
}

var mobilePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

// NewNotificationService creates a new notification service
func NewNotificationService(smsProvider SMSProvider, emailProvider EmailProvider) NotificationService {
	return &NotificationServiceImpl{
		smsProvider:   smsProvider,
		emailProvider: emailProvider,
	}
}

// NewNotificationServiceFromConfig picks providers according to the notification config
func NewNotificationServiceFromConfig(cfg config.NotificationConfig) NotificationService {
	var sms SMSProvider = NewMockSMSProvider()
	if cfg.SMSProvider == "http" {
		sms = NewHTTPSMSProvider(cfg.SMSEndpoint, cfg.SMSAPIKey, cfg.SMSSender, cfg.Timeout)
	}
	var email EmailProvider = NewMockEmailProvider()
	if cfg.EmailProvider == "smtp" {
		email = NewSMTPEmailProvider(cfg.EmailHost, cfg.EmailPort, cfg.EmailUsername, cfg.EmailPassword, cfg.EmailFrom)
	}
	return NewNotificationService(sms, email)
}

// SendSMS sends an SMS message to the specified mobile number
func (s *NotificationServiceImpl) SendSMS(ctx context.Context, mobile, message string) error {
	if s.smsProvider == nil {
		return fmt.Errorf("SMS provider not configured")
	}

	mobile = normalizeMobile(mobile)
	if !mobilePattern.MatchString(mobile) {
		return fmt.Errorf("invalid mobile number format: %s", mobile)
	}

	return s.smsProvider.SendSMS(ctx, mobile, message)
}

// SendEmail sends an email to the specified email address
func (s *NotificationServiceImpl) SendEmail(ctx context.Context, email, subject, message string) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email address: %s", email)
	}

	return s.emailProvider.SendEmail(ctx, email, subject, message)
}

// normalizeMobile strips spaces and dashes, e.g. "+60 12-345 6789" becomes "+60123456789"
func normalizeMobile(mobile string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(mobile))
}

// MockSMSMessage is a message captured by MockSMSProvider
type MockSMSMessage struct {
	Recipient string
	Message   string
	SentAt    time.Time
}

// MockSMSProvider logs and records messages instead of sending them
type MockSMSProvider struct {
	mu           sync.Mutex
	SentMessages []MockSMSMessage
}

func NewMockSMSProvider() *MockSMSProvider {
	return &MockSMSProvider{}
}

func (p *MockSMSProvider) SendSMS(_ context.Context, mobile, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	log.Printf("SMS sent to %s: %s", mobile, message)
	p.SentMessages = append(p.SentMessages, MockSMSMessage{Recipient: mobile, Message: message, SentAt: utils.UTCNow()})
	return nil
}

// Messages returns a copy of the recorded messages
func (p *MockSMSProvider) Messages() []MockSMSMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]MockSMSMessage(nil), p.SentMessages...)
}

// MockEmail is an email captured by MockEmailProvider
type MockEmail struct {
	Recipient string
	Subject   string
	Body      string
	SentAt    time.Time
}

// MockEmailProvider logs and records emails instead of sending them
type MockEmailProvider struct {
	mu     sync.Mutex
	Emails []MockEmail
}

func NewMockEmailProvider() *MockEmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(_ context.Context, email, subject, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	log.Printf("Email sent to %s [%s]: %s", email, subject, message)
	p.Emails = append(p.Emails, MockEmail{Recipient: email, Subject: subject, Body: message, SentAt: utils.UTCNow()})
	return nil
}

// Sent returns a copy of the recorded emails
func (p *MockEmailProvider) Sent() []MockEmail {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]MockEmail(nil), p.Emails...)
}

// HTTPSMSProvider posts messages to a JSON SMS gateway
type HTTPSMSProvider struct {
	endpoint string
	apiKey   string
	sender   string
	client   *http.Client
}

type smsGatewayRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

func NewHTTPSMSProvider(endpoint, apiKey, sender string, timeout time.Duration) *HTTPSMSProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSMSProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		sender:   sender,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *HTTPSMSProvider) SendSMS(ctx context.Context, mobile, message string) error {
	body, err := json.Marshal(smsGatewayRequest{From: p.sender, To: mobile, Text: message})
	if err != nil {
		return fmt.Errorf("failed to marshal SMS request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("SMS gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// SMTPEmailProvider sends plain text mail through an SMTP relay
type SMTPEmailProvider struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
}

func NewSMTPEmailProvider(host string, port int, username, password, fromEmail string) *SMTPEmailProvider {
	return &SMTPEmailProvider{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
	}
}

func (p *SMTPEmailProvider) SendEmail(_ context.Context, email, subject, message string) error {
	var auth smtp.Auth
	if p.username != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", p.fromEmail)
	fmt.Fprintf(&msg, "To: %s\r\n", email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(message)

	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	if err := smtp.SendMail(addr, auth, p.fromEmail, []string{email}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}
	return nil
}
