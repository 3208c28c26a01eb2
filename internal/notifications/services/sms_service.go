package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tacoshare-tracking-api/pkg/validator"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

var (
	// ErrMissingPhone is returned when an SMS has no recipient
	ErrMissingPhone = errors.New("recipient phone number is empty")
	// ErrInvalidPhone is returned when the recipient is not a valid E.164 number
	ErrInvalidPhone = errors.New("recipient phone number is invalid")
)

// TwilioConfig holds Twilio credentials. Missing values enable mock mode.
type TwilioConfig struct {
	AccountSID string
	APIKey     string
	APISecret  string
	FromPhone  string
}

// Enabled reports whether all credentials are present
func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.APIKey != "" && c.APISecret != "" && c.FromPhone != ""
}

// SMSService sends customer text messages through Twilio
type SMSService struct {
	client    *twilio.RestClient
	fromPhone string
	logger    *slog.Logger
}

// NewSMSService creates a new SMS service
func NewSMSService(cfg TwilioConfig, logger *slog.Logger) *SMSService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SMSService{
		fromPhone: cfg.FromPhone,
		logger:    logger.With(slog.String("component", "sms")),
	}
	if !cfg.Enabled() {
		s.logger.Warn("twilio credentials not configured, SMS run in mock mode")
		return s
	}

	s.client = twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   cfg.APIKey,
		Password:   cfg.APISecret,
		AccountSid: cfg.AccountSID,
	})
	return s
}

// Enabled reports whether messages are actually sent
func (s *SMSService) Enabled() bool {
	return s.client != nil
}

// Send delivers body to the phone number, normalized to E.164
func (s *SMSService) Send(_ context.Context, to, body string) error {
	if to == "" {
		return ErrMissingPhone
	}
	to = validator.NormalizePhone(to)
	if !validator.IsValidPhone(to) {
		return fmt.Errorf("%w: %s", ErrInvalidPhone, maskPhone(to))
	}
	if s.client == nil {
		s.logger.Info("mock sms", slog.String("to", maskPhone(to)), slog.String("body", body))
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.fromPhone)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	s.logger.Debug("sms sent", slog.String("to", maskPhone(to)), slog.String("sid", sid))
	return nil
}

// maskPhone keeps the last four digits
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
