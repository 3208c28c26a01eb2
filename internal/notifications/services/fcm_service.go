package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

// FCMService handles Firebase Cloud Messaging operations
type FCMService struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewFCMService creates a new FCM service. credentialsJSON takes precedence
// over credentialsPath; with neither set the service runs in mock mode.
func NewFCMService(ctx context.Context, credentialsPath, credentialsJSON string, logger *slog.Logger) (*FCMService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FCMService{logger: logger.With(slog.String("component", "fcm"))}

	var opt option.ClientOption
	switch {
	case credentialsJSON != "":
		opt = option.WithCredentialsJSON([]byte(credentialsJSON))
	case credentialsPath != "":
		opt = option.WithCredentialsFile(credentialsPath)
	default:
		s.logger.Warn("firebase credentials not configured, push notifications run in mock mode")
		return s, nil
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	s.client = client
	return s, nil
}

// Enabled reports whether messages are actually sent
func (s *FCMService) Enabled() bool {
	return s.client != nil
}

// SendToTopic sends a notification to all devices subscribed to a topic
func (s *FCMService) SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error {
	if s.client == nil {
		s.logger.Info("mock push", slog.String("topic", topic), slog.String("title", title))
		return nil
	}

	message := &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
		},
	}

	if _, err := s.client.Send(ctx, message); err != nil {
		return fmt.Errorf("error sending topic message: %w", err)
	}

	return nil
}

// SendDataOnly sends a silent data message to a topic so apps can refresh state
func (s *FCMService) SendDataOnly(ctx context.Context, topic string, data map[string]string) error {
	if s.client == nil {
		return nil
	}

	message := &messaging.Message{
		Topic: topic,
		Data:  data,
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "5",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
				},
			},
		},
	}

	if _, err := s.client.Send(ctx, message); err != nil {
		return fmt.Errorf("error sending data message: %w", err)
	}

	return nil
}

// ConvertDataToStringMap converts arbitrary data to string map for FCM
func ConvertDataToStringMap(data any) (map[string]string, error) {
	if data == nil {
		return nil, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshaling data: %w", err)
	}

	var result map[string]any
	if err := json.Unmarshal(jsonData, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling data: %w", err)
	}

	stringMap := make(map[string]string, len(result))
	for k, v := range result {
		if v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			stringMap[k] = val
		case map[string]any, []any:
			nested, _ := json.Marshal(val)
			stringMap[k] = string(nested)
		default:
			stringMap[k] = fmt.Sprintf("%v", val)
		}
	}

	return stringMap, nil
}
