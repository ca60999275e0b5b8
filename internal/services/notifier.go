package services

import (
	"fmt"

	"messenger-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// APNsNotifier pushes "new message" alerts to recipients that have a stored
// push token. Delivery is best effort: failures are logged and never bubble
// into the send flow.
type APNsNotifier struct {
	client *apns2.Client
	topic  string
}

// NewAPNsNotifier creates an APNs notifier from a .p8 auth key
func NewAPNsNotifier(keyFile, keyID, teamID, topic string, sandbox bool) (*APNsNotifier, error) {
	authKey, err := token.AuthKeyFromFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	t := &token.Token{
		AuthKey: authKey,
		KeyID:   keyID,
		TeamID:  teamID,
	}

	client := apns2.NewTokenClient(t)
	if sandbox {
		client = client.Development()
	} else {
		client = client.Production()
	}

	return &APNsNotifier{client: client, topic: topic}, nil
}

// MessagePosted notifies a recipient about a new message
func (n *APNsNotifier) MessagePosted(recipient *models.User, sender *models.User, msg *models.Message) {
	if recipient.PushToken == nil || *recipient.PushToken == "" {
		return
	}

	notification := &apns2.Notification{
		DeviceToken: *recipient.PushToken,
		Topic:       n.topic,
		Payload: payload.NewPayload().
			AlertTitle(sender.DisplayName).
			AlertBody(messagePreview(msg)).
			Sound("default"),
	}

	res, err := n.client.Push(notification)
	if err != nil {
		log.Error().Err(err).Str("user_id", recipient.ID).Msg("Failed to push notification")
		return
	}
	if !res.Sent() {
		log.Warn().
			Str("user_id", recipient.ID).
			Str("reason", res.Reason).
			Msg("Push notification rejected")
	}
}

// messagePreview renders the alert body for a message
func messagePreview(msg *models.Message) string {
	switch msg.Kind {
	case models.MessageImage:
		return "Photo"
	case models.MessageVideo:
		return "Video"
	case models.MessageAudio:
		return "Voice note"
	case models.MessageDocument:
		return "Document"
	default:
		return msg.Body
	}
}

// NoopNotifier is used when push notifications are disabled
type NoopNotifier struct{}

// MessagePosted does nothing
func (NoopNotifier) MessagePosted(recipient *models.User, sender *models.User, msg *models.Message) {
}
