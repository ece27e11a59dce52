package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"farewatch/internal/logger"
	"farewatch/pkg/logging"
	"farewatch/pkg/models"
)

// Notifier is the push transport. Send is fire-and-forget: a nil error means
// the message was handed off, not that it was delivered.
type Notifier interface {
	Send(ctx context.Context, msg models.DispatchMessage) error
	Name() string
}

// pushPayload is what the redis and nats notifiers put on the wire.
type pushPayload struct {
	UserID            string    `json:"userId"`
	MobileDeviceToken string    `json:"mobileDeviceToken,omitempty"`
	FlightID          string    `json:"flightId"`
	Text              string    `json:"text"`
	SentAt            time.Time `json:"sentAt"`
}

func encodePush(msg models.DispatchMessage) ([]byte, error) {
	body, err := json.Marshal(pushPayload{
		UserID:            msg.User.ID,
		MobileDeviceToken: msg.User.MobileDeviceToken,
		FlightID:          msg.Event.FlightID,
		Text:              msg.Text,
		SentAt:            time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push payload: %w", err)
	}
	return body, nil
}

// LogNotifier writes every alert to the service log.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Name() string {
	return "log"
}

func (n *LogNotifier) Send(ctx context.Context, msg models.DispatchMessage) error {
	n.logger.InfowCtx(logging.WithUserID(ctx, msg.User.ID), "Push alert sent", "message", msg.Text)
	return nil
}
