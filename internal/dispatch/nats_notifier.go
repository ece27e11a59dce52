package dispatch

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"farewatch/pkg/models"
)

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

type NATSNotifier struct {
	conn    natsPublisher
	subject string
	close   func()
}

// NewNATSNotifier connects to url. The connection reconnects on its own; while
// it is down, published alerts are buffered by the client up to its limit.
func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("farewatch"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return &NATSNotifier{conn: conn, subject: subject, close: conn.Close}, nil
}

func (n *NATSNotifier) Name() string {
	return "nats"
}

func (n *NATSNotifier) Send(ctx context.Context, msg models.DispatchMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := encodePush(msg)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(n.subject, body); err != nil {
		return fmt.Errorf("failed to publish alert to nats subject %s: %w", n.subject, err)
	}
	return nil
}

func (n *NATSNotifier) Close() error {
	if n.close != nil {
		n.close()
	}
	return nil
}
