package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSForwarder republishes events on "<prefix>.<type>" for consumers outside the process.
type NATSForwarder struct {
	conn   natsPublisher
	prefix string
}

func NewNATSForwarder(conn *nats.Conn, prefix string) *NATSForwarder {
	return &NATSForwarder{conn: conn, prefix: prefix}
}

// ConnectNATS dials with reconnects so a broker restart does not lose the connection for good.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("task-lifecycle-api"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

func (f *NATSForwarder) Subject(t Type) string {
	return f.prefix + "." + strings.ToLower(string(t))
}

func (f *NATSForwarder) Handle(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := f.conn.Publish(f.Subject(e.Type), data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.Type, err)
	}
	return nil
}
