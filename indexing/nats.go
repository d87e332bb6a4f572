package indexing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// natsPublisher is the subset of *nats.Conn used by NATS.
type natsPublisher interface {
	Publish(subj string, data []byte) error
}

// Event is the message published for every change.
type Event struct {
	URL  string    `json:"url"`
	Type Kind      `json:"type"`
	Slug string    `json:"slug"`
	At   time.Time `json:"at"`
}

// NATS publishes change events on a subject for downstream consumers.
type NATS struct {
	conn    natsPublisher
	subject string
	now     func() time.Time
}

// NewNATS wraps an open connection.
func NewNATS(conn *nats.Conn, subject string) *NATS {
	return newNATS(conn, subject)
}

func newNATS(conn natsPublisher, subject string) *NATS {
	if subject == "" {
		subject = "trends.changed"
	}
	return &NATS{conn: conn, subject: subject, now: time.Now}
}

func (n *NATS) Notify(ctx context.Context, rawURL string, kind Kind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	evt := Event{URL: rawURL, Type: kind, At: n.now().UTC()}
	if u, err := url.Parse(rawURL); err == nil {
		evt.Slug = path.Base(path.Clean("/" + u.Path))
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.conn.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", n.subject, err)
	}
	return nil
}

// ConnectNATS dials url with reconnect handling logged through log.
func ConnectNATS(url string, log *zap.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.Name("trendengine"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info("nats connection closed")
		}),
	}
	nc, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}
	return nc, nil
}
