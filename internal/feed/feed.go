// Package feed carries change notifications between the store writers and
// snapshot subscribers over NATS. Messages have no payload; a notification
// only means "reload the collection", the store remains the source of truth.
package feed

import (
	"log/slog"

	"github.com/nats-io/nats.go"
)

const (
	SubjectSettingsChanged = "lessonbook.settings.changed"
	SubjectBookingsChanged = "lessonbook.bookings.changed"
)

type Notifier struct {
	conn *nats.Conn
	log  *slog.Logger
}

func Connect(url string, log *slog.Logger) (*Notifier, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Notifier{conn: conn, log: log.With(slog.String("component", "feed"))}, nil
}

func (n *Notifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

func (n *Notifier) Publish(subject string) error {
	return n.conn.Publish(subject, nil)
}

// Subscribe invokes fn on every notification for subject. Deliveries for one
// subscription arrive sequentially on a single goroutine.
func (n *Notifier) Subscribe(subject string, fn func()) (func(), error) {
	sub, err := n.conn.Subscribe(subject, func(*nats.Msg) {
		fn()
	})
	if err != nil {
		return nil, err
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			n.log.Warn("unsubscribe failed", slog.String("subject", subject), slog.Any("err", err))
		}
	}, nil
}
