// Package nats fans reactor publisher/subscriber traffic in and out of a
// NATS subject, for reactors whose inputs or outputs must cross process
// boundaries. The core reactor package remains unaware of this adapter; it
// only ever sees the reactor.Channel values this package produces.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fluxorio/reactor/pkg/reactor"
	natsgo "github.com/nats-io/nats.go"
)

// Config configures a connection to a NATS server, grounded on the
// source's clustered EventBus defaults.
type Config struct {
	// URL is the NATS server URL. Default: nats.DefaultURL.
	URL string

	// Prefix is prepended to every subject this package builds. Default:
	// "reactor".
	Prefix string

	// Name is an optional connection name surfaced in NATS server
	// monitoring.
	Name string
}

func (c Config) url() string {
	if c.URL != "" {
		return c.URL
	}
	return natsgo.DefaultURL
}

func (c Config) prefix() string {
	if c.Prefix != "" {
		return c.Prefix
	}
	return "reactor"
}

// Connect opens a NATS connection per cfg.
func Connect(cfg Config) (*natsgo.Conn, error) {
	return natsgo.Connect(cfg.url(), func(o *natsgo.Options) error {
		if cfg.Name != "" {
			o.Name = cfg.Name
		}
		return nil
	})
}

// Subject builds the subject a reactor identified by reactorName fans a
// given kind ("pub" or "sub") of traffic through.
func Subject(cfg Config, kind, reactorName string) string {
	return fmt.Sprintf("%s.%s.%s", cfg.prefix(), kind, reactorName)
}

var errReceiveOnly = fmt.Errorf("nats: channel is receive-only")
var errSendOnly = fmt.Errorf("nats: channel is send-only")

// PublisherChannel subscribes to a NATS subject and exposes decoded
// messages through the reactor.Channel Receive/TryReceive methods, for
// attaching as a reactor publisher.
type PublisherChannel struct {
	sub *natsgo.Subscription

	msgs     chan any
	closedCh chan struct{}
	closeMu  sync.Once
}

// NewPublisherChannel subscribes to subject on nc.
func NewPublisherChannel(nc *natsgo.Conn, subject string) (*PublisherChannel, error) {
	pc := &PublisherChannel{
		msgs:     make(chan any, 256),
		closedCh: make(chan struct{}),
	}
	sub, err := nc.Subscribe(subject, func(m *natsgo.Msg) {
		var payload any
		if err := json.Unmarshal(m.Data, &payload); err != nil {
			payload = string(m.Data)
		}
		select {
		case pc.msgs <- payload:
		case <-pc.closedCh:
		}
	})
	if err != nil {
		return nil, err
	}
	pc.sub = sub
	return pc, nil
}

func (p *PublisherChannel) Receive(ctx context.Context) (any, error) {
	select {
	case msg, ok := <-p.msgs:
		if !ok {
			return nil, reactor.ErrChannelClosed
		}
		return msg, nil
	case <-p.closedCh:
		return nil, reactor.ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *PublisherChannel) TryReceive() (any, bool, error) {
	select {
	case msg, ok := <-p.msgs:
		if !ok {
			return nil, false, reactor.ErrChannelClosed
		}
		return msg, true, nil
	case <-p.closedCh:
		return nil, false, reactor.ErrChannelClosed
	default:
		return nil, false, nil
	}
}

func (p *PublisherChannel) Send(context.Context, any) error { return errReceiveOnly }
func (p *PublisherChannel) TrySend(any) error                { return errReceiveOnly }

func (p *PublisherChannel) Close() {
	p.closeMu.Do(func() {
		_ = p.sub.Unsubscribe()
		close(p.closedCh)
	})
}

func (p *PublisherChannel) Closed() <-chan struct{} { return p.closedCh }

func (p *PublisherChannel) IsClosed() bool {
	select {
	case <-p.closedCh:
		return true
	default:
		return false
	}
}

func (p *PublisherChannel) Capacity() int { return cap(p.msgs) }

var _ reactor.Channel = (*PublisherChannel)(nil)

// SubscriberChannel publishes every message sent to it onto a NATS
// subject, for attaching as a reactor subscriber whose emissions must
// reach other processes.
type SubscriberChannel struct {
	nc      *natsgo.Conn
	subject string

	closedCh chan struct{}
	closeMu  sync.Once
}

// NewSubscriberChannel returns a SubscriberChannel publishing onto subject
// on nc.
func NewSubscriberChannel(nc *natsgo.Conn, subject string) *SubscriberChannel {
	return &SubscriberChannel{nc: nc, subject: subject, closedCh: make(chan struct{})}
}

func (s *SubscriberChannel) Send(ctx context.Context, msg any) error {
	select {
	case <-s.closedCh:
		return reactor.ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.nc.Publish(s.subject, data)
}

func (s *SubscriberChannel) TrySend(msg any) error {
	return s.Send(context.Background(), msg)
}

func (s *SubscriberChannel) Receive(context.Context) (any, error)  { return nil, errSendOnly }
func (s *SubscriberChannel) TryReceive() (any, bool, error)        { return nil, false, errSendOnly }

func (s *SubscriberChannel) Close() {
	s.closeMu.Do(func() { close(s.closedCh) })
}

func (s *SubscriberChannel) Closed() <-chan struct{} { return s.closedCh }

func (s *SubscriberChannel) IsClosed() bool {
	select {
	case <-s.closedCh:
		return true
	default:
		return false
	}
}

func (s *SubscriberChannel) Capacity() int { return 0 }

var _ reactor.Channel = (*SubscriberChannel)(nil)
