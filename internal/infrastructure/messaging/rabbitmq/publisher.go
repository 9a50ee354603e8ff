package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/evgeniivall/notes-auth-micro/internal/application/auth"
)

const (
	DefaultExchange = "notes.events"

	RoutingKeyWelcome       = "user.welcome.requested"
	RoutingKeyPasswordReset = "auth.password.reset.requested"

	// Upper bound for the broker confirm when the caller has no deadline.
	defaultPublishTimeout = 2 * time.Second
)

var (
	ErrUnroutable = errors.New("rabbitmq: message unroutable")
	ErrNacked     = errors.New("rabbitmq: message nacked")
)

// Publisher hands account emails to the mail worker as events on a topic
// exchange. Publishes are mandatory and confirmed, so a nil error means the
// broker routed and accepted the message.
type Publisher struct {
	url      string
	exchange string
	log      zerolog.Logger
	now      func() time.Time

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewPublisher(url, exchange string, log zerolog.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &Publisher{
		url:      url,
		exchange: exchange,
		log:      log.With().Str("component", "rabbitmq_publisher").Logger(),
		now:      time.Now,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetConn()
	return nil
}

// ---- auth.Notifier ----

func (p *Publisher) NotifyWelcome(ctx context.Context, evt auth.WelcomeEvent) error {
	return p.publishJSON(ctx, RoutingKeyWelcome, evt)
}

func (p *Publisher) NotifyPasswordReset(ctx context.Context, evt auth.PasswordResetEvent) error {
	return p.publishJSON(ctx, RoutingKeyPasswordReset, evt)
}

// ---- internal ----

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	// Declare topic exchange (idempotent).
	if err := ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("exchange declare: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("confirm mode: %w", err)
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))

	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) ensureConnected() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil {
		return nil
	}
	p.resetConn()
	return p.connect()
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, payload any) error {
	msg, err := newMessage(payload, p.now())
	if err != nil {
		return err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnected(); err != nil {
		return err
	}

	drain(p.confirmCh, p.returnCh)

	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, true, false, msg); err != nil {
		p.resetConn()
		return fmt.Errorf("publish failed: %w", err)
	}

	if err := awaitConfirm(ctx, routingKey, p.confirmCh, p.returnCh); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// confirm may still arrive later and would be mistaken for the next one
			p.resetConn()
		}
		p.log.Warn().Err(err).Str("routing_key", routingKey).Msg("publish not confirmed")
		return err
	}
	return nil
}

func newMessage(payload any, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal payload: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now.UTC(),
		Body:         body,
	}, nil
}

// drain drops stale confirms and returns so they are not matched to the next publish.
func drain(confirms <-chan amqp.Confirmation, returns <-chan amqp.Return) {
	for {
		select {
		case <-confirms:
		case <-returns:
		default:
			return
		}
	}
}

// awaitConfirm waits for the outcome of a single mandatory publish.
// The broker sends basic.return before the ack of an unroutable message and
// the client delivers it first, so a return is checked once more after the ack.
func awaitConfirm(ctx context.Context, routingKey string, confirms <-chan amqp.Confirmation, returns <-chan amqp.Return) error {
	select {
	case ret := <-returns:
		return fmt.Errorf("%w: key=%s code=%d text=%s", ErrUnroutable, routingKey, ret.ReplyCode, ret.ReplyText)

	case conf := <-confirms:
		select {
		case ret := <-returns:
			return fmt.Errorf("%w: key=%s code=%d text=%s", ErrUnroutable, routingKey, ret.ReplyCode, ret.ReplyText)
		default:
		}
		if !conf.Ack {
			return fmt.Errorf("%w: key=%s deliveryTag=%d", ErrNacked, routingKey, conf.DeliveryTag)
		}
		return nil

	case <-ctx.Done():
		return fmt.Errorf("rabbitmq publish: key=%s: %w", routingKey, ctx.Err())
	}
}

func (p *Publisher) resetConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
