package exchange

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"seq-aggregator/protocol/frame"
	"seq-aggregator/shared/middleware"
)

const producerComponent = "Result Exchange"

// Channel is the subset of *amqp.Channel the producer needs
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ResultExchange publishes completed result frames to a RabbitMQ exchange
type ResultExchange struct {
	ExchangeName string
	RouteKeys    []string
	channel      Channel
	conn         *amqp.Connection
}

// NewResultExchange connects to RabbitMQ and opens a channel for exchangeName
func NewResultExchange(exchangeName string, routeKeys []string, config *middleware.ConnectionConfig, maxRetries int) (*ResultExchange, error) {
	conn, err := middleware.WaitForConnection(config, maxRetries, middleware.DefaultRetryInterval)
	if err != nil {
		return nil, err
	}

	channel, err := middleware.CreateChannel(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	exchange := NewResultExchangeWithChannel(exchangeName, routeKeys, channel)
	exchange.conn = conn
	return exchange, nil
}

// NewResultExchangeWithChannel wraps an already open channel
func NewResultExchangeWithChannel(exchangeName string, routeKeys []string, channel Channel) *ResultExchange {
	if len(routeKeys) == 0 {
		routeKeys = []string{""}
	}
	return &ResultExchange{
		ExchangeName: exchangeName,
		RouteKeys:    routeKeys,
		channel:      channel,
	}
}

// DeclareExchange makes sure the result exchange exists before the first
// result is mirrored. The server declares it as a durable fanout.
func (m *ResultExchange) DeclareExchange(exchangeType string, durable bool) error {
	if m.channel == nil {
		return fmt.Errorf("exchange '%s': channel not open", m.ExchangeName)
	}

	err := m.channel.ExchangeDeclare(
		m.ExchangeName,
		exchangeType,
		durable,
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("exchange '%s': failed to declare: %w", m.ExchangeName, err)
	}

	middleware.LogInfo(producerComponent, "Exchange '%s' declared (type: %s, durable: %t)", m.ExchangeName, exchangeType, durable)
	return nil
}

// Name identifies the exchange in logs
func (m *ResultExchange) Name() string {
	return "amqp://" + m.ExchangeName
}

// Forward publishes the package frame under every routing key
func (m *ResultExchange) Forward(ctx context.Context, pkg *frame.Package) error {
	if m.channel == nil {
		return fmt.Errorf("exchange '%s': channel not open", m.ExchangeName)
	}

	body, err := frame.EncodePackage(pkg)
	if err != nil {
		return err
	}

	for _, routeKey := range m.RouteKeys {
		err := m.channel.PublishWithContext(
			ctx,
			m.ExchangeName,
			routeKey,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:   "application/octet-stream",
				CorrelationId: pkg.Header.Hashcode.String(),
				Type:          pkg.Header.DataType.String(),
				Body:          body,
			},
		)
		if err != nil {
			return fmt.Errorf("exchange '%s': publish with key '%s' failed: %w", m.ExchangeName, routeKey, err)
		}
		middleware.LogDebug(producerComponent, "Exchange '%s': result sent with key '%s'", m.ExchangeName, routeKey)
	}
	return nil
}

// Close disconnects the channel and its connection
func (m *ResultExchange) Close() error {
	if m.channel == nil {
		return nil
	}
	err := m.channel.Close()
	m.channel = nil
	if m.conn != nil {
		if connErr := m.conn.Close(); err == nil {
			err = connErr
		}
		m.conn = nil
	}
	if err != nil {
		return fmt.Errorf("exchange '%s': close failed: %w", m.ExchangeName, err)
	}
	return nil
}
