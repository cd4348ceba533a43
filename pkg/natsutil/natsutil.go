// Package natsutil provides typed NATS publish/subscribe helpers with
// OpenTelemetry trace propagation.
package natsutil

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// headerCarrier adapts nats.Msg headers for the OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publish serializes v as JSON and publishes it to subject. Trace context
// from ctx travels in the message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return nc.PublishMsg(msg)
}

func decode[T any](msg *nats.Msg, handler func(context.Context, T)) {
	var v T
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		return // drop malformed messages
	}
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
	handler(ctx, v)
}

// Subscribe registers a handler for JSON messages of type T. Trace context
// is extracted from the message headers; malformed messages are dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		decode(msg, handler)
	})
}

// QueueSubscribe is Subscribe with queue-group load balancing, so a pool of
// workers shares one subject without duplicate deliveries.
func QueueSubscribe[T any](nc *nats.Conn, subject, queue string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		decode(msg, handler)
	})
}
