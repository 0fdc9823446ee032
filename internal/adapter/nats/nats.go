// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/TaskForge/internal/logger"
	"github.com/Strob0t/TaskForge/internal/port/messagequeue"
	"github.com/Strob0t/TaskForge/internal/resilience"
)

const (
	streamName = "TASKFORGE"

	// headerRequestID carries the request ID across the broker so
	// consumers log under the same ID as the HTTP request that
	// produced the event.
	headerRequestID = "Request-Id"

	// headerRetryCount counts handler-failure redeliveries. At
	// maxRetries the message moves to its dead-letter subject.
	headerRetryCount = "Retry-Count"

	maxRetries = 3
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	breaker *resilience.Breaker
}

// Connect establishes a connection to NATS and ensures the JetStream
// stream covering the task lifecycle subjects exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	// tasks.> captures the lifecycle subjects and their .dlq shadows.
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{messagequeue.SubjectTaskAll},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{
		nc:      nc,
		js:      js,
		breaker: resilience.NewBreaker(5, 10*time.Second),
	}, nil
}

// Publish sends a message to the given subject. The request ID from ctx,
// if present, travels in a header. Publishes run through a circuit
// breaker so a dead broker fails fast instead of stalling every caller.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	if reqID := logger.RequestID(ctx); reqID != "" {
		msg.Header.Set(headerRequestID, reqID)
	}

	err := q.breaker.Execute(func() error {
		_, pubErr := q.js.PublishMsg(ctx, msg)
		return pubErr
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			slog.Warn("nats publish rejected", "subject", subject, "breaker", q.breaker.State())
		}
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for messages on the given subject.
// Payloads are validated against their subject schema before the handler
// runs; invalid messages and messages that exhaust their retries move to
// the subject's dead-letter queue.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		q.dispatch(msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// dispatch validates and handles one delivered message, settling it
// exactly once. Handler failures requeue the message with a bumped retry
// count until maxRetries, then it is dead-lettered.
func (q *Queue) dispatch(msg jetstream.Msg, handler messagequeue.Handler) {
	subject := msg.Subject()
	ctx := context.Background()
	if reqID := msg.Headers().Get(headerRequestID); reqID != "" {
		ctx = logger.WithRequestID(ctx, reqID)
	}

	if err := messagequeue.Validate(subject, msg.Data()); err != nil {
		slog.Error("message failed validation", "subject", subject, "error", err)
		q.moveToDLQ(ctx, msg)
		return
	}

	if err := handler(ctx, subject, msg.Data()); err != nil {
		retries := retryCount(msg.Headers())
		if retries >= maxRetries {
			slog.Error("handler failed, retries exhausted",
				"subject", subject, "retries", retries, "error", err)
			q.moveToDLQ(ctx, msg)
			return
		}
		slog.Warn("handler failed, requeueing",
			"subject", subject, "retry", retries+1, "error", err)
		q.requeue(ctx, msg, retries+1)
		return
	}

	if err := msg.Ack(); err != nil {
		slog.Error("nats ack failed", "subject", subject, "error", err)
	}
}

// requeue republishes the message with an incremented retry counter and
// acks the original. If the republish fails the original is NAK'd so
// JetStream redelivers it with the old counter.
func (q *Queue) requeue(ctx context.Context, msg jetstream.Msg, retries int) {
	out := &nats.Msg{
		Subject: msg.Subject(),
		Data:    msg.Data(),
		Header:  cloneHeader(msg.Headers()),
	}
	out.Header.Set(headerRetryCount, strconv.Itoa(retries))

	if _, err := q.js.PublishMsg(ctx, out); err != nil {
		slog.Error("nats requeue failed", "subject", msg.Subject(), "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			slog.Error("nats nak failed", "subject", msg.Subject(), "error", nakErr)
		}
		return
	}
	if err := msg.Ack(); err != nil {
		slog.Error("nats ack failed", "subject", msg.Subject(), "error", err)
	}
}

// moveToDLQ copies the message to its dead-letter subject and acks the
// original so it is never redelivered.
func (q *Queue) moveToDLQ(ctx context.Context, msg jetstream.Msg) {
	dlqSubject := msg.Subject() + messagequeue.DLQSuffix
	out := &nats.Msg{
		Subject: dlqSubject,
		Data:    msg.Data(),
		Header:  cloneHeader(msg.Headers()),
	}

	if _, err := q.js.PublishMsg(ctx, out); err != nil {
		slog.Error("nats DLQ publish failed", "subject", dlqSubject, "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			slog.Error("nats nak failed", "subject", msg.Subject(), "error", nakErr)
		}
		return
	}

	slog.Warn("message moved to DLQ", "subject", dlqSubject)
	if err := msg.Ack(); err != nil {
		slog.Error("nats ack failed", "subject", msg.Subject(), "error", err)
	}
}

// KeyValue creates or opens a JetStream key-value bucket with the given
// per-entry TTL.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain lets in-flight subscriptions finish, then closes the connection.
// Preferred over Close for shutdown.
func (q *Queue) Drain() error {
	if err := q.nc.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection immediately.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the underlying NATS connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}

// retryCount reads the retry counter from message headers; absent or
// malformed values count as zero.
func retryCount(h nats.Header) int {
	v := h.Get(headerRetryCount)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func cloneHeader(h nats.Header) nats.Header {
	out := nats.Header{}
	for k, vals := range h {
		for _, v := range vals {
			out.Add(k, v)
		}
	}
	return out
}
