// Package nats carries revision events between the api and the archive worker.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/devgen-studio/internal/core/domain"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/resilience"
)

const archiveQueueGroup = "revision-archivers"

type RevisionBus struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ClientName           string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string, options Options) (*RevisionBus, error) {
	name := options.ClientName
	if name == "" {
		name = "devgen-studio"
	}
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", fmt.Sprint(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &RevisionBus{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (b *RevisionBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *RevisionBus) PublishRevision(ctx context.Context, event domain.RevisionEvent) error {
	payload, err := EncodeRevision(event)
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}

// SubscribeRevisions delivers events to handler through a queue group so
// several workers split the stream. It blocks until ctx is done and then
// drains the subscription.
func (b *RevisionBus) SubscribeRevisions(ctx context.Context, handler func(context.Context, domain.RevisionEvent) error) error {
	sub, err := b.conn.QueueSubscribe(b.subject, archiveQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := DecodeRevision(msg.Data)
		if err != nil {
			slog.Error("revision_decode_failed", "subject", msg.Subject, "error", err.Error())
			return
		}
		if err := handler(ctx, event); err != nil {
			slog.Error("revision_handler_failed",
				"event_id", event.ID,
				"workspace_id", event.WorkspaceID,
				"revision", event.Revision,
				"error", err.Error(),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func EncodeRevision(event domain.RevisionEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal revision event: %w", err)
	}
	return payload, nil
}

func DecodeRevision(data []byte) (domain.RevisionEvent, error) {
	var event domain.RevisionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.RevisionEvent{}, domain.WrapError(domain.ErrInvalidInput, "decode revision event", err)
	}
	if event.WorkspaceID == "" {
		return domain.RevisionEvent{}, domain.WrapError(domain.ErrInvalidInput, "decode revision event", fmt.Errorf("missing workspace_id"))
	}
	return event, nil
}
