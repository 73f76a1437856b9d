package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/legal-intake/internal/core/ports"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

const workerQueueGroup = "intake-workers"

// Queue carries reprocess requests to workers and publishes processed events.
type Queue struct {
	conn           *nats.Conn
	reprocessSubj  string
	eventsSubj     string
	executor       *resilience.Executor
	handlerTimeout time.Duration
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	HandlerTimeout       time.Duration
	ResilienceExecutor   *resilience.Executor
}

func New(url, reprocessSubject, eventsSubject string, options Options) (*Queue, error) {
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
		nats.Name("legal-intake"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		reprocessSubj:  reprocessSubject,
		eventsSubj:     eventsSubject,
		executor:       options.ResilienceExecutor,
		handlerTimeout: options.HandlerTimeout,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishReprocess(ctx context.Context, req ports.ReprocessRequest) error {
	if req.DocumentID == "" {
		return errors.New("reprocess request without document id")
	}
	return q.publishJSON(ctx, q.reprocessSubj, req)
}

// PublishDocumentProcessed is a no-op when no events subject is configured.
func (q *Queue) PublishDocumentProcessed(ctx context.Context, event ports.DocumentProcessedEvent) error {
	if q.eventsSubj == "" {
		return nil
	}
	return q.publishJSON(ctx, q.eventsSubj, event)
}

func (q *Queue) publishJSON(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", subject, err)
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}

// SubscribeReprocess blocks until ctx is cancelled, then drains the subscription.
func (q *Queue) SubscribeReprocess(ctx context.Context, handler func(context.Context, ports.ReprocessRequest) error) error {
	sub, err := q.conn.QueueSubscribe(q.reprocessSubj, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		dispatch(ctx, q.handlerTimeout, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// dispatch decodes one message and runs the handler. Malformed messages are
// logged and dropped.
func dispatch(ctx context.Context, timeout time.Duration, data []byte, handler func(context.Context, ports.ReprocessRequest) error) bool {
	req, err := decodeReprocess(data)
	if err != nil {
		slog.Warn("reprocess_message_dropped", "error", err)
		return false
	}

	var (
		handlerCtx context.Context
		cancel     context.CancelFunc
	)
	if timeout > 0 {
		handlerCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		handlerCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if err := handler(handlerCtx, req); err != nil {
		slog.Error("reprocess_handler_failed",
			"document_id", req.DocumentID,
			"request_id", req.RequestID,
			"error", err,
		)
		return false
	}
	return true
}

func decodeReprocess(data []byte) (ports.ReprocessRequest, error) {
	var req ports.ReprocessRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ports.ReprocessRequest{}, fmt.Errorf("decode reprocess request: %w", err)
	}
	if req.DocumentID == "" {
		return ports.ReprocessRequest{}, errors.New("reprocess request without document id")
	}
	return req, nil
}
