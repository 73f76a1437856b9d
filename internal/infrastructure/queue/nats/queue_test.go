package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

func TestDecodeReprocess(t *testing.T) {
	req, err := decodeReprocess([]byte(`{"document_id":"client_3_a.pdf","client_id":3,"request_id":"r-1"}`))
	if err != nil {
		t.Fatalf("decodeReprocess() error = %v", err)
	}
	if req.DocumentID != "client_3_a.pdf" || req.ClientID == nil || *req.ClientID != 3 || req.RequestID != "r-1" {
		t.Fatalf("unexpected request: %#v", req)
	}

	if _, err := decodeReprocess([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := decodeReprocess([]byte(`{"client_id":3}`)); err == nil {
		t.Fatalf("expected error for missing document id")
	}
}

func TestDispatchRunsHandlerWithTimeout(t *testing.T) {
	var got ports.ReprocessRequest
	var hasDeadline bool
	ok := dispatch(context.Background(), time.Minute, []byte(`{"document_id":"a.txt"}`), func(ctx context.Context, req ports.ReprocessRequest) error {
		got = req
		_, hasDeadline = ctx.Deadline()
		return nil
	})
	if !ok {
		t.Fatalf("expected dispatch to succeed")
	}
	if got.DocumentID != "a.txt" || got.ClientID != nil {
		t.Fatalf("unexpected request: %#v", got)
	}
	if !hasDeadline {
		t.Fatalf("expected handler context to carry a deadline")
	}
}

func TestDispatchWithoutTimeoutCancelsHandlerContextOnReturn(t *testing.T) {
	var handlerCtx context.Context
	ok := dispatch(context.Background(), 0, []byte(`{"document_id":"a.txt"}`), func(ctx context.Context, _ ports.ReprocessRequest) error {
		handlerCtx = ctx
		if _, has := ctx.Deadline(); has {
			t.Fatalf("expected no deadline without a handler timeout")
		}
		return nil
	})
	if !ok {
		t.Fatalf("expected dispatch to succeed")
	}
	if handlerCtx.Err() == nil {
		t.Fatalf("expected handler context to be cancelled after dispatch returns")
	}
}

func TestDispatchDropsMalformedAndReportsHandlerFailure(t *testing.T) {
	calls := 0
	handler := func(context.Context, ports.ReprocessRequest) error {
		calls++
		return errors.New("boom")
	}
	if dispatch(context.Background(), 0, []byte(`{}`), handler) {
		t.Fatalf("expected malformed message to be dropped")
	}
	if calls != 0 {
		t.Fatalf("handler must not run for malformed message")
	}
	if dispatch(context.Background(), 0, []byte(`{"document_id":"a.txt"}`), handler) {
		t.Fatalf("expected handler failure to be reported")
	}
	if calls != 1 {
		t.Fatalf("expected one handler call, got %d", calls)
	}
}

func TestClassifyNATSError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "canceled", err: context.Canceled, retryable: false, record: false},
		{name: "no servers", err: fmt.Errorf("nats publish: %w", nats.ErrNoServers), retryable: true, record: true},
		{name: "reconnecting", err: nats.ErrConnectionReconnecting, retryable: true, record: true},
		{name: "bad subject", err: nats.ErrBadSubject, retryable: false, record: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyNATSError(tt.err)
			if got.Retryable != tt.retryable || got.RecordFailure != tt.record {
				t.Fatalf("classifyNATSError(%v) = %#v", tt.err, got)
			}
		})
	}
}

func TestPublishErrorsBecomeTemporary(t *testing.T) {
	err := resilience.WrapTemporary("nats publish", fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed), classifyNATSError)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	err = resilience.WrapTemporary("nats publish", nats.ErrBadSubject, classifyNATSError)
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("bad subject must not be temporary")
	}
}

func TestPublishDocumentProcessedWithoutSubjectIsNoop(t *testing.T) {
	q := &Queue{}
	if err := q.PublishDocumentProcessed(context.Background(), ports.DocumentProcessedEvent{DocumentID: "a.txt"}); err != nil {
		t.Fatalf("PublishDocumentProcessed() error = %v", err)
	}
	if err := q.PublishReprocess(context.Background(), ports.ReprocessRequest{}); err == nil {
		t.Fatalf("expected error for empty document id")
	}
}
