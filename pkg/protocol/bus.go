package protocol

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/entrhq/bugson/pkg/logging"
)

// AttachLinkHandler handles attachLink requests.
type AttachLinkHandler func(ctx context.Context, r AttachLink) error

// MergeCommentHandler handles mergeComment requests.
type MergeCommentHandler func(ctx context.Context, r MergeComment) error

// Bus carries requests across the privilege boundary. Sending is
// fire-and-forget: the sender gets no result, and handler failures end up in
// the log.
//
// Any number of handlers may be registered per variant. A handler is only
// called with its own variant.
type Bus struct {
	mu            sync.RWMutex
	attachLinks   []AttachLinkHandler
	mergeComments []MergeCommentHandler
	closed        bool

	ctx    context.Context
	logger *logging.Logger
	wg     sync.WaitGroup
}

// NewBus creates a bus whose deliveries run under ctx.
func NewBus(ctx context.Context, logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Discard("bus")
	}
	return &Bus{ctx: ctx, logger: logger}
}

// OnAttachLink registers a handler for attachLink requests.
func (b *Bus) OnAttachLink(h AttachLinkHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attachLinks = append(b.attachLinks, h)
}

// OnMergeComment registers a handler for mergeComment requests.
func (b *Bus) OnMergeComment(h MergeCommentHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mergeComments = append(b.mergeComments, h)
}

// Send encodes r and delivers it asynchronously. Concurrent sends are not
// ordered relative to each other. Requests sent after Wait has been called
// are dropped.
func (b *Bus) Send(r Request) {
	data, err := Encode(r)
	if err != nil {
		b.logger.Errorf("dropping request: %v", err)
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.logger.Warnf("dropping %s: bus is shut down", r.EventName())
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		if err := b.Deliver(b.ctx, data); err != nil {
			b.logger.Errorf("delivery failed: %v", err)
		}
	}()
}

// Deliver decodes a wire message and runs every handler registered for its
// variant. Handler errors are logged, not returned; only a message that
// cannot be decoded is an error.
func (b *Bus) Deliver(ctx context.Context, data []byte) error {
	req, err := Decode(data)
	if err != nil {
		return err
	}

	id := uuid.New().String()
	b.logger.Debugf("delivery %s: %s", id, req.EventName())

	b.mu.RLock()
	var handlers []func() error
	switch r := req.(type) {
	case AttachLink:
		for _, h := range b.attachLinks {
			h := h
			handlers = append(handlers, func() error { return h(ctx, r) })
		}
	case MergeComment:
		for _, h := range b.mergeComments {
			h := h
			handlers = append(handlers, func() error { return h(ctx, r) })
		}
	default:
		b.mu.RUnlock()
		return fmt.Errorf("%w: %T", ErrUnknownEvent, req)
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Warnf("delivery %s: no handler for %s", id, req.EventName())
	}
	for _, run := range handlers {
		if err := run(); err != nil {
			b.logger.Errorf("delivery %s: %s handler failed: %v", id, req.EventName(), err)
		}
	}
	return nil
}

// Wait shuts the bus down for sending and blocks until every in-flight
// delivery has finished.
func (b *Bus) Wait() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
}
