package protocol

import (
	"context"
	"errors"
	"io"
	"sync"
)

var ErrClosed = errors.New("connection closed")

// Conn is one end of a message channel. Messages arrive in the order they
// were sent, each at most once.
//
// Send never waits for the peer. Recv blocks until a message arrives, the
// peer closes (io.EOF) or ctx is done.
type Conn interface {
	Send(ctx context.Context, msg Message) error
	Recv(ctx context.Context) (Message, error)
	Close() error
}

// Pipe returns two connected in-process endpoints. Messages are passed by
// pointer, so a buffer sent across is moved, not copied.
func Pipe() (controller, worker Conn) {
	a, b := newMailbox(), newMailbox()
	return &pipeEnd{in: a, out: b}, &pipeEnd{in: b, out: a}
}

type pipeEnd struct {
	in  *mailbox
	out *mailbox
}

func (p *pipeEnd) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.out.push(msg)
}

func (p *pipeEnd) Recv(ctx context.Context) (Message, error) {
	return p.in.pop(ctx)
}

// Close stops both directions. Messages already queued for the peer can still be received.
func (p *pipeEnd) Close() error {
	p.out.close()
	p.in.close()
	return nil
}

// mailbox is an unbounded FIFO queue.
type mailbox struct {
	mu     sync.Mutex
	queue  []Message
	closed bool
	ready  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (mb *mailbox) push(msg Message) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		return ErrClosed
	}
	mb.queue = append(mb.queue, msg)
	mb.signal()
	return nil
}

func (mb *mailbox) pop(ctx context.Context) (Message, error) {
	for {
		mb.mu.Lock()
		if len(mb.queue) > 0 {
			msg := mb.queue[0]
			mb.queue[0] = nil
			mb.queue = mb.queue[1:]
			if len(mb.queue) > 0 {
				mb.signal()
			}
			mb.mu.Unlock()
			return msg, nil
		}
		closed := mb.closed
		mb.mu.Unlock()

		if closed {
			return nil, io.EOF
		}

		select {
		case <-mb.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (mb *mailbox) close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if !mb.closed {
		mb.closed = true
		mb.signal()
	}
}

// signal wakes one waiting pop. Callers hold mu.
func (mb *mailbox) signal() {
	select {
	case mb.ready <- struct{}{}:
	default:
	}
}
