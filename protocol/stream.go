package protocol

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"sync"
	"time"
)

var ErrBadMessage = errors.New("not a protocol message")

// Stream is a Conn that gob-encodes messages over a net.Conn.
//
// Sends are queued and written by a background goroutine, so Send does not
// wait for the peer to read. Cancelling a Recv breaks the stream.
type Stream struct {
	conn net.Conn
	dec  *gob.Decoder
	out  *mailbox

	mu       sync.Mutex
	writeErr error
	done     chan struct{}
}

func NewStream(conn net.Conn) *Stream {
	s := &Stream{
		conn: conn,
		dec:  gob.NewDecoder(conn),
		out:  newMailbox(),
		done: make(chan struct{}),
	}
	go s.handleSend()
	return s
}

func (s *Stream) handleSend() {
	defer close(s.done)
	enc := gob.NewEncoder(s.conn)

	for {
		msg, err := s.out.pop(context.Background())
		if err != nil {
			return
		}

		if err := enc.Encode(&msg); err != nil {
			s.mu.Lock()
			s.writeErr = fmt.Errorf("encoding %s: %w", msg.Type(), err)
			s.mu.Unlock()
			s.out.close()
			s.conn.Close()
			return
		}
	}
}

func (s *Stream) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	err := s.writeErr
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.out.push(msg)
}

func (s *Stream) Recv(ctx context.Context) (Message, error) {
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var v any
	if err := s.dec.Decode(&v); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
			return nil, io.EOF
		}
		return nil, err
	}

	msg, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, reflect.TypeOf(v))
	}
	return msg, nil
}

// Close drops unsent messages and closes the underlying connection.
func (s *Stream) Close() error {
	s.out.close()
	err := s.conn.Close()
	<-s.done
	return err
}
