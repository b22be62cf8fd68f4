package controller

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/stewi1014/wasmfractal/protocol"
	"github.com/stewi1014/wasmfractal/worker"
	"golang.org/x/sync/errgroup"
)

// NewPipeListener returns one end of a net.Pipe and a listener that hands out the other end once.
func NewPipeListener() (client net.Conn, listener net.Listener) {
	clientPipe, listenerPipe := net.Pipe()
	return clientPipe, &pipeListener{
		pipe: listenerPipe,
		done: make(chan struct{}),
	}
}

type pipeListener struct {
	mu   sync.Mutex
	pipe net.Conn
	done chan struct{}
	once sync.Once
}

func (p *pipeListener) Accept() (net.Conn, error) {
	p.mu.Lock()
	pipe := p.pipe
	p.pipe = nil
	p.mu.Unlock()

	if pipe != nil {
		return pipe, nil
	}
	<-p.done
	return nil, net.ErrClosed
}

// Close stops Accept. A connection already accepted stays open.
func (p *pipeListener) Close() error {
	p.once.Do(func() { close(p.done) })

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pipe != nil {
		err := p.pipe.Close()
		p.pipe = nil
		return err
	}
	return nil
}

func (p *pipeListener) Addr() net.Addr {
	return pipeAddr{}
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }

// StartWorker runs a worker session in g and returns the controller's end of its connection.
// The worker stops when the returned Conn is closed or ctx is done.
func StartWorker(ctx context.Context, g *errgroup.Group, transport string, opts ...worker.Option) (protocol.Conn, error) {
	var controller, conn protocol.Conn

	switch transport {
	case TransportChan:
		controller, conn = protocol.Pipe()

	case TransportGob:
		client, listener := NewPipeListener()
		defer listener.Close()

		server, err := listener.Accept()
		if err != nil {
			return nil, err
		}
		controller, conn = protocol.NewStream(client), protocol.NewStream(server)

	default:
		return nil, fmt.Errorf("%w: unknown transport %q", ErrBadConfig, transport)
	}

	g.Go(func() error {
		s := worker.New(conn, opts...)
		defer conn.Close()
		defer s.Close(context.WithoutCancel(ctx))
		return s.Run(ctx)
	})
	return controller, nil
}
