package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/stewi1014/wasmfractal/pixels"
	"github.com/stewi1014/wasmfractal/protocol"
	"github.com/stewi1014/wasmfractal/render"
)

// ErrStop ends Listen without an error when returned by a Handler function.
var ErrStop = errors.New("stop listening")

// Request describes one frame.
type Request struct {
	Mode     string
	Width    uint32
	Height   uint32
	Viewport render.Viewport
}

// Handler receives worker messages. Nil fields ignore their message.
type Handler struct {
	Progress func(fraction float64)
	Loaded   func(resource string)
	Paint    func(img *pixels.Buffer) error
	Error    func(err *protocol.Error) error
}

// Controller is the sending side of a worker connection.
// Its methods may be called from several goroutines.
type Controller struct {
	conn protocol.Conn
}

func New(conn protocol.Conn) *Controller {
	return &Controller{conn: conn}
}

func (c *Controller) Close() error {
	return c.conn.Close()
}

// SendTheme installs a built-in theme by name, or the module read from a .wasm file.
func (c *Controller) SendTheme(ctx context.Context, name string) error {
	if !isModulePath(name) {
		return c.conn.Send(ctx, &protocol.Theme{Builtin: name})
	}

	wasm, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("reading theme: %w", err)
	}
	return c.conn.Send(ctx, &protocol.Theme{Wasm: wasm})
}

func (c *Controller) SendKernel(ctx context.Context, path string) error {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading kernel: %w", err)
	}
	return c.conn.Send(ctx, &protocol.Kernel{Wasm: wasm})
}

// Install sends the theme and, if configured, the kernel.
func (c *Controller) Install(ctx context.Context, cfg Config) error {
	if err := c.SendTheme(ctx, cfg.Theme); err != nil {
		return err
	}
	if cfg.Kernel != "" {
		return c.SendKernel(ctx, cfg.Kernel)
	}
	return nil
}

// Render sends a fresh image followed by the render command.
// The worker gives the image back in a paint message.
func (c *Controller) Render(ctx context.Context, req Request) error {
	err := c.conn.Send(ctx, &protocol.Image{
		Width:  req.Width,
		Height: req.Height,
		Pix:    make([]byte, int(req.Width)*int(req.Height)*4),
	})
	if err != nil {
		return err
	}

	vp := req.Viewport
	switch req.Mode {
	case ModeNative:
		return c.conn.Send(ctx, &protocol.RenderNative{X: vp.Center.X(), Y: vp.Center.Y(), Zoom: vp.Zoom})
	case ModeWasm:
		return c.conn.Send(ctx, &protocol.RenderWasm{X: vp.Center.X(), Y: vp.Center.Y(), Zoom: vp.Zoom})
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrBadConfig, req.Mode)
	}
}

// Listen dispatches worker messages to h until the worker hangs up, ctx is
// done or a handler returns an error. ErrStop from a handler returns nil.
func (c *Controller) Listen(ctx context.Context, h Handler) error {
	for {
		msg, err := c.conn.Recv(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		switch msg := msg.(type) {
		case *protocol.Progress:
			if h.Progress != nil {
				h.Progress(msg.Progress)
			}
		case *protocol.Loaded:
			if h.Loaded != nil {
				h.Loaded(msg.Resource)
			}
		case *protocol.Paint:
			if h.Paint != nil {
				err = h.Paint(msg.Image)
			}
		case *protocol.Error:
			if h.Error != nil {
				err = h.Error(msg)
			}
		default:
			err = fmt.Errorf("%w: %s from worker", protocol.ErrBadMessage, msg.Type())
		}

		if errors.Is(err, ErrStop) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
