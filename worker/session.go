// Package worker runs a render session: it installs the resources a
// controller sends, renders on command and streams progress and the finished
// image back.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"github.com/stewi1014/wasmfractal/internal/logging"
	"github.com/stewi1014/wasmfractal/kernel"
	"github.com/stewi1014/wasmfractal/pixels"
	"github.com/stewi1014/wasmfractal/protocol"
	"github.com/stewi1014/wasmfractal/render"
	"github.com/stewi1014/wasmfractal/theme"
	"github.com/stewi1014/wasmfractal/wasmhost"
)

var (
	ErrMissingResource = errors.New("required resource not installed")
	ErrBusy            = errors.New("session is rendering")
	ErrUnknownMessage  = errors.New("unknown message")
	ErrInternal        = errors.New("internal error")
)

type State int32

const (
	Idle State = iota
	Rendering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rendering:
		return "rendering"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// SetLogger sets the logger used by sessions without WithLogger and by the
// module host. nil silences logging.
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithLoader shares an existing module loader. The session does not close it.
func WithLoader(l *wasmhost.Loader) Option {
	return func(s *Session) {
		s.loader = l
		s.ownsLoader = false
	}
}

// WithLoaderConfig configures the loader the session creates for itself.
func WithLoaderConfig(cfg wasmhost.Config) Option {
	return func(s *Session) { s.loaderConfig = cfg }
}

// Session holds the resources installed by one controller.
//
// Handle is meant to be called from one goroutine; Run does that. A call that
// arrives while a render is in flight fails with ErrBusy without touching
// session state.
type Session struct {
	conn   protocol.Conn
	logger *slog.Logger

	loader       *wasmhost.Loader
	loaderConfig wasmhost.Config
	ownsLoader   bool

	state atomic.Int32

	image  *pixels.Buffer
	theme  theme.Theme
	kernel *kernel.Plugin
}

func New(conn protocol.Conn, opts ...Option) *Session {
	s := &Session{
		conn:       conn,
		ownsLoader: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loader == nil {
		s.loader = wasmhost.NewLoader(s.loaderConfig)
		s.ownsLoader = true
	}
	return s
}

func (s *Session) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.Logger()
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Run handles messages until the connection closes or ctx is done.
// Failed messages are reported to the controller and do not stop the loop.
func (s *Session) Run(ctx context.Context) error {
	for {
		msg, err := s.conn.Recv(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receiving: %w", err)
		}

		if err := s.Handle(ctx, msg); err != nil {
			s.log().Debug("message failed", "type", msg.Type(), "err", err)
		}
	}
}

// Handle processes one message. Any failure has already been sent to the
// controller as a protocol.Error when Handle returns it.
func (s *Session) Handle(ctx context.Context, msg protocol.Message) (err error) {
	if msg == nil {
		return s.fail(ctx, msg, fmt.Errorf("%w: nil", ErrUnknownMessage))
	}
	if s.State() == Rendering {
		return s.fail(ctx, msg, ErrBusy)
	}

	defer func() {
		if v := recover(); v != nil {
			s.state.Store(int32(Idle))
			err = s.fail(ctx, msg, fmt.Errorf("%w: panic: %v\n%s", ErrInternal, v, debug.Stack()))
		}
	}()

	switch msg := msg.(type) {
	case *protocol.Image:
		err = s.installImage(msg)
	case *protocol.Theme:
		err = s.installTheme(ctx, msg)
	case *protocol.Kernel:
		err = s.installKernel(ctx, msg)
	case *protocol.RenderNative:
		return s.render(ctx, msg, s.renderNative(render.NewViewport(msg.X, msg.Y, msg.Zoom)))
	case *protocol.RenderWasm:
		return s.render(ctx, msg, s.renderWasm(render.NewViewport(msg.X, msg.Y, msg.Zoom)))
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}

	if err != nil {
		return s.fail(ctx, msg, err)
	}
	s.send(ctx, &protocol.Loaded{Resource: msg.Type()})
	return nil
}

func (s *Session) installImage(msg *protocol.Image) error {
	img, err := pixels.FromRGBA(msg.Width, msg.Height, msg.Pix)
	if err != nil {
		return err
	}
	s.image = img
	s.log().Debug("image installed", "width", msg.Width, "height", msg.Height)
	return nil
}

func (s *Session) installTheme(ctx context.Context, msg *protocol.Theme) error {
	var th theme.Theme
	if msg.Builtin != "" {
		builtin, err := theme.LookupBuiltin(msg.Builtin)
		if err != nil {
			return fmt.Errorf("%w: %q", err, msg.Builtin)
		}
		th = builtin
	} else {
		plugin, err := theme.Load(ctx, s.loader, msg.Wasm)
		if err != nil {
			return err
		}
		th = plugin
	}

	s.closeTheme(ctx)
	s.theme = th
	s.log().Debug("theme installed", "builtin", msg.Builtin)
	return nil
}

func (s *Session) installKernel(ctx context.Context, msg *protocol.Kernel) error {
	k, err := kernel.Load(ctx, s.loader, msg.Wasm)
	if err != nil {
		return err
	}

	if s.kernel != nil {
		s.kernel.Close(ctx)
	}
	s.kernel = k
	s.log().Debug("kernel installed", "size", len(msg.Wasm))
	return nil
}

type renderFunc func(ctx context.Context, progress func(float64)) error

// render runs fn in the Rendering state. On success the image is painted
// and released; on failure it stays installed and no paint is sent.
func (s *Session) render(ctx context.Context, msg protocol.Message, fn renderFunc) error {
	if err := s.missing(msg); err != nil {
		return s.fail(ctx, msg, err)
	}

	s.state.Store(int32(Rendering))
	defer s.state.Store(int32(Idle))

	p := &progressEmitter{ctx: ctx, session: s}
	if err := fn(ctx, p.emit); err != nil {
		s.dropClosed(ctx)
		return s.fail(ctx, msg, err)
	}

	if s.image != nil {
		// Native renders signal completion here; kernels have already painted.
		s.paint(ctx)
	}
	return nil
}

func (s *Session) missing(msg protocol.Message) error {
	var missing []string
	if s.image == nil {
		missing = append(missing, "image")
	}
	if s.theme == nil {
		missing = append(missing, "theme")
	}
	if _, ok := msg.(*protocol.RenderWasm); ok && s.kernel == nil {
		missing = append(missing, "wasm")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingResource, strings.Join(missing, ", "))
	}
	return nil
}

func (s *Session) renderNative(vp render.Viewport) renderFunc {
	return func(ctx context.Context, progress func(float64)) error {
		return render.Native(ctx, s.image, s.theme, vp, progress)
	}
}

func (s *Session) renderWasm(vp render.Viewport) renderFunc {
	return func(ctx context.Context, progress func(float64)) error {
		return s.kernel.Render(ctx, kernel.Target{
			Image:    s.image,
			Theme:    s.theme,
			Progress: progress,
			Paint:    func(*pixels.Buffer) { s.paint(ctx) },
		}, vp)
	}
}

// paint hands the image to the controller. The session holds no image afterwards.
func (s *Session) paint(ctx context.Context) {
	img := s.image
	s.image = nil
	s.send(ctx, &protocol.Paint{Image: img})
	s.log().Debug("painted", "width", img.Width(), "height", img.Height())
}

func (s *Session) send(ctx context.Context, msg protocol.Message) {
	if err := s.conn.Send(ctx, msg); err != nil {
		s.log().Warn("send failed", "type", msg.Type(), "err", err)
	}
}

// fail reports err to the controller and returns it.
func (s *Session) fail(ctx context.Context, msg protocol.Message, err error) error {
	ref := ""
	if msg != nil {
		ref = msg.Type()
	}

	s.log().Info("message failed", "type", ref, "err", err)
	s.send(ctx, &protocol.Error{
		Ref:    ref,
		Code:   Code(err),
		Detail: err.Error(),
	})
	return err
}

// dropClosed uninstalls modules a timed out call has closed, so later renders
// report them missing instead of faulting.
func (s *Session) dropClosed(ctx context.Context) {
	if plugin, ok := s.theme.(*theme.Plugin); ok && plugin.Closed() {
		s.log().Warn("theme module closed, uninstalling")
		s.closeTheme(ctx)
	}
	if s.kernel != nil && s.kernel.Closed() {
		s.log().Warn("kernel module closed, uninstalling")
		s.kernel.Close(ctx)
		s.kernel = nil
	}
}

func (s *Session) closeTheme(ctx context.Context) {
	if plugin, ok := s.theme.(*theme.Plugin); ok {
		plugin.Close(ctx)
	}
	s.theme = nil
}

// Close unloads all installed modules. The connection is left open.
func (s *Session) Close(ctx context.Context) error {
	s.closeTheme(ctx)
	if s.kernel != nil {
		s.kernel.Close(ctx)
		s.kernel = nil
	}
	s.image = nil

	if s.ownsLoader {
		return s.loader.Close(ctx)
	}
	return nil
}
