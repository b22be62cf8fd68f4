package protocol

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stewi1014/wasmfractal/pixels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeOrder(t *testing.T) {
	ctx := context.Background()
	controller, worker := Pipe()

	// the controller side never waits for the worker
	for i := 0; i < 10000; i++ {
		require.NoError(t, controller.Send(ctx, &Progress{Progress: float64(i)}))
	}

	for i := 0; i < 10000; i++ {
		msg, err := worker.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, float64(i), msg.(*Progress).Progress)
	}
}

func TestPipeMovesBuffer(t *testing.T) {
	ctx := context.Background()
	controller, worker := Pipe()

	img := pixels.New(2, 2)
	require.NoError(t, worker.Send(ctx, &Paint{Image: img}))

	msg, err := controller.Recv(ctx)
	require.NoError(t, err)
	assert.Same(t, img, msg.(*Paint).Image)
}

func TestPipeConcurrent(t *testing.T) {
	ctx := context.Background()
	controller, worker := Pipe()

	go func() {
		for i := 0; i < 1000; i++ {
			controller.Send(ctx, &RenderNative{Zoom: float64(i)})
		}
		controller.Close()
	}()

	var got []float64
	for {
		msg, err := worker.Recv(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, msg.(*RenderNative).Zoom)
	}

	require.Len(t, got, 1000)
	for i, zoom := range got {
		assert.Equal(t, float64(i), zoom)
	}
}

func TestPipeClose(t *testing.T) {
	ctx := context.Background()
	controller, worker := Pipe()

	require.NoError(t, controller.Send(ctx, &Kernel{Wasm: []byte{1}}))
	require.NoError(t, controller.Close())

	msg, err := worker.Recv(ctx)
	require.NoError(t, err, "queued messages survive close")
	assert.Equal(t, "wasm", msg.Type())

	_, err = worker.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)

	assert.ErrorIs(t, worker.Send(ctx, &Progress{}), ErrClosed)
	assert.ErrorIs(t, controller.Send(ctx, &Progress{}), ErrClosed)
}

func TestPipeRecvCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, worker := Pipe()
	_, err := worker.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, b := net.Pipe()
	controller, worker := NewStream(a), NewStream(b)
	defer controller.Close()
	defer worker.Close()

	img := pixels.New(2, 1)
	require.NoError(t, img.Draw(1, 0, 0x00030201))

	sent := []Message{
		&Image{Width: 1, Height: 1, Pix: []byte{1, 2, 3, 4}},
		&Theme{Builtin: "simple"},
		&Theme{Wasm: []byte("\x00asm")},
		&Kernel{Wasm: []byte("\x00asm")},
		&RenderNative{X: -0.5, Y: 0.25, Zoom: 3},
		&RenderWasm{},
		&Progress{Progress: 0.5},
		&Paint{Image: img},
		&Loaded{Resource: "theme"},
		&Error{Ref: "render_wasm", Code: CodeModuleFault, Detail: "trap"},
	}

	// queued without a reader on the other end
	for _, msg := range sent {
		require.NoError(t, controller.Send(ctx, msg))
	}

	for _, want := range sent {
		got, err := worker.Recv(ctx)
		require.NoError(t, err)
		require.Equal(t, want.Type(), got.Type())

		if paint, ok := got.(*Paint); ok {
			assert.Equal(t, img.Pix(), paint.Image.Pix())
			assert.Equal(t, img.Bounds(), paint.Image.Bounds())
			continue
		}
		assert.Equal(t, want, got)
	}
}

func TestStreamPeerClosed(t *testing.T) {
	a, b := net.Pipe()
	controller, worker := NewStream(a), NewStream(b)
	defer worker.Close()

	require.NoError(t, controller.Close())
	_, err := worker.Recv(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamRecvCancelled(t *testing.T) {
	a, b := net.Pipe()
	controller, worker := NewStream(a), NewStream(b)
	defer controller.Close()
	defer worker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := worker.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Ref: "render_native", Code: CodeMissingResource, Detail: "no theme"}
	assert.EqualError(t, err, "render_native: missing_resource: no theme")
	assert.Equal(t, "error", err.Type())
}
